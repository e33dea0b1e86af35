package stabilizer

import (
	"strings"
	"testing"

	"synesthetica/music"
)

// recordingNode emits one fixed note and remembers what its deps contained.
type recordingNode struct {
	emit     music.Note
	sawNotes []string
	calls    int
}

func (r *recordingNode) Process(_ string, _ music.RawBatch, deps music.Snapshot, _ music.Snapshot) music.Snapshot {
	r.calls++
	r.sawNotes = nil
	for _, n := range deps.Notes {
		r.sawNotes = append(r.sawNotes, n.ID)
	}
	return music.Snapshot{Notes: []music.Note{r.emit}}
}

func specFor(id string, deps []string, node *recordingNode) NodeSpec {
	return NodeSpec{ID: id, DependsOn: deps, New: func() Node { return node }}
}

func TestGraphOrderRespectsDependencies(t *testing.T) {
	// Declared deliberately out of dependency order.
	g, err := NewGraph([]NodeSpec{
		specFor("c", []string{"b"}, &recordingNode{}),
		specFor("b", []string{"a"}, &recordingNode{}),
		specFor("a", nil, &recordingNode{}),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	order := g.Order()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order %v violates a < b < c", order)
	}
}

func TestGraphConstructionErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []NodeSpec
		want  string
	}{
		{
			name: "cycle",
			specs: []NodeSpec{
				specFor("a", []string{"b"}, &recordingNode{}),
				specFor("b", []string{"a"}, &recordingNode{}),
			},
			want: "cycle",
		},
		{
			name: "unknown dependency",
			specs: []NodeSpec{
				specFor("a", []string{"ghost"}, &recordingNode{}),
			},
			want: "unknown",
		},
		{
			name: "duplicate id",
			specs: []NodeSpec{
				specFor("a", nil, &recordingNode{}),
				specFor("a", nil, &recordingNode{}),
			},
			want: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.specs)
			if err == nil {
				t.Fatal("expected construction error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestGraphDependentSeesDepOutput(t *testing.T) {
	root := &recordingNode{emit: music.Note{ID: "from-root", Pitch: 60}}
	child := &recordingNode{emit: music.Note{ID: "from-child", Pitch: 64}}

	g, err := NewGraph([]NodeSpec{
		specFor("root", nil, root),
		specFor("child", []string{"root"}, child),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	snap := g.Run("p1", music.RawBatch{Time: 100}, music.Snapshot{})

	if len(child.sawNotes) != 1 || child.sawNotes[0] != "from-root" {
		t.Errorf("child saw deps %v, want [from-root]", child.sawNotes)
	}
	if len(root.sawNotes) != 0 {
		t.Errorf("root (no deps) saw %v, want nothing", root.sawNotes)
	}
	if len(snap.Notes) != 2 {
		t.Errorf("merged snapshot has %d notes, want 2", len(snap.Notes))
	}
	if snap.Time != 100 || snap.PartID != "p1" {
		t.Errorf("snapshot stamped %d/%q, want 100/p1", snap.Time, snap.PartID)
	}
}

func TestGraphPerPartIsolation(t *testing.T) {
	g := MustGraph([]NodeSpec{{ID: "notes", New: NewNotesNode}})

	on := music.RawBatch{Time: 10, Events: []music.Event{
		{Time: 10, Type: music.NoteOn, Pitch: 60, Velocity: 100},
	}}
	empty := music.RawBatch{Time: 20}

	a := g.Run("partA", on, music.Snapshot{})
	b := g.Run("partB", empty, music.Snapshot{})

	if len(a.Notes) != 1 {
		t.Fatalf("partA has %d notes, want 1", len(a.Notes))
	}
	if len(b.Notes) != 0 {
		t.Fatalf("partA's held note leaked into partB: %v", b.Notes)
	}

	// partA's note survives its own next cycle.
	a2 := g.Run("partA", empty, music.Snapshot{})
	if len(a2.Notes) != 1 {
		t.Errorf("partA lost its held note after partB's cycle")
	}
}
