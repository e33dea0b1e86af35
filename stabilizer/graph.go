// Package stabilizer accumulates raw input events into musical state.
// A Graph is a set of named nodes with declared dependencies; each node
// holds private history scoped to one part and contributes fields to the
// part's snapshot.
package stabilizer

import (
	"fmt"

	"synesthetica/debug"
	"synesthetica/music"
)

// Node is the single dispatch point for all stabilizer kinds. Process sees
// the raw batch, the merged output of its declared dependencies (zero value
// when it has none) and the part's previous snapshot, and returns its
// contribution to the new snapshot. Nodes keep their own mutable history;
// one instance serves exactly one part.
type Node interface {
	Process(partID string, batch music.RawBatch, deps music.Snapshot, prev music.Snapshot) music.Snapshot
}

// NodeSpec declares one node of the graph. New must return a fresh instance
// with empty private state.
type NodeSpec struct {
	ID        string
	DependsOn []string
	New       func() Node
}

// Graph executes nodes in dependency order, one private node-set per part.
// Construction computes the topological order once; a cycle or an unknown
// dependency id is a construction error, never a runtime one.
type Graph struct {
	specs map[string]NodeSpec
	order []string
	parts map[string]map[string]Node
}

// NewGraph validates the declarations and fixes the execution order.
func NewGraph(specs []NodeSpec) (*Graph, error) {
	g := &Graph{
		specs: make(map[string]NodeSpec, len(specs)),
		parts: make(map[string]map[string]Node),
	}
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("stabilizer: node with empty id")
		}
		if s.New == nil {
			return nil, fmt.Errorf("stabilizer: node %q has no constructor", s.ID)
		}
		if _, dup := g.specs[s.ID]; dup {
			return nil, fmt.Errorf("stabilizer: duplicate node id %q", s.ID)
		}
		g.specs[s.ID] = s
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := g.specs[dep]; !ok {
				return nil, fmt.Errorf("stabilizer: node %q depends on unknown node %q", s.ID, dep)
			}
		}
	}

	// Kahn's algorithm. Whatever is left with edges at the end is a cycle.
	indeg := make(map[string]int, len(specs))
	dependents := make(map[string][]string, len(specs))
	for _, s := range specs {
		indeg[s.ID] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}
	var ready []string
	for _, s := range specs { // spec order, so sibling order is deterministic
		if indeg[s.ID] == 0 {
			ready = append(ready, s.ID)
		}
	}
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		g.order = append(g.order, id)
		for _, d := range dependents[id] {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(g.order) != len(specs) {
		var stuck []string
		for id, n := range indeg {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("stabilizer: dependency cycle involving %v", stuck)
	}

	debug.Log("graph", "constructed: %d nodes, order=%v", len(specs), g.order)
	return g, nil
}

// Order returns the fixed execution order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// nodesFor lazily creates the private node-set for a part. One part's held
// state must never leak into another's.
func (g *Graph) nodesFor(partID string) map[string]Node {
	set, ok := g.parts[partID]
	if !ok {
		set = make(map[string]Node, len(g.specs))
		for id, s := range g.specs {
			set[id] = s.New()
		}
		g.parts[partID] = set
		debug.Log("graph", "part %s: node-set created", partID)
	}
	return set
}

// Run executes one pull cycle for a part. Roots see the batch only;
// a dependent node additionally sees the merged output of its dependencies,
// all of which have already run this cycle.
func (g *Graph) Run(partID string, batch music.RawBatch, prev music.Snapshot) music.Snapshot {
	nodes := g.nodesFor(partID)
	outputs := make(map[string]music.Snapshot, len(g.order))

	for _, id := range g.order {
		spec := g.specs[id]
		var deps music.Snapshot
		if len(spec.DependsOn) > 0 {
			depOuts := make([]music.Snapshot, 0, len(spec.DependsOn))
			for _, dep := range spec.DependsOn {
				depOuts = append(depOuts, outputs[dep])
			}
			deps = music.Merge(depOuts...)
		}
		outputs[id] = nodes[id].Process(partID, batch, deps, prev)
	}

	merged := make([]music.Snapshot, 0, len(g.order))
	for _, id := range g.order {
		merged = append(merged, outputs[id])
	}
	snap := music.Merge(merged...)
	snap.Time = batch.Time
	snap.PartID = partID
	snap.PrescribedBPM = prev.PrescribedBPM
	snap.PrescribedMeter = prev.PrescribedMeter
	return snap
}

// DropPart discards a part's node-set and its private history.
func (g *Graph) DropPart(partID string) {
	delete(g.parts, partID)
}

// Reset discards all per-part node-sets.
func (g *Graph) Reset() {
	g.parts = make(map[string]map[string]Node)
}
