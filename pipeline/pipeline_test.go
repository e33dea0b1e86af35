package pipeline

import (
	"strings"
	"testing"

	"synesthetica/grammar"
	"synesthetica/music"
	"synesthetica/ruleset"
	"synesthetica/scene"
	"synesthetica/stabilizer"
)

// fakeSource hands out one queued batch per NextBatch call.
type fakeSource struct {
	id      string
	stream  string
	pending []music.RawBatch
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) NextBatch() *music.RawBatch {
	if len(f.pending) == 0 {
		return nil
	}
	b := f.pending[0]
	f.pending = f.pending[1:]
	b.SourceID = f.id
	b.StreamID = f.stream
	return &b
}

func (f *fakeSource) queue(events ...music.Event) {
	f.pending = append(f.pending, music.RawBatch{Events: events})
}

func noteOnEvent(t music.Millis, pitch, vel uint8) music.Event {
	return music.Event{Time: t, Type: music.NoteOn, Pitch: pitch, Velocity: vel}
}

func hasDiagnostic(f scene.Frame, id string) bool {
	for _, d := range f.Diagnostics {
		if d.ID == id {
			return true
		}
	}
	return false
}

func newTestPipeline() *Pipeline {
	p := New(stabilizer.MustGraph(stabilizer.DefaultSpecs()))
	p.SetRuleset(ruleset.NewStandard(nil))
	p.SetCompositor(scene.Concat{})
	p.AddGrammar(grammar.Spec{ID: "rhythm", New: func() grammar.Grammar {
		g := grammar.NewRhythm()
		g.SetHorizon(1)
		return g
	}})
	return p
}

func TestFrameWithoutSources(t *testing.T) {
	p := newTestPipeline()
	f := p.RequestFrame(1000)
	if len(f.Entities) != 0 {
		t.Errorf("no adapters but %d entities", len(f.Entities))
	}
	if f.Time != 1000 {
		t.Errorf("Time = %d, want 1000", f.Time)
	}
	if len(f.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %+v", f.Diagnostics)
	}
}

func TestMissingRulesetDegradesWithDiagnostic(t *testing.T) {
	p := New(stabilizer.MustGraph(stabilizer.DefaultSpecs()))
	p.SetCompositor(scene.Concat{})

	src := &fakeSource{id: "s1", stream: "part-1"}
	src.queue(noteOnEvent(900, 60, 100))
	p.AddSource(src)

	f := p.RequestFrame(1000)
	if len(f.Entities) != 0 {
		t.Errorf("scene should be empty without a ruleset, got %d entities", len(f.Entities))
	}
	if !hasDiagnostic(f, DiagNoRuleset) {
		t.Errorf("missing %s diagnostic: %+v", DiagNoRuleset, f.Diagnostics)
	}
}

func TestMissingCompositorStillRenders(t *testing.T) {
	p := newTestPipeline()
	p.comp = nil

	src := &fakeSource{id: "s1", stream: "part-1"}
	src.queue(noteOnEvent(900, 60, 100))
	p.AddSource(src)

	f := p.RequestFrame(1000)
	if len(f.Entities) == 0 {
		t.Error("no entities despite a live note")
	}
	if !hasDiagnostic(f, DiagNoCompositor) {
		t.Errorf("missing %s diagnostic: %+v", DiagNoCompositor, f.Diagnostics)
	}
}

func TestPartsStayIsolated(t *testing.T) {
	p := newTestPipeline()

	left := &fakeSource{id: "s1", stream: "left"}
	left.queue(noteOnEvent(900, 60, 100))
	right := &fakeSource{id: "s2", stream: "right"}
	right.queue(noteOnEvent(900, 64, 100))
	p.AddSource(left)
	p.AddSource(right)

	f := p.RequestFrame(1000)

	byPart := make(map[string]int)
	for _, e := range f.Entities {
		if strings.Contains(e.ID, "/note/") {
			byPart[e.PartID]++
		}
	}
	if byPart["left"] != 1 || byPart["right"] != 1 {
		t.Errorf("per-part note entities = %v, want one each for left and right", byPart)
	}
}

func TestStreamIDFallsBackToSourceID(t *testing.T) {
	p := newTestPipeline()
	src := &fakeSource{id: "solo"}
	src.queue(noteOnEvent(900, 60, 100))
	p.AddSource(src)

	f := p.RequestFrame(1000)
	for _, e := range f.Entities {
		if strings.Contains(e.ID, "/note/") && e.PartID != "solo" {
			t.Errorf("note entity part = %q, want fallback to source id", e.PartID)
		}
	}
}

func TestKnownPartsCycleWithoutFreshEvents(t *testing.T) {
	p := newTestPipeline()
	src := &fakeSource{id: "s1", stream: "part-1"}
	src.queue(noteOnEvent(900, 60, 100))
	p.AddSource(src)

	p.RequestFrame(1000)

	// No new events, but the sustained note keeps its entity alive.
	f := p.RequestFrame(1033)
	found := false
	for _, e := range f.Entities {
		if strings.Contains(e.ID, "/note/") {
			found = true
		}
	}
	if !found {
		t.Error("held note vanished on an input-free frame")
	}
}

func TestActivityTracking(t *testing.T) {
	p := newTestPipeline()

	busy := &fakeSource{id: "s1", stream: "busy"}
	busy.queue(noteOnEvent(900, 60, 100), noteOnEvent(910, 64, 100), noteOnEvent(920, 67, 100))
	quiet := &fakeSource{id: "s2", stream: "quiet"}
	quiet.queue(noteOnEvent(900, 48, 80))
	p.AddSource(busy)
	p.AddSource(quiet)

	p.RequestFrame(1000)

	part, ok := p.Activity().MostActive(1000, 5000)
	if !ok || part != "busy" {
		t.Errorf("MostActive = %q, %v; want busy", part, ok)
	}
	if got := p.Activity().CountIn("busy", 1000, 5000); got != 3 {
		t.Errorf("busy count = %d, want 3", got)
	}
}

func TestActivityWindowExpires(t *testing.T) {
	a := NewActivityTracker(10_000)
	a.Record("p1", 1000, 5)
	if got := a.CountIn("p1", 2000, 500); got != 0 {
		t.Errorf("count outside window = %d, want 0", got)
	}
	if got := a.CountIn("p1", 1500, 1000); got != 5 {
		t.Errorf("count inside window = %d, want 5", got)
	}
	a.Record("p1", 20_000, 1)
	if got := a.CountIn("p1", 20_000, 30_000); got != 1 {
		t.Errorf("expired record still counted: %d, want 1", got)
	}
}

func TestResetClearsPartsKeepsRegistrations(t *testing.T) {
	p := newTestPipeline()
	src := &fakeSource{id: "s1", stream: "part-1"}
	src.queue(noteOnEvent(900, 60, 100))
	p.AddSource(src)

	p.RequestFrame(1000)
	if len(p.parts) == 0 {
		t.Fatal("no part state before reset")
	}

	p.Reset()
	if len(p.parts) != 0 {
		t.Error("part state survived reset")
	}
	if _, ok := p.Activity().MostActive(1000, 5000); ok {
		t.Error("activity history survived reset")
	}
	if len(p.sources) != 1 || len(p.grammarSpecs) != 1 {
		t.Error("reset dropped registrations")
	}
}

func TestDisposedPipelineStaysQuiet(t *testing.T) {
	p := newTestPipeline()
	p.Dispose()

	f := p.RequestFrame(1000)
	if len(f.Entities) != 0 {
		t.Errorf("disposed pipeline produced %d entities", len(f.Entities))
	}
	if !hasDiagnostic(f, DiagDisposed) {
		t.Errorf("missing %s diagnostic: %+v", DiagDisposed, f.Diagnostics)
	}
}
