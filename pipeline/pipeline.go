// Package pipeline is the frame-pull orchestrator: once per requested
// output time it drains every input source, runs the stabilizer graph, the
// ruleset and all grammars for each part, and composites one scene.
// Execution is single-threaded and synchronous; one caller drives the
// frame clock.
package pipeline

import (
	"sort"

	"synesthetica/adapter"
	"synesthetica/debug"
	"synesthetica/grammar"
	"synesthetica/music"
	"synesthetica/ruleset"
	"synesthetica/scene"
	"synesthetica/stabilizer"
)

// Stable diagnostic ids, for deduplication by consumers.
const (
	DiagNoRuleset    = "warn.ruleset.missing"
	DiagNoCompositor = "warn.compositor.missing"
	DiagDisposed     = "warn.pipeline.disposed"
)

const activityKeepMs = 30_000

// partState is everything the pipeline holds per part. Created lazily on
// first sight of a part id; state never crosses part boundaries.
type partState struct {
	prevSnapshot music.Snapshot
	grammars     map[string]grammar.Grammar
	prevScenes   map[string]scene.Frame
}

// Pipeline is the root of the temporal visualization pipeline.
type Pipeline struct {
	graph        *stabilizer.Graph
	rules        ruleset.Ruleset
	comp         scene.Compositor
	grammarSpecs []grammar.Spec
	sources      []adapter.Source

	parts    map[string]*partState
	activity *ActivityTracker

	canvasW, canvasH float64
	seed             int64

	prescribedBPM   float64
	prescribedMeter *music.Meter

	disposed bool
}

// New builds a pipeline around a stabilizer graph. Canvas and seed have
// usable defaults; everything else is registered with the setters below.
func New(graph *stabilizer.Graph) *Pipeline {
	return &Pipeline{
		graph:    graph,
		parts:    make(map[string]*partState),
		activity: NewActivityTracker(activityKeepMs),
		canvasW:  320,
		canvasH:  200,
		seed:     1,
	}
}

// SetRuleset registers the annotation stage. Without one, RequestFrame
// degrades to empty scenes with a warning diagnostic.
func (p *Pipeline) SetRuleset(r ruleset.Ruleset) { p.rules = r }

// SetCompositor registers the compositor. Without one, scenes are simply
// concatenated.
func (p *Pipeline) SetCompositor(c scene.Compositor) { p.comp = c }

// SetCanvas sets the size handed to grammars at initialization.
func (p *Pipeline) SetCanvas(w, h float64) { p.canvasW, p.canvasH = w, h }

// SetSeed sets the base RNG seed handed to grammars at initialization.
func (p *Pipeline) SetSeed(seed int64) { p.seed = seed }

// SetPrescribedTempo injects the externally supplied tempo (0 clears it).
// The graph never infers tempo, it only measures against this.
func (p *Pipeline) SetPrescribedTempo(bpm float64) { p.prescribedBPM = bpm }

// SetPrescribedMeter injects the externally supplied meter (nil clears it).
func (p *Pipeline) SetPrescribedMeter(m *music.Meter) { p.prescribedMeter = m }

// AddSource registers an input source, pulled once per cycle.
func (p *Pipeline) AddSource(s adapter.Source) { p.sources = append(p.sources, s) }

// AddGrammar registers a grammar kind. One instance is created per part,
// lazily, on the part's first frame.
func (p *Pipeline) AddGrammar(spec grammar.Spec) { p.grammarSpecs = append(p.grammarSpecs, spec) }

// Activity exposes the tracker for external command layers.
func (p *Pipeline) Activity() *ActivityTracker { return p.activity }

// RequestFrame runs one full pull cycle and returns the composited scene
// for targetTime. Degraded configurations produce diagnostics, never
// errors; after Dispose it returns empty scenes.
func (p *Pipeline) RequestFrame(targetTime music.Millis) scene.Frame {
	if p.disposed {
		out := scene.Empty(targetTime)
		out.Diagnostics = append(out.Diagnostics, scene.Warnf(DiagDisposed, "pipeline disposed; frame ignored"))
		return out
	}

	merged, byPart := p.pullSources(targetTime)

	// Every known part gets a cycle even with no fresh events, so scenes
	// keep scrolling and fading between inputs.
	partIDs := make([]string, 0, len(p.parts)+len(byPart))
	for id := range p.parts {
		partIDs = append(partIDs, id)
	}
	for id := range byPart {
		if _, known := p.parts[id]; !known {
			partIDs = append(partIDs, id)
		}
	}
	sort.Strings(partIDs)

	var frames []scene.Frame
	var diags []scene.Diagnostic

	rulesetMissing := p.rules == nil
	if rulesetMissing {
		// The only fatal-looking condition, and it is not fatal: the graph
		// still runs, the scene just stays empty.
		diags = append(diags, scene.Warnf(DiagNoRuleset, "no ruleset configured; scene is empty"))
	}

	for _, partID := range partIDs {
		ps := p.partFor(partID)

		batch := music.RawBatch{
			Time:     targetTime,
			SourceID: merged.SourceID,
			StreamID: partID,
			Events:   byPart[partID],
		}
		prev := ps.prevSnapshot
		prev.PrescribedBPM = p.prescribedBPM
		prev.PrescribedMeter = p.prescribedMeter

		snap := p.graph.Run(partID, batch, prev)
		snap.PrescribedBPM = p.prescribedBPM
		snap.PrescribedMeter = p.prescribedMeter
		ps.prevSnapshot = snap

		if len(snap.Notes) > 0 {
			p.activity.Record(partID, targetTime, len(snap.Notes))
		}

		if rulesetMissing {
			continue
		}
		annotated := p.rules.Map(snap)

		for _, spec := range p.grammarSpecs {
			g, ok := ps.grammars[spec.ID]
			if !ok {
				g = spec.New()
				g.Init(grammar.InitContext{
					PartID: partID,
					Width:  p.canvasW,
					Height: p.canvasH,
					Seed:   p.seed,
				})
				ps.grammars[spec.ID] = g
				debug.Log("pipeline", "part %s: grammar %s initialized", partID, spec.ID)
			}
			frame := g.Update(annotated, ps.prevScenes[spec.ID])
			ps.prevScenes[spec.ID] = frame
			frames = append(frames, frame)
		}
	}

	var out scene.Frame
	if p.comp != nil {
		out = p.comp.Composite(targetTime, frames)
	} else {
		out = scene.Concat{}.Composite(targetTime, frames)
		if len(frames) > 0 {
			diags = append(diags, scene.Warnf(DiagNoCompositor, "no compositor configured; scenes concatenated"))
		}
	}
	out.Diagnostics = append(out.Diagnostics, diags...)
	debug.LogEvery(300, "pipeline", "frame t=%d parts=%d entities=%d", targetTime, len(partIDs), len(out.Entities))
	return out
}

// pullSources drains every source once and merges the batches into one,
// stamped with the target time. Events concatenate in source registration
// order; cross-source ordering is arrival order, never timestamp order.
// The same pass splits events by part: a source's StreamID names its part,
// an empty one falls back to the source id.
func (p *Pipeline) pullSources(targetTime music.Millis) (music.RawBatch, map[string][]music.Event) {
	merged := music.RawBatch{Time: targetTime, SourceID: "merged"}
	byPart := make(map[string][]music.Event)
	for _, src := range p.sources {
		b := src.NextBatch()
		if b == nil {
			continue
		}
		part := b.StreamID
		if part == "" {
			part = b.SourceID
		}
		merged.Events = append(merged.Events, b.Events...)
		byPart[part] = append(byPart[part], b.Events...)
	}
	return merged, byPart
}

// partFor resolves or lazily creates a part's state.
func (p *Pipeline) partFor(partID string) *partState {
	ps, ok := p.parts[partID]
	if !ok {
		ps = &partState{
			grammars:   make(map[string]grammar.Grammar),
			prevScenes: make(map[string]scene.Frame),
		}
		p.parts[partID] = ps
		debug.Log("pipeline", "part %s: state created", partID)
	}
	return ps
}

// Reset clears all per-part state and activity history. Sources, grammars
// and the ruleset stay registered.
func (p *Pipeline) Reset() {
	p.parts = make(map[string]*partState)
	p.graph.Reset()
	p.activity.Reset()
	debug.Log("pipeline", "reset")
}

// Dispose releases all held state. Subsequent RequestFrame calls return
// empty scenes and never panic.
func (p *Pipeline) Dispose() {
	p.Reset()
	p.sources = nil
	p.grammarSpecs = nil
	p.disposed = true
	debug.Log("pipeline", "disposed")
}
