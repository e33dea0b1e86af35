package grammar

import (
	"fmt"
	"math"

	"synesthetica/debug"
	"synesthetica/music"
	"synesthetica/ruleset"
	"synesthetica/scene"
)

// Temporal mapping constants. The time-to-x mapping always uses these fixed
// horizons, independent of the user-facing window control, so adjusting the
// control can never rescale elements already on screen.
const (
	mappedPastMs   = 12000.0 // past reachable on screen
	lookaheadMs    = 1000.0  // small future strip
	nowAnchorFrac  = 0.72   // "now" sits at this fraction of the width
	screenMargin   = 12.0   // cull slack beyond the canvas edge
	noteFloorMs    = 1500.0 // minimum note window when no tempo is known
	refWindowMs    = 2000.0 // how long a drift reference indicator lingers
	driftTolMs     = 30.0   // beyond this, a direction decoration appears
	jitterBucketMs = 125    // 8 jitter buckets per second
	fadeKnee       = 0.6    // fades start at this fraction of the window
)

// Tier is the visualization tier, recomputed every call.
type Tier int

const (
	Tier1 Tier = 1 // no usable tempo: raw temporal markers only
	Tier2 Tier = 2 // tempo known: plus periodic beat markers
	Tier3 Tier = 3 // tempo and meter known: plus bar markers and emphasis
)

// TierFor is a pure function of the snapshot's tempo/meter fields and the
// detected fallback period. No hysteresis: the tier may change frame to
// frame and nothing downstream special-cases the transition.
func TierFor(prescribedBPM float64, meter *music.Meter, detectedPeriodMs float64) Tier {
	tempoKnown := prescribedBPM > 0 || detectedPeriodMs > 0
	switch {
	case tempoKnown && meter != nil:
		return Tier3
	case tempoKnown:
		return Tier2
	default:
		return Tier1
	}
}

// driftEntry is a frozen drift indicator value. Computed once per note and
// never recomputed, even when the upstream analysis revises its estimate
// for the same onset: a note's drift indicator must not change after its
// first render.
type driftEntry struct {
	driftMs float64
	label   string
}

// Rhythm is the scrolling-timeline grammar. Pitch class maps to the
// vertical axis (octave-invariant), elapsed time to the horizontal axis
// with "now" at a fixed anchor column. The horizon control 0..1 widens the
// visibility windows; it filters and fades, never repositions.
type Rhythm struct {
	ctx     InitContext
	horizon float64
	cache   map[string]driftEntry
}

// NewRhythm returns a rhythm grammar with the window control at its
// default midpoint.
func NewRhythm() *Rhythm {
	return &Rhythm{horizon: 0.5, cache: make(map[string]driftEntry)}
}

func (r *Rhythm) ID() string { return "rhythm" }

func (r *Rhythm) Init(ctx InitContext) {
	r.ctx = ctx
	debug.Log("grammar", "rhythm init: part=%s canvas=%.0fx%.0f seed=%d", ctx.PartID, ctx.Width, ctx.Height, ctx.Seed)
}

// SetHorizon sets the window control, clamped to 0..1.
func (r *Rhythm) SetHorizon(h float64) {
	r.horizon = math.Min(1, math.Max(0, h))
}

// beatPeriodMs resolves the effective beat period: prescribed tempo first,
// detected period as fallback, 0 when neither exists.
func beatPeriodMs(snap music.Snapshot) float64 {
	if snap.PrescribedBPM > 0 {
		return 60000 / snap.PrescribedBPM
	}
	return snap.Rhythm.PeriodMs
}

// GridWindowMs scales linearly with the horizon control: how far into the
// past periodic grid markers stay visible.
func (r *Rhythm) GridWindowMs() float64 {
	return r.horizon * mappedPastMs
}

// NoteWindowMs scales nonlinearly (quadratic ease) from one beat at the
// effective tempo (or a fixed floor with no tempo) up to the full mapped
// past. Monotonically non-decreasing in the control.
func (r *Rhythm) NoteWindowMs(beatMs float64) float64 {
	min := beatMs
	if min <= 0 {
		min = noteFloorMs
	}
	if min > mappedPastMs {
		min = mappedPastMs
	}
	return min + (mappedPastMs-min)*r.horizon*r.horizon
}

// xForTime is the fixed monotonic time-to-screen mapping. The present sits
// at the anchor column, the past ramps continuously to the left edge over
// mappedPastMs, the future to the right edge over lookaheadMs.
func (r *Rhythm) xForTime(now, t music.Millis) float64 {
	anchorX := r.ctx.Width * nowAnchorFrac
	dt := float64(now - t) // positive = past
	if dt >= 0 {
		return anchorX - dt/mappedPastMs*anchorX
	}
	return anchorX + (-dt)/lookaheadMs*(r.ctx.Width-anchorX)
}

// yForPitchClass maps pitch class 0-11 across the height. Octave changes
// never move an element vertically.
func (r *Rhythm) yForPitchClass(pc int) float64 {
	return r.ctx.Height * (1 - (float64(pc)+0.5)/12)
}

func (r *Rhythm) onScreen(x float64) bool {
	return x >= -screenMargin && x <= r.ctx.Width+screenMargin
}

func (r *Rhythm) Update(a ruleset.Annotated, prev scene.Frame) scene.Frame {
	snap := a.Snapshot
	now := snap.Time
	out := scene.Frame{Time: now}

	beatMs := beatPeriodMs(snap)
	tier := TierFor(snap.PrescribedBPM, snap.PrescribedMeter, snap.Rhythm.PeriodMs)

	r.pruneCache(snap)

	if tier >= Tier2 {
		r.emitGridMarkers(&out, snap, beatMs, tier)
	}
	r.emitNotes(&out, a, beatMs)
	r.emitDriftIndicators(&out, a, beatMs)

	debug.LogEvery(120, "grammar", "rhythm: part=%s tier=%d entities=%d cache=%d", snap.PartID, tier, len(out.Entities), len(r.cache))
	return out
}

// pruneCache drops cache entries whose note id no longer appears in the
// snapshot. Exactly then: an id still present keeps its frozen value.
func (r *Rhythm) pruneCache(snap music.Snapshot) {
	if len(r.cache) == 0 {
		return
	}
	live := make(map[string]bool, len(snap.Notes))
	for _, n := range snap.Notes {
		live[n.ID] = true
	}
	for id := range r.cache {
		if !live[id] {
			delete(r.cache, id)
		}
	}
}

// emitGridMarkers adds beat lines (tier 2+) and bar lines with downbeat
// emphasis (tier 3) inside the grid window, faded toward its boundary.
// Marker ids derive from the grid index so they are stable frame to frame.
func (r *Rhythm) emitGridMarkers(out *scene.Frame, snap music.Snapshot, beatMs float64, tier Tier) {
	if beatMs <= 0 {
		return
	}
	gridWin := r.GridWindowMs()
	first := int64(math.Ceil((float64(snap.Time) - gridWin) / beatMs))
	last := int64(math.Floor((float64(snap.Time) + math.Min(lookaheadMs, gridWin)) / beatMs))

	beatsPerBar := 0
	if tier >= Tier3 && snap.PrescribedMeter != nil {
		beatsPerBar = snap.PrescribedMeter.Beats
	}

	for k := first; k <= last; k++ {
		if k < 0 {
			continue
		}
		t := music.Millis(float64(k) * beatMs)
		x := r.xForTime(snap.Time, t)
		if !r.onScreen(x) {
			continue
		}
		age := math.Abs(float64(snap.Time - t))
		alpha := boundaryFade(age, gridWin, fadeKnee)
		if alpha <= 0 {
			continue
		}

		isBar := beatsPerBar > 0 && k%int64(beatsPerBar) == 0
		role, size, val := "beat", 0.6, 0.45
		if isBar {
			role, size, val = "bar", 1.0, 0.8
		}
		out.Entities = append(out.Entities, scene.Entity{
			ID:        fmt.Sprintf("%s/%s/%s/%d", r.ID(), role, snap.PartID, k),
			PartID:    snap.PartID,
			Kind:      scene.KindField,
			CreatedAt: t,
			UpdatedAt: snap.Time,
			Position:  &scene.Vec{X: x, Y: r.ctx.Height / 2},
			Style: scene.Style{
				Color: scene.HSVA{H: 0, S: 0, V: val, A: alpha},
				Size:  size,
			},
			Data: map[string]any{"role": role, "span": "vertical"},
		})
	}
}

// emitNotes places each visible note at its fixed-mapping position with
// deterministic decorative jitter. The note window governs filtering and
// fading only; position always comes from the constant-horizon mapping, and
// anything the mapping puts off screen is culled by the bounds check alone.
func (r *Rhythm) emitNotes(out *scene.Frame, a ruleset.Annotated, beatMs float64) {
	now := a.Snapshot.Time
	noteWin := r.NoteWindowMs(beatMs)
	bucket := int64(now) / jitterBucketMs

	for _, n := range a.Notes {
		age := float64(now - n.Onset)
		alpha := boundaryFade(age, noteWin, fadeKnee)
		if alpha <= 0 {
			continue
		}

		x := r.xForTime(now, n.Onset)
		if !r.onScreen(x) {
			continue
		}
		y := r.yForPitchClass(n.PitchClass())

		id := fmt.Sprintf("%s/note/%s", r.ID(), n.ID)
		if n.Visual.Motion.Jitter > 0 {
			rng := jitterRand(r.ctx.Seed, id, bucket)
			span := n.Visual.Motion.Jitter * 3
			x += (rng.Float64()*2 - 1) * span
			y += (rng.Float64()*2 - 1) * span
		}

		kind := scene.KindParticle
		if n.Phase == music.PhaseSustain {
			kind = scene.KindTrail
		}
		out.Entities = append(out.Entities, scene.Entity{
			ID:        id,
			PartID:    a.Snapshot.PartID,
			Kind:      kind,
			CreatedAt: n.Onset,
			UpdatedAt: now,
			Position:  &scene.Vec{X: x, Y: y},
			Life:      &scene.Life{TTLMs: noteWin, AgeMs: age},
			Style: scene.Style{
				Color: n.Visual.Palette.Primary.WithAlpha(alpha),
				Size:  0.5 + float64(n.Velocity)/127,
			},
			Data: map[string]any{
				"texture": n.Visual.Texture,
				"label":   n.Visual.Label,
				"phase":   n.Phase.String(),
			},
		})
	}
}

// emitDriftIndicators adds, for each note with a known drift, a fading
// reference mark at the grid position the onset was measured against, plus
// a direction-coded decoration when the frozen drift exceeds tolerance.
func (r *Rhythm) emitDriftIndicators(out *scene.Frame, a ruleset.Annotated, beatMs float64) {
	now := a.Snapshot.Time

	for _, n := range a.Notes {
		entry, ok := r.cache[n.ID]
		if !ok {
			entry, ok = r.freeze(n.ID, a.Snapshot.Rhythm)
			if !ok {
				continue
			}
		}

		age := float64(now - n.Onset)
		alpha := boundaryFade(age, refWindowMs, fadeKnee)
		if alpha <= 0 {
			continue
		}

		// The reference mark sits where the onset would have been on grid.
		gridTime := n.Onset - music.Millis(entry.driftMs)
		x := r.xForTime(now, gridTime)
		if !r.onScreen(x) {
			continue
		}
		y := r.yForPitchClass(n.PitchClass())

		out.Entities = append(out.Entities, scene.Entity{
			ID:        fmt.Sprintf("%s/drift/%s", r.ID(), n.ID),
			PartID:    a.Snapshot.PartID,
			Kind:      scene.KindGlyph,
			CreatedAt: n.Onset,
			UpdatedAt: now,
			Position:  &scene.Vec{X: x, Y: y},
			Life:      &scene.Life{TTLMs: refWindowMs, AgeMs: age},
			Style: scene.Style{
				Color: n.Visual.Palette.Secondary.WithAlpha(alpha * 0.8),
				Size:  0.4,
			},
			Data: map[string]any{"role": "drift-ref", "driftMs": entry.driftMs, "grid": entry.label},
		})

		if math.Abs(entry.driftMs) > driftTolMs {
			dir := "late"
			if entry.driftMs < 0 {
				dir = "early"
			}
			out.Entities = append(out.Entities, scene.Entity{
				ID:        fmt.Sprintf("%s/driftdir/%s", r.ID(), n.ID),
				PartID:    a.Snapshot.PartID,
				Kind:      scene.KindGlyph,
				CreatedAt: n.Onset,
				UpdatedAt: now,
				Position:  &scene.Vec{X: x, Y: y - 4},
				Life:      &scene.Life{TTLMs: refWindowMs, AgeMs: age},
				Style: scene.Style{
					Color: n.Visual.Palette.Accent.WithAlpha(alpha * 0.6),
					Size:  0.3,
				},
				Data: map[string]any{"role": "drift-dir", "direction": dir},
			})
		}
	}
}

// freeze computes a note's drift entry from the current analysis and caches
// it. Later revisions of the same onset's drift never touch the cache.
func (r *Rhythm) freeze(noteID string, rhythm music.RhythmicAnalysis) (driftEntry, bool) {
	for _, d := range rhythm.Drifts {
		if d.NoteID != noteID {
			continue
		}
		for _, g := range d.Grids {
			if g.Nearest {
				e := driftEntry{driftMs: g.DriftMs, label: gridLabel(g.DivisionMs, rhythm)}
				r.cache[noteID] = e
				return e, true
			}
		}
	}
	return driftEntry{}, false
}

// gridLabel names the matched granularity relative to the coarsest grid.
func gridLabel(divisionMs float64, rhythm music.RhythmicAnalysis) string {
	if len(rhythm.Drifts) == 0 || len(rhythm.Drifts[0].Grids) == 0 {
		return "beat"
	}
	base := rhythm.Drifts[0].Grids[0].DivisionMs
	if base <= 0 || divisionMs <= 0 {
		return "beat"
	}
	ratio := int(math.Round(base / divisionMs))
	switch ratio {
	case 1:
		return "beat"
	case 2:
		return "half"
	case 4:
		return "quarter"
	default:
		return fmt.Sprintf("1/%d", ratio)
	}
}
