package stabilizer

import (
	"math"
	"sort"

	"synesthetica/music"
)

// Rhythm detection tunables. Periods outside the plausible range are noise
// (grace notes, long silences) and never contribute to detection.
const (
	minPeriodMs        = 120.0
	maxPeriodMs        = 2000.0
	onsetWindowMs      = 6000
	maxOnsets          = 24
	periodSpread       = 0.25 // retained deltas must sit within this of the median
	minOnsetsForPeriod = 3
)

type onset struct {
	noteID string
	at     music.Millis
}

// RhythmNode measures rhythmic consistency. It detects an inter-onset
// period and measures each recent onset's drift against subdivision grids
// of the effective period. Tempo is never inferred; a prescribed tempo
// (carried on the previous snapshot) always takes precedence over the
// detected period for the drift grid.
type RhythmNode struct {
	onsets []onset
	seen   map[string]bool
}

// NewRhythmNode returns a node with an empty onset history.
func NewRhythmNode() Node {
	return &RhythmNode{seen: make(map[string]bool)}
}

func (r *RhythmNode) Process(_ string, batch music.RawBatch, deps music.Snapshot, prev music.Snapshot) music.Snapshot {
	// Record onsets of notes we have not seen before.
	for _, n := range deps.Notes {
		if r.seen[n.ID] {
			continue
		}
		r.seen[n.ID] = true
		r.onsets = append(r.onsets, onset{noteID: n.ID, at: n.Onset})
	}

	// Expire old onsets and cap the ring.
	cutoff := batch.Time - onsetWindowMs
	for len(r.onsets) > 0 && (r.onsets[0].at < cutoff || len(r.onsets) > maxOnsets) {
		delete(r.seen, r.onsets[0].noteID)
		r.onsets = r.onsets[1:]
	}

	analysis := music.RhythmicAnalysis{PeriodMs: r.detectPeriod()}

	base := analysis.PeriodMs
	if prev.PrescribedBPM > 0 {
		base = 60000 / prev.PrescribedBPM
	}
	if base > 0 {
		for _, o := range r.onsets {
			analysis.Drifts = append(analysis.Drifts, measureDrift(o, base))
		}
	}

	return music.Snapshot{Rhythm: analysis}
}

// detectPeriod takes the median of plausible inter-onset deltas and accepts
// it only when the retained deltas agree within periodSpread.
func (r *RhythmNode) detectPeriod() float64 {
	var deltas []float64
	for i := 1; i < len(r.onsets); i++ {
		d := float64(r.onsets[i].at - r.onsets[i-1].at)
		if d >= minPeriodMs && d <= maxPeriodMs {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) < minOnsetsForPeriod-1 {
		return 0
	}

	sorted := append([]float64(nil), deltas...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	sum := 0.0
	for _, d := range deltas {
		if math.Abs(d-median) > median*periodSpread {
			return 0
		}
		sum += d
	}
	return sum / float64(len(deltas))
}

// measureDrift measures one onset against subdivision grids of the base
// period, coarse to fine, and tags the granularity whose grid line is
// closest overall. Grids are anchored at the session origin.
func measureDrift(o onset, basePeriodMs float64) music.DriftMeasurement {
	divisions := []float64{basePeriodMs, basePeriodMs / 2, basePeriodMs / 4}

	m := music.DriftMeasurement{NoteID: o.noteID, Onset: o.at}
	nearest, nearestAbs := -1, math.MaxFloat64
	for i, div := range divisions {
		t := float64(o.at)
		drift := t - math.Round(t/div)*div
		m.Grids = append(m.Grids, music.GridDrift{DivisionMs: div, DriftMs: drift})
		if abs := math.Abs(drift); abs < nearestAbs {
			nearest, nearestAbs = i, abs
		}
	}
	if nearest >= 0 {
		m.Grids[nearest].Nearest = true
	}
	return m
}
