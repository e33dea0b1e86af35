package stabilizer

import (
	"fmt"
	"sort"
	"strings"

	"synesthetica/music"
)

// ChordsNode classifies three or more simultaneously sounding notes into a
// chord. Depends on the notes node. The chord id is derived from the sorted
// constituent pitches, so the same voicing held across cycles keeps its id.
type ChordsNode struct{}

// NewChordsNode returns the chord classifier.
func NewChordsNode() Node {
	return &ChordsNode{}
}

func (c *ChordsNode) Process(_ string, _ music.RawBatch, deps music.Snapshot, _ music.Snapshot) music.Snapshot {
	var sounding []music.Note
	for _, n := range deps.Notes {
		if n.Phase != music.PhaseRelease {
			sounding = append(sounding, n)
		}
	}
	if len(sounding) < 3 {
		return music.Snapshot{}
	}

	sort.Slice(sounding, func(i, j int) bool { return sounding[i].Pitch < sounding[j].Pitch })

	ids := make([]string, len(sounding))
	pitches := make([]string, len(sounding))
	for i, n := range sounding {
		ids[i] = n.ID
		pitches[i] = fmt.Sprintf("%d", n.Pitch)
	}

	root, quality := classify(sounding)
	chord := music.Chord{
		ID:      "chord/" + strings.Join(pitches, "-"),
		NoteIDs: ids,
		Root:    root,
		Quality: quality,
	}
	return music.Snapshot{Chords: []music.Chord{chord}}
}

// Triad interval sets relative to the root, as pitch classes.
var triads = []struct {
	third, fifth int
	quality      music.ChordQuality
}{
	{4, 7, music.QualityMajor},
	{3, 7, music.QualityMinor},
	{3, 6, music.QualityDiminished},
	{4, 8, music.QualityAugmented},
}

// classify tries every sounding pitch class as a candidate root and matches
// the resulting interval set against the known triads, so inversions are
// recognised. Falls back to the bass note and "other".
func classify(sounding []music.Note) (uint8, music.ChordQuality) {
	pcSet := make(map[int]bool, len(sounding))
	for _, n := range sounding {
		pcSet[n.PitchClass()] = true
	}

	for _, cand := range sounding {
		rootPC := cand.PitchClass()
		for _, t := range triads {
			if pcSet[(rootPC+t.third)%12] && pcSet[(rootPC+t.fifth)%12] {
				return cand.Pitch, t.quality
			}
		}
	}
	return sounding[0].Pitch, music.QualityOther
}
