// Package ruleset maps musical snapshots to annotated snapshots carrying
// visual attributes. A Ruleset is pure: no internal state, no side effects,
// identical input always yields identical output.
package ruleset

import (
	"math"

	"synesthetica/music"
	"synesthetica/scene"
	"synesthetica/theme"
)

// Motion parameters consumed opaquely by grammars.
type Motion struct {
	Jitter float64 // 0-1, decorative positional noise
	Pulse  float64 // 0-1, size oscillation depth
	Flow   float64 // 0-1, drift speed along the trail axis
}

// PaletteColors is the three-color palette of one element.
type PaletteColors struct {
	Primary   scene.HSVA
	Secondary scene.HSVA
	Accent    scene.HSVA
}

// Visual wraps one musical element with its rendering attributes.
type Visual struct {
	Palette     PaletteColors
	Texture     string
	Motion      Motion
	Uncertainty float64 // 0-1, rhythmic placement confidence inverted
	Label       string
}

// AnnotatedNote pairs a note with its visual record.
type AnnotatedNote struct {
	music.Note
	Visual Visual
}

// AnnotatedChord pairs a chord with its visual record.
type AnnotatedChord struct {
	music.Chord
	Visual Visual
}

// Annotated is the snapshot a grammar consumes.
type Annotated struct {
	Snapshot music.Snapshot
	Notes    []AnnotatedNote
	Chords   []AnnotatedChord
}

// Ruleset is the single dispatch point for annotation styles.
type Ruleset interface {
	Map(snap music.Snapshot) Annotated
}

// Chord quality to texture family. Class-wide: every minor chord shares the
// same family, regardless of part or register.
var chordTextures = map[music.ChordQuality]string{
	music.QualityMajor:      "radiant",
	music.QualityMinor:      "velvet",
	music.QualityDiminished: "angular",
	music.QualityAugmented:  "prism",
	music.QualityOther:      "neutral",
}

// Note phase to texture.
var noteTextures = map[music.NotePhase]string{
	music.PhaseAttack:  "grain",
	music.PhaseSustain: "smooth",
	music.PhaseRelease: "wisp",
}

// Standard colors notes and chords by pitch class against a palette, with
// velocity and dynamics shaping motion. All state lives in construction
// parameters, so Map is referentially transparent.
type Standard struct {
	palette *theme.Palette
}

// NewStandard builds the default ruleset over the given palette
// (theme.Default() when nil).
func NewStandard(p *theme.Palette) *Standard {
	if p == nil {
		p = theme.Default()
	}
	return &Standard{palette: p}
}

func (r *Standard) Map(snap music.Snapshot) Annotated {
	out := Annotated{Snapshot: snap}

	for _, n := range snap.Notes {
		out.Notes = append(out.Notes, AnnotatedNote{
			Note:   n,
			Visual: r.noteVisual(n, snap),
		})
	}
	for _, c := range snap.Chords {
		out.Chords = append(out.Chords, AnnotatedChord{
			Chord:  c,
			Visual: r.chordVisual(c),
		})
	}
	return out
}

// noteVisual derives a note's attributes. Hue depends on pitch class only,
// never on octave, so the same pitch class always lands on the same color.
func (r *Standard) noteVisual(n music.Note, snap music.Snapshot) Visual {
	h, s, v := r.palette.HSV(float64(n.PitchClass()) / 11)
	vel := float64(n.Velocity) / 127

	primary := scene.HSVA{H: h, S: s, V: v, A: 1}
	secondary := scene.HSVA{H: h, S: s * 0.45, V: math.Min(v*1.15, 1), A: 1}
	accent := scene.HSVA{H: math.Mod(h+180, 360), S: s, V: v, A: 1}

	return Visual{
		Palette: PaletteColors{Primary: primary, Secondary: secondary, Accent: accent},
		Texture: noteTextures[n.Phase],
		Motion: Motion{
			Jitter: vel * 0.5,
			Pulse:  snap.Dynamics.Loudness,
			Flow:   0.2 + vel*0.3,
		},
		Uncertainty: noteUncertainty(n.ID, snap.Rhythm),
		Label:       n.Name(),
	}
}

func (r *Standard) chordVisual(c music.Chord) Visual {
	pc := float64(int(c.Root%12)) / 11
	h, s, v := r.palette.HSV(pc)

	return Visual{
		Palette: PaletteColors{
			Primary:   scene.HSVA{H: h, S: s, V: v, A: 1},
			Secondary: scene.HSVA{H: h, S: s * 0.3, V: v * 0.8, A: 1},
			Accent:    scene.HSVA{H: math.Mod(h+120, 360), S: s, V: v, A: 1},
		},
		Texture: chordTextures[c.Quality],
		Motion:  Motion{Pulse: 0.6, Flow: 0.1},
		Label:   chordLabel(c),
	}
}

var pcNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func chordLabel(c music.Chord) string {
	return pcNames[c.Root%12] + " " + c.Quality.String()
}

// noteUncertainty turns the note's nearest-grid drift into 0-1, where 0 is
// dead on the grid and 1 is half a grid division off. No measurement means
// fully uncertain.
func noteUncertainty(noteID string, rhythm music.RhythmicAnalysis) float64 {
	for _, d := range rhythm.Drifts {
		if d.NoteID != noteID {
			continue
		}
		for _, g := range d.Grids {
			if g.Nearest && g.DivisionMs > 0 {
				u := math.Abs(g.DriftMs) / (g.DivisionMs / 2)
				return math.Min(u, 1)
			}
		}
	}
	return 1
}
