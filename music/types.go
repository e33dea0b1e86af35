package music

// Millis is a session-relative timestamp in milliseconds. All event and
// snapshot times share the same session clock.
type Millis int64

// Raw protocol event types
type EventType uint8

const (
	NoteOn EventType = iota
	NoteOff
	Controller
)

func (t EventType) String() string {
	switch t {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	case Controller:
		return "controller"
	default:
		return "unknown"
	}
}

// Event is one protocol-level input event. Which fields are meaningful
// depends on Type: Pitch/Velocity for notes, Number/Value for controllers.
type Event struct {
	Time     Millis
	Type     EventType
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Number   uint8 // controller number
	Value    uint8 // controller value
}

// RawBatch is everything one source produced since its previous drain.
// Immutable once produced; the pipeline owns it for a single pull cycle.
type RawBatch struct {
	Time     Millis
	SourceID string
	StreamID string
	Events   []Event
}

// NotePhase is the lifecycle phase of a sounding note.
type NotePhase uint8

const (
	PhaseAttack NotePhase = iota
	PhaseSustain
	PhaseRelease
)

func (p NotePhase) String() string {
	switch p {
	case PhaseAttack:
		return "attack"
	case PhaseSustain:
		return "sustain"
	default:
		return "release"
	}
}

// Note is a single entity with a lifespan, not a pair of discrete events.
// ID is stable for the whole life of the note.
type Note struct {
	ID       string
	Pitch    uint8
	Velocity uint8
	Onset    Millis
	Duration Millis // running; grows while the note sounds
	Phase    NotePhase
}

// PitchClass returns 0-11 (C=0).
func (n Note) PitchClass() int {
	return int(n.Pitch % 12)
}

// Octave returns the octave number in scientific pitch notation (C4 = 60).
func (n Note) Octave() int {
	return int(n.Pitch)/12 - 1
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name returns e.g. "C#4".
func (n Note) Name() string {
	return noteNames[n.PitchClass()] + itoa(n.Octave())
}

func itoa(v int) string {
	if v < 0 {
		return "-" + itoa(-v)
	}
	if v < 10 {
		return string(rune('0' + v))
	}
	return itoa(v/10) + string(rune('0'+v%10))
}

// ChordQuality classifies a chord by its interval set.
type ChordQuality uint8

const (
	QualityOther ChordQuality = iota
	QualityMajor
	QualityMinor
	QualityDiminished
	QualityAugmented
)

func (q ChordQuality) String() string {
	switch q {
	case QualityMajor:
		return "major"
	case QualityMinor:
		return "minor"
	case QualityDiminished:
		return "diminished"
	case QualityAugmented:
		return "augmented"
	default:
		return "other"
	}
}

// Chord references its constituent notes one-directionally (chord -> notes).
type Chord struct {
	ID      string
	NoteIDs []string
	Root    uint8
	Quality ChordQuality
}

// Meter is a prescribed time signature.
type Meter struct {
	Beats int // beats per bar
	Unit  int // note value of one beat (4 = quarter)
}

// GridDrift measures one onset against one subdivision granularity.
type GridDrift struct {
	DivisionMs float64 // grid spacing for this granularity
	DriftMs    float64 // signed offset from the nearest grid line (late > 0)
	Nearest    bool    // true for the granularity whose grid line is closest overall
}

// DriftMeasurement is the drift of one recent onset against several
// subdivision granularities, coarse to fine.
type DriftMeasurement struct {
	NoteID string
	Onset  Millis
	Grids  []GridDrift
}

// RhythmicAnalysis is purely descriptive. PeriodMs == 0 means no usable
// inter-onset period was detected. Tempo is never inferred here.
type RhythmicAnalysis struct {
	PeriodMs float64
	Drifts   []DriftMeasurement
}

// Dynamics is a running loudness estimate for one part.
type Dynamics struct {
	Loudness float64 // 0-1, velocity EWMA
	Trend    float64 // signed, >0 while getting louder
}

// Snapshot is the accumulated musical state of one part at one instant.
// PrescribedBPM == 0 and PrescribedMeter == nil mean "not supplied".
type Snapshot struct {
	Time            Millis
	PartID          string
	Notes           []Note
	Chords          []Chord
	Rhythm          RhythmicAnalysis
	Dynamics        Dynamics
	PrescribedBPM   float64
	PrescribedMeter *Meter
}

// NoteByID returns the note with the given id, or false.
func (s Snapshot) NoteByID(id string) (Note, bool) {
	for _, n := range s.Notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// Merge combines already-computed dependency snapshots into the single view
// a dependent stabilizer node reads. Notes and chords concatenate; the first
// non-empty rhythm/dynamics/prescription wins.
func Merge(snaps ...Snapshot) Snapshot {
	var out Snapshot
	for _, s := range snaps {
		if out.PartID == "" {
			out.PartID = s.PartID
		}
		if s.Time > out.Time {
			out.Time = s.Time
		}
		out.Notes = append(out.Notes, s.Notes...)
		out.Chords = append(out.Chords, s.Chords...)
		if out.Rhythm.PeriodMs == 0 && len(out.Rhythm.Drifts) == 0 {
			out.Rhythm = s.Rhythm
		}
		if out.Dynamics == (Dynamics{}) {
			out.Dynamics = s.Dynamics
		}
		if out.PrescribedBPM == 0 {
			out.PrescribedBPM = s.PrescribedBPM
		}
		if out.PrescribedMeter == nil {
			out.PrescribedMeter = s.PrescribedMeter
		}
	}
	return out
}
