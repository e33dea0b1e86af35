package music

import "testing"

func TestNotePitchHelpers(t *testing.T) {
	tests := []struct {
		pitch  uint8
		pc     int
		octave int
		name   string
	}{
		{60, 0, 4, "C4"},
		{61, 1, 4, "C#4"},
		{69, 9, 4, "A4"},
		{72, 0, 5, "C5"},
		{21, 9, 0, "A0"},
		{0, 0, -1, "C-1"},
	}
	for _, tt := range tests {
		n := Note{Pitch: tt.pitch}
		if n.PitchClass() != tt.pc {
			t.Errorf("pitch %d: class = %d, want %d", tt.pitch, n.PitchClass(), tt.pc)
		}
		if n.Octave() != tt.octave {
			t.Errorf("pitch %d: octave = %d, want %d", tt.pitch, n.Octave(), tt.octave)
		}
		if n.Name() != tt.name {
			t.Errorf("pitch %d: name = %q, want %q", tt.pitch, n.Name(), tt.name)
		}
	}
}

func TestSnapshotNoteByID(t *testing.T) {
	s := Snapshot{Notes: []Note{{ID: "a", Pitch: 60}, {ID: "b", Pitch: 64}}}
	if n, ok := s.NoteByID("b"); !ok || n.Pitch != 64 {
		t.Errorf("NoteByID(b) = %+v, %v", n, ok)
	}
	if _, ok := s.NoteByID("missing"); ok {
		t.Error("found a note that is not there")
	}
}

func TestMerge(t *testing.T) {
	a := Snapshot{
		Time:   100,
		PartID: "p1",
		Notes:  []Note{{ID: "n1"}},
	}
	b := Snapshot{
		Time:          120,
		PartID:        "p1",
		Notes:         []Note{{ID: "n2"}},
		Chords:        []Chord{{ID: "c1"}},
		Rhythm:        RhythmicAnalysis{PeriodMs: 500},
		Dynamics:      Dynamics{Loudness: 0.5},
		PrescribedBPM: 120,
	}

	m := Merge(a, b)
	if m.Time != 120 {
		t.Errorf("Time = %d, want the latest 120", m.Time)
	}
	if m.PartID != "p1" {
		t.Errorf("PartID = %q", m.PartID)
	}
	if len(m.Notes) != 2 || len(m.Chords) != 1 {
		t.Errorf("notes = %d chords = %d, want 2 and 1", len(m.Notes), len(m.Chords))
	}
	if m.Rhythm.PeriodMs != 500 || m.Dynamics.Loudness != 0.5 || m.PrescribedBPM != 120 {
		t.Errorf("analysis fields not carried: %+v", m)
	}
}

func TestMergeFirstNonEmptyWins(t *testing.T) {
	a := Snapshot{Rhythm: RhythmicAnalysis{PeriodMs: 400}, PrescribedBPM: 100}
	b := Snapshot{Rhythm: RhythmicAnalysis{PeriodMs: 900}, PrescribedBPM: 140}

	m := Merge(a, b)
	if m.Rhythm.PeriodMs != 400 {
		t.Errorf("PeriodMs = %v, want the first 400", m.Rhythm.PeriodMs)
	}
	if m.PrescribedBPM != 100 {
		t.Errorf("PrescribedBPM = %v, want the first 100", m.PrescribedBPM)
	}
}
