package stabilizer

import (
	"fmt"

	"synesthetica/music"
)

// NotesNode turns note-on/note-off events into Note entities with a
// lifespan. A note is created in attack, ages into sustain on the next
// cycle, moves to release on note-off and is dropped the cycle after.
type NotesNode struct {
	held    map[uint8]music.Note // by pitch, attack or sustain
	releasd []music.Note
	counter int
}

// NewNotesNode returns a node with empty held-note state.
func NewNotesNode() Node {
	return &NotesNode{held: make(map[uint8]music.Note)}
}

func (n *NotesNode) Process(partID string, batch music.RawBatch, _ music.Snapshot, _ music.Snapshot) music.Snapshot {
	// Release-phase notes from the previous cycle have had their one
	// lingering appearance; drop them now.
	n.releasd = n.releasd[:0]

	// Age surviving notes before applying this batch's events.
	for pitch, note := range n.held {
		if note.Phase == music.PhaseAttack {
			note.Phase = music.PhaseSustain
		}
		note.Duration = batch.Time - note.Onset
		n.held[pitch] = note
	}

	for _, ev := range batch.Events {
		switch {
		case ev.Type == music.NoteOn && ev.Velocity > 0:
			// Re-strike of a held pitch closes the old note first.
			if old, ok := n.held[ev.Pitch]; ok {
				old.Phase = music.PhaseRelease
				n.releasd = append(n.releasd, old)
			}
			n.counter++
			n.held[ev.Pitch] = music.Note{
				ID:       fmt.Sprintf("%s/note/%d", partID, n.counter),
				Pitch:    ev.Pitch,
				Velocity: ev.Velocity,
				Onset:    ev.Time,
				Phase:    music.PhaseAttack,
			}
		case ev.Type == music.NoteOff || (ev.Type == music.NoteOn && ev.Velocity == 0):
			if note, ok := n.held[ev.Pitch]; ok {
				note.Phase = music.PhaseRelease
				note.Duration = ev.Time - note.Onset
				delete(n.held, ev.Pitch)
				n.releasd = append(n.releasd, note)
			}
		}
	}

	out := music.Snapshot{}
	for _, note := range n.held {
		out.Notes = append(out.Notes, note)
	}
	sortNotes(out.Notes)
	out.Notes = append(out.Notes, n.releasd...)
	return out
}

// sortNotes orders by onset then pitch so snapshot output is deterministic
// regardless of map iteration.
func sortNotes(notes []music.Note) {
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0; j-- {
			a, b := notes[j-1], notes[j]
			if a.Onset < b.Onset || (a.Onset == b.Onset && a.Pitch <= b.Pitch) {
				break
			}
			notes[j-1], notes[j] = b, a
		}
	}
}
