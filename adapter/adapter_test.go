package adapter

import (
	"testing"

	"synesthetica/music"
)

func fixedClock(t music.Millis) Clock {
	return func() music.Millis { return t }
}

func TestQueueSourceDrainsOnce(t *testing.T) {
	q := NewQueueSource("s1", "part-1", fixedClock(500))

	if b := q.NextBatch(); b != nil {
		t.Fatalf("empty queue returned a batch: %+v", b)
	}

	q.Push(music.Event{Time: 100, Type: music.NoteOn, Pitch: 60, Velocity: 100})
	q.Push(music.Event{Time: 110, Type: music.NoteOff, Pitch: 60})

	b := q.NextBatch()
	if b == nil {
		t.Fatal("queued events not returned")
	}
	if b.SourceID != "s1" || b.StreamID != "part-1" || b.Time != 500 {
		t.Errorf("batch header = %q/%q at %d, want s1/part-1 at 500", b.SourceID, b.StreamID, b.Time)
	}
	if len(b.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(b.Events))
	}

	// Drained; the next pull is empty until something new arrives.
	if b := q.NextBatch(); b != nil {
		t.Errorf("drained queue returned a batch: %+v", b)
	}
}

func TestQueueSourceGeneratesID(t *testing.T) {
	q := NewQueueSource("", "part-1", fixedClock(0))
	if q.ID() == "" {
		t.Error("empty id not generated")
	}
}

// noteFrame builds one wire frame for the note command.
func noteFrame(pitch, vel, onFlag byte) []byte {
	frame := []byte{serialSOF0, serialSOF1, 4, serialCmdNote, pitch, vel, onFlag}
	cks := byte(0)
	for _, b := range frame[2:] {
		cks ^= b
	}
	return append(frame, cks)
}

func TestFrameDecoderValidFrames(t *testing.T) {
	d := NewFrameDecoder()

	data := append(noteFrame(60, 100, 1), noteFrame(60, 0, 0)...)
	events := d.Feed(data, 1000)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	on, off := events[0], events[1]
	if on.Type != music.NoteOn || on.Pitch != 60 || on.Velocity != 100 || on.Time != 1000 {
		t.Errorf("note on = %+v", on)
	}
	if off.Type != music.NoteOff || off.Pitch != 60 || off.Velocity != 0 {
		t.Errorf("note off = %+v", off)
	}
}

func TestFrameDecoderSplitAcrossFeeds(t *testing.T) {
	d := NewFrameDecoder()
	frame := noteFrame(72, 90, 1)

	for cut := 1; cut < len(frame); cut++ {
		d.buf = nil
		if got := d.Feed(frame[:cut], 100); len(got) != 0 {
			t.Fatalf("partial frame (cut %d) produced %d events", cut, len(got))
		}
		got := d.Feed(frame[cut:], 100)
		if len(got) != 1 || got[0].Pitch != 72 {
			t.Fatalf("split at %d: events = %+v, want one note", cut, got)
		}
	}
}

func TestFrameDecoderRejectsBadChecksum(t *testing.T) {
	d := NewFrameDecoder()

	bad := noteFrame(60, 100, 1)
	bad[len(bad)-1] ^= 0xFF
	data := append(bad, noteFrame(48, 70, 1)...)

	events := d.Feed(data, 200)
	if len(events) != 1 {
		t.Fatalf("events = %d, want the corrupt frame dropped and the next kept", len(events))
	}
	if events[0].Pitch != 48 {
		t.Errorf("survivor pitch = %d, want 48", events[0].Pitch)
	}
}

func TestFrameDecoderResyncsPastGarbage(t *testing.T) {
	d := NewFrameDecoder()

	data := append([]byte{0x01, 0x02, serialSOF0, 0x03}, noteFrame(60, 100, 1)...)
	events := d.Feed(data, 300)
	if len(events) != 1 || events[0].Pitch != 60 {
		t.Errorf("events = %+v, want the frame after the garbage", events)
	}
}

func TestFrameDecoderKeepsTrailingSOF(t *testing.T) {
	d := NewFrameDecoder()
	frame := noteFrame(60, 100, 1)

	// Garbage ending in SOF0: the byte must survive so a frame split right
	// after it still parses.
	if got := d.Feed([]byte{0x11, 0x22, serialSOF0}, 400); len(got) != 0 {
		t.Fatalf("unexpected events: %+v", got)
	}
	got := d.Feed(frame[1:], 400)
	if len(got) != 1 || got[0].Pitch != 60 {
		t.Errorf("events = %+v, want the reassembled frame", got)
	}
}

func TestFrameDecoderSkipsUnknownCommand(t *testing.T) {
	d := NewFrameDecoder()

	frame := []byte{serialSOF0, serialSOF1, 2, 0x7F, 0x01}
	cks := byte(0)
	for _, b := range frame[2:] {
		cks ^= b
	}
	data := append(append(frame, cks), noteFrame(60, 100, 1)...)

	events := d.Feed(data, 500)
	if len(events) != 1 || events[0].Pitch != 60 {
		t.Errorf("events = %+v, want only the note frame", events)
	}
}
