package adapter

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"synesthetica/debug"
	"synesthetica/music"
)

// FileSource replays a standard MIDI file against the session clock. Events
// whose file timestamp has come due since the previous drain are emitted as
// one batch; replay starts on the first NextBatch call.
type FileSource struct {
	id      string
	stream  string
	clock   Clock
	events  []timedEvent
	pos     int
	started bool
	startAt music.Millis
}

type timedEvent struct {
	at music.Millis
	ev music.Event
}

// NewFileSource reads and flattens the file up front. The tempo map is
// honored; all tracks are merged in tick order.
func NewFileSource(id, streamID, path string, clock Clock) (*FileSource, error) {
	if id == "" {
		id = "file:" + path
	}
	data, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	events, err := flatten(data)
	if err != nil {
		return nil, err
	}
	debug.Log("adapter", "file source %s: %d events from %s", id, len(events), path)
	return &FileSource{id: id, stream: streamID, clock: clock, events: events}, nil
}

func (f *FileSource) ID() string { return f.id }

// Done reports whether every event has been emitted.
func (f *FileSource) Done() bool { return f.pos >= len(f.events) }

func (f *FileSource) NextBatch() *music.RawBatch {
	now := f.clock()
	if !f.started {
		f.started = true
		f.startAt = now
	}
	elapsed := now - f.startAt

	var due []music.Event
	for f.pos < len(f.events) && f.events[f.pos].at <= elapsed {
		ev := f.events[f.pos].ev
		ev.Time = f.startAt + f.events[f.pos].at
		due = append(due, ev)
		f.pos++
	}
	if len(due) == 0 {
		return nil
	}
	return &music.RawBatch{Time: now, SourceID: f.id, StreamID: f.stream, Events: due}
}

// flatten merges all tracks into one ms-stamped event list, walking the
// tempo map as it goes.
func flatten(data *smf.SMF) ([]timedEvent, error) {
	mt, ok := data.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported smf time format %v", data.TimeFormat)
	}
	ticksPerQuarter := float64(mt.Resolution())

	type tickEvent struct {
		tick uint64
		msg  smf.Message
	}
	var all []tickEvent
	for _, track := range data.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			all = append(all, tickEvent{tick: abs, msg: ev.Message})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].tick < all[j].tick })

	var out []timedEvent
	tempo := 120.0
	var lastTick uint64
	var ms float64
	for _, te := range all {
		ms += float64(te.tick-lastTick) * 60000 / (tempo * ticksPerQuarter)
		lastTick = te.tick

		var bpm float64
		var channel, pitch, velocity uint8
		switch {
		case te.msg.GetMetaTempo(&bpm):
			tempo = bpm
		case te.msg.GetNoteOn(&channel, &pitch, &velocity) && velocity > 0:
			out = append(out, timedEvent{at: music.Millis(ms), ev: music.Event{
				Type: music.NoteOn, Channel: channel, Pitch: pitch, Velocity: velocity,
			}})
		case te.msg.GetNoteOff(&channel, &pitch, &velocity), te.msg.GetNoteOn(&channel, &pitch, &velocity):
			out = append(out, timedEvent{at: music.Millis(ms), ev: music.Event{
				Type: music.NoteOff, Channel: channel, Pitch: pitch,
			}})
		}
	}
	return out, nil
}
