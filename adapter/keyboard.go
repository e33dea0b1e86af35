package adapter

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"synesthetica/debug"
	"synesthetica/music"
)

// KeyboardSource listens to a MIDI input port and queues note and
// controller events stamped with the session clock.
type KeyboardSource struct {
	*QueueSource
	inPort   drivers.In
	stopFunc func()
}

// NewKeyboardSource opens the port and starts listening. streamID is the
// part the instrument plays.
func NewKeyboardSource(id, streamID string, inPort drivers.In, clock Clock) (*KeyboardSource, error) {
	ks := &KeyboardSource{
		QueueSource: NewQueueSource(id, streamID, clock),
		inPort:      inPort,
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, _ int32) {
		now := clock()
		var channel, pitch, velocity uint8
		var number, value uint8
		switch {
		case msg.GetNoteOn(&channel, &pitch, &velocity) && velocity > 0:
			ks.Push(music.Event{Time: now, Type: music.NoteOn, Channel: channel, Pitch: pitch, Velocity: velocity})
		case msg.GetNoteOff(&channel, &pitch, &velocity), msg.GetNoteOn(&channel, &pitch, &velocity):
			ks.Push(music.Event{Time: now, Type: music.NoteOff, Channel: channel, Pitch: pitch})
		case msg.GetControlChange(&channel, &number, &value):
			ks.Push(music.Event{Time: now, Type: music.Controller, Channel: channel, Number: number, Value: value})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	ks.stopFunc = stop
	debug.Log("adapter", "keyboard source %s listening on %s (part %s)", ks.ID(), inPort.String(), streamID)
	return ks, nil
}

// Close stops listening. Queued events stay drainable.
func (ks *KeyboardSource) Close() error {
	if ks.stopFunc != nil {
		ks.stopFunc()
		ks.stopFunc = nil
	}
	return nil
}
