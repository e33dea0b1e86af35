package adapter

import (
	"fmt"

	"go.bug.st/serial"

	"synesthetica/debug"
	"synesthetica/music"
)

// Serial wire protocol: [SOF0][SOF1][LEN][CMD][payload...][CKS] where CKS is
// the XOR of LEN, CMD and the payload. CmdNote carries pitch, velocity and
// an on/off flag.
const (
	serialSOF0    = 0xAA
	serialSOF1    = 0x55
	serialCmdNote = 0x20
	notePayload   = 3
)

// SerialSource reads framed note events from a serial instrument and queues
// them on the session clock.
type SerialSource struct {
	*QueueSource
	port serial.Port
	done chan struct{}
}

// OpenSerialSource opens the device and starts the read loop.
func OpenSerialSource(id, streamID, device string, baud int, clock Clock) (*SerialSource, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	s := &SerialSource{
		QueueSource: NewQueueSource(id, streamID, clock),
		port:        port,
		done:        make(chan struct{}),
	}
	go s.readLoop(clock)
	debug.Log("adapter", "serial source %s reading %s @ %d baud (part %s)", s.ID(), device, baud, streamID)
	return s, nil
}

func (s *SerialSource) readLoop(clock Clock) {
	dec := NewFrameDecoder()
	buf := make([]byte, 64)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		n, err := s.port.Read(buf)
		if err != nil {
			debug.Log("adapter", "serial %s: read error: %v", s.ID(), err)
			return
		}
		for _, ev := range dec.Feed(buf[:n], clock()) {
			s.Push(ev)
		}
	}
}

// Close stops the read loop and closes the port.
func (s *SerialSource) Close() error {
	close(s.done)
	return s.port.Close()
}

// FrameDecoder is the incremental frame parser, separate from the port so
// the protocol is testable without hardware.
type FrameDecoder struct {
	buf []byte
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends raw bytes and returns every complete, checksum-valid note
// event found. Corrupt frames are skipped by resyncing on the next SOF pair.
func (d *FrameDecoder) Feed(data []byte, now music.Millis) []music.Event {
	d.buf = append(d.buf, data...)
	var out []music.Event

	for {
		// Resync: drop everything before a start-of-frame pair.
		start := -1
		for i := 0; i+1 < len(d.buf); i++ {
			if d.buf[i] == serialSOF0 && d.buf[i+1] == serialSOF1 {
				start = i
				break
			}
		}
		if start < 0 {
			if n := len(d.buf); n > 0 && d.buf[n-1] == serialSOF0 {
				d.buf = d.buf[n-1:] // a frame may be split right after SOF0
			} else {
				d.buf = d.buf[:0]
			}
			return out
		}
		d.buf = d.buf[start:]

		if len(d.buf) < 3 {
			return out
		}
		length := int(d.buf[2]) // CMD + payload
		total := 3 + length + 1 // SOF0 SOF1 LEN ... CKS
		if len(d.buf) < total {
			return out
		}

		frame := d.buf[:total]
		d.buf = d.buf[total:]

		cks := byte(0)
		for _, b := range frame[2 : total-1] {
			cks ^= b
		}
		if cks != frame[total-1] {
			debug.Log("adapter", "serial: checksum mismatch, frame dropped")
			continue
		}

		cmd := frame[3]
		payload := frame[4 : total-1]
		if cmd != serialCmdNote || len(payload) != notePayload {
			continue
		}
		ev := music.Event{Time: now, Pitch: payload[0], Velocity: payload[1]}
		if payload[2] != 0 {
			ev.Type = music.NoteOn
		} else {
			ev.Type = music.NoteOff
			ev.Velocity = 0
		}
		out = append(out, ev)
	}
}
