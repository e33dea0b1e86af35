// Package adapter bridges external input sources to the pipeline's
// synchronous pull contract. Sources accumulate asynchronously arriving
// events and drain them on demand, one batch per pipeline cycle.
package adapter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"synesthetica/music"
)

// Source is what the pipeline pulls once per cycle. NextBatch must be
// non-blocking and return nil when nothing arrived since the previous call.
type Source interface {
	ID() string
	NextBatch() *music.RawBatch
}

// Clock returns the session-relative time. Injectable for tests.
type Clock func() music.Millis

// WallClock measures milliseconds since the given start.
func WallClock(start time.Time) Clock {
	return func() music.Millis {
		return music.Millis(time.Since(start).Milliseconds())
	}
}

// QueueSource is a plain buffered queue behind the Source contract: push
// from any goroutine, drain synchronously. StreamID names the logical part
// the events belong to.
type QueueSource struct {
	mu     sync.Mutex
	id     string
	stream string
	clock  Clock
	buf    []music.Event
}

// NewQueueSource creates a queue source. An empty id gets a generated one.
func NewQueueSource(id, streamID string, clock Clock) *QueueSource {
	if id == "" {
		id = uuid.NewString()
	}
	return &QueueSource{id: id, stream: streamID, clock: clock}
}

func (q *QueueSource) ID() string { return q.id }

// Push appends one event. Safe for concurrent use with NextBatch.
func (q *QueueSource) Push(ev music.Event) {
	q.mu.Lock()
	q.buf = append(q.buf, ev)
	q.mu.Unlock()
}

// NextBatch drains everything pushed since the previous drain, or nil.
func (q *QueueSource) NextBatch() *music.RawBatch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	events := q.buf
	q.buf = nil
	return &music.RawBatch{
		Time:     q.clock(),
		SourceID: q.id,
		StreamID: q.stream,
		Events:   events,
	}
}
