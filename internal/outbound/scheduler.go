// Package outbound queues encoded frames for a transport that may accept
// only part of a write at a time.
package outbound

import (
	"errors"

	"github.com/eapache/queue"
)

// ErrSealed is returned when a frame is enqueued after the close frame.
var ErrSealed = errors.New("outbound queue sealed by close frame")

// Kind classifies a queued frame.
type Kind int

const (
	KindData Kind = iota
	KindControl
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindControl:
		return "control"
	case KindClose:
		return "close"
	}
	return "unknown"
}

// Writer is the non-blocking write half of a transport. It returns how many
// bytes it accepted; a short count with a nil error means "try again when
// writable".
type Writer interface {
	Write(p []byte) (int, error)
}

type item struct {
	data    []byte
	written int
	kind    Kind
}

// Scheduler is a FIFO of encoded frames. Items leave in the order they were
// enqueued. Once a close frame is enqueued the queue is sealed and nothing
// more is accepted; what is already queued still drains.
//
// Scheduler is not safe for concurrent use.
type Scheduler struct {
	q        *queue.Queue
	sealed   bool
	buffered int
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{q: queue.New()}
}

// Enqueue appends an encoded frame. Enqueuing a KindClose item seals the queue.
func (s *Scheduler) Enqueue(frame []byte, kind Kind) error {
	if s.sealed {
		return ErrSealed
	}
	s.q.Add(&item{data: frame, kind: kind})
	s.buffered += len(frame)
	if kind == KindClose {
		s.sealed = true
	}
	return nil
}

// Flush writes queued bytes front to back until the queue is empty, w
// accepts a short write, or w fails. It returns the number of bytes w
// accepted. The partially written frame stays at the head and resumes from
// its offset on the next call.
func (s *Scheduler) Flush(w Writer) (int, error) {
	total := 0
	for s.q.Length() > 0 {
		it := s.q.Peek().(*item)
		n, err := w.Write(it.data[it.written:])
		if n > 0 {
			it.written += n
			s.buffered -= n
			total += n
		}
		if err != nil {
			return total, err
		}
		if it.written < len(it.data) {
			return total, nil
		}
		s.q.Remove()
	}
	return total, nil
}

// Preempt drops every queued data frame that has not started to go out,
// letting control frames and a close frame enqueued next move ahead of
// them. A partially written head is kept so the byte stream stays framed.
// It returns the number of frames dropped.
func (s *Scheduler) Preempt() int {
	dropped := 0
	keep := queue.New()
	for s.q.Length() > 0 {
		it := s.q.Remove().(*item)
		if it.kind == KindData && it.written == 0 {
			s.buffered -= len(it.data)
			dropped++
			continue
		}
		keep.Add(it)
	}
	s.q = keep
	return dropped
}

// Flushed reports whether every enqueued byte has been accepted by the writer.
func (s *Scheduler) Flushed() bool {
	return s.q.Length() == 0
}

// Sealed reports whether a close frame has been enqueued.
func (s *Scheduler) Sealed() bool {
	return s.sealed
}

// Buffered returns the number of enqueued bytes not yet accepted.
func (s *Scheduler) Buffered() int {
	return s.buffered
}

// Len returns the number of frames not yet fully written.
func (s *Scheduler) Len() int {
	return s.q.Length()
}

// Discard drops everything queued. The sealed state is kept.
func (s *Scheduler) Discard() {
	s.q = queue.New()
	s.buffered = 0
}
