// Package dispatch delivers connection events on a caller chosen execution
// context. Every executor runs submitted tasks one at a time in submission
// order.
package dispatch

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
)

// Executor runs tasks in the order they are submitted, never two at once.
type Executor interface {
	Submit(task func())
}

// Inline runs each task on the submitting goroutine. Ordering holds as long
// as tasks are submitted from one goroutine at a time, which the connection
// engine guarantees.
type Inline struct{}

// Submit runs task immediately.
func (Inline) Submit(task func()) {
	task()
}

// Serial runs tasks on a single dedicated goroutine. The queue is unbounded
// so Submit never blocks.
type Serial struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue
	stopped bool
	done    chan struct{}
}

// NewSerial starts a Serial executor.
func NewSerial() *Serial {
	s := &Serial{
		tasks: queue.New(),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Submit enqueues task. Tasks submitted after Stop are dropped.
func (s *Serial) Submit(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		logging.Debug("Task submitted to stopped executor dropped")
		return
	}
	s.tasks.Add(task)
	s.cond.Signal()
}

// Stop lets already queued tasks finish, then ends the worker goroutine.
// It does not wait; use Done for that.
func (s *Serial) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Signal()
	s.mu.Unlock()
}

// Done is closed once the worker has exited.
func (s *Serial) Done() <-chan struct{} {
	return s.done
}

func (s *Serial) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.tasks.Length() == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.tasks.Length() == 0 {
			s.mu.Unlock()
			return
		}
		task := s.tasks.Remove().(func())
		s.mu.Unlock()

		s.safeRun(task)
	}
}

// safeRun keeps a panicking task from killing the worker and stalling every
// later event.
func (s *Serial) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Event handler panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Func adapts a function to Executor, for delivering onto an existing
// event loop.
type Func func(task func())

// Submit calls f.
func (f Func) Submit(task func()) {
	f(task)
}
