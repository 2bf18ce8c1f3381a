package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/recstream/internal/stream"
)

// Tracker wraps a stage and counts protocol calls. Unlike stream.Guard it
// lets misuse through to the wrapped stage and only records it, so tests
// can assert that compositions never misuse their children.
type Tracker struct {
	mu     sync.Mutex
	inner  stream.Stream
	Name   string
	writes int
	closes int
	late   int // writes after close
}

// Track wraps inner. A nil inner behaves like stream.Identity.
func Track(name string, inner stream.Stream) *Tracker {
	if inner == nil {
		inner = stream.Identity()
	}
	return &Tracker{Name: name, inner: inner}
}

func (t *Tracker) Write(e stream.Entry, sink stream.Sink) (bool, error) {
	t.mu.Lock()
	t.writes++
	if t.closes > 0 {
		t.late++
	}
	t.mu.Unlock()
	return t.inner.Write(e, sink)
}

func (t *Tracker) Close(sink stream.Sink) error {
	t.mu.Lock()
	t.closes++
	t.mu.Unlock()
	return t.inner.Close(sink)
}

// Writes returns the number of Write calls.
func (t *Tracker) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// Closes returns the number of Close calls.
func (t *Tracker) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// Check returns an error unless the stage was closed exactly once and never
// written after close.
func (t *Tracker) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closes != 1 {
		return fmt.Errorf("%s: closed %d times", t.Name, t.closes)
	}
	if t.late > 0 {
		return fmt.Errorf("%s: %d writes after close", t.Name, t.late)
	}
	return nil
}

// Registry hands out Trackers and checks all of them at once.
type Registry struct {
	mu       sync.Mutex
	trackers []*Tracker
}

// Track wraps inner and remembers the tracker.
func (r *Registry) Track(name string, inner stream.Stream) *Tracker {
	t := Track(name, inner)
	r.mu.Lock()
	r.trackers = append(r.trackers, t)
	r.mu.Unlock()
	return t
}

// Len returns the number of trackers handed out.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Check returns the first tracker violation, if any.
func (r *Registry) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trackers {
		if err := t.Check(); err != nil {
			return err
		}
	}
	return nil
}
