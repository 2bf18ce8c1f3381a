package bridge

import "sync"

// Monitor owns a value of type T and the lock and condition variable that
// guard it. All access goes through Update, WaitFor or Peek.
type Monitor[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state T
}

// NewMonitor returns a monitor holding initial.
func NewMonitor[T any](initial T) *Monitor[T] {
	m := &Monitor[T]{state: initial}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Update runs fn with exclusive access to the state and wakes every waiter.
func (m *Monitor[T]) Update(fn func(s *T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	m.cond.Broadcast()
}

// WaitFor blocks until ready reports true, then runs fn under the same lock
// acquisition and wakes every waiter. ready is re-evaluated after each wake.
func (m *Monitor[T]) WaitFor(ready func(s *T) bool, fn func(s *T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !ready(&m.state) {
		m.cond.Wait()
	}
	fn(&m.state)
	m.cond.Broadcast()
}

// Peek runs fn with exclusive access to the state without waking anyone.
// fn must not modify the state.
func (m *Monitor[T]) Peek(fn func(s *T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}
