package bridge

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultCapacity bounds each queue when no capacity is configured.
const DefaultCapacity = 1000

// state is everything shared between the two sides. It is only touched
// under the monitor lock.
type state[I, O any] struct {
	fwd fifo[I] // front -> worker
	bwd fifo[O] // worker -> front

	// fwdReadsClosed: the worker will read no more input.
	fwdReadsClosed bool
	// bwdReadsClosed: the front end will read no more output.
	bwdReadsClosed bool
	// inputClosed: the front end has pushed its end sentinel.
	inputClosed bool
	// inputEnded: the worker has consumed the front end's sentinel.
	inputEnded bool
	// workerClosed: the worker has pushed its end sentinel.
	workerClosed bool
	// outputEnded: the front end has consumed the worker's sentinel.
	outputEnded bool

	workerErr error
}

// Bridge is a pair of bounded queues between a front end and a worker.
// Use Front and Back to get the two sides, or Start to run a worker.
type Bridge[I, O any] struct {
	m *Monitor[state[I, O]]
}

// New returns a bridge whose queues each hold at most capacity values.
// A capacity below 1 is treated as 1.
func New[I, O any](capacity int) *Bridge[I, O] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bridge[I, O]{m: NewMonitor(state[I, O]{
		fwd: newFIFO[I](capacity),
		bwd: newFIFO[O](capacity),
	})}
}

// Front returns the driving side.
func (b *Bridge[I, O]) Front() *Front[I, O] { return &Front[I, O]{m: b.m} }

// Back returns the worker side.
func (b *Bridge[I, O]) Back() *Back[I, O] { return &Back[I, O]{m: b.m} }

// Start runs worker on its own goroutine and returns the driving side.
//
// When worker returns, its side of the bridge is shut down: it reads no more
// input and its output is ended. A non-nil error is reported by the next
// failing Front.Write and by Front.Close.
func Start[I, O any](ctx context.Context, capacity int, worker func(ctx context.Context, back *Back[I, O]) error) *Front[I, O] {
	b := New[I, O](capacity)
	back := b.Back()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker(gctx, back)
		if err != nil {
			b.m.Update(func(s *state[I, O]) {
				if s.workerErr == nil {
					s.workerErr = err
				}
			})
		}
		back.SignalNoMoreReads()
		back.Close()
		return err
	})

	front := b.Front()
	front.wait = g.Wait
	return front
}

// Back is the worker side of a Bridge.
type Back[I, O any] struct {
	m *Monitor[state[I, O]]
}

// Read blocks until input is available. It returns false once the front end
// has closed its input, or after SignalNoMoreReads.
func (b *Back[I, O]) Read() (I, bool) {
	var (
		item I
		ok   bool
	)
	b.m.WaitFor(func(s *state[I, O]) bool {
		return !s.fwd.empty() || s.inputEnded || s.fwdReadsClosed
	}, func(s *state[I, O]) {
		if s.inputEnded || s.fwdReadsClosed {
			return
		}
		next := s.fwd.pop()
		if next.end {
			s.inputEnded = true
			return
		}
		item, ok = next.value, true
	})
	return item, ok
}

// Write blocks until there is room for item. It returns false without
// queueing when the front end has stopped reading; the worker should stop
// producing.
func (b *Back[I, O]) Write(item O) bool {
	ok := false
	b.m.WaitFor(func(s *state[I, O]) bool {
		return !s.bwd.full() || s.bwdReadsClosed || s.workerClosed
	}, func(s *state[I, O]) {
		if s.bwdReadsClosed || s.workerClosed {
			return
		}
		s.bwd.push(item)
		ok = true
	})
	return ok
}

// Close pushes the end sentinel. Further calls do nothing.
func (b *Back[I, O]) Close() {
	b.m.Update(func(s *state[I, O]) {
		if s.workerClosed {
			return
		}
		s.workerClosed = true
		s.bwd.pushEnd()
	})
}

// SignalNoMoreReads tells the front end that no more input will be read.
// Queued input is dropped and blocked front-end writes return false.
func (b *Back[I, O]) SignalNoMoreReads() {
	b.m.Update(func(s *state[I, O]) {
		s.fwdReadsClosed = true
		s.fwd.discard()
	})
}

// Front is the driving side of a Bridge.
type Front[I, O any] struct {
	m    *Monitor[state[I, O]]
	wait func() error
}

// Write hands item to the worker. In one wait it delivers any output the
// worker has already produced to drain, then queues item if there is room,
// looping until item is queued or the worker has stopped reading.
//
// It returns false when the worker stopped reading before item was queued.
// A drain error is returned as-is; a worker failure is returned alongside
// false.
func (f *Front[I, O]) Write(item I, drain func(O) error) (bool, error) {
	for {
		var (
			batch             []slot[O]
			queued, abandoned bool
		)
		f.m.WaitFor(func(s *state[I, O]) bool {
			return !s.bwd.empty() || !s.fwd.full() || s.fwdReadsClosed
		}, func(s *state[I, O]) {
			batch = takeOutput(s)
			switch {
			case s.fwdReadsClosed:
				abandoned = true
			case !s.fwd.full():
				s.fwd.push(item)
				queued = true
			}
		})
		if err := deliver(batch, drain); err != nil {
			return false, err
		}
		if queued {
			return true, nil
		}
		if abandoned {
			return false, f.err()
		}
	}
}

// Close pushes the end sentinel for input, then keeps delivering output to
// drain until the worker has closed its side. When the bridge was built by
// Start, Close also waits for the worker goroutine and returns its error.
//
// If drain fails, Close stops reading, still waits for the worker and
// returns the drain error.
func (f *Front[I, O]) Close(drain func(O) error) error {
	f.m.Update(func(s *state[I, O]) {
		if !s.inputClosed {
			s.inputClosed = true
			s.fwd.pushEnd()
		}
	})

	var drainErr error
	for {
		var (
			batch []slot[O]
			ended bool
		)
		f.m.WaitFor(func(s *state[I, O]) bool {
			return !s.bwd.empty() || s.outputEnded
		}, func(s *state[I, O]) {
			batch = takeOutput(s)
			ended = s.outputEnded
		})
		if drainErr == nil {
			if err := deliver(batch, drain); err != nil {
				drainErr = err
				f.SignalNoMoreReads()
			}
		}
		if ended {
			break
		}
	}

	var workerErr error
	if f.wait != nil {
		workerErr = f.wait()
	}
	if drainErr != nil {
		return drainErr
	}
	if workerErr != nil {
		return workerErr
	}
	return f.err()
}

// SignalNoMoreReads tells the worker that no more output will be read.
// Queued output is dropped and blocked worker writes return false.
func (f *Front[I, O]) SignalNoMoreReads() {
	f.m.Update(func(s *state[I, O]) {
		s.bwdReadsClosed = true
		s.bwd.discard()
	})
}

// ReadsClosed reports whether SignalNoMoreReads has been called.
func (f *Front[I, O]) ReadsClosed() bool {
	closed := false
	f.m.Peek(func(s *state[I, O]) { closed = s.bwdReadsClosed })
	return closed
}

func (f *Front[I, O]) err() error {
	var err error
	f.m.Peek(func(s *state[I, O]) { err = s.workerErr })
	return err
}

// takeOutput empties the backward queue under the lock, recording the
// worker's sentinel.
func takeOutput[I, O any](s *state[I, O]) []slot[O] {
	if s.bwd.empty() {
		return nil
	}
	batch := s.bwd.takeAll()
	for _, sl := range batch {
		if sl.end {
			s.outputEnded = true
		}
	}
	return batch
}

// deliver hands values to drain outside the lock.
func deliver[O any](batch []slot[O], drain func(O) error) error {
	if drain == nil {
		return nil
	}
	for _, sl := range batch {
		if sl.end {
			continue
		}
		if err := drain(sl.value); err != nil {
			return err
		}
	}
	return nil
}
