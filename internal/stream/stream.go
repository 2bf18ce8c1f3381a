package stream

import "errors"

// Sink pushes an entry further downstream. The bool is the advisory flow
// hint.
type Sink func(Entry) (bool, error)

// Discard is a sink that drops everything.
func Discard(Entry) (bool, error) { return true, nil }

// Stream is one pipeline stage.
type Stream interface {
	// Write consumes e, pushing zero or more entries to sink.
	Write(e Entry, sink Sink) (bool, error)
	// Close flushes buffered state to sink. Called exactly once.
	Close(sink Sink) error
}

// lifecycle enforces close-once and no-write-after-close.
type lifecycle struct {
	closed bool
}

func (l *lifecycle) checkWrite() error {
	if l.closed {
		return ErrWriteAfterClose
	}
	return nil
}

func (l *lifecycle) markClosed() error {
	if l.closed {
		return ErrCloseTwice
	}
	l.closed = true
	return nil
}

// Guard wraps s so that misuse of the protocol is reported as an error
// instead of reaching s.
func Guard(s Stream) Stream {
	if g, ok := s.(*guarded); ok {
		return g
	}
	return &guarded{inner: s}
}

type guarded struct {
	lifecycle
	inner Stream
}

func (g *guarded) Write(e Entry, sink Sink) (bool, error) {
	if err := g.checkWrite(); err != nil {
		return false, err
	}
	return g.inner.Write(e, sink)
}

func (g *guarded) Close(sink Sink) error {
	if err := g.markClosed(); err != nil {
		return err
	}
	return g.inner.Close(sink)
}

// Compound feeds a's output into b. Closing the compound closes a, whose
// flush flows into b, then closes b. b is closed even when closing a fails.
func Compound(a, b Stream) Stream {
	return &compound{a: a, b: b}
}

type compound struct {
	lifecycle
	a, b Stream
}

func (c *compound) into(sink Sink) Sink {
	return func(e Entry) (bool, error) {
		return c.b.Write(e, sink)
	}
}

func (c *compound) Write(e Entry, sink Sink) (bool, error) {
	if err := c.checkWrite(); err != nil {
		return false, err
	}
	return c.a.Write(e, c.into(sink))
}

func (c *compound) Close(sink Sink) error {
	if err := c.markClosed(); err != nil {
		return err
	}
	errA := c.a.Close(c.into(sink))
	errB := c.b.Close(sink)
	return errors.Join(errA, errB)
}

// Chain composes stages left to right. An empty chain is Identity.
func Chain(stages ...Stream) Stream {
	switch len(stages) {
	case 0:
		return Identity()
	case 1:
		return Guard(stages[0])
	}
	s := stages[len(stages)-1]
	for i := len(stages) - 2; i >= 0; i-- {
		s = Compound(stages[i], s)
	}
	return s
}

// Closures builds a stage from an owned state value, a per-entry handler
// and a finalizer. onClose may be nil.
func Closures[S any](
	state S,
	onWrite func(state *S, e Entry, sink Sink) (bool, error),
	onClose func(state *S, sink Sink) error,
) Stream {
	return &closures[S]{state: state, onWrite: onWrite, onClose: onClose}
}

type closures[S any] struct {
	lifecycle
	state   S
	onWrite func(*S, Entry, Sink) (bool, error)
	onClose func(*S, Sink) error
}

func (c *closures[S]) Write(e Entry, sink Sink) (bool, error) {
	if err := c.checkWrite(); err != nil {
		return false, err
	}
	return c.onWrite(&c.state, e, sink)
}

func (c *closures[S]) Close(sink Sink) error {
	if err := c.markClosed(); err != nil {
		return err
	}
	if c.onClose == nil {
		return nil
	}
	return c.onClose(&c.state, sink)
}
