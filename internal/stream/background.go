package stream

import (
	"context"

	"github.com/roach88/recstream/internal/bridge"
)

// Worker runs on the background goroutine of a Background stage. It reads
// entries from back until Read reports false and writes its output to back.
type Worker func(ctx context.Context, back *bridge.Back[Entry, Entry]) error

// Background runs worker on its own goroutine behind a bridge of the given
// capacity. Entries written to the stage are handed to the worker; whatever
// the worker produces reaches the sink during later writes and at close, in
// the order it was produced.
//
// Write returns false once the worker has stopped reading; the entry is
// then dropped. The downstream hint is ignored while draining.
func Background(ctx context.Context, capacity int, worker Worker) Stream {
	return &background{ctx: ctx, capacity: capacity, worker: worker}
}

type background struct {
	lifecycle
	ctx      context.Context
	capacity int
	worker   Worker
	front    *bridge.Front[Entry, Entry]
}

func drainTo(sink Sink) func(Entry) error {
	return func(e Entry) error {
		_, err := sink(e)
		return err
	}
}

// start launches the worker on first use so that a stage that is built but
// never driven costs no goroutine until it is closed.
func (b *background) start() {
	if b.front == nil {
		b.front = bridge.Start(b.ctx, b.capacity, func(ctx context.Context, back *bridge.Back[Entry, Entry]) error {
			return b.worker(ctx, back)
		})
	}
}

func (b *background) Write(e Entry, sink Sink) (bool, error) {
	if err := b.checkWrite(); err != nil {
		return false, err
	}
	b.start()
	return b.front.Write(e, drainTo(sink))
}

func (b *background) Close(sink Sink) error {
	if err := b.markClosed(); err != nil {
		return err
	}
	b.start()
	return b.front.Close(drainTo(sink))
}
