package bridge

// slot is one queued item. A slot with end set is the end-of-stream
// sentinel and carries no value.
type slot[T any] struct {
	value T
	end   bool
}

// fifo is a bounded FIFO of slots. It is not safe for concurrent use; a
// fifo only ever lives inside a Monitor.
//
// The sentinel does not count against capacity, so finishing a stream never
// blocks on a full queue.
type fifo[T any] struct {
	items    []slot[T]
	capacity int
	values   int
}

func newFIFO[T any](capacity int) fifo[T] {
	return fifo[T]{
		items:    make([]slot[T], 0, min(capacity, 64)),
		capacity: capacity,
	}
}

// full reports whether another value would exceed capacity.
func (q *fifo[T]) full() bool { return q.values >= q.capacity }

func (q *fifo[T]) empty() bool { return len(q.items) == 0 }

func (q *fifo[T]) push(v T) {
	q.items = append(q.items, slot[T]{value: v})
	q.values++
}

func (q *fifo[T]) pushEnd() {
	q.items = append(q.items, slot[T]{end: true})
}

// pop removes the front slot. The caller checks empty first.
func (q *fifo[T]) pop() slot[T] {
	s := q.items[0]
	var zero slot[T]
	q.items[0] = zero
	q.items = q.items[1:]
	if !s.end {
		q.values--
	}
	return s
}

// takeAll removes every slot, in order.
func (q *fifo[T]) takeAll() []slot[T] {
	out := q.items
	q.items = make([]slot[T], 0, min(q.capacity, 64))
	q.values = 0
	return out
}

// discard drops every queued value but keeps an end sentinel if one is
// present, so the reader still observes end-of-stream.
func (q *fifo[T]) discard() {
	ended := false
	for _, s := range q.items {
		if s.end {
			ended = true
		}
	}
	clear(q.items)
	q.items = q.items[:0]
	q.values = 0
	if ended {
		q.pushEnd()
	}
}
