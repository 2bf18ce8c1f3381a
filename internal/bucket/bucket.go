package bucket

import "github.com/google/btree"

// End selects which side of a bucket to remove from.
type End int

const (
	// Front is the smallest key, oldest arrival.
	Front End = iota
	// Back is the largest key, newest arrival.
	Back
)

// Bucket holds items pending emission in key and arrival order.
type Bucket[T any] interface {
	// Add stores item.
	Add(item T)
	// Remove takes one item from the given end. It reports false when the
	// bucket is empty.
	Remove(end End) (T, bool)
	// Empty reports whether the bucket holds no items.
	Empty() bool
}

// Factory builds a fresh, empty bucket.
type Factory[T any] func() Bucket[T]

// Terminal returns a factory of arrival-ordered buckets.
func Terminal[T any]() Factory[T] {
	return func() Bucket[T] { return &deque[T]{} }
}

// Keyed returns a factory of key buckets. key extracts the item's key for
// this level, cmp orders keys and next builds the bucket for each distinct
// key.
func Keyed[T, K any](key func(T) K, cmp func(a, b K) int, next Factory[T]) Factory[T] {
	return func() Bucket[T] {
		return &keyBucket[T, K]{
			key:  key,
			next: next,
			tree: btree.NewG(16, func(a, b *keyEntry[T, K]) bool {
				return cmp(a.key, b.key) < 0
			}),
		}
	}
}

type keyEntry[T, K any] struct {
	key    K
	nested Bucket[T]
}

type keyBucket[T, K any] struct {
	key  func(T) K
	next Factory[T]
	tree *btree.BTreeG[*keyEntry[T, K]]
}

func (b *keyBucket[T, K]) Add(item T) {
	probe := &keyEntry[T, K]{key: b.key(item)}
	e, ok := b.tree.Get(probe)
	if !ok {
		probe.nested = b.next()
		b.tree.ReplaceOrInsert(probe)
		e = probe
	}
	e.nested.Add(item)
}

func (b *keyBucket[T, K]) Remove(end End) (T, bool) {
	var (
		e  *keyEntry[T, K]
		ok bool
	)
	if end == Front {
		e, ok = b.tree.Min()
	} else {
		e, ok = b.tree.Max()
	}
	if !ok {
		var zero T
		return zero, false
	}
	item, ok := e.nested.Remove(end)
	if e.nested.Empty() {
		b.tree.Delete(e)
	}
	return item, ok
}

func (b *keyBucket[T, K]) Empty() bool { return b.tree.Len() == 0 }

// deque is a slice-backed double-ended queue.
type deque[T any] struct {
	items []T
	head  int
}

func (d *deque[T]) Add(item T) {
	d.items = append(d.items, item)
}

func (d *deque[T]) Remove(end End) (T, bool) {
	var zero T
	if d.Empty() {
		return zero, false
	}
	var item T
	if end == Front {
		item = d.items[d.head]
		d.items[d.head] = zero
		d.head++
	} else {
		last := len(d.items) - 1
		item = d.items[last]
		d.items[last] = zero
		d.items = d.items[:last]
	}
	if d.head == len(d.items) {
		d.items = d.items[:0]
		d.head = 0
	} else if d.head > 32 && d.head*2 > len(d.items) {
		n := copy(d.items, d.items[d.head:])
		clear(d.items[n:])
		d.items = d.items[:n]
		d.head = 0
	}
	return item, true
}

func (d *deque[T]) Empty() bool { return d.head == len(d.items) }
