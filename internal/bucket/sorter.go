package bucket

import "github.com/roach88/recstream/internal/record"

// Item is a record together with its extracted key tuple.
type Item struct {
	Record record.Record
	Keys   []Value
	ID     int64
}

// Chain builds the factory for a stable multi-key sort over keys, outermost
// key first.
func Chain(keys []SortKey) Factory[Item] {
	f := Terminal[Item]()
	for i := len(keys) - 1; i >= 0; i-- {
		level := i
		f = Keyed(func(it Item) Value { return it.Keys[level] }, keys[level].Compare, f)
	}
	return f
}

// Sorter is a stable multi-key sort with optional top-K maintenance.
type Sorter struct {
	keys  []SortKey
	root  Bucket[Item]
	size  int
	limit int
	seq   int64
}

// NewSorter returns an empty sorter. With limit > 0 only the limit smallest
// items (by keys, then arrival) are kept.
func NewSorter(keys []SortKey, limit int) *Sorter {
	return &Sorter{keys: keys, root: Chain(keys)(), limit: limit}
}

// Add extracts r's keys and stores it. When over the limit, the largest
// item is evicted.
func (s *Sorter) Add(r record.Record) error {
	vals := make([]Value, len(s.keys))
	for i, k := range s.keys {
		v, err := k.Extract(r)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	s.seq++
	s.root.Add(Item{Record: r, Keys: vals, ID: s.seq})
	s.size++
	if s.limit > 0 && s.size > s.limit {
		s.root.Remove(Back)
		s.size--
	}
	return nil
}

// Len returns the number of items held.
func (s *Sorter) Len() int { return s.size }

// Next removes and returns the smallest item.
func (s *Sorter) Next() (record.Record, bool) {
	it, ok := s.root.Remove(Front)
	if !ok {
		return record.Null(), false
	}
	s.size--
	return it.Record, true
}

// Drain removes every item in order, passing each to fn. It stops at the
// first error.
func (s *Sorter) Drain(fn func(record.Record) error) error {
	for {
		r, ok := s.Next()
		if !ok {
			return nil
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}
