package stream

import (
	"errors"
	"fmt"
)

// SubStreams owns nested stages created at runtime, one per key, and closes
// them in insertion order.
//
// Writes to sub-streams ignore the flow hint: one sub-stream asking to stop
// says nothing about its siblings.
type SubStreams struct {
	lifecycle
	keys    []string
	streams map[string]Stream
}

// NewSubStreams returns an empty fan-out.
func NewSubStreams() *SubStreams {
	return &SubStreams{streams: map[string]Stream{}}
}

// Len returns the number of sub-streams created so far.
func (f *SubStreams) Len() int { return len(f.keys) }

// Keys returns the sub-stream keys in insertion order.
func (f *SubStreams) Keys() []string { return append([]string(nil), f.keys...) }

// Get returns the sub-stream for key, calling build the first time key is
// seen.
func (f *SubStreams) Get(key string, build func() (Stream, error)) (Stream, error) {
	if err := f.checkWrite(); err != nil {
		return nil, err
	}
	if s, ok := f.streams[key]; ok {
		return s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, key)
	f.streams[key] = s
	return s, nil
}

// Write sends e to the sub-stream for key, building it if needed.
func (f *SubStreams) Write(key string, build func() (Stream, error), e Entry, sink Sink) error {
	s, err := f.Get(key, build)
	if err != nil {
		return err
	}
	_, err = s.Write(e, sink)
	return err
}

// Broadcast sends e to every existing sub-stream.
func (f *SubStreams) Broadcast(e Entry, sink Sink) error {
	if err := f.checkWrite(); err != nil {
		return err
	}
	for _, k := range f.keys {
		if _, err := f.streams[k].Write(e, sink); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sub-stream once, in insertion order. Every sub-stream
// is closed even if an earlier one fails.
func (f *SubStreams) Close(sink Sink) error {
	return f.CloseInOrder(sink, f.keys)
}

// CloseInOrder closes the sub-streams named by order first, then any
// remaining ones in insertion order.
func (f *SubStreams) CloseInOrder(sink Sink, order []string) error {
	if err := f.markClosed(); err != nil {
		return err
	}
	var errs []error
	done := make(map[string]bool, len(f.keys))
	closeOne := func(k string) {
		s, ok := f.streams[k]
		if !ok || done[k] {
			return
		}
		done[k] = true
		if err := s.Close(sink); err != nil {
			errs = append(errs, fmt.Errorf("sub-stream %q: %w", k, err))
		}
	}
	for _, k := range order {
		closeOne(k)
	}
	for _, k := range f.keys {
		closeOne(k)
	}
	return errors.Join(errs...)
}
