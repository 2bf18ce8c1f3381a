package testutil

import (
	"sync"

	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
)

// Collector is a sink that records every entry it receives.
//
// Thread-safety: all methods are safe for concurrent use, so a Collector
// can sit behind a background stage.
type Collector struct {
	mu      sync.Mutex
	entries []stream.Entry

	// Refuse makes Sink return false for every entry after the first n
	// (when positive). Entries are still recorded.
	Refuse int
}

// Sink records e and returns the configured hint.
func (c *Collector) Sink(e stream.Entry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return c.Refuse <= 0 || len(c.entries) <= c.Refuse, nil
}

// Entries returns a copy of everything received.
func (c *Collector) Entries() []stream.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stream.Entry(nil), c.entries...)
}

// Strings renders every entry with Entry.String, for compact assertions.
func (c *Collector) Strings() []string {
	entries := c.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}

// Records returns the canonical JSON of every Record entry, skipping other
// kinds.
func (c *Collector) Records() []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Kind() == stream.KindRecord {
			r, _ := e.ToRecord()
			out = append(out, record.Serialize(r))
		}
	}
	return out
}

// Reset forgets everything received.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}
