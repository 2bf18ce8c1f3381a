// Package clumper groups records into labelled sub-streams.
//
// A Spec decides which bucket(s) a record belongs to along one grouping
// dimension. Specs compose as a Cartesian grouping: the stage built for the
// outer spec creates, per bucket, the stage of the next spec, carrying the
// (label, value) pairs gathered so far. The innermost level calls the
// caller's Builder exactly once per distinct bucket path, and every stage
// built this way is closed exactly once when the outer stage closes.
package clumper

import (
	"fmt"
	"strings"

	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
)

// Pair labels one grouping dimension of a bucket.
type Pair struct {
	Label string
	Value record.Record
}

// Builder creates the stage fed with every record of one bucket.
type Builder func(pairs []Pair) (stream.Stream, error)

// Spec partitions records along one dimension.
type Spec interface {
	// Buckets returns the pair lists of every bucket r belongs to at this
	// level. Most specs return exactly one.
	Buckets(r record.Record) ([][]Pair, error)
}

// bucketKey is the identity of a pair list within one level.
func bucketKey(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(p.Label)
		b.WriteByte('=')
		b.WriteString(p.Value.Key())
	}
	return b.String()
}

// Stream returns a stage that routes records through specs, outermost
// first, into stages made by build. BeginFile entries reach every bucket
// stage that exists when they arrive.
func Stream(specs []Spec, build Builder) (stream.Stream, error) {
	return nest(specs, nil, build)
}

func nest(specs []Spec, prefix []Pair, build Builder) (stream.Stream, error) {
	if len(specs) == 0 {
		return build(prefix)
	}
	spec, rest := specs[0], specs[1:]
	subs := stream.NewSubStreams()

	return stream.Closures(subs,
		func(f **stream.SubStreams, e stream.Entry, sink stream.Sink) (bool, error) {
			if e.Kind() == stream.KindBeginFile {
				return true, (*f).Broadcast(e, sink)
			}
			r, err := e.ToRecord()
			if err != nil {
				return false, err
			}
			buckets, err := spec.Buckets(r)
			if err != nil {
				return false, err
			}
			for _, pairs := range buckets {
				path := append(append([]Pair(nil), prefix...), pairs...)
				err := (*f).Write(bucketKey(pairs), func() (stream.Stream, error) {
					return nest(rest, path, build)
				}, stream.FromRecord(r), sink)
				if err != nil {
					return false, err
				}
			}
			return true, nil
		},
		func(f **stream.SubStreams, sink stream.Sink) error {
			return (*f).Close(sink)
		}), nil
}

// Fields groups by the value at each path, all in one level. Missing values
// group as null.
type Fields struct {
	Keys  []string
	paths []record.Path
}

// NewFields parses the key paths.
func NewFields(keys ...string) (*Fields, error) {
	f := &Fields{Keys: keys}
	for _, k := range keys {
		p, err := record.ParsePath(k)
		if err != nil {
			return nil, err
		}
		f.paths = append(f.paths, p)
	}
	return f, nil
}

func (f *Fields) Buckets(r record.Record) ([][]Pair, error) {
	pairs := make([]Pair, len(f.paths))
	for i, p := range f.paths {
		pairs[i] = Pair{Label: f.Keys[i], Value: r.Get(p)}
	}
	return [][]Pair{pairs}, nil
}

// Whole puts every record in a single bucket.
type Whole struct{}

func (Whole) Buckets(record.Record) ([][]Pair, error) {
	return [][]Pair{nil}, nil
}

// AllValue is the value of a cube dimension that was rolled up.
const AllValue = "ALL"

// Cube groups by every combination of the key values and AllValue, so each
// record lands in 2^n buckets.
type Cube struct {
	fields *Fields
}

// NewCube parses the key paths.
func NewCube(keys ...string) (*Cube, error) {
	f, err := NewFields(keys...)
	if err != nil {
		return nil, err
	}
	return &Cube{fields: f}, nil
}

func (c *Cube) Buckets(r record.Record) ([][]Pair, error) {
	base, _ := c.fields.Buckets(r)
	values := base[0]
	n := len(values)
	out := make([][]Pair, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		pairs := make([]Pair, n)
		for i, p := range values {
			pairs[i] = p
			if mask&(1<<i) != 0 {
				pairs[i].Value = record.String(AllValue)
			}
		}
		out = append(out, pairs)
	}
	return out, nil
}

// Specs builds one Fields level per key, giving a Cartesian grouping over
// keys in order. No keys means a single Whole level.
func Specs(keys []string) ([]Spec, error) {
	if len(keys) == 0 {
		return []Spec{Whole{}}, nil
	}
	specs := make([]Spec, 0, len(keys))
	for _, k := range keys {
		f, err := NewFields(k)
		if err != nil {
			return nil, err
		}
		specs = append(specs, f)
	}
	return specs, nil
}

// Record returns a hash of the pair values keyed by label, the usual head
// of an output record for a bucket. A label that is not a usable path, or
// whose path runs through an earlier label's scalar, is set as a plain key.
func Record(pairs []Pair) (record.Record, error) {
	r := record.Hash()
	for _, p := range pairs {
		path, err := record.ParsePath(p.Label)
		if err != nil {
			path = record.Path{record.Key(p.Label)}
		}
		if err := r.Set(path, p.Value); err != nil {
			if err := r.Set(record.Path{record.Key(p.Label)}, p.Value); err != nil {
				return record.Record{}, fmt.Errorf("bucket label %q: %w", p.Label, err)
			}
		}
	}
	return r, nil
}
