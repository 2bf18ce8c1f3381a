// Package aggregate holds the named aggregators used by collate.
//
// An aggregator is built once from validated arguments and then cloned for
// every bucket, so each bucket accumulates independently.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/recstream/internal/record"
)

// Aggregator accumulates records and reports one value.
type Aggregator interface {
	// Add folds r into the accumulator.
	Add(r record.Record) error
	// Result returns the current value.
	Result() record.Record
	// Clone returns an independent copy of the accumulator in its current
	// state.
	Clone() Aggregator
}

// Info describes a registered aggregator.
type Info struct {
	Name    string
	Aliases []string
	Usage   string
	// Args is the number of leading numeric or text arguments before the
	// field, e.g. 1 for perc,90,field.
	Args int
	// Field reports whether a field path is required.
	Field bool
	New   func(args []string, field record.Path) (Aggregator, error)
}

var registry = map[string]*Info{}

func register(info *Info) {
	registry[info.Name] = info
	for _, a := range info.Aliases {
		registry[a] = info
	}
}

// Lookup returns the aggregator registered under name or alias.
func Lookup(name string) (*Info, bool) {
	info, ok := registry[name]
	return info, ok
}

// List returns every aggregator, sorted by name, without aliases.
func List() []*Info {
	seen := map[*Info]bool{}
	var out []*Info
	for _, info := range registry {
		if !seen[info] {
			seen[info] = true
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Spec is a parsed "[name=]agg[,arg...][,field]" aggregator argument.
type Spec struct {
	Output string
	Agg    string
	Args   []string
	Field  string
	info   *Info
	path   record.Path
}

// ParseSpec parses and checks one aggregator argument. Without an explicit
// name the output field is "agg" or "agg_field".
func ParseSpec(text string) (Spec, error) {
	var s Spec
	body := text
	if name, rest, ok := strings.Cut(text, "="); ok {
		s.Output, body = name, rest
	}
	parts := strings.Split(body, ",")
	s.Agg = parts[0]
	info, ok := Lookup(s.Agg)
	if !ok {
		return Spec{}, fmt.Errorf("unknown aggregator %q", s.Agg)
	}
	s.info = info
	rest := parts[1:]
	want := info.Args
	if info.Field {
		want++
	}
	if len(rest) != want {
		return Spec{}, fmt.Errorf("aggregator %q: usage %s", s.Agg, info.Usage)
	}
	s.Args = rest[:info.Args]
	if info.Field {
		s.Field = rest[info.Args]
		p, err := record.ParsePath(s.Field)
		if err != nil {
			return Spec{}, fmt.Errorf("aggregator %q: %w", s.Agg, err)
		}
		s.path = p
	}
	if s.Output == "" {
		s.Output = info.Name
		for _, a := range s.Args {
			s.Output += "_" + a
		}
		if s.Field != "" {
			s.Output += "_" + strings.ReplaceAll(s.Field, "/", "_")
		}
	}
	// catch bad arguments now rather than at the first bucket
	if _, err := s.New(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// New builds a fresh aggregator for the spec.
func (s Spec) New() (Aggregator, error) {
	return s.info.New(s.Args, s.path)
}

// Set is an ordered group of named aggregators for one bucket.
type Set struct {
	names []string
	aggs  []Aggregator
}

// NewSet builds a prototype set from specs.
func NewSet(specs []Spec) (*Set, error) {
	set := &Set{}
	for _, s := range specs {
		a, err := s.New()
		if err != nil {
			return nil, err
		}
		set.names = append(set.names, s.Output)
		set.aggs = append(set.aggs, a)
	}
	return set, nil
}

// Clone returns an independent copy of every accumulator.
func (s *Set) Clone() *Set {
	out := &Set{names: s.names, aggs: make([]Aggregator, len(s.aggs))}
	for i, a := range s.aggs {
		out.aggs[i] = a.Clone()
	}
	return out
}

// Add folds r into every aggregator.
func (s *Set) Add(r record.Record) error {
	for i, a := range s.aggs {
		if err := a.Add(r); err != nil {
			return fmt.Errorf("aggregator %s: %w", s.names[i], err)
		}
	}
	return nil
}

// WriteTo sets every result on out, keyed by output name (a path).
func (s *Set) WriteTo(out *record.Record) error {
	for i, a := range s.aggs {
		p, err := record.ParsePath(s.names[i])
		if err != nil {
			p = record.Path{record.Key(s.names[i])}
		}
		if err := out.Set(p, a.Result()); err != nil {
			return fmt.Errorf("aggregator %s: %w", s.names[i], err)
		}
	}
	return nil
}
