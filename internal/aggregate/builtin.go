package aggregate

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/recstream/internal/record"
)

func init() {
	register(&Info{Name: "count", Aliases: []string{"ct"}, Usage: "count",
		New: func([]string, record.Path) (Aggregator, error) { return &count{}, nil }})
	register(&Info{Name: "sum", Usage: "sum,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &sum{path: p}, nil }})
	register(&Info{Name: "average", Aliases: []string{"avg"}, Usage: "average,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &average{path: p}, nil }})
	register(&Info{Name: "min", Usage: "min,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &extreme{path: p, want: -1}, nil }})
	register(&Info{Name: "max", Usage: "max,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &extreme{path: p, want: 1}, nil }})
	register(&Info{Name: "first", Usage: "first,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &pick{path: p}, nil }})
	register(&Info{Name: "last", Usage: "last,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &pick{path: p, last: true}, nil }})
	register(&Info{Name: "records", Aliases: []string{"recs"}, Usage: "records",
		New: func([]string, record.Path) (Aggregator, error) { return &collect{}, nil }})
	register(&Info{Name: "array", Usage: "array,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &collect{path: p}, nil }})
	register(&Info{Name: "dcount", Aliases: []string{"distinct"}, Usage: "dcount,FIELD", Field: true,
		New: func(_ []string, p record.Path) (Aggregator, error) { return &distinct{path: p, seen: map[string]bool{}}, nil }})
	register(&Info{Name: "concat", Usage: "concat,DELIM,FIELD", Args: 1, Field: true,
		New: func(args []string, p record.Path) (Aggregator, error) { return &concat{path: p, delim: args[0]}, nil }})
	register(&Info{Name: "perc", Aliases: []string{"percentile"}, Usage: "perc,PERCENTILE,FIELD", Args: 1, Field: true,
		New: newPercentile})
}

type count struct{ n int64 }

func (a *count) Add(record.Record) error { a.n++; return nil }
func (a *count) Result() record.Record   { return record.Int(a.n) }
func (a *count) Clone() Aggregator       { c := *a; return &c }

// sum stays an integer until a float is added.
type sum struct {
	path    record.Path
	i       int64
	f       float64
	isFloat bool
}

func (a *sum) Add(r record.Record) error {
	n, err := record.CoerceNumber(r.Get(a.path))
	if err != nil {
		return err
	}
	if n.Kind() == record.KindFloat && !a.isFloat {
		a.isFloat = true
		a.f = float64(a.i)
	}
	if a.isFloat {
		v, _ := record.CoerceFloat(n)
		a.f += v
	} else {
		a.i += n.IntValue()
	}
	return nil
}

func (a *sum) Result() record.Record {
	if a.isFloat {
		return record.Float(a.f)
	}
	return record.Int(a.i)
}

func (a *sum) Clone() Aggregator { c := *a; return &c }

type average struct {
	path  record.Path
	total float64
	n     int64
}

func (a *average) Add(r record.Record) error {
	v, err := record.CoerceFloat(r.Get(a.path))
	if err != nil {
		return err
	}
	a.total += v
	a.n++
	return nil
}

func (a *average) Result() record.Record {
	if a.n == 0 {
		return record.Null()
	}
	return record.Float(a.total / float64(a.n))
}

func (a *average) Clone() Aggregator { c := *a; return &c }

// extreme keeps the minimum (want -1) or maximum (want 1) number.
type extreme struct {
	path record.Path
	want int
	best record.Record
	seen bool
}

func (a *extreme) Add(r record.Record) error {
	n, err := record.CoerceNumber(r.Get(a.path))
	if err != nil {
		return err
	}
	if f, _ := record.CoerceFloat(n); math.IsNaN(f) {
		return fmt.Errorf("NaN cannot be compared")
	}
	if !a.seen || record.Compare(n, a.best) == a.want {
		a.best, a.seen = n, true
	}
	return nil
}

func (a *extreme) Result() record.Record { return a.best.Clone() }
func (a *extreme) Clone() Aggregator     { c := *a; c.best = a.best.Clone(); return &c }

type pick struct {
	path  record.Path
	last  bool
	value record.Record
	seen  bool
}

func (a *pick) Add(r record.Record) error {
	if !a.seen || a.last {
		a.value, a.seen = r.Get(a.path), true
	}
	return nil
}

func (a *pick) Result() record.Record { return a.value.Clone() }
func (a *pick) Clone() Aggregator     { c := *a; c.value = a.value.Clone(); return &c }

// collect gathers whole records, or the value at path when set.
type collect struct {
	path  record.Path
	items []record.Record
}

func (a *collect) Add(r record.Record) error {
	if a.path == nil {
		a.items = append(a.items, r.Clone())
	} else {
		a.items = append(a.items, r.Get(a.path))
	}
	return nil
}

func (a *collect) Result() record.Record { return record.Array(a.items...) }

func (a *collect) Clone() Aggregator {
	c := &collect{path: a.path, items: make([]record.Record, len(a.items))}
	for i, it := range a.items {
		c.items[i] = it.Clone()
	}
	return c
}

type distinct struct {
	path record.Path
	seen map[string]bool
}

func (a *distinct) Add(r record.Record) error {
	a.seen[r.Get(a.path).Key()] = true
	return nil
}

func (a *distinct) Result() record.Record { return record.Int(int64(len(a.seen))) }
func (a *distinct) Clone() Aggregator {
	return &distinct{path: a.path, seen: maps.Clone(a.seen)}
}

type concat struct {
	path  record.Path
	delim string
	parts []string
}

func (a *concat) Add(r record.Record) error {
	a.parts = append(a.parts, record.CoerceString(r.Get(a.path)))
	return nil
}

func (a *concat) Result() record.Record { return record.String(strings.Join(a.parts, a.delim)) }
func (a *concat) Clone() Aggregator {
	return &concat{path: a.path, delim: a.delim, parts: slices.Clone(a.parts)}
}

// percentile uses the nearest-rank method over the values seen.
type percentile struct {
	path   record.Path
	p      float64
	values []float64
}

func newPercentile(args []string, p record.Path) (Aggregator, error) {
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v < 0 || v > 100 {
		return nil, fmt.Errorf("aggregator perc: percentile %q must be a number in [0, 100]", args[0])
	}
	return &percentile{path: p, p: v}, nil
}

func (a *percentile) Add(r record.Record) error {
	v, err := record.CoerceFloat(r.Get(a.path))
	if err != nil {
		return err
	}
	if math.IsNaN(v) {
		return fmt.Errorf("NaN cannot be sorted")
	}
	a.values = append(a.values, v)
	return nil
}

func (a *percentile) Result() record.Record {
	if len(a.values) == 0 {
		return record.Null()
	}
	sorted := slices.Clone(a.values)
	slices.Sort(sorted)
	rank := int(math.Ceil(a.p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return record.Float(sorted[rank-1])
}

func (a *percentile) Clone() Aggregator {
	return &percentile{path: a.path, p: a.p, values: slices.Clone(a.values)}
}
