package ops

import (
	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/bucket"
	"github.com/roach88/recstream/internal/clumper"
	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
)

var sortInfo = &Info{
	Name:    "sort",
	Summary: "stable multi-key sort, optionally keeping only the first N",
	Usage:   "sort -k FIELD[=[-]TYPE]... [--limit N]",
	New:     func(*Registry) Options { return &sortOptions{} },
}

type sortOptions struct {
	Keys  []string `flag:"key" validate:"min=1"`
	Limit int      `flag:"limit" validate:"gte=0"`

	parsed []bucket.SortKey
}

func (o *sortOptions) Bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.Keys, "key", "k", nil, "sort key FIELD[=[-]lexical|numeric]; comma-separated lists allowed")
	fs.IntVar(&o.Limit, "limit", 0, "keep only the first N records (0 keeps all)")
}

func (o *sortOptions) Prepare() error {
	keys, err := bucket.ParseSortKeys(o.Keys)
	if err != nil {
		return &ConfigError{Option: "key", Message: err.Error()}
	}
	o.parsed = keys
	return nil
}

func (o *sortOptions) Build(*Env) (stream.Stream, error) {
	return sortStage(o.parsed, o.Limit), nil
}

// sortStage buffers records in a Sorter and emits them in order at close.
func sortStage(keys []bucket.SortKey, limit int) stream.Stream {
	return stream.Records(bucket.NewSorter(keys, limit),
		func(s **bucket.Sorter, r record.Record, _ stream.Sink) (bool, error) {
			return true, (*s).Add(r)
		},
		func(s **bucket.Sorter, sink stream.Sink) error {
			return (*s).Drain(func(r record.Record) error {
				return emit(sink, stream.FromRecord(r))
			})
		})
}

var topNInfo = &Info{
	Name:    "topn",
	Summary: "keep the first N records of every group",
	Usage:   "topn [-k GROUP...] --sort FIELD[=[-]TYPE]... [-n N]",
	New:     func(*Registry) Options { return &topNOptions{N: 10} },
}

type topNOptions struct {
	Keys []string `flag:"key"`
	Sort []string `flag:"sort" validate:"min=1"`
	N    int      `flag:"n" validate:"min=1"`

	parsed []bucket.SortKey
	groups []clumper.Spec
}

func (o *topNOptions) Bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.Keys, "key", "k", nil, "group by FIELD (repeatable)")
	fs.StringArrayVar(&o.Sort, "sort", nil, "order within a group FIELD[=[-]TYPE]")
	fs.IntVarP(&o.N, "n", "n", o.N, "records kept per group")
}

func (o *topNOptions) Prepare() error {
	keys, err := bucket.ParseSortKeys(o.Sort)
	if err != nil {
		return &ConfigError{Option: "sort", Message: err.Error()}
	}
	groups, err := clumper.Specs(o.Keys)
	if err != nil {
		return &ConfigError{Option: "key", Message: err.Error()}
	}
	o.parsed, o.groups = keys, groups
	return nil
}

func (o *topNOptions) Build(*Env) (stream.Stream, error) {
	s, err := clumper.Stream(o.groups, func([]clumper.Pair) (stream.Stream, error) {
		return sortStage(o.parsed, o.N), nil
	})
	if err != nil {
		return nil, err
	}
	return filesOnce(s), nil
}
