package ops

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
)

var joinInfo = &Info{
	Name:    "join",
	Summary: "hash join records against a JSON-lines file",
	Usage:   "join --file FILE --left-key FIELD --right-key FIELD [--keep-unmatched]",
	New:     func(*Registry) Options { return &joinOptions{} },
}

type joinOptions struct {
	File          string `flag:"file" validate:"required"`
	LeftKey       string `flag:"left-key" validate:"required"`
	RightKey      string `flag:"right-key" validate:"required"`
	KeepUnmatched bool   `flag:"keep-unmatched"`

	left, right record.Path
}

func (o *joinOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.File, "file", "", "JSON-lines file holding the records to join with")
	fs.StringVar(&o.LeftKey, "left-key", "", "key FIELD of the streamed records")
	fs.StringVar(&o.RightKey, "right-key", "", "key FIELD of the file records")
	fs.BoolVar(&o.KeepUnmatched, "keep-unmatched", false, "pass streamed records with no match through unchanged")
}

func (o *joinOptions) Prepare() error {
	var err error
	if o.left, err = record.ParsePath(o.LeftKey); err != nil {
		return &ConfigError{Option: "left-key", Message: err.Error()}
	}
	if o.right, err = record.ParsePath(o.RightKey); err != nil {
		return &ConfigError{Option: "right-key", Message: err.Error()}
	}
	return nil
}

// load reads the file into a map from key to the records holding it, in
// file order.
func (o *joinOptions) load() (map[string][]record.Record, error) {
	f, err := os.Open(o.File)
	if err != nil {
		return nil, &ConfigError{Option: "file", Message: err.Error()}
	}
	defer f.Close()

	index := map[string][]record.Record{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		r, err := record.ParseBytes(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", o.File, n, err)
		}
		k := r.Get(o.right).Key()
		index[k] = append(index[k], r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", o.File, err)
	}
	return index, nil
}

// Build emits, for every streamed record, one merged record per matching
// file record: the file record with the streamed record's top-level fields
// laid over it.
func (o *joinOptions) Build(*Env) (stream.Stream, error) {
	index, err := o.load()
	if err != nil {
		return nil, err
	}
	return stream.Records(index,
		func(idx *map[string][]record.Record, r record.Record, sink stream.Sink) (bool, error) {
			matches := (*idx)[r.Get(o.left).Key()]
			if len(matches) == 0 {
				if o.KeepUnmatched {
					return sink(stream.FromRecord(r))
				}
				return true, nil
			}
			hint := true
			for _, m := range matches {
				merged, err := merge(m, r)
				if err != nil {
					return false, err
				}
				ok, err := sink(stream.FromRecord(merged))
				if err != nil {
					return false, err
				}
				hint = hint && ok
			}
			return hint, nil
		}, nil), nil
}

func merge(base, over record.Record) (record.Record, error) {
	if base.Kind() != record.KindHash || over.Kind() != record.KindHash {
		return over, nil
	}
	out := base.Clone()
	var err error
	over.Each(func(k string, v record.Record) {
		if err == nil {
			err = out.Set(record.Path{record.Key(k)}, v)
		}
	})
	return out, err
}
