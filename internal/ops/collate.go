package ops

import (
	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/aggregate"
	"github.com/roach88/recstream/internal/clumper"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
)

var collateInfo = &Info{
	Name:    "collate",
	Summary: "group records and compute aggregates per group",
	Usage:   "collate [-k GROUP...] [--cube] -a [NAME=]AGG[,ARG...][,FIELD]...",
	New:     func(*Registry) Options { return &collateOptions{} },
}

type collateOptions struct {
	Keys []string `flag:"key"`
	Aggs []string `flag:"agg" validate:"min=1"`
	Cube bool     `flag:"cube"`

	specs  []aggregate.Spec
	groups []clumper.Spec
}

func (o *collateOptions) Bind(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&o.Keys, "key", "k", nil, "group by FIELD (repeatable)")
	fs.StringArrayVarP(&o.Aggs, "agg", "a", nil, "aggregator [NAME=]AGG[,ARG...][,FIELD] (repeatable)")
	fs.BoolVar(&o.Cube, "cube", false, "also emit every roll-up of the keys, with ALL in place of a value")
}

func (o *collateOptions) Prepare() error {
	o.specs = o.specs[:0]
	for _, text := range o.Aggs {
		s, err := aggregate.ParseSpec(text)
		if err != nil {
			return &ConfigError{Option: "agg", Message: err.Error()}
		}
		o.specs = append(o.specs, s)
	}

	if o.Cube {
		if len(o.Keys) == 0 {
			return &ConfigError{Option: "cube", Message: "needs at least one key"}
		}
		cube, err := clumper.NewCube(o.Keys...)
		if err != nil {
			return &ConfigError{Option: "key", Message: err.Error()}
		}
		o.groups = []clumper.Spec{cube}
		return nil
	}
	groups, err := clumper.Specs(o.Keys)
	if err != nil {
		return &ConfigError{Option: "key", Message: err.Error()}
	}
	o.groups = groups
	return nil
}

func (o *collateOptions) Build(env *Env) (stream.Stream, error) {
	proto, err := aggregate.NewSet(o.specs)
	if err != nil {
		return nil, err
	}
	log := env.Log.WithComponent("collate")
	s, err := clumper.Stream(o.groups, func(pairs []clumper.Pair) (stream.Stream, error) {
		head, err := clumper.Record(pairs)
		if err != nil {
			return nil, err
		}
		log.Debug("bucket created", logging.Fields("bucket", record.Serialize(head)))
		return aggregateStage(proto.Clone(), head), nil
	})
	if err != nil {
		return nil, err
	}
	return filesOnce(s), nil
}

// aggregateStage folds the records of one bucket and emits a single record
// with the bucket's key fields and the aggregate values at close.
func aggregateStage(set *aggregate.Set, head record.Record) stream.Stream {
	return stream.Records(set,
		func(s **aggregate.Set, r record.Record, _ stream.Sink) (bool, error) {
			return true, (*s).Add(r)
		},
		func(s **aggregate.Set, sink stream.Sink) error {
			out := head.Clone()
			if err := (*s).WriteTo(&out); err != nil {
				return err
			}
			return emit(sink, stream.FromRecord(out))
		})
}
