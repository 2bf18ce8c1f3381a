package ops

import (
	"github.com/spf13/pflag"

	"github.com/roach88/recstream/internal/store"
	"github.com/roach88/recstream/internal/stream"
)

var toDBInfo = &Info{
	Name:    "todb",
	Summary: "store records in SQLite and pass them on",
	Usage:   "todb [--db PATH] [--table NAME] [--batch N]",
	New:     func(*Registry) Options { return &toDBOptions{} },
}

type toDBOptions struct {
	DB    string `flag:"db"`
	Table string `flag:"table" validate:"omitempty,max=64"`
	Batch int    `flag:"batch" validate:"gte=0"`
}

func (o *toDBOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.DB, "db", "", "SQLite database path (default store.path)")
	fs.StringVar(&o.Table, "table", "", "record table (default store.table)")
	fs.IntVar(&o.Batch, "batch", store.DefaultBatch, "rows per transaction")
}

func (o *toDBOptions) Prepare() error {
	if o.Table != "" && !store.ValidTable(o.Table) {
		return &ConfigError{Option: "table", Message: "must be a plain SQL identifier other than runs"}
	}
	return nil
}

func (o *toDBOptions) Build(env *Env) (stream.Stream, error) {
	path, table := o.DB, o.Table
	if path == "" {
		path = env.StorePath
	}
	if table == "" {
		table = env.Table
	}
	if path == "" {
		return nil, &ConfigError{Op: "todb", Option: "db", Message: "is required (or set store.path)"}
	}
	if !store.ValidTable(table) {
		return nil, &ConfigError{Op: "todb", Option: "table", Message: "must be a plain SQL identifier other than runs"}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSink(env.Ctx, st, store.SinkOptions{
		Table:      table,
		RunID:      env.RunID,
		Pipeline:   env.Pipeline,
		Batch:      o.Batch,
		CloseStore: true,
		Log:        env.Log.WithComponent("todb"),
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}
