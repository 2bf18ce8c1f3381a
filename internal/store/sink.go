package store

import (
	"context"
	"errors"

	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/stream"
)

// SinkOptions configures a todb stage.
type SinkOptions struct {
	Table    string
	RunID    string
	Pipeline string
	Batch    int
	// CloseStore makes the stage close the store when it is closed.
	CloseStore bool
	Log        *logging.Logger
}

type sinkState struct {
	st   *Store
	w    *Writer
	file string
	opts SinkOptions
}

// NewSink returns a stage that stores every record and passes it on
// unchanged. Lines are parsed; BeginFile sets the file column for the
// records that follow it.
func NewSink(ctx context.Context, st *Store, opts SinkOptions) (stream.Stream, error) {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if err := st.EnsureTable(ctx, opts.Table); err != nil {
		return nil, err
	}
	if err := st.BeginRun(ctx, opts.RunID, opts.Pipeline, opts.Table); err != nil {
		return nil, err
	}
	w, err := st.NewWriter(ctx, opts.Table, opts.RunID, opts.Batch)
	if err != nil {
		return nil, err
	}

	return stream.Closures(&sinkState{st: st, w: w, opts: opts},
		func(s **sinkState, e stream.Entry, sink stream.Sink) (bool, error) {
			if e.Kind() == stream.KindBeginFile {
				(*s).file = e.File()
				return sink(e)
			}
			r, err := e.ToRecord()
			if err != nil {
				return false, err
			}
			if err := (*s).w.Write((*s).file, r); err != nil {
				return false, errors.Join(err, (*s).w.Abort())
			}
			return sink(stream.FromRecord(r))
		},
		closeSink,
	), nil
}

func closeSink(s **sinkState, _ stream.Sink) error {
	st := *s
	err := st.w.Flush()
	st.opts.Log.Debug("records stored", logging.Fields(
		logging.FieldCount, st.w.Seq(),
		logging.FieldRunID, st.opts.RunID,
		"table", st.opts.Table,
	))
	if st.opts.CloseStore {
		err = errors.Join(err, st.st.Close())
	}
	return err
}
