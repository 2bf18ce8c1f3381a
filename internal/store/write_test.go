package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/stream"
	"github.com/roach88/recstream/internal/testutil"
)

func TestWriter_BatchesAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx, "records", "run-1", 2)
	require.NoError(t, err)
	for _, text := range []string{`{"i":1}`, `{"i":2}`, `{"i":3}`} {
		require.NoError(t, w.Write("in.json", mustParse(t, text)))
	}
	require.NoError(t, w.Flush())

	rows, err := s.ReadRun(ctx, "records", "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row.Seq, "rows[%d].Seq", i)
		assert.Equal(t, "in.json", row.File, "rows[%d].File", i)
		assert.Equal(t, int64(i+1), row.Record.Field("i").IntValue(), "rows[%d] i", i)
	}
}

func TestWriter_AbortDropsPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx, "records", "run-1", 10)
	require.NoError(t, err)
	require.NoError(t, w.Write("", mustParse(t, `{}`)))
	require.NoError(t, w.Abort())

	rows, err := s.ReadRun(ctx, "records", "run-1")
	require.NoError(t, err)
	assert.Empty(t, rows, "rows after abort")
}

func TestSink_StoresAndPassesThrough(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stage, err := NewSink(ctx, s, SinkOptions{Table: "out", RunID: "run-7", Pipeline: "p", Batch: 1})
	require.NoError(t, err)
	c := &testutil.Collector{}
	entries := []stream.Entry{
		stream.BeginFile("a.json"),
		stream.FromLine(`{"x":1}`),
		stream.BeginFile("b.json"),
		stream.FromRecord(mustParse(t, `{"x":2}`)),
	}
	for _, e := range entries {
		_, err := stage.Write(e, c.Sink)
		require.NoError(t, err, "Write(%s)", e)
	}
	require.NoError(t, stage.Close(c.Sink))

	assert.Equal(t, []string{`{"x":1}`, `{"x":2}`}, c.Records())
	rows, err := s.ReadRun(ctx, "out", "run-7")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.json", rows[0].File)
	assert.Equal(t, "b.json", rows[1].File)
}

func TestSink_ClosesOwnedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "owned.db"))
	require.NoError(t, err)
	stage, err := NewSink(context.Background(), s, SinkOptions{Table: "t", RunID: "r", CloseStore: true})
	require.NoError(t, err)
	require.NoError(t, stage.Close(stream.Discard))
	assert.Error(t, s.DB().Ping(), "store still open after sink close")
}
