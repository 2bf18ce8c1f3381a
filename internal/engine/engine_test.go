package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/compiler"
	"github.com/roach88/recstream/internal/config"
	"github.com/roach88/recstream/internal/logging"
	"github.com/roach88/recstream/internal/ops"
	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/store"
	"github.com/roach88/recstream/internal/stream"
	"github.com/roach88/recstream/internal/testutil"
)

// stageOptions wraps a ready-made stream as an operator.
type stageOptions struct {
	build func() stream.Stream
}

func (stageOptions) Bind(*pflag.FlagSet) {}

func (o stageOptions) Build(*ops.Env) (stream.Stream, error) { return o.build(), nil }

func fixed(s stream.Stream) *ops.Stage {
	return &ops.Stage{Op: "fixed", Options: stageOptions{build: func() stream.Stream { return s }}}
}

// take passes the first n entries and then asks for no more.
func take(n int) *ops.Stage {
	return fixed(stream.Closures(0, func(seen *int, e stream.Entry, sink stream.Sink) (bool, error) {
		*seen++
		if *seen > n {
			return false, nil
		}
		ok, err := sink(e)
		return ok && *seen < n, err
	}, nil))
}

func chain(t *testing.T, cmdline string) *compiler.Pipeline {
	t.Helper()
	stages, err := ops.Builtin().ParseChain(strings.Fields(cmdline))
	require.NoError(t, err)
	return &compiler.Pipeline{Name: "test", Stages: stages}
}

func writeFile(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newEngine(out *bytes.Buffer, opts ...EngineOption) *Engine {
	cfg := *config.Default()
	cfg.Bridge.Capacity = 4
	base := []EngineOption{
		WithOutput(out),
		WithStdin(strings.NewReader("")),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-1")),
	}
	return New(cfg, append(base, opts...)...)
}

func TestRunFiles(t *testing.T) {
	a := writeFile(t, "a.json", `{"n":1}`, `{"n":5}`)
	b := writeFile(t, "b.json", `{"n":3,"z":0}`)

	var out bytes.Buffer
	res, err := newEngine(&out).Run(context.Background(), chain(t, "grep -e r.n>2 | sort -k n=n"), []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, "{\"n\":3,\"z\":0}\n{\"n\":5}\n", out.String())
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "test", res.Pipeline)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, int64(5), res.In)
	assert.Equal(t, int64(2), res.Out)
	assert.False(t, res.Stopped)
}

func TestRunLinesPassVerbatim(t *testing.T) {
	var out bytes.Buffer
	tr := testutil.Track("identity", nil)
	e := newEngine(&out, WithStdin(strings.NewReader("not json\n  {\"b\": 1}\n")))

	res, err := e.Run(context.Background(), &compiler.Pipeline{Stages: []*ops.Stage{fixed(tr)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "not json\n  {\"b\": 1}\n", out.String())
	assert.Equal(t, 0, res.Files)
	assert.Equal(t, int64(2), res.In)
	assert.NoError(t, tr.Check())
}

func TestRunUsesPipelineInputs(t *testing.T) {
	path := writeFile(t, "in.json", `{"b":2,"a":1}`)
	p := chain(t, "tojson")
	p.Inputs = []string{path}

	var out bytes.Buffer
	_, err := newEngine(&out).Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1,\"b\":2}\n", out.String())
}

func TestRunStopsWhenChainRefuses(t *testing.T) {
	var out bytes.Buffer
	e := newEngine(&out, WithStdin(strings.NewReader("1\n2\n3\n4\n")))

	res, err := e.Run(context.Background(), &compiler.Pipeline{Stages: []*ops.Stage{take(2)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out.String())
	assert.True(t, res.Stopped)
	assert.Equal(t, int64(2), res.In)
}

func TestRunMissingInputClosesChain(t *testing.T) {
	var out bytes.Buffer
	tr := testutil.Track("t", nil)
	p := &compiler.Pipeline{Stages: []*ops.Stage{fixed(tr)}}

	res, err := newEngine(&out).Run(context.Background(), p, []string{filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.NotNil(t, res)
	assert.NoError(t, tr.Check())
}

func TestRunStageErrorKeepsCause(t *testing.T) {
	var out bytes.Buffer
	e := newEngine(&out, WithStdin(strings.NewReader("{\"n\":\"abc\"}\n")))

	_, err := e.Run(context.Background(), chain(t, "sort -k n=n"), nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeStage, CodeOf(err))
	assert.True(t, record.IsTypeError(err))
}

func TestRunBuildErrorIsConfigError(t *testing.T) {
	var out bytes.Buffer
	_, err := newEngine(&out).Run(context.Background(), chain(t, "todb"), nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeBuild, CodeOf(err))
	assert.True(t, ops.IsConfigError(err))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	tr := testutil.Track("t", nil)
	e := newEngine(&out, WithStdin(strings.NewReader("x\n")))

	_, err := e.Run(ctx, &compiler.Pipeline{Stages: []*ops.Stage{fixed(tr)}}, nil)
	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, tr.Check())
	assert.Equal(t, 0, tr.Writes())
}

func TestRunLogsStartAndFinish(t *testing.T) {
	var out, logs bytes.Buffer
	log := logging.New(logging.Config{Level: "info", Format: "json"}, &logs)
	e := newEngine(&out, WithLogger(log), WithStdin(strings.NewReader("{}\n")))

	_, err := e.Run(context.Background(), chain(t, "tojson"), nil)
	require.NoError(t, err)

	text := logs.String()
	assert.Contains(t, text, `"run_id":"run-1"`)
	assert.Contains(t, text, "run started")
	assert.Contains(t, text, "run finished")
	assert.Contains(t, text, `"out":1`)
}

func TestReplayFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "recs.db")
	a := writeFile(t, "a.json", `{"n":2}`, `{"n":1}`)
	b := writeFile(t, "b.json", `{"n":3}`)

	var out bytes.Buffer
	_, err := newEngine(&out).Run(context.Background(), chain(t, "todb --db "+dbPath+" --table events"), []string{a, b})
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	out.Reset()
	tr := testutil.Track("t", nil)
	collector := &testutil.Collector{}
	seen := fixed(stream.Compound(tr, stream.Closures(0,
		func(_ *int, e stream.Entry, sink stream.Sink) (bool, error) {
			_, _ = collector.Sink(e)
			return sink(e)
		}, nil)))

	e := newEngine(&out, WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-2")))
	res, err := e.Replay(context.Background(), st, "events", "run-1", &compiler.Pipeline{Stages: []*ops.Stage{seen}})
	require.NoError(t, err)

	assert.Equal(t, "{\"n\":2}\n{\"n\":1}\n{\"n\":3}\n", out.String())
	assert.Equal(t, int64(5), res.In)
	assert.Equal(t, []string{
		"BeginFile(" + a + ")",
		`Record({"n":2})`,
		`Record({"n":1})`,
		"BeginFile(" + b + ")",
		`Record({"n":3})`,
	}, collector.Strings())
	assert.NoError(t, tr.Check())
}

func TestReplayUnknownTable(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "recs.db"))
	require.NoError(t, err)
	defer st.Close()

	var out bytes.Buffer
	_, err = newEngine(&out).Replay(context.Background(), st, "missing", "run-1", chain(t, "tojson"))
	assert.True(t, IsInputError(err))
}
