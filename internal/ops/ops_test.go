package ops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/store"
	"github.com/roach88/recstream/internal/stream"
	"github.com/roach88/recstream/internal/testutil"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{
		Ctx:       context.Background(),
		RunID:     testutil.NewFixedRunIDGenerator("").Generate(),
		Capacity:  4,
		StorePath: filepath.Join(t.TempDir(), "recs.db"),
		Table:     "records",
	}
}

// run parses a command line, drives the input lines through it and returns
// what came out, rendered with Entry.String.
func run(t *testing.T, env *Env, cmdline []string, input ...string) []string {
	t.Helper()
	stages, err := Builtin().ParseChain(cmdline)
	require.NoError(t, err)
	s, err := BuildChain(env, stages)
	require.NoError(t, err)

	c := &testutil.Collector{}
	_, err = s.Write(stream.BeginFile("input"), c.Sink)
	require.NoError(t, err)
	for _, line := range input {
		_, err := s.Write(stream.FromLine(line), c.Sink)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close(c.Sink))
	return c.Strings()
}

func lines(out []string) []string {
	var res []string
	for _, s := range out {
		if strings.HasPrefix(s, "Line(") {
			res = append(res, s)
		}
	}
	return res
}

func args(s string) []string { return strings.Fields(s) }

func TestParseErrors(t *testing.T) {
	reg := Builtin()
	tests := []struct {
		cmdline string
		op      string
		option  string
	}{
		{"nope", "nope", ""},
		{"grep --bogus", "grep", ""},
		{"grep", "grep", "expr"},
		{"grep -e r.a+", "grep", "expr"},
		{"xform", "xform", "expr"},
		{"sort", "sort", "key"},
		{"sort -k a=weird", "sort", "key"},
		{"sort -k a --limit -1", "sort", "limit"},
		{"topn --sort a -n 0", "topn", "n"},
		{"collate", "collate", "agg"},
		{"collate -a bogus", "collate", "agg"},
		{"collate --cube -a count", "collate", "cube"},
		{"join --file x", "join", "left-key"},
		{"pipe", "pipe", "command"},
		{"pipe -- /nonexistent/recs-cmd", "pipe", "command"},
		{"todb --table runs", "todb", "table"},
		{"fromjson extra", "fromjson", ""},
		{"multiplex -k a", "multiplex", ""},
		{"multiplex -- sort", "sort", "key"},
	}
	for _, tt := range tests {
		t.Run(tt.cmdline, func(t *testing.T) {
			_, err := reg.ParseChain(args(tt.cmdline))
			require.Error(t, err)
			require.True(t, IsConfigError(err), "%v", err)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.op, ce.Op)
			assert.Equal(t, tt.option, ce.Option)
		})
	}
}

func TestEmptyStageInChain(t *testing.T) {
	_, err := Builtin().ParseChain([]string{"fromjson", "|", "|", "tojson"})
	assert.True(t, IsConfigError(err))
}

func TestRegistry(t *testing.T) {
	_, err := NewRegistry(fromJSONInfo, fromJSONInfo)
	assert.Error(t, err)

	var names []string
	for _, info := range Builtin().List() {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Summary, info.Name)
	}
	assert.IsIncreasing(t, names)
	assert.Len(t, names, 11)

	fs, err := Builtin().Flags("sort")
	require.NoError(t, err)
	assert.NotNil(t, fs.Lookup("limit"))
}

func TestToJSONCanonicalizes(t *testing.T) {
	out := run(t, testEnv(t), args("tojson"), `{"b": 1, "a": [1.50]}`)
	assert.Equal(t, []string{"BeginFile(input)", `Line("{\"a\":[1.5],\"b\":1}")`}, out)
}

func TestGrep(t *testing.T) {
	in := []string{`{"level":"error","n":1}`, `{"level":"info","n":2}`, `{"level":"error","n":3}`}

	out := run(t, testEnv(t), []string{"grep", "-e", "r.level == 'error'", "|", "tojson"}, in...)
	assert.Equal(t, []string{`Line("{\"level\":\"error\",\"n\":1}")`, `Line("{\"level\":\"error\",\"n\":3}")`}, lines(out))

	out = run(t, testEnv(t), []string{"grep", "-v", "r.level == 'error'", "|", "tojson"}, in...)
	assert.Equal(t, []string{`Line("{\"level\":\"info\",\"n\":2}")`}, lines(out))
}

func TestXform(t *testing.T) {
	out := run(t, testEnv(t),
		[]string{"xform", "-e", `set("total", r.a + r.b)`, "-e", `del("a")`, "|", "tojson"},
		`{"a":1,"b":2}`)
	assert.Equal(t, []string{`Line("{\"b\":2,\"total\":3}")`}, lines(out))
}

func TestSortAndLimit(t *testing.T) {
	in := []string{`{"n":3}`, `{"n":10}`, `{"n":1}`, `{"n":2}`}

	out := run(t, testEnv(t), args("sort -k n=numeric | tojson"), in...)
	assert.Equal(t, []string{`Line("{\"n\":1}")`, `Line("{\"n\":2}")`, `Line("{\"n\":3}")`, `Line("{\"n\":10}")`}, lines(out))

	out = run(t, testEnv(t), args("sort -k n --limit 2 | tojson"), in...)
	// lexical: "1" < "10" < "2" < "3"
	assert.Equal(t, []string{`Line("{\"n\":1}")`, `Line("{\"n\":10}")`}, lines(out))
}

func TestTopN(t *testing.T) {
	in := []string{
		`{"g":"a","t":5}`, `{"g":"b","t":1}`, `{"g":"a","t":2}`,
		`{"g":"a","t":9}`, `{"g":"b","t":7}`,
	}
	out := run(t, testEnv(t), args("topn -k g --sort t=-n -n 1 | tojson"), in...)
	assert.Equal(t, []string{
		"BeginFile(input)",
		`Line("{\"g\":\"a\",\"t\":9}")`,
		`Line("{\"g\":\"b\",\"t\":7}")`,
	}, out)
}

func TestCollate(t *testing.T) {
	in := []string{
		`{"host":"x","ms":10}`, `{"host":"y","ms":5}`, `{"host":"x","ms":30}`,
	}
	out := run(t, testEnv(t), args("collate -k host -a count -a avg=average,ms -a max,ms | tojson"), in...)
	assert.Equal(t, []string{
		"BeginFile(input)",
		`Line("{\"avg\":20.0,\"count\":2,\"host\":\"x\",\"max_ms\":30}")`,
		`Line("{\"avg\":5.0,\"count\":1,\"host\":\"y\",\"max_ms\":5}")`,
	}, out)
}

func TestCollateCube(t *testing.T) {
	in := []string{`{"a":1,"b":"p"}`, `{"a":1,"b":"q"}`}
	out := run(t, testEnv(t), args("collate --cube -k a -k b -a count | tojson"), in...)
	assert.ElementsMatch(t, []string{
		`Line("{\"a\":1,\"b\":\"p\",\"count\":1}")`,
		`Line("{\"a\":\"ALL\",\"b\":\"p\",\"count\":1}")`,
		`Line("{\"a\":1,\"b\":\"ALL\",\"count\":2}")`,
		`Line("{\"a\":\"ALL\",\"b\":\"ALL\",\"count\":2}")`,
		`Line("{\"a\":1,\"b\":\"q\",\"count\":1}")`,
		`Line("{\"a\":\"ALL\",\"b\":\"q\",\"count\":1}")`,
	}, lines(out))
}

func TestCollateWholeStream(t *testing.T) {
	out := run(t, testEnv(t), args("collate -a count -a sum,n | tojson"), `{"n":1}`, `{"n":2.5}`)
	assert.Equal(t, []string{`Line("{\"count\":2,\"sum_n\":3.5}")`}, lines(out))
}

func TestMultiplex(t *testing.T) {
	in := []string{`{"g":"a","t":2}`, `{"g":"b","t":1}`, `{"g":"a","t":1}`}
	out := run(t, testEnv(t),
		[]string{"multiplex", "-k", "g", "--", "sort", "-k", "t=n", "+", "collate", "-a", "first,t", "|", "tojson"},
		in...)
	assert.Equal(t, []string{
		"BeginFile(input)",
		`Line("{\"first_t\":1}")`,
		`Line("{\"first_t\":1}")`,
	}, out)
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hosts.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"id":"x","dc":"east"}`+"\n\n"+`{"id":"y","dc":"west"}`+"\n"), 0o644))

	in := []string{`{"host":"x","n":1}`, `{"host":"z","n":2}`}
	cmd := []string{"join", "--file", file, "--left-key", "host", "--right-key", "id", "|", "tojson"}
	out := run(t, testEnv(t), cmd, in...)
	assert.Equal(t, []string{`Line("{\"dc\":\"east\",\"host\":\"x\",\"id\":\"x\",\"n\":1}")`}, lines(out))

	cmd = append([]string{"join", "--keep-unmatched"}, cmd[1:]...)
	out = run(t, testEnv(t), cmd, in...)
	assert.Len(t, lines(out), 2)
	assert.Equal(t, `Line("{\"host\":\"z\",\"n\":2}")`, lines(out)[1])
}

func TestJoinMissingFileIsConfigError(t *testing.T) {
	stages, err := Builtin().ParseChain(args("join --file /nonexistent/recs.json --left-key a --right-key b"))
	require.NoError(t, err)
	_, err = BuildChain(testEnv(t), stages)
	assert.True(t, IsConfigError(err))
}

func TestPipe(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	out := run(t, testEnv(t), args("pipe --parse -- cat | xform -e set('seen',true) | tojson"), `{"a":1}`, `{"a":2}`)
	assert.Equal(t, []string{
		`Line("{\"a\":1,\"seen\":true}")`,
		`Line("{\"a\":2,\"seen\":true}")`,
	}, lines(out))
}

func TestToDB(t *testing.T) {
	env := testEnv(t)
	env.Pipeline = "ops-test"
	out := run(t, env, args("todb --table events | tojson"), `{"a":1}`, `{"a":2}`)
	assert.Len(t, lines(out), 2)

	st, err := store.Open(env.StorePath)
	require.NoError(t, err)
	defer st.Close()
	rows, err := st.ReadRun(context.Background(), "events", env.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "input", rows[0].File)
	assert.Equal(t, int64(2), rows[1].Record.Field("a").IntValue())

	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ops-test", runs[0].Pipeline)
}

func TestToDBNeedsAPath(t *testing.T) {
	env := testEnv(t)
	env.StorePath = ""
	stages, err := Builtin().ParseChain(args("todb"))
	require.NoError(t, err)
	_, err = BuildChain(env, stages)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "db", ce.Option)
}

func TestStageIsReusable(t *testing.T) {
	stage, err := Builtin().Parse("collate", args("-a count"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		s, err := stage.Build(testEnv(t))
		require.NoError(t, err)
		c := &testutil.Collector{}
		_, err = s.Write(stream.FromLine(`{}`), c.Sink)
		require.NoError(t, err)
		require.NoError(t, s.Close(c.Sink))
		assert.Equal(t, []string{`{"count":1}`}, c.Records())
	}
	assert.Equal(t, "collate -a count", stage.String())
}

func TestBindOnForeignFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	fs.String("in", "", "not an operator flag")
	b, err := Builtin().Bind("sort", fs)
	require.NoError(t, err)

	require.NoError(t, fs.Parse(args("--in x -k a=-n --limit 2")))
	stage, err := b.Complete(fs.Args())
	require.NoError(t, err)
	assert.Equal(t, "sort --key=a=-n --limit=2", stage.String())

	_, err = Builtin().Bind("nope", fs)
	assert.True(t, IsConfigError(err))
}

func TestBindValidates(t *testing.T) {
	fs := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	b, err := Builtin().Bind("join", fs)
	require.NoError(t, err)
	require.NoError(t, fs.Parse(nil))
	_, err = b.Complete(nil)
	assert.True(t, IsConfigError(err))
}
