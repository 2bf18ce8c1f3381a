package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote to
// standard output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpCommandReadsStdin(t *testing.T) {
	out, err := execute(t, "{\"n\":3}\n{\"n\":1}\n{\"n\":2}\n", "sort", "-k", "n=numeric")
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n", out)
}

func TestOpCommandReadsInputs(t *testing.T) {
	a := writeFile(t, "a.json", "{\"n\":3}\n")
	b := writeFile(t, "b.json", "{\"n\":1}\n")

	out, err := execute(t, "", "grep", "--in", a, "--in", b, "-e", "r.n > 2")
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":3}\n", out)
}

func TestOpCommandPositionalArgs(t *testing.T) {
	out, err := execute(t, "{\"n\":3}\n{\"n\":1}\n", "grep", "-v", "r.n > 2")
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n", out)
}

func TestOpCommandConfigError(t *testing.T) {
	_, err := execute(t, "", "sort")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOpCommandTypeError(t *testing.T) {
	_, err := execute(t, "{\"n\":\"abc\"}\n", "sort", "-k", "n=numeric")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestChainCommand(t *testing.T) {
	in := writeFile(t, "in.json", "{\"host\":\"a\"}\n{\"host\":\"b\"}\n{\"host\":\"a\"}\n")

	out, err := execute(t, "", "chain", "--in", in,
		"collate", "-k", "host", "-a", "count", "|", "sort", "-k", "host")
	require.NoError(t, err)
	assert.Equal(t, "{\"count\":2,\"host\":\"a\"}\n{\"count\":1,\"host\":\"b\"}\n", out)
}

func TestChainCommandEmptyStage(t *testing.T) {
	_, err := execute(t, "", "chain", "fromjson", "|", "|", "tojson")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChainCommandMissingInput(t *testing.T) {
	_, err := execute(t, "", "chain", "--in", filepath.Join(t.TempDir(), "nope.json"), "tojson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand(t *testing.T) {
	pipeline := writeFile(t, "top.yaml", `name: top
stages:
  - op: sort
    args: ["-k", "ms=-numeric", "--limit", "1"]
`)
	in := writeFile(t, "in.json", "{\"ms\":5}\n{\"ms\":9}\n{\"ms\":7}\n")

	out, err := execute(t, "", "run", pipeline, in)
	require.NoError(t, err)
	assert.Equal(t, "{\"ms\":9}\n", out)
}

func TestRunCommandInvalidPipeline(t *testing.T) {
	pipeline := writeFile(t, "bad.yaml", `name: bad
stages:
  - op: nope
`)
	_, err := execute(t, "", "run", pipeline)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandMissingPipeline(t *testing.T) {
	_, err := execute(t, "", "run", filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
