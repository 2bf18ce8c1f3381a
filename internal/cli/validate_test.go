package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPipeline = `pipeline: {
	name: "errors-by-host"
	stages: [
		{op: "grep", args: ["-e", "r.level == 'error'"]},
		{op: "collate", args: ["-k", "host", "-a", "count"]},
	]
}
`

const invalidPipeline = `name: broken
stages:
  - op: nope
  - op: sort
    args: ["--limit", "-1", "-k", "a"]
`

func TestValidateValidPipeline(t *testing.T) {
	path := writeFile(t, "ok.cue", validPipeline)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓")
	assert.Contains(t, buf.String(), "errors-by-host (2 stages)")
}

func TestValidateValidPipelineJSON(t *testing.T) {
	path := writeFile(t, "ok.cue", validPipeline)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateReportsEveryStage(t *testing.T) {
	path := writeFile(t, "bad.yaml", invalidPipeline)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "stages[0].op")
	assert.Contains(t, out, "stages[1].args")
}

func TestValidateInvalidPipelineJSON(t *testing.T) {
	path := writeFile(t, "bad.yaml", invalidPipeline)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.Error(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.cue")})

	require.Error(t, cmd.Execute())
	assert.Contains(t, buf.String(), "file not found")
}
