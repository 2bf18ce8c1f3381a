package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsCommandLists(t *testing.T) {
	out, err := execute(t, "", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "collate")
	assert.Contains(t, out, "todb")
}

func TestOpsCommandDescribes(t *testing.T) {
	out, err := execute(t, "", "ops", "topn")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--sort")
}

func TestOpsCommandUnknown(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewOpsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
