package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRun_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureTable(ctx, "records"))

	rows, err := s.ReadRun(ctx, "records", "missing")
	require.NoError(t, err)
	assert.NotNil(t, rows, "ReadRun() returned nil, want empty slice")
	assert.Empty(t, rows)
}

func TestBeginRun_AccumulatesTables(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"a", "b", "a"} {
		require.NoError(t, s.BeginRun(ctx, "run-1", "demo", table), "BeginRun(%q)", table)
	}
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"a", "b"}, runs[0].Tables)
	assert.Equal(t, "demo", runs[0].Pipeline)
}
