package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with the golden file of the same name.
func TestScenarios(t *testing.T) {
	scenarios, err := LoadSuite("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err, "scenario execution failed")
			require.NotNil(t, result)

			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

// TestScenariosAreDeterministic runs a scenario twice and expects identical
// snapshots.
func TestScenariosAreDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/top_latency.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	for i := 1; i < len(first.Trace); i++ {
		assert.Greater(t, first.Trace[i].Seq, first.Trace[i-1].Seq)
	}
}

func TestSuiteFilter(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "*_key")
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	_, err = FindScenarios("testdata/scenarios", "[")
	assert.Error(t, err)
}
