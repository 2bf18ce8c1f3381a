package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/recstream/internal/record"
)

// Snapshot renders a result as canonical JSON lines: a header naming the
// scenario and run, one line per trace event, and a final error line when
// the run failed.
//
//	{"run_id":"run-1","scenario":"sort_numeric"}
//	{"file":"a.json","seq":1,"type":"begin_file"}
//	{"record":{"n":1},"seq":2,"type":"record"}
func Snapshot(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	write := func(v map[string]any) error {
		r, err := record.FromNative(v)
		if err != nil {
			return err
		}
		buf.WriteString(record.Serialize(r))
		buf.WriteByte('\n')
		return nil
	}

	if err := write(map[string]any{"scenario": name, "run_id": result.RunID}); err != nil {
		return nil, err
	}
	for _, ev := range result.Trace {
		if err := write(ev.native()); err != nil {
			return nil, fmt.Errorf("trace event %d: %w", ev.Seq, err)
		}
	}
	if result.ErrorCode != "" {
		if err := write(map[string]any{"error": result.ErrorCode}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
