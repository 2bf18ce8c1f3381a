package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/record"
)

func mustParse(t *testing.T, text string) record.Record {
	t.Helper()
	r, err := record.Parse(text)
	require.NoError(t, err)
	return r
}

func TestMatch(t *testing.T) {
	actual := mustParse(t, `{"a":1,"b":{"c":[1,"x"],"d":true},"f":2.0}`)

	tests := []struct {
		want  string
		match bool
	}{
		{`{}`, true},
		{`{"a":1}`, true},
		{`{"a":1.0}`, true},
		{`{"f":2}`, true},
		{`{"f":2.5}`, false},
		{`{"a":2}`, false},
		{`{"b":{"d":true}}`, true},
		{`{"b":{"c":[1,"x"]}}`, true},
		{`{"b":{"c":[1]}}`, false},
		{`{"a":"1"}`, false},
		{`{"z":null}`, false},
		{`{"a":1,"b":{"d":false}}`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.match, Match(actual, mustParse(t, tt.want)), tt.want)
	}

	assert.False(t, Match(mustParse(t, `[1]`), mustParse(t, `{}`)))
}

func TestMatchNumbersByValue(t *testing.T) {
	avg := mustParse(t, `{"host":"a","avg":2.0,"n":[1.0,3]}`)
	assert.True(t, Match(avg, mustParse(t, `{"avg":2}`)))
	assert.True(t, Match(avg, mustParse(t, `{"n":[1,3.0]}`)))
	assert.False(t, Match(avg, mustParse(t, `{"avg":"2"}`)))

	big := mustParse(t, `{"id":9007199254740993}`)
	assert.True(t, Match(big, mustParse(t, `{"id":9007199254740993}`)))
	assert.False(t, Match(big, mustParse(t, `{"id":9007199254740992}`)))
}

func outputResult(lines ...string) *Result {
	r := NewResult("run-1")
	r.Output = lines
	return r
}

func TestOutputAssertions(t *testing.T) {
	result := outputResult(`{"k":"a","n":1}`, `plain text`, `{"k":"b","n":2}`, `{"k":"a","n":3}`)

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertOutputContains, Record: map[string]any{"k": "b"}},
		{Type: AssertOutputOrder, Records: []map[string]any{{"n": 1}, {"k": "b"}, {"n": 3}}},
		{Type: AssertOutputCount, Where: map[string]any{"k": "a"}, Count: 2},
		{Type: AssertOutputCount, Count: 3},
	}, nil)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertOutputContains, Record: map[string]any{"k": "c"}},
		{Type: AssertOutputOrder, Records: []map[string]any{{"n": 3}, {"n": 1}}},
		{Type: AssertOutputCount, Where: map[string]any{"k": "a"}, Count: 1},
		{Type: AssertStored, Count: 0},
	}, nil)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "Assertion failed: output_contains")
	assert.Contains(t, errs[0], `[2] plain text`)
	assert.Contains(t, errs[1], "records[1]")
	assert.Contains(t, errs[2], "2 records")
	assert.Contains(t, errs[3], "stored requires a store")
}

func TestAssertionErrorTruncatesOutput(t *testing.T) {
	var lines []string
	for i := 0; i < maxShownOutput+5; i++ {
		lines = append(lines, "{}")
	}
	err := &AssertionError{Type: AssertOutputCount, Expected: "x", Actual: "y", Output: lines}
	assert.Contains(t, err.Error(), "... 5 more")
}

func TestSnapshot(t *testing.T) {
	result := NewResult("run-9")
	result.Trace = []TraceEvent{
		{Seq: 1, Type: EventBeginFile, File: "in/a.json"},
		{Seq: 2, Type: EventRecord, Record: mustParse(t, `{"b":1,"a":[true]}`)},
		{Seq: 3, Type: EventLine, Line: `say "hi"`},
	}
	result.ErrorCode = "STAGE_FAILED"

	out, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t, `{"run_id":"run-9","scenario":"snap"}
{"file":"in/a.json","seq":1,"type":"begin_file"}
{"record":{"a":[true],"b":1},"seq":2,"type":"record"}
{"line":"say \"hi\"","seq":3,"type":"line"}
{"error":"STAGE_FAILED"}
`, string(out))
}
