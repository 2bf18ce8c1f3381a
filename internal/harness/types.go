package harness

import (
	"github.com/roach88/recstream/internal/record"
)

// Trace event types.
const (
	EventBeginFile = "begin_file"
	EventRecord    = "record"
	EventLine      = "line"
)

// TraceEvent is one entry that reached the end of the pipeline.
type TraceEvent struct {
	Seq  int64
	Type string
	// File is set for begin_file, relative to the input directory.
	File   string
	Line   string
	Record record.Record
}

// native renders the event for canonical serialization.
func (e TraceEvent) native() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
	}
	switch e.Type {
	case EventBeginFile:
		m["file"] = e.File
	case EventRecord:
		m["record"] = e.Record
	case EventLine:
		m["line"] = e.Line
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool

	RunID string

	// Trace holds every entry the pipeline emitted, in order.
	Trace []TraceEvent

	// Output holds the lines the run wrote.
	Output []string

	// ErrorCode classifies the run failure, if the run failed.
	ErrorCode string
	Err       error

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Records returns the output lines that parse as records.
func (r *Result) Records() []record.Record {
	var out []record.Record
	for _, line := range r.Output {
		if rec, err := record.Parse(line); err == nil {
			out = append(out, rec)
		}
	}
	return out
}
