package engine

import (
	"errors"
	"fmt"
)

// RunError is a failure of one run, tagged with the phase it happened in.
//
// The wrapped error is kept, so errors.As still finds an ops.ConfigError
// or a record.TypeError underneath.
type RunError struct {
	// Code identifies the phase that failed.
	Code RunErrorCode

	// RunID identifies the failed run.
	RunID string

	// Source is the input being read when the run failed, if any.
	Source string

	Err error
}

// RunErrorCode categorizes run failures.
type RunErrorCode string

const (
	// ErrCodeBuild indicates a stage could not be built.
	ErrCodeBuild RunErrorCode = "BUILD_FAILED"

	// ErrCodeInput indicates an input could not be opened or read.
	ErrCodeInput RunErrorCode = "INPUT_FAILED"

	// ErrCodeStage indicates a stage failed while processing or closing.
	ErrCodeStage RunErrorCode = "STAGE_FAILED"

	// ErrCodeOutput indicates the output could not be written.
	ErrCodeOutput RunErrorCode = "OUTPUT_FAILED"

	// ErrCodeCanceled indicates the run's context was cancelled.
	ErrCodeCanceled RunErrorCode = "CANCELED"
)

func (e *RunError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func runError(code RunErrorCode, runID, source string, err error) *RunError {
	return &RunError{Code: code, RunID: runID, Source: source, Err: err}
}

// CodeOf returns the code of the RunError in err's chain, or "" when there
// is none.
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsInputError returns true if err is an input failure.
func IsInputError(err error) bool {
	return CodeOf(err) == ErrCodeInput
}

// IsCanceled returns true if the run stopped because its context ended.
func IsCanceled(err error) bool {
	return CodeOf(err) == ErrCodeCanceled
}
