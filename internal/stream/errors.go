package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrWriteAfterClose is returned by Write on a closed stage.
	ErrWriteAfterClose = errors.New("stream: write after close")

	// ErrCloseTwice is returned by a second Close.
	ErrCloseTwice = errors.New("stream: close called twice")
)

// EntryError reports an entry a stage cannot accept, such as a Record
// arriving at a line parser.
type EntryError struct {
	Stage string
	Got   Kind
	Err   error
}

func (e *EntryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream: %s: cannot handle %s entry: %v", e.Stage, e.Got, e.Err)
	}
	return fmt.Sprintf("stream: %s: unexpected %s entry", e.Stage, e.Got)
}

func (e *EntryError) Unwrap() error { return e.Err }
