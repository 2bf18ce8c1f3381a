package record

import (
	"errors"
	"fmt"
)

var (
	// ErrArrayDelete is returned when Delete targets an array position.
	ErrArrayDelete = errors.New("record: cannot delete an array element")

	// ErrEmptyPath is returned when Delete is given the empty path.
	ErrEmptyPath = errors.New("record: cannot delete the record root")
)

// TypeError reports a value whose shape does not match what an operation
// needs at a path, e.g. indexing into a string or summing a hash.
type TypeError struct {
	Path string
	Want string
	Got  Kind
}

func (e *TypeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("record: expected %s, got %s", e.Want, e.Got)
	}
	return fmt.Sprintf("record: expected %s at %q, got %s", e.Want, e.Path, e.Got)
}

// PathError reports malformed path syntax.
type PathError struct {
	Path    string
	Segment string
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("record: bad path %q at segment %q: %s", e.Path, e.Segment, e.Message)
}

// IsTypeError reports whether err wraps a *TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}
