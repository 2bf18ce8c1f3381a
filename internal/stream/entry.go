package stream

import (
	"fmt"

	"github.com/roach88/recstream/internal/record"
)

// Kind identifies the variant of an Entry.
type Kind int

const (
	// KindBeginFile marks the start of a new input source.
	KindBeginFile Kind = iota + 1
	// KindRecord carries a structured record.
	KindRecord
	// KindLine carries one unparsed line of text, without its newline.
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindBeginFile:
		return "begin-file"
	case KindRecord:
		return "record"
	case KindLine:
		return "line"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one item flowing through a pipeline.
type Entry struct {
	kind Kind
	file string
	rec  record.Record
	line string
}

// BeginFile returns a file-boundary marker for the named source.
func BeginFile(name string) Entry { return Entry{kind: KindBeginFile, file: name} }

// FromRecord wraps a record.
func FromRecord(r record.Record) Entry { return Entry{kind: KindRecord, rec: r} }

// FromLine wraps a line of text.
func FromLine(s string) Entry { return Entry{kind: KindLine, line: s} }

// Kind returns the entry variant.
func (e Entry) Kind() Kind { return e.kind }

// File returns the source name of a BeginFile entry.
func (e Entry) File() string { return e.file }

// ToRecord returns the record payload, parsing a Line on demand.
func (e Entry) ToRecord() (record.Record, error) {
	switch e.kind {
	case KindRecord:
		return e.rec, nil
	case KindLine:
		return record.Parse(e.line)
	default:
		return record.Null(), &EntryError{Stage: "to-record", Got: e.kind}
	}
}

// ToLine returns the line payload, serializing a Record on demand.
func (e Entry) ToLine() (string, error) {
	switch e.kind {
	case KindLine:
		return e.line, nil
	case KindRecord:
		return record.Serialize(e.rec), nil
	default:
		return "", &EntryError{Stage: "to-line", Got: e.kind}
	}
}

func (e Entry) String() string {
	switch e.kind {
	case KindBeginFile:
		return "BeginFile(" + e.file + ")"
	case KindRecord:
		return "Record(" + record.Serialize(e.rec) + ")"
	case KindLine:
		return fmt.Sprintf("Line(%q)", e.line)
	default:
		return "Entry(?)"
	}
}
