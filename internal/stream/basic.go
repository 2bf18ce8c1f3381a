package stream

import "github.com/roach88/recstream/internal/record"

type none struct{}

// Identity passes every entry through unchanged.
func Identity() Stream {
	return Closures(none{}, func(_ *none, e Entry, sink Sink) (bool, error) {
		return sink(e)
	}, nil)
}

// Parse turns Lines into Records. BeginFile passes through; a Record input
// is an error.
func Parse() Stream {
	return Closures(none{}, func(_ *none, e Entry, sink Sink) (bool, error) {
		switch e.Kind() {
		case KindLine:
			r, err := e.ToRecord()
			if err != nil {
				return false, &EntryError{Stage: "parse", Got: KindLine, Err: err}
			}
			return sink(FromRecord(r))
		case KindRecord:
			return false, &EntryError{Stage: "parse", Got: KindRecord}
		default:
			return sink(e)
		}
	}, nil)
}

// Deparse turns Records into Lines. BeginFile passes through; a Line input
// is an error.
func Deparse() Stream {
	return Closures(none{}, func(_ *none, e Entry, sink Sink) (bool, error) {
		switch e.Kind() {
		case KindRecord:
			line, err := e.ToLine()
			if err != nil {
				return false, err
			}
			return sink(FromLine(line))
		case KindLine:
			return false, &EntryError{Stage: "deparse", Got: KindLine}
		default:
			return sink(e)
		}
	}, nil)
}

// Transform applies fn to every record payload. Lines are parsed first and
// BeginFile passes through.
func Transform(fn func(record.Record) (record.Record, error)) Stream {
	return Closures(none{}, func(_ *none, e Entry, sink Sink) (bool, error) {
		if e.Kind() == KindBeginFile {
			return sink(e)
		}
		r, err := e.ToRecord()
		if err != nil {
			return false, err
		}
		out, err := fn(r)
		if err != nil {
			return false, err
		}
		return sink(FromRecord(out))
	}, nil)
}

// Filter keeps the records for which keep reports true. Lines are parsed
// first and BeginFile passes through.
func Filter(keep func(record.Record) (bool, error)) Stream {
	return Closures(none{}, func(_ *none, e Entry, sink Sink) (bool, error) {
		if e.Kind() == KindBeginFile {
			return sink(e)
		}
		r, err := e.ToRecord()
		if err != nil {
			return false, err
		}
		ok, err := keep(r)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		return sink(FromRecord(r))
	}, nil)
}

// Records is a stage that receives only record payloads, with Lines parsed
// on demand and BeginFile passed through. It is the usual shape of a
// buffering operator.
func Records[S any](
	state S,
	onRecord func(state *S, r record.Record, sink Sink) (bool, error),
	onClose func(state *S, sink Sink) error,
) Stream {
	return Closures(state, func(s *S, e Entry, sink Sink) (bool, error) {
		if e.Kind() == KindBeginFile {
			return sink(e)
		}
		r, err := e.ToRecord()
		if err != nil {
			return false, err
		}
		return onRecord(s, r, sink)
	}, onClose)
}
