package ops

import (
	"sync"

	"github.com/roach88/recstream/internal/stream"
)

var (
	builtinOnce sync.Once
	builtinReg  *Registry
)

// Builtin returns the registry of every operator shipped with recs.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		reg, err := NewRegistry(
			fromJSONInfo,
			toJSONInfo,
			grepInfo,
			xformInfo,
			sortInfo,
			topNInfo,
			collateInfo,
			multiplexInfo,
			joinInfo,
			pipeInfo,
			toDBInfo,
		)
		if err != nil {
			panic(err)
		}
		builtinReg = reg
	})
	return builtinReg
}

// filesOnce forwards each BeginFile downstream once and drops the copies
// inner emits. Grouping stages broadcast BeginFile to every bucket, which
// would otherwise repeat it per bucket.
func filesOnce(inner stream.Stream) stream.Stream {
	drop := func(sink stream.Sink) stream.Sink {
		return func(e stream.Entry) (bool, error) {
			if e.Kind() == stream.KindBeginFile {
				return true, nil
			}
			return sink(e)
		}
	}
	return stream.Closures(inner,
		func(s *stream.Stream, e stream.Entry, sink stream.Sink) (bool, error) {
			if e.Kind() == stream.KindBeginFile {
				if _, err := sink(e); err != nil {
					return false, err
				}
			}
			return (*s).Write(e, drop(sink))
		},
		func(s *stream.Stream, sink stream.Sink) error {
			return (*s).Close(drop(sink))
		})
}

// emit sends a record downstream.
func emit(sink stream.Sink, e stream.Entry) error {
	_, err := sink(e)
	return err
}
