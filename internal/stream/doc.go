// Package stream defines the push-based stage protocol and its combinators.
//
// A Stream consumes Entries through Write and flushes through Close, pushing
// results to a Sink supplied by the caller on every call:
//
//	Write(entry, sink) (continue bool, err error)
//	Close(sink) error
//
// FLOW HINT:
//
// The bool returned by Write and by a Sink is advisory. true means "more
// input is welcome"; false means "the caller may stop early". A stage may
// use false to stop feeding its own upstream, but no stage relies on it for
// correctness and none is required to honor it: fan-out stages keep feeding
// every sub-stream regardless of what one of them returns, and the driver
// always delivers the full input and always closes. Output is correct and in
// order whether the hint is honored or not.
//
// CLOSE:
//
// The driver calls Close exactly once per stage, after the last Write. A
// stage flushes everything it buffered during Close. Writes after Close
// fail with ErrWriteAfterClose and a second Close fails with ErrCloseTwice.
//
// ERRORS:
//
// Errors are fatal to the run. Backpressure and "stop reading" are never
// errors; they travel as the flow hint or as bridge closure.
package stream
