// Package bridge runs one side of a pipeline stage on a worker goroutine.
//
// A Bridge pairs a synchronous front end (the pipeline driver) with a
// worker goroutine (typically pumping a subprocess) through two bounded
// FIFO queues guarded by a single Monitor:
//
//	front --(forward queue)--> worker
//	front <--(backward queue)-- worker
//
// DEADLOCK AVOIDANCE:
//
// Both queues are bounded, so a front end blocked pushing into a full
// forward queue while the worker is blocked pushing into a full backward
// queue would hang both goroutines. Front.Write therefore waits for "output
// available OR input space OR worker stopped reading" in one wait, drains
// any output to the caller first, and only then enqueues.
//
// SHUTDOWN:
//
// Each side finishing normally pushes an end sentinel. Either side may stop
// reading; the peer's writes then fail fast (return false) instead of
// blocking. There is no other cancellation: a goroutine waiting on the
// monitor is released only when its condition becomes true or a closure
// flag flips.
package bridge
