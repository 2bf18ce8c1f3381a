// Package engine drives a pipeline run.
//
// A run reads its inputs one line at a time and feeds them into the head of
// the composed stage chain: a BeginFile entry before each named file, then a
// Line per input line. Whatever reaches the end of the chain is written to
// the output, Lines verbatim and Records as canonical JSON, one per line.
//
// The head stream is closed exactly once, whether the run succeeds, fails
// or is cancelled, so background stages and subprocesses are always
// released.
//
// If the chain reports that it will take no more input (the flow hint of
// its Write), the engine stops reading and closes. Output already queued
// downstream still drains.
//
// Replay feeds the records a todb stage stored for an earlier run back
// through a chain, in their original order and with their original file
// boundaries.
//
// Every run builds fresh stages, so one Engine may run many pipelines in
// turn.
package engine
