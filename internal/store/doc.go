// Package store provides SQLite-backed storage for record streams.
//
// Each run writes its records into a table with:
//   - run_id: the run that produced the record (google/uuid v7)
//   - seq: position of the record in the run's output, from 1
//   - file: the input the record came from, as announced by BeginFile
//   - body: the record as canonical JSON
//
// Runs themselves are listed in the runs table with the pipeline label.
//
// # Ordering
//
// Reads are ordered by seq. Rows are written once: a duplicate
// (run_id, seq) pair is ignored, so replaying a run into the same table is
// harmless.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
package store
