package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/recstream/internal/record"
)

// DefaultBatch is the number of rows committed per transaction.
const DefaultBatch = 500

// BeginRun registers runID and notes that it writes to table.
// Calling it again for the same run only adds the table to the list.
func (s *Store) BeginRun(ctx context.Context, runID, pipeline, table string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, tables)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tables =
			CASE
				WHEN instr(',' || runs.tables || ',', ',' || excluded.tables || ',') > 0 THEN runs.tables
				WHEN runs.tables = '' THEN excluded.tables
				ELSE runs.tables || ',' || excluded.tables
			END
	`, runID, pipeline, table)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// Writer appends the records of one run to one table. Rows are numbered
// from 1 in write order and committed in batches.
//
// Thread-safety: a Writer must be used from one goroutine.
type Writer struct {
	db      *sql.DB
	ctx     context.Context
	table   string
	runID   string
	batch   int
	seq     int64
	pending int
	tx      *sql.Tx
	stmt    *sql.Stmt
}

// NewWriter prepares table and returns a writer for runID.
func (s *Store) NewWriter(ctx context.Context, table, runID string, batch int) (*Writer, error) {
	if err := s.EnsureTable(ctx, table); err != nil {
		return nil, err
	}
	if batch < 1 {
		batch = DefaultBatch
	}
	return &Writer{db: s.db, ctx: ctx, table: table, runID: runID, batch: batch}, nil
}

// Seq returns the number of rows written so far.
func (w *Writer) Seq() int64 { return w.seq }

// Write stores r as the next row. Duplicate (run_id, seq) rows are ignored.
func (w *Writer) Write(file string, r record.Record) error {
	if w.tx == nil {
		tx, err := w.db.BeginTx(w.ctx, nil)
		if err != nil {
			return fmt.Errorf("write record: begin tx: %w", err)
		}
		stmt, err := tx.PrepareContext(w.ctx, fmt.Sprintf(`
			INSERT INTO %s (run_id, seq, file, body)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`, w.table))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write record: prepare: %w", err)
		}
		w.tx, w.stmt = tx, stmt
	}

	w.seq++
	if _, err := w.stmt.ExecContext(w.ctx, w.runID, w.seq, file, record.Serialize(r)); err != nil {
		return fmt.Errorf("write record %d: %w", w.seq, err)
	}
	w.pending++
	if w.pending >= w.batch {
		return w.Flush()
	}
	return nil
}

// Flush commits pending rows.
func (w *Writer) Flush() error {
	if w.tx == nil {
		return nil
	}
	w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt, w.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

// Abort drops pending rows.
func (w *Writer) Abort() error {
	if w.tx == nil {
		return nil
	}
	w.stmt.Close()
	err := w.tx.Rollback()
	w.tx, w.stmt, w.pending = nil, nil, 0
	return err
}
