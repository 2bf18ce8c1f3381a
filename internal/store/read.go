package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recstream/internal/record"
)

// Row is one stored record.
type Row struct {
	RunID  string
	Seq    int64
	File   string
	Record record.Record
}

// Run is one entry of the runs table.
type Run struct {
	ID       string
	Pipeline string
	Tables   []string
}

// ReadRun returns the rows runID wrote to table, ordered by seq.
//
// Returns an empty slice (not nil) if the run wrote nothing.
func (s *Store) ReadRun(ctx context.Context, table, runID string) ([]Row, error) {
	rows := []Row{}
	err := s.EachRow(ctx, table, runID, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// EachRow calls fn for every row runID wrote to table, in seq order.
// An error from fn stops the iteration and is returned.
func (s *Store) EachRow(ctx context.Context, table, runID string, fn func(Row) error) error {
	if !ValidTable(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT run_id, seq, file, body
		FROM %s
		WHERE run_id = ?
		ORDER BY seq ASC
	`, table), runID)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row  Row
			body string
		)
		if err := rows.Scan(&row.RunID, &row.Seq, &row.File, &body); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		row.Record, err = record.Parse(body)
		if err != nil {
			return fmt.Errorf("row %d: %w", row.Seq, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

// Runs lists every recorded run, ordered by id. uuid v7 ids sort by
// creation time.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pipeline, tables FROM runs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run    Run
			tables string
		)
		if err := rows.Scan(&run.ID, &run.Pipeline, &tables); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		if tables != "" {
			run.Tables = strings.Split(tables, ",")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
