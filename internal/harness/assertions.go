package harness

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Output is the run's output, for context.
	Output []string
}

// maxShownOutput bounds the output lines repeated in an AssertionError.
const maxShownOutput = 20

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nOutput:\n")
	for i, line := range e.Output {
		if i == maxShownOutput {
			fmt.Fprintf(&buf, "  ... %d more\n", len(e.Output)-i)
			break
		}
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}
	return buf.String()
}

// AssertionContext provides what assertions need beyond the Result.
type AssertionContext struct {
	Ctx       context.Context
	StorePath string
	// Table is used by stored assertions that name none.
	Table string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertOutputOrder:
			err = assertOutputOrder(result, assertion)
		case AssertOutputCount:
			err = assertOutputCount(result, assertion)
		case AssertStored:
			if actx == nil || actx.StorePath == "" {
				err = fmt.Errorf("assertion[%d]: stored requires a store", i)
			} else {
				err = assertStored(actx, result.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertOutputContains checks that some output record matches.
func assertOutputContains(result *Result, assertion Assertion) error {
	want, err := expected(assertion.Record)
	if err != nil {
		return err
	}
	for _, r := range result.Records() {
		if Match(r, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("a record matching %s", record.Serialize(want)),
		Actual:   "not found in output",
		Output:   result.Output,
	}
}

// assertOutputOrder checks that records matching each expected record
// appear in order. Other records may come in between.
func assertOutputOrder(result *Result, assertion Assertion) error {
	records := result.Records()
	next := 0
	for i, raw := range assertion.Records {
		want, err := expected(raw)
		if err != nil {
			return err
		}
		found := false
		for next < len(records) {
			r := records[next]
			next++
			if Match(r, want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("records[%d] %s after records[%d]", i, record.Serialize(want), i-1),
				Actual:   "no matching record follows",
				Output:   result.Output,
			}
		}
	}
	return nil
}

// assertOutputCount checks how many output records match where.
func assertOutputCount(result *Result, assertion Assertion) error {
	want, err := expected(assertion.Where)
	if err != nil {
		return err
	}
	count := 0
	for _, r := range result.Records() {
		if Match(r, want) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOutputCount,
			Expected: fmt.Sprintf("%d records matching %s", assertion.Count, record.Serialize(want)),
			Actual:   fmt.Sprintf("%d records", count),
			Output:   result.Output,
		}
	}
	return nil
}

// assertStored checks how many rows the run stored in a table match where.
func assertStored(actx *AssertionContext, runID string, assertion Assertion) error {
	table := assertion.Table
	if table == "" {
		table = actx.Table
	}
	if !store.ValidTable(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	want, err := expected(assertion.Where)
	if err != nil {
		return err
	}

	count := 0
	var rows []string
	if _, err := os.Stat(actx.StorePath); err == nil {
		st, err := store.Open(actx.StorePath)
		if err != nil {
			return fmt.Errorf("stored: %w", err)
		}
		defer st.Close()

		err = st.EachRow(actx.Ctx, table, runID, func(row store.Row) error {
			rows = append(rows, record.Serialize(row.Record))
			if Match(row.Record, want) {
				count++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("stored: %w", err)
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("%d rows in %s matching %s", assertion.Count, table, record.Serialize(want)),
			Actual:   fmt.Sprintf("%d rows", count),
			Output:   rows,
		}
	}
	return nil
}

func expected(m map[string]any) (record.Record, error) {
	if m == nil {
		return record.Hash(), nil
	}
	r, err := record.FromNative(m)
	if err != nil {
		return record.Record{}, fmt.Errorf("bad expected record: %w", err)
	}
	return r, nil
}

// Match reports whether actual contains want: hashes match by subset,
// arrays element by element, numbers by value, so 2 matches 2.0, and other
// scalars by record.Compare.
func Match(actual, want record.Record) bool {
	switch want.Kind() {
	case record.KindHash:
		if actual.Kind() != record.KindHash {
			return false
		}
		for _, k := range want.Keys() {
			if !actual.Has(k) || !Match(actual.Field(k), want.Field(k)) {
				return false
			}
		}
		return true
	case record.KindArray:
		if actual.Kind() != record.KindArray || actual.Len() != want.Len() {
			return false
		}
		for i := 0; i < want.Len(); i++ {
			if !Match(actual.Index(i), want.Index(i)) {
				return false
			}
		}
		return true
	default:
		if isNaN(actual) || isNaN(want) {
			return false
		}
		if isNumber(actual) && isNumber(want) {
			if actual.Kind() == record.KindInt && want.Kind() == record.KindInt {
				return actual.IntValue() == want.IntValue()
			}
			a, _ := record.CoerceFloat(actual)
			w, _ := record.CoerceFloat(want)
			return a == w
		}
		return record.Compare(actual, want) == 0
	}
}

func isNumber(r record.Record) bool {
	return r.Kind() == record.KindInt || r.Kind() == record.KindFloat
}

func isNaN(r record.Record) bool {
	if r.Kind() != record.KindFloat {
		return false
	}
	f := r.FloatValue()
	return f != f
}
