package bucket

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/recstream/internal/record"
)

// KeyType selects how a sort key compares.
type KeyType int

const (
	// Lexical compares the NFC-normalized string form of the value.
	Lexical KeyType = iota
	// Numeric compares the value as a number; non-numeric values are an error.
	Numeric
)

func (t KeyType) String() string {
	if t == Numeric {
		return "numeric"
	}
	return "lexical"
}

// SortKey is one level of a multi-key sort.
type SortKey struct {
	Field   string
	Path    record.Path
	Type    KeyType
	Reverse bool
}

// ParseSortKey parses "field[=[-]type]". type is lexical (the default, also
// "lex" or "l") or numeric ("num", "n"); a leading "-" reverses the order.
func ParseSortKey(spec string) (SortKey, error) {
	field, typ, _ := strings.Cut(spec, "=")
	if field == "" {
		return SortKey{}, fmt.Errorf("sort key %q: empty field", spec)
	}
	p, err := record.ParsePath(field)
	if err != nil {
		return SortKey{}, fmt.Errorf("sort key %q: %w", spec, err)
	}
	k := SortKey{Field: field, Path: p}
	if strings.HasPrefix(typ, "-") {
		k.Reverse = true
		typ = typ[1:]
	}
	switch typ {
	case "", "lexical", "lex", "l":
		k.Type = Lexical
	case "numeric", "num", "n":
		k.Type = Numeric
	default:
		return SortKey{}, fmt.Errorf("sort key %q: unknown type %q", spec, typ)
	}
	return k, nil
}

// ParseSortKeys parses every comma-separated key in every spec.
func ParseSortKeys(specs []string) ([]SortKey, error) {
	var keys []SortKey
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			k, err := ParseSortKey(part)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (k SortKey) String() string {
	s := k.Field + "="
	if k.Reverse {
		s += "-"
	}
	return s + k.Type.String()
}

// Value is an extracted key, comparable with SortKey.Compare. Ints keep
// their int64 value so keys beyond float64 precision still order exactly.
type Value struct {
	text  string
	num   float64
	i     int64
	isInt bool
}

// Extract reads this key from r. A numeric key over a non-numeric value is
// a *record.TypeError.
func (k SortKey) Extract(r record.Record) (Value, error) {
	v := r.Get(k.Path)
	if k.Type == Lexical {
		return Value{text: norm.NFC.String(record.CoerceString(v))}, nil
	}
	num, err := record.CoerceNumber(v)
	if err != nil {
		return Value{}, fmt.Errorf("sort key %s: %w", k.Field, err)
	}
	if num.Kind() == record.KindInt {
		return Value{num: float64(num.IntValue()), i: num.IntValue(), isInt: true}, nil
	}
	f := num.FloatValue()
	if math.IsNaN(f) {
		return Value{}, fmt.Errorf("sort key %s: NaN cannot be sorted", k.Field)
	}
	return Value{num: f}, nil
}

func compareNumeric(a, b Value) int {
	switch {
	case a.isInt && b.isInt:
		return cmp.Compare(a.i, b.i)
	case a.isInt:
		return compareIntFloat(a.i, b.num)
	case b.isInt:
		return -compareIntFloat(b.i, a.num)
	}
	return cmp.Compare(a.num, b.num)
}

// compareIntFloat orders i against f exactly, without rounding i.
func compareIntFloat(i int64, f float64) int {
	const two63 = 1 << 63
	switch {
	case f >= two63:
		return -1
	case f < -two63:
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	// i equals the integral part of f
	return cmp.Compare(0, f-t)
}

// Compare orders two values of this key.
func (k SortKey) Compare(a, b Value) int {
	var c int
	if k.Type == Lexical {
		c = strings.Compare(a.text, b.text)
	} else {
		c = compareNumeric(a, b)
	}
	if k.Reverse {
		return -c
	}
	return c
}
