package record

import (
	"fmt"
	"strconv"
	"strings"
)

// CoerceString converts any record to text: null is "", scalars use their
// canonical text, strings are returned as-is and containers serialize.
func CoerceString(r Record) string {
	n := r.root
	if n == nil {
		return ""
	}
	switch n.kind {
	case KindBool:
		return strconv.FormatBool(n.b)
	case KindInt:
		return strconv.FormatInt(n.i, 10)
	case KindFloat:
		return Serialize(r)
	case KindString:
		return n.s
	default:
		return Serialize(r)
	}
}

// CoerceBool converts any record to a truth value. Null, false, zero, the
// empty string, "0", and empty containers are false.
func CoerceBool(r Record) bool {
	n := r.root
	if n == nil {
		return false
	}
	switch n.kind {
	case KindBool:
		return n.b
	case KindInt:
		return n.i != 0
	case KindFloat:
		return n.f != 0
	case KindString:
		return n.s != "" && n.s != "0"
	case KindArray:
		return len(n.arr) > 0
	default:
		return len(n.hash) > 0
	}
}

// CoerceNumber converts r to an Int or Float record. Null is 0, booleans
// are 0 or 1, numeric strings parse (ints preferred). Non-numeric strings and
// containers are a *TypeError.
func CoerceNumber(r Record) (Record, error) {
	n := r.root
	if n == nil {
		return Int(0), nil
	}
	switch n.kind {
	case KindBool:
		if n.b {
			return Int(1), nil
		}
		return Int(0), nil
	case KindInt, KindFloat:
		return r, nil
	case KindString:
		s := strings.TrimSpace(n.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), nil
		}
		return Null(), fmt.Errorf("%w: %q is not numeric", &TypeError{Want: "number", Got: KindString}, n.s)
	default:
		return Null(), &TypeError{Want: "number", Got: n.kind}
	}
}

// CoerceFloat is CoerceNumber widened to float64.
func CoerceFloat(r Record) (float64, error) {
	num, err := CoerceNumber(r)
	if err != nil {
		return 0, err
	}
	if num.root.kind == KindInt {
		return float64(num.root.i), nil
	}
	return num.root.f, nil
}

// ExpectString returns the string payload of r or a *TypeError.
func ExpectString(r Record) (string, error) {
	if r.Kind() != KindString {
		return "", &TypeError{Want: "string", Got: r.Kind()}
	}
	return r.root.s, nil
}

// ExpectInt returns the int payload of r or a *TypeError.
func ExpectInt(r Record) (int64, error) {
	if r.Kind() != KindInt {
		return 0, &TypeError{Want: "int", Got: r.Kind()}
	}
	return r.root.i, nil
}

// ExpectArray returns the elements of r or a *TypeError.
func ExpectArray(r Record) ([]Record, error) {
	if r.Kind() != KindArray {
		return nil, &TypeError{Want: "array", Got: r.Kind()}
	}
	return r.Items(), nil
}

// ExpectHash returns the entries of r or a *TypeError.
func ExpectHash(r Record) (map[string]Record, error) {
	if r.Kind() != KindHash {
		return nil, &TypeError{Want: "hash", Got: r.Kind()}
	}
	out := make(map[string]Record, len(r.root.hash))
	for k, c := range r.root.hash {
		share(c)
		out[k] = Record{root: c}
	}
	return out, nil
}

// BoolValue returns the payload of a bool record (false otherwise).
func (r Record) BoolValue() bool { return r.Kind() == KindBool && r.root.b }

// IntValue returns the payload of an int record (0 otherwise).
func (r Record) IntValue() int64 {
	if r.Kind() != KindInt {
		return 0
	}
	return r.root.i
}

// FloatValue returns the payload of a float record (0 otherwise).
func (r Record) FloatValue() float64 {
	if r.Kind() != KindFloat {
		return 0
	}
	return r.root.f
}

// StringValue returns the payload of a string record ("" otherwise).
func (r Record) StringValue() string {
	if r.Kind() != KindString {
		return ""
	}
	return r.root.s
}
