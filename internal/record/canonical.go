package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Serialize renders r as canonical JSON: hash keys sorted, no insignificant
// whitespace, no HTML escaping, floats in shortest round-trippable form and
// always carrying a fraction or exponent so they read back as floats.
// Non-finite floats have no JSON form and render as null.
func Serialize(r Record) string {
	var buf bytes.Buffer
	w := newCanonicalWriter(&buf, false)
	w.write(r.root)
	return buf.String()
}

// Key returns the canonical identity text of r, suitable as a Go map key.
// Two records have the same Key iff they are Equal. It panics on NaN.
func (r Record) Key() string {
	var buf bytes.Buffer
	w := newCanonicalWriter(&buf, true)
	w.write(r.root)
	return buf.String()
}

// MarshalJSON implements json.Marshaler with the canonical form.
func (r Record) MarshalJSON() ([]byte, error) {
	return []byte(Serialize(r)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := ParseBytes(data)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

type canonicalWriter struct {
	buf    *bytes.Buffer
	enc    *json.Encoder
	strict bool
}

func newCanonicalWriter(buf *bytes.Buffer, strict bool) *canonicalWriter {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &canonicalWriter{buf: buf, enc: enc, strict: strict}
}

func (w *canonicalWriter) write(n *node) {
	if n == nil {
		w.buf.WriteString("null")
		return
	}
	switch n.kind {
	case KindBool:
		w.buf.WriteString(strconv.FormatBool(n.b))
	case KindInt:
		w.buf.WriteString(strconv.FormatInt(n.i, 10))
	case KindFloat:
		w.buf.WriteString(w.floatText(n.f))
	case KindString:
		w.str(n.s)
	case KindArray:
		w.buf.WriteByte('[')
		for i, c := range n.arr {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.write(c)
		}
		w.buf.WriteByte(']')
	case KindHash:
		w.buf.WriteByte('{')
		for i, k := range sortedKeys(n.hash) {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.str(k)
			w.buf.WriteByte(':')
			w.write(n.hash[k])
		}
		w.buf.WriteByte('}')
	}
}

// str writes a JSON string. json.Encoder appends a newline, which is trimmed.
func (w *canonicalWriter) str(s string) {
	_ = w.enc.Encode(s)
	w.buf.Truncate(w.buf.Len() - 1)
}

func (w *canonicalWriter) floatText(f float64) string {
	if math.IsNaN(f) {
		if w.strict {
			panic("record: NaN cannot be compared or hashed")
		}
		return "null"
	}
	if math.IsInf(f, 0) {
		if !w.strict {
			return "null"
		}
		if f > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	return FormatFloat(f)
}

// FormatFloat returns the canonical decimal text of a finite float: the
// shortest representation that parses back to the same value, in exponent
// form outside [1e-6, 1e21), with ".0" appended to integral values.
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// 1e-07 -> 1e-7, matching encoding/json
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s
	}
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Parse reads one JSON value. Numbers without a fraction or exponent become
// ints (falling back to float when out of int64 range); duplicate hash keys
// keep the last value.
func Parse(text string) (Record, error) {
	return ParseBytes([]byte(text))
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := decodeNode(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Null(), fmt.Errorf("record: parse: empty input")
		}
		return Null(), fmt.Errorf("record: parse: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Null(), fmt.Errorf("record: parse: trailing data after value")
	}
	return Record{root: n}, nil
}

func decodeNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return nil, nil
	case bool:
		return &node{kind: KindBool, b: t}, nil
	case string:
		return &node{kind: KindString, s: t}, nil
	case json.Number:
		return numberNode(t)
	case json.Delim:
		switch t {
		case '{':
			n := &node{kind: KindHash, hash: map[string]*node{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("hash key is %T", kt)
				}
				child, err := decodeNode(dec)
				if err != nil {
					return nil, fmt.Errorf("hash key %q: %w", key, err)
				}
				n.hash[key] = child
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &node{kind: KindArray}
			for dec.More() {
				child, err := decodeNode(dec)
				if err != nil {
					return nil, fmt.Errorf("array index %d: %w", len(n.arr), err)
				}
				n.arr = append(n.arr, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func numberNode(num json.Number) (*node, error) {
	s := string(num)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &node{kind: KindInt, i: i}, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("number %s: %w", s, err)
	}
	return &node{kind: KindFloat, f: f}, nil
}
