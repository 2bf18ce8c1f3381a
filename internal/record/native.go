package record

import (
	"fmt"
	"math"
)

// ToNative converts r into plain Go values: nil, bool, int, float64,
// string, []any and map[string]any. Used at the script boundary.
func ToNative(r Record) any {
	return nativeOf(r.root)
}

func nativeOf(n *node) any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindBool:
		return n.b
	case KindInt:
		if n.i >= math.MinInt && n.i <= math.MaxInt {
			return int(n.i)
		}
		return n.i
	case KindFloat:
		return n.f
	case KindString:
		return n.s
	case KindArray:
		out := make([]any, len(n.arr))
		for i, c := range n.arr {
			out[i] = nativeOf(c)
		}
		return out
	default:
		out := make(map[string]any, len(n.hash))
		for k, c := range n.hash {
			out[k] = nativeOf(c)
		}
		return out
	}
}

// FromNative converts plain Go values back into a Record.
func FromNative(v any) (Record, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Record:
		return t.Clone(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return uintRecord(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return uintRecord(t)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []string:
		items := make([]Record, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Array(items...), nil
	case []any:
		items := make([]Record, len(t))
		for i, e := range t {
			r, err := FromNative(e)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = r
		}
		return Array(items...), nil
	case map[string]any:
		m := make(map[string]Record, len(t))
		for k, e := range t {
			r, err := FromNative(e)
			if err != nil {
				return Null(), fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = r
		}
		return HashFromMap(m), nil
	default:
		return Null(), fmt.Errorf("record: unsupported native type %T", v)
	}
}

func uintRecord(u uint64) (Record, error) {
	if u > math.MaxInt64 {
		return Float(float64(u)), nil
	}
	return Int(int64(u)), nil
}
