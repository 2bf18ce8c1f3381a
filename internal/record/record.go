package record

import (
	"fmt"
	"slices"
	"sync/atomic"
	"unicode/utf16"
)

// Kind identifies the node type of a Record.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindHash:
		return "hash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// node is one vertex of a record tree. A nil *node is null.
//
// shared saturates: once a node is reachable from more than one owner it
// stays shared and every write through it clones first.
type node struct {
	kind   Kind
	shared atomic.Bool
	b      bool
	i      int64
	f      float64
	s      string
	arr    []*node
	hash   map[string]*node
}

func share(n *node) {
	if n != nil && (n.kind == KindArray || n.kind == KindHash) && !n.shared.Load() {
		n.shared.Store(true)
	}
}

// shallowClone copies a container node. Children are now referenced by two
// parents, so each is marked shared.
func shallowClone(n *node) *node {
	c := &node{kind: n.kind}
	switch n.kind {
	case KindArray:
		c.arr = make([]*node, len(n.arr))
		for i, child := range n.arr {
			share(child)
			c.arr[i] = child
		}
	case KindHash:
		c.hash = make(map[string]*node, len(n.hash))
		for k, child := range n.hash {
			share(child)
			c.hash[k] = child
		}
	}
	return c
}

// Record is a handle on an immutable-by-default value tree.
// The zero Record is null.
//
// Copying a Record copies the handle, not the tree: after r2 := r, a Set or
// Delete through r2 is visible through r. Take a second, independent handle
// with Clone.
type Record struct {
	root *node
}

// Pair is a key/value pair for Hash construction.
type Pair struct {
	Key   string
	Value Record
}

// P is shorthand for Pair.
//
//	record.Hash(record.P("host", record.String("a")), record.P("n", record.Int(1)))
func P(key string, value Record) Pair {
	return Pair{Key: key, Value: value}
}

// Null returns the null record.
func Null() Record { return Record{} }

// Bool returns a boolean record.
func Bool(b bool) Record { return Record{root: &node{kind: KindBool, b: b}} }

// Int returns an integer record.
func Int(i int64) Record { return Record{root: &node{kind: KindInt, i: i}} }

// Float returns a float record.
func Float(f float64) Record { return Record{root: &node{kind: KindFloat, f: f}} }

// String returns a string record.
func String(s string) Record { return Record{root: &node{kind: KindString, s: s}} }

// Array returns an array record holding items in order.
func Array(items ...Record) Record {
	n := &node{kind: KindArray, arr: make([]*node, len(items))}
	for i, it := range items {
		share(it.root)
		n.arr[i] = it.root
	}
	return Record{root: n}
}

// Hash returns a hash record. Later pairs win on duplicate keys.
func Hash(pairs ...Pair) Record {
	n := &node{kind: KindHash, hash: make(map[string]*node, len(pairs))}
	for _, p := range pairs {
		share(p.Value.root)
		n.hash[p.Key] = p.Value.root
	}
	return Record{root: n}
}

// HashFromMap returns a hash record with the entries of m.
func HashFromMap(m map[string]Record) Record {
	n := &node{kind: KindHash, hash: make(map[string]*node, len(m))}
	for k, v := range m {
		share(v.root)
		n.hash[k] = v.root
	}
	return Record{root: n}
}

// Kind returns the node type of the record root.
func (r Record) Kind() Kind {
	if r.root == nil {
		return KindNull
	}
	return r.root.kind
}

// IsNull reports whether r is null.
func (r Record) IsNull() bool { return r.root == nil }

// Clone returns a handle sharing r's tree. Writes through either handle
// never show through the other.
func (r Record) Clone() Record {
	share(r.root)
	return r
}

// Len returns the number of elements of an array or entries of a hash, or 0.
func (r Record) Len() int {
	switch r.Kind() {
	case KindArray:
		return len(r.root.arr)
	case KindHash:
		return len(r.root.hash)
	default:
		return 0
	}
}

// Keys returns the hash keys in canonical order, or nil for non-hashes.
func (r Record) Keys() []string {
	if r.Kind() != KindHash {
		return nil
	}
	return sortedKeys(r.root.hash)
}

// Field returns the value under key, or null when r is not a hash or the
// key is absent.
func (r Record) Field(key string) Record {
	if r.Kind() != KindHash {
		return Null()
	}
	child := r.root.hash[key]
	share(child)
	return Record{root: child}
}

// Has reports whether r is a hash containing key.
func (r Record) Has(key string) bool {
	if r.Kind() != KindHash {
		return false
	}
	_, ok := r.root.hash[key]
	return ok
}

// Index returns the i-th array element, or null when out of range.
func (r Record) Index(i int) Record {
	if r.Kind() != KindArray || i < 0 || i >= len(r.root.arr) {
		return Null()
	}
	child := r.root.arr[i]
	share(child)
	return Record{root: child}
}

// Items returns the elements of an array record, or nil.
func (r Record) Items() []Record {
	if r.Kind() != KindArray {
		return nil
	}
	out := make([]Record, len(r.root.arr))
	for i, child := range r.root.arr {
		share(child)
		out[i] = Record{root: child}
	}
	return out
}

// Each calls fn for every hash entry in canonical key order.
func (r Record) Each(fn func(key string, v Record)) {
	if r.Kind() != KindHash {
		return
	}
	for _, k := range sortedKeys(r.root.hash) {
		child := r.root.hash[k]
		share(child)
		fn(k, Record{root: child})
	}
}

// String renders r as canonical JSON. Non-finite floats render as null.
func (r Record) String() string {
	return Serialize(r)
}

func sortedKeys(m map[string]*node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// compareKeys orders hash keys by UTF-16 code units (RFC 8785), which
// differs from Go's byte order only above the BMP.
func compareKeys(a, b string) int {
	if isASCII(a) && isASCII(b) {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
