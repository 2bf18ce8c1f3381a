package record

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by Lower when a mutable graph refers to itself.
var ErrCycle = errors.New("record: mutable value contains a cycle")

// Value is a mutable, shareable handle used by script evaluation. Unlike
// Record, a *Value has reference semantics: storing the same handle under
// two keys and then mutating it is visible through both, as in the host
// scripting language.
//
// A Value starts as a frozen Record snapshot and is lifted into child
// handles one level at a time, on first access. Untouched subtrees are never
// lifted and lower back to the original nodes without copying.
type Value struct {
	snap   Record
	lifted bool
	kind   Kind
	arr    []*Value
	hash   map[string]*Value
}

// Lift wraps r in a mutable handle. It is O(1).
func Lift(r Record) *Value {
	return &Value{snap: r.Clone()}
}

// Kind returns the current node type.
func (v *Value) Kind() Kind {
	if !v.lifted {
		return v.snap.Kind()
	}
	return v.kind
}

func (v *Value) lift() {
	if v.lifted {
		return
	}
	v.lifted = true
	v.kind = v.snap.Kind()
	switch v.kind {
	case KindArray:
		items := v.snap.Items()
		v.arr = make([]*Value, len(items))
		for i, it := range items {
			v.arr[i] = &Value{snap: it}
		}
		v.snap = Null()
	case KindHash:
		v.hash = make(map[string]*Value, v.snap.Len())
		v.snap.Each(func(k string, c Record) {
			v.hash[k] = &Value{snap: c}
		})
		v.snap = Null()
	}
}

// Assign replaces the content of v in place. Every reference to v observes
// the new content.
func (v *Value) Assign(r Record) {
	v.snap = r.Clone()
	v.lifted = false
	v.kind = KindNull
	v.arr = nil
	v.hash = nil
}

// Len returns the element or entry count of a container, or 0.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray, KindHash:
		if !v.lifted {
			return v.snap.Len()
		}
		if v.kind == KindArray {
			return len(v.arr)
		}
		return len(v.hash)
	}
	return 0
}

// Field returns the child handle under key, or nil.
func (v *Value) Field(key string) *Value {
	if v.Kind() != KindHash {
		return nil
	}
	v.lift()
	return v.hash[key]
}

// Elem returns the i-th child handle, or nil.
func (v *Value) Elem(i int) *Value {
	if v.Kind() != KindArray {
		return nil
	}
	v.lift()
	if i < 0 || i >= len(v.arr) {
		return nil
	}
	return v.arr[i]
}

// SetField stores c under key. A null v becomes a hash.
func (v *Value) SetField(key string, c *Value) error {
	if err := v.become(KindHash); err != nil {
		return err
	}
	v.hash[key] = c
	return nil
}

// SetElem stores c at index i, padding with nulls. A null v becomes an array.
func (v *Value) SetElem(i int, c *Value) error {
	if i < 0 {
		return fmt.Errorf("record: negative index %d", i)
	}
	if err := v.become(KindArray); err != nil {
		return err
	}
	for len(v.arr) <= i {
		v.arr = append(v.arr, &Value{})
	}
	v.arr[i] = c
	return nil
}

// Append adds c to the end of an array. A null v becomes an array.
func (v *Value) Append(c *Value) error {
	if err := v.become(KindArray); err != nil {
		return err
	}
	v.arr = append(v.arr, c)
	return nil
}

// DeleteField removes key and returns the removed handle, or nil.
func (v *Value) DeleteField(key string) (*Value, error) {
	switch v.Kind() {
	case KindNull:
		return nil, nil
	case KindHash:
		v.lift()
		old := v.hash[key]
		delete(v.hash, key)
		return old, nil
	default:
		return nil, &TypeError{Want: "hash", Got: v.Kind()}
	}
}

func (v *Value) become(k Kind) error {
	switch v.Kind() {
	case k:
		v.lift()
		return nil
	case KindNull:
		v.snap = Null()
		v.lifted = true
		v.kind = k
		if k == KindHash {
			v.hash = map[string]*Value{}
		}
		return nil
	default:
		return &TypeError{Want: k.String(), Got: v.Kind()}
	}
}

// Resolve walks p and returns the handle there, or nil when missing.
func (v *Value) Resolve(p Path) (*Value, error) {
	cur := v
	for i, s := range p {
		if cur == nil || cur.Kind() == KindNull {
			return nil, nil
		}
		if s.isIndex {
			if cur.Kind() != KindArray {
				return nil, &TypeError{Path: p[:i].String(), Want: "array", Got: cur.Kind()}
			}
			cur = cur.Elem(s.index)
			continue
		}
		if cur.Kind() != KindHash {
			return nil, &TypeError{Path: p[:i].String(), Want: "hash", Got: cur.Kind()}
		}
		cur = cur.Field(s.key)
	}
	return cur, nil
}

// SetPath stores c at p, vivifying containers along the way. The empty path
// assigns c's current content into v.
func (v *Value) SetPath(p Path, c *Value) error {
	if len(p) == 0 {
		r, err := c.Lower()
		if err != nil {
			return err
		}
		v.Assign(r)
		return nil
	}
	cur := v
	for i := 0; i < len(p)-1; i++ {
		next, err := cur.childFor(p[i], p[:i])
		if err != nil {
			return err
		}
		cur = next
	}
	last := p[len(p)-1]
	var err error
	if last.isIndex {
		err = cur.SetElem(last.index, c)
	} else {
		err = cur.SetField(last.key, c)
	}
	if err != nil {
		return fmt.Errorf("at %q: %w", p[:len(p)-1].String(), err)
	}
	return nil
}

// childFor returns the child under s, creating a null child when missing.
func (v *Value) childFor(s Step, at Path) (*Value, error) {
	var child *Value
	if s.isIndex {
		if v.Kind() != KindNull && v.Kind() != KindArray {
			return nil, &TypeError{Path: at.String(), Want: "array", Got: v.Kind()}
		}
		child = v.Elem(s.index)
		if child == nil {
			child = &Value{}
			if err := v.SetElem(s.index, child); err != nil {
				return nil, err
			}
		}
	} else {
		if v.Kind() != KindNull && v.Kind() != KindHash {
			return nil, &TypeError{Path: at.String(), Want: "hash", Got: v.Kind()}
		}
		child = v.Field(s.key)
		if child == nil {
			child = &Value{}
			if err := v.SetField(s.key, child); err != nil {
				return nil, err
			}
		}
	}
	return child, nil
}

// DeletePath removes the hash entry at p and returns the removed handle.
func (v *Value) DeletePath(p Path) (*Value, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	last := p[len(p)-1]
	if last.isIndex {
		return nil, ErrArrayDelete
	}
	parent, err := v.Resolve(p[:len(p)-1])
	if err != nil || parent == nil {
		return nil, err
	}
	return parent.DeleteField(last.key)
}

// Lower freezes the graph reachable from v into a Record. Unlifted subtrees
// are reused as-is.
func (v *Value) Lower() (Record, error) {
	return v.lower(map[*Value]bool{})
}

func (v *Value) lower(active map[*Value]bool) (Record, error) {
	if !v.lifted {
		return v.snap.Clone(), nil
	}
	if active[v] {
		return Null(), ErrCycle
	}
	active[v] = true
	defer delete(active, v)

	switch v.kind {
	case KindArray:
		items := make([]Record, len(v.arr))
		for i, c := range v.arr {
			r, err := c.lower(active)
			if err != nil {
				return Null(), err
			}
			items[i] = r
		}
		return Array(items...), nil
	case KindHash:
		m := make(map[string]Record, len(v.hash))
		for k, c := range v.hash {
			r, err := c.lower(active)
			if err != nil {
				return Null(), err
			}
			m[k] = r
		}
		return HashFromMap(m), nil
	default:
		return v.snap.Clone(), nil
	}
}
