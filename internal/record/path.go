package record

import (
	"strconv"
	"strings"
)

// IndexMarker introduces an array index segment in a path.
const IndexMarker = '#'

// Step is one segment of a Path: a hash key or an array index.
type Step struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a hash-key step.
func Key(k string) Step { return Step{key: k} }

// Index returns an array-index step. i must be non-negative.
func Index(i int) Step { return Step{index: i, isIndex: true} }

// IsIndex reports whether s addresses an array element.
func (s Step) IsIndex() bool { return s.isIndex }

// KeyName returns the hash key of a key step.
func (s Step) KeyName() string { return s.key }

// Position returns the array index of an index step.
func (s Step) Position() int { return s.index }

func (s Step) String() string {
	if s.isIndex {
		return string(IndexMarker) + strconv.Itoa(s.index)
	}
	if strings.HasPrefix(s.key, string(IndexMarker)) || strings.HasPrefix(s.key, `\`) {
		return `\` + s.key
	}
	return s.key
}

// Path addresses a node inside a record. The empty Path is the record itself.
type Path []Step

// ParsePath parses "/"-separated path syntax. A segment starting with "#"
// is an array index; a leading backslash makes the rest of the segment a
// literal key (so `\#tag` is the key "#tag").
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	segs := strings.Split(s, "/")
	p := make(Path, 0, len(segs))
	for _, seg := range segs {
		switch {
		case strings.HasPrefix(seg, `\`):
			p = append(p, Key(seg[1:]))
		case strings.HasPrefix(seg, string(IndexMarker)):
			i, err := strconv.Atoi(seg[1:])
			if err != nil {
				return nil, &PathError{Path: s, Segment: seg, Message: "index is not an integer"}
			}
			if i < 0 {
				return nil, &PathError{Path: s, Segment: seg, Message: "index is negative"}
			}
			p = append(p, Index(i))
		default:
			p = append(p, Key(seg))
		}
	}
	return p, nil
}

// MustPath is ParsePath for literals; it panics on bad syntax.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, st := range p {
		parts[i] = st.String()
	}
	return strings.Join(parts, "/")
}

func (n *node) child(s Step) *node {
	if n == nil {
		return nil
	}
	if s.isIndex {
		if n.kind != KindArray || s.index >= len(n.arr) {
			return nil
		}
		return n.arr[s.index]
	}
	if n.kind != KindHash {
		return nil
	}
	return n.hash[s.key]
}

// put stores c under s on an exclusively owned container of the right kind,
// padding arrays with nulls.
func (n *node) put(s Step, c *node) {
	if s.isIndex {
		for len(n.arr) <= s.index {
			n.arr = append(n.arr, nil)
		}
		n.arr[s.index] = c
		return
	}
	n.hash[s.key] = c
}

func accepts(n *node, s Step) bool {
	if s.isIndex {
		return n.kind == KindArray
	}
	return n.kind == KindHash
}

func containerName(s Step) string {
	if s.isIndex {
		return "array"
	}
	return "hash"
}

// own returns a node that can take a write of step s: a fresh container
// when n is null, n itself when exclusively owned, or a shallow clone.
func own(n *node, s Step, at Path) (*node, error) {
	if n == nil {
		if s.isIndex {
			return &node{kind: KindArray}, nil
		}
		return &node{kind: KindHash, hash: map[string]*node{}}, nil
	}
	if !accepts(n, s) {
		return nil, &TypeError{Path: at.String(), Want: containerName(s), Got: n.kind}
	}
	if n.shared.Load() {
		return shallowClone(n), nil
	}
	return n, nil
}

// Lookup returns the value at p. A missing key, an out-of-range index or a
// null along the way yields null. Stepping into a scalar, or using a key on
// an array (or an index on a hash), is a *TypeError.
func (r Record) Lookup(p Path) (Record, error) {
	n, err := r.lookupNode(p)
	if err != nil {
		return Null(), err
	}
	share(n)
	return Record{root: n}, nil
}

func (r Record) lookupNode(p Path) (*node, error) {
	n := r.root
	for i, s := range p {
		if n == nil {
			return nil, nil
		}
		if !accepts(n, s) {
			return nil, &TypeError{Path: p[:i].String(), Want: containerName(s), Got: n.kind}
		}
		n = n.child(s)
	}
	return n, nil
}

// Get returns the value at p, or null. It never fails: anything Lookup
// would report as an error reads as null.
func (r Record) Get(p Path) Record {
	v, err := r.Lookup(p)
	if err != nil {
		return Null()
	}
	return v
}

// Set writes v at p, creating missing hashes and arrays along the way and
// padding arrays with nulls. Only the nodes on the path are copied, and only
// when shared with another handle.
func (r *Record) Set(p Path, v Record) error {
	share(v.root)
	if len(p) == 0 {
		r.root = v.root
		return nil
	}
	root, err := own(r.root, p[0], Path{})
	if err != nil {
		return err
	}
	r.root = root
	cur := root
	for i := 0; i < len(p)-1; i++ {
		next, err := own(cur.child(p[i]), p[i+1], p[:i+1])
		if err != nil {
			return err
		}
		cur.put(p[i], next)
		cur = next
	}
	cur.put(p[len(p)-1], v.root)
	return nil
}

// Delete removes the hash entry at p and returns its previous value, or null
// when absent. The last step must be a key.
func (r *Record) Delete(p Path) (Record, error) {
	if len(p) == 0 {
		return Null(), ErrEmptyPath
	}
	last := p[len(p)-1]
	if last.isIndex {
		return Null(), ErrArrayDelete
	}
	parentPath := p[:len(p)-1]
	parent, err := r.lookupNode(parentPath)
	if err != nil {
		return Null(), err
	}
	if parent == nil {
		return Null(), nil
	}
	if parent.kind != KindHash {
		return Null(), &TypeError{Path: parentPath.String(), Want: "hash", Got: parent.kind}
	}
	if _, ok := parent.hash[last.key]; !ok {
		return Null(), nil
	}

	root, err := own(r.root, stepOr(parentPath, last), Path{})
	if err != nil {
		return Null(), err
	}
	r.root = root
	cur := root
	for i := 0; i < len(parentPath); i++ {
		next, err := own(cur.child(parentPath[i]), stepOr(parentPath[i+1:], last), parentPath[:i+1])
		if err != nil {
			return Null(), err
		}
		cur.put(parentPath[i], next)
		cur = next
	}
	removed := cur.hash[last.key]
	delete(cur.hash, last.key)
	return Record{root: removed}, nil
}

func stepOr(p Path, fallback Step) Step {
	if len(p) > 0 {
		return p[0]
	}
	return fallback
}
