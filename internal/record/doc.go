// Package record provides the structured value that flows through recs pipelines.
//
// This package imports nothing internal. Every other package that touches
// records imports it, so it stays the foundational layer.
//
// A Record is a tree of null, boolean, int64, float64, string, array and hash
// nodes. Hash iteration is always key-sorted so serialization, equality and
// grouping are deterministic.
//
// SHARING:
//
// Copying a Record with Clone is O(1): both handles point at the same nodes.
// Mutation (Set, Delete) is copy-on-write along the spine of the path being
// written. A node is mutated in place only when this handle is its exclusive
// owner; any node that has been handed out (Clone, Get, embedding into another
// record) is marked shared and is cloned before the first write through it.
// Siblings of the spine are never copied.
//
// Plain assignment (r2 := r) does NOT clone. Use Clone when both handles may be
// mutated afterwards.
//
// FLOATS:
//
// Floats are compared and hashed through their canonical decimal text, which is
// also the text Serialize writes. NaN has no canonical text; comparing or
// ordering a NaN panics.
//
// PATHS:
//
// Paths are "/"-separated. A segment starting with "#" is an array index,
// anything else is a hash key, and the empty path is the record itself:
//
//	r.Get(MustPath("hosts/#0/name"))
package record
