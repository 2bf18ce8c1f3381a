// Package bucket is the ordered partitioning engine behind sort, top-N and
// pivot-style grouping.
//
// A bucket holds items pending emission. Two kinds compose through a
// factory chain:
//
//   - a key bucket groups items by one extracted key and keeps a key-sorted
//     map from key to a nested bucket built by the next factory;
//   - a terminal bucket is a double-ended queue that keeps arrival order
//     among items that tie on every key above it.
//
// N key buckets over a terminal bucket give a stable N-key sort. Removing
// from the front yields the smallest key first; removing from the back
// yields the largest, which is how top-K eviction works. A key is never left
// mapped to an empty nested bucket.
//
// Buckets are not safe for concurrent use.
package bucket
