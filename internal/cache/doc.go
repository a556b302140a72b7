// Package cache provides a byte-bounded LRU for decoded, immutable values.
//
// The store keeps one LRU of decoded segments keyed by segment file name.
// Segment files are content-named and never rewritten, so cached values never
// go stale; eviction only bounds memory. Concurrent misses for the same key
// are collapsed with singleflight so a segment is decoded once.
package cache
