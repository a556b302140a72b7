// Package changeid implements the change-id index: a sorted view of the
// change ids reachable from a set of heads, answering prefix resolution and
// shortest-unique-prefix queries.
//
// A change id may name several visible commits when the change has diverged.
// Resolving a prefix that matches exactly one change id yields all of them.
package changeid
