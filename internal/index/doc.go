// Package index presents a chain of commit segments as one commit graph.
//
// A Readonly index is an immutable snapshot over persisted segment files,
// ordered oldest first. Segment i covers the global positions
// [NumParentCommits, NumCommits) of file i, so a position maps to a segment
// with a binary search over the chain.
//
// A Mutable index overlays an in-memory segment on a Readonly base for the
// duration of one transaction. Squash decides, through a level.Policy, which
// of the newest base files are folded into the segment written on commit.
package index
