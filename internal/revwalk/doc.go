// Package revwalk implements ancestry traversal over a commit graph addressed
// by position.
//
// Positions are topologically ordered: a commit's position is greater than the
// positions of all its parents. Every walk pops the highest pending position
// from a max-heap, so all paths into a commit are merged before the commit is
// expanded and each position is visited once per distinct state. This keeps
// walks polynomial on graphs with exponentially many paths, such as long
// criss-cross merge chains.
//
// Walks are returned as iter.Seq values. They are lazy, finite and
// restartable: ranging over the same sequence twice walks twice, and a caller
// stops a walk by breaking out of the loop.
package revwalk
