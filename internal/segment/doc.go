// Package segment implements the commit segment format.
//
// A segment stores one slice of the commit index: the commits added by one
// transaction (or several, after squashing), each with its generation number,
// parent positions and change id. Segments are immutable once written and are
// chained by name: every segment names the base segment holding the commits
// before it, so the positions of a segment's entries start where its base
// chain ends.
//
// # File Format
//
// All integers are little endian.
//
//	u32 format version
//	u32 base segment name length, followed by the name (0 = no base)
//	u32 local commit count
//	u32 local change-id count
//	u32 overflow parent count
//	u32 overflow change-position count
//	entries          generation, parent1, parent2, change-id index (u32 each), commit id
//	lookup           commit id, u32 local position; sorted by commit id
//	change ids       sorted unique change ids
//	change positions u32 local position, or overflow start with the high bit set
//	overflow parents u32 global positions
//	overflow change positions
//	u32 CRC32C of everything above
//
// Entries are fixed-stride so a position maps to its entry in O(1). A commit
// with more than two parents stores the overflow start (high bit set) in
// parent1 and the parent count in parent2. A change id shared by several local
// commits stores a run of local positions in the overflow change-position
// table, terminated by the start of the next run.
package segment
