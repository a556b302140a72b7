// Package changedpath implements the changed-path index: for a contiguous
// range of commit positions it records which paths each commit changed, and
// for each path which commits changed it.
//
// Segment layout (little endian):
//
//	magic "RXCP"
//	u32 format version
//	u8  compression (0 none, 1 lz4, 2 zstd)
//	u32 start position
//	u32 commit count
//	u32 changed-path count (sum over commits)
//	u32 distinct path count
//	u32 raw payload length
//	u32 stored payload length
//	payload (msgpack, optionally compressed)
//	u32 CRC32C of everything above
//
// The payload holds the sorted distinct paths, the path indices of each
// commit, one roaring posting bitmap of global positions per path and a
// bloom filter over the paths.
//
// Segments are chained by position: each one starts where the previous one
// ends. An index covers the half-open range from the first segment's start
// to the last segment's end.
package changedpath
