// Package hash provides the checksums and content names used by revindex's
// on-disk files.
//
// # CRC32-Castagnoli (CRC32C)
//
// Every segment, changed-path segment and operation link ends with a CRC32C
// trailer covering the bytes before it. Go's crc32 package uses hardware
// instructions (SSE4.2, ARM CRC) when available.
//
//	checksum := hash.CRC32C(data)
//
// # Content Names
//
// Segment files are named after a BLAKE2b-512 digest of their encoded bytes,
// so identical content always maps to the same file name:
//
//	name := hash.ContentName(encoded)
package hash
