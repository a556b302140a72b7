// Package blobstore provides the storage abstraction for an index directory.
//
// Every file of an index (the type tag, commit segments, changed-path segments
// and operation links) is a named blob. Names are slash-separated paths
// relative to the index root, e.g. "segments/<name>" or "op_links/<op>".
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem; atomic temp+fsync+rename writes, mmap reads
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 (with s3.LinkStore for DynamoDB-backed operation links)
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error   // Atomic: readers see all or nothing
//	    Delete(ctx, name) error      // Missing blobs are not an error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
