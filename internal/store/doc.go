// Package store persists commit indexes in a blobstore.BlobStore and
// rebuilds them from the operation log when they are missing or damaged.
//
// Layout of the index directory:
//
//	type                    index implementation tag, "default"
//	segments/<name>         commit segment files
//	changed_paths/<name>    changed-path segment files
//	op_links/<op hex>       operation link: head segment and changed-path chain
//	operations/<op hex>     legacy operation link: head segment name only
//
// Segment files are named by the hash of their content and are never
// rewritten. An operation link is written only after every file it refers to
// has been stored, so readers never see a partially written index.
package store
