// Package s3 provides Amazon S3 implementations of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.NewStoreFromConfig(ctx, "my-bucket", "repo/index/")
//	idx, err := revindex.Open(ctx, store, oplog, commits)
//
// Store keeps every blob in S3. LinkStore wraps any BlobStore and moves the
// operation links into a DynamoDB table, so that link reads are strongly
// consistent and listing links does not scan the bucket:
//
//	links := s3.NewLinkStore(store, dynamodb.NewFromConfig(cfg), "revindex-links", "s3://my-bucket/repo/index/")
package s3
