// Package revindex provides a persistent, incrementally maintained index
// over the commit graph of a version-control repository.
//
// The index assigns every commit a dense position in topological order and
// answers ancestry queries, generation-bounded revset walks, commit-id and
// change-id prefix lookups and, once enabled, which commits changed a path.
// It is stored as a chain of immutable, content-named segment files. Every
// operation of the repository's operation log links to the head of a chain;
// small segments are squashed into larger ones so a chain stays logarithmic
// in the number of commits.
//
// # Quick Start
//
//	ctx := context.Background()
//	s, _ := revindex.Open(ctx, blobstore.NewLocalStore("./index"), opLog, objects)
//
//	idx, _ := s.IndexAtOperation(ctx, headOp)
//	m := s.StartTransaction(idx)
//	_ = m.AddCommit(revindex.Commit{ID: id, ChangeID: change, Parents: parents})
//	idx, _ = s.WriteIndex(ctx, m, newOp.ID)
//
// # Queries
//
//	ok, _ := idx.IsAncestor(a, b)
//	seq, _ := idx.EvaluateRevset(roots, heads, revindex.FullGenerationRange, revindex.FullParentsRange)
//	for id := range seq {
//	    fmt.Println(id)
//	}
//	res := idx.ResolveCommitIDPrefix(model.MustParseHexPrefix("a1f"))
//
// # Storage Backends
//
// The index directory is any blobstore.BlobStore: LocalStore for a local
// directory, MemoryStore for tests, and the S3 and MinIO backends in the
// blobstore/s3 and blobstore/minio packages.
//
// # Recovery
//
// Indexes are derived data. When the index of an operation is missing it is
// rebuilt from the newest indexed ancestor operations; when segment files
// are missing or corrupt, the index directory is reinitialized and rebuilt.
// Commits that are hidden but still referenced by an operation stay indexed.
//
// # Observability
//
//	metrics := &revindex.BasicMetricsCollector{}
//	s, _ := revindex.Open(ctx, blobs, opLog, objects,
//	    revindex.WithLogger(revindex.NewJSONLogger(slog.LevelInfo)),
//	    revindex.WithMetricsCollector(metrics),
//	)
//
// See package prommetrics for a Prometheus collector.
package revindex
