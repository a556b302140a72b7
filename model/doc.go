// Package model defines core types used throughout revindex.
//
// # Identity Types
//
//   - CommitID: opaque content hash of a commit; only compared and hashed
//   - ChangeID: stable identifier shared by all rewrites of one change
//   - OperationID: opaque version token naming one operation-log entry
//   - Position: dense, topologically ordered index of a commit in one index snapshot
//
// # Value Types
//
//   - Commit: the commit metadata the index consumes (id, change id, parents, changed paths)
//   - Operation: an operation-log entry as seen by recovery (id, parents, referenced commits)
//   - HexPrefix: a possibly odd-length hex prefix used for short-id resolution
//   - PrefixResolution: NoMatch, SingleMatch or AmbiguousMatch
//   - GenerationRange, ParentsRange: half-open ranges bounding range evaluation
package model
