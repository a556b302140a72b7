package revindex

import (
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/internal/store"
)

var (
	// ErrNotFound is returned when a commit id is not indexed.
	ErrNotFound = index.ErrNotFound

	// ErrMissingParent is returned by MutableIndex.AddCommit when a parent
	// of the commit is not indexed yet.
	ErrMissingParent = index.ErrMissingParent

	// ErrSecondRoot is returned by MutableIndex.AddCommit for a parentless
	// commit once the root commit is indexed.
	ErrSecondRoot = index.ErrSecondRoot

	// ErrInvalidRange is returned for generation or parent ranges whose start
	// lies beyond their end.
	ErrInvalidRange = index.ErrInvalidRange

	// ErrMissingSegment is returned when a segment referenced by an operation
	// link does not exist. Open recovers from it by rebuilding.
	ErrMissingSegment = store.ErrMissingSegment

	// ErrCorruptSegment is returned when a segment fails validation.
	ErrCorruptSegment = segment.ErrCorrupt

	// ErrIncompatibleVersion is returned for segments of an unsupported
	// format version. It always comes together with ErrCorruptSegment.
	ErrIncompatibleVersion = segment.ErrIncompatibleVersion

	// ErrCorruptLink is returned when an operation link cannot be decoded.
	ErrCorruptLink = store.ErrCorruptLink

	// ErrUnsupportedIndexType is returned by Open when the index directory
	// was written by another index implementation.
	ErrUnsupportedIndexType = store.ErrUnsupportedIndexType
)

// SegmentError reports a failure to load one segment file.
type SegmentError = store.SegmentError

// IndexCommitsError reports that the commits of an operation could not be
// indexed while rebuilding. OpID names the operation.
type IndexCommitsError = store.IndexCommitsError
