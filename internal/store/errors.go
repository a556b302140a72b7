package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/revindex/model"
)

var (
	// ErrMissingSegment is returned when a segment referenced by an operation
	// link does not exist.
	ErrMissingSegment = errors.New("missing segment")

	// ErrUnsupportedIndexType is returned when the index directory was created
	// by a different index implementation.
	ErrUnsupportedIndexType = errors.New("unsupported index type")

	// ErrCorruptLink is returned when an operation link cannot be decoded.
	ErrCorruptLink = errors.New("corrupt operation link")
)

// SegmentError reports a failure to load one segment file.
type SegmentError struct {
	Name string
	Err  error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %s: %v", e.Name, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// IndexCommitsError reports that the commits referenced by an operation could
// not be indexed while rebuilding, typically because the object store lost a
// commit.
type IndexCommitsError struct {
	OpID model.OperationID
	Err  error
}

func (e *IndexCommitsError) Error() string {
	return fmt.Sprintf("failed to index commits of operation %s: %v", e.OpID, e.Err)
}

func (e *IndexCommitsError) Unwrap() error { return e.Err }
