package index

import "errors"

var (
	// ErrNotFound is returned when a commit id is not indexed.
	ErrNotFound = errors.New("commit not found in index")

	// ErrMissingParent is returned when a commit is added before one of its
	// parents.
	ErrMissingParent = errors.New("parent commit not indexed")

	// ErrSecondRoot is returned when a commit without parents is added to an
	// index that already holds the root commit.
	ErrSecondRoot = errors.New("parentless commit after root")

	// ErrInvalidRange is returned for generation or parent ranges whose start
	// lies beyond their end.
	ErrInvalidRange = errors.New("invalid range")
)
