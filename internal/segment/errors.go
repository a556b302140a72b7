package segment

import "errors"

var (
	// ErrCorrupt is returned when a segment fails structural validation.
	ErrCorrupt = errors.New("corrupt segment")

	// ErrIncompatibleVersion is returned when the segment format version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible segment version")
)
