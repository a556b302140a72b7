package model

import (
	"fmt"
	"math"
)

// GenerationRange selects ancestors by their distance from the walk heads.
// Distance 0 is the heads themselves. The range is half-open.
type GenerationRange struct {
	Start uint64
	End   uint64
}

// FullGenerationRange selects every ancestor.
var FullGenerationRange = GenerationRange{Start: 0, End: math.MaxUint64}

// IsFull reports whether the range selects every generation.
func (r GenerationRange) IsFull() bool { return r == FullGenerationRange }

// Validate rejects ranges whose start lies beyond their end.
func (r GenerationRange) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("generation range %d..%d: start after end", r.Start, r.End)
	}
	return nil
}

// ParentsRange selects which parent edges a walk follows, by parent index.
// {0, 1} follows first parents only. The range is half-open.
type ParentsRange struct {
	Start uint32
	End   uint32
}

// FullParentsRange follows every parent edge.
var FullParentsRange = ParentsRange{Start: 0, End: math.MaxUint32}

// IsFull reports whether every parent edge is followed.
func (r ParentsRange) IsFull() bool { return r == FullParentsRange }

// Validate rejects ranges whose start lies beyond their end.
func (r ParentsRange) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("parents range %d..%d: start after end", r.Start, r.End)
	}
	return nil
}

// PositionRange is a half-open range of positions.
type PositionRange struct {
	Start Position
	End   Position
}

// Contains reports whether pos lies within the range.
func (r PositionRange) Contains(pos Position) bool { return pos >= r.Start && pos < r.End }

// Len returns the number of positions covered.
func (r PositionRange) Len() int { return int(r.End - r.Start) }

// String implements fmt.Stringer.
func (r PositionRange) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }
