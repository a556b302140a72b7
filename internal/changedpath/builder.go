package changedpath

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revindex/model"
)

// Builder accumulates changed paths for consecutive positions in memory.
type Builder struct {
	start   model.Position
	commits [][]string
}

// NewBuilder returns an empty builder whose first commit will be at start.
func NewBuilder(start model.Position) *Builder {
	return &Builder{start: start}
}

// Start returns the first covered position.
func (b *Builder) Start() model.Position { return b.start }

// End returns the position the next Add will cover.
func (b *Builder) End() model.Position { return b.start + model.Position(len(b.commits)) }

// NumCommits returns the number of covered commits.
func (b *Builder) NumCommits() uint32 { return uint32(len(b.commits)) }

// Add records the paths changed by the commit at End. The slice is copied.
func (b *Builder) Add(paths []string) {
	ps := slices.Clone(paths)
	slices.Sort(ps)
	b.commits = append(b.commits, slices.Compact(ps))
}

// AddFrom appends every commit covered by s, which must start at End.
func (b *Builder) AddFrom(s *Segment) error {
	if s.Start() != b.End() {
		return fmt.Errorf("changed-path segment %s starts at %d, want %d", s.Name(), s.Start(), b.End())
	}
	for _, idx := range s.commits {
		ps := make([]string, len(idx))
		for i, k := range idx {
			ps[i] = s.paths[k]
		}
		b.commits = append(b.commits, ps)
	}
	return nil
}

// ChangedPaths returns the sorted paths changed by the commit at pos.
func (b *Builder) ChangedPaths(pos model.Position) ([]string, bool) {
	if pos < b.start || pos >= b.End() {
		return nil, false
	}
	return slices.Clone(b.commits[pos-b.start]), true
}

func (b *Builder) touching(path string, into *roaring.Bitmap) {
	for i, ps := range b.commits {
		if _, ok := slices.BinarySearch(ps, path); ok {
			into.Add(uint32(b.start) + uint32(i))
		}
	}
}

func (b *Builder) numChangedPaths() uint32 {
	var n uint32
	for _, ps := range b.commits {
		n += uint32(len(ps))
	}
	return n
}

func (b *Builder) numPaths() uint32 {
	seen := make(map[string]struct{})
	for _, ps := range b.commits {
		for _, p := range ps {
			seen[p] = struct{}{}
		}
	}
	return uint32(len(seen))
}

// Encode serializes the builder into a segment and returns its bytes and
// content-derived name.
func (b *Builder) Encode(c Compression) ([]byte, string, error) {
	return encode(b.start, b.commits, c)
}
