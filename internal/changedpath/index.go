package changedpath

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revindex/internal/level"
	"github.com/hupe1980/revindex/model"
)

// LevelStats describes one changed-path level.
type LevelStats struct {
	Name            string
	NumCommits      uint32
	NumChangedPaths uint32
	NumPaths        uint32
}

// Index is an immutable chain of changed-path segments covering a contiguous
// range of positions. The zero value is a disabled index.
type Index struct {
	enabled  bool
	start    model.Position
	segments []*Segment // oldest first
}

// Disabled returns an index that covers nothing.
func Disabled() *Index { return &Index{} }

// New returns an enabled index starting at start over the given segments,
// which must be ordered oldest first and be contiguous.
func New(start model.Position, segments []*Segment) (*Index, error) {
	next := start
	for _, s := range segments {
		if s.Start() != next {
			return nil, fmt.Errorf("changed-path segment %s starts at %d, want %d", s.Name(), s.Start(), next)
		}
		next = s.End()
	}
	return &Index{enabled: true, start: start, segments: segments}, nil
}

// Enabled reports whether the index is maintained at all.
func (x *Index) Enabled() bool { return x.enabled }

// Start returns the first covered position.
func (x *Index) Start() model.Position { return x.start }

// End returns the position after the last covered one.
func (x *Index) End() model.Position {
	if len(x.segments) == 0 {
		return x.start
	}
	return x.segments[len(x.segments)-1].End()
}

// Range returns the covered positions, or false if the index is disabled.
func (x *Index) Range() (model.PositionRange, bool) {
	if !x.enabled {
		return model.PositionRange{}, false
	}
	return model.PositionRange{Start: x.start, End: x.End()}, true
}

// Segments returns the segments, oldest first.
func (x *Index) Segments() []*Segment { return x.segments }

// ChangedPaths returns the sorted paths changed by the commit at pos and
// whether pos is covered.
func (x *Index) ChangedPaths(pos model.Position) ([]string, bool) {
	i := sort.Search(len(x.segments), func(i int) bool { return x.segments[i].End() > pos })
	if i == len(x.segments) {
		return nil, false
	}
	return x.segments[i].ChangedPaths(pos)
}

// CommitsTouching returns the covered positions whose commits changed path.
func (x *Index) CommitsTouching(path string) *roaring.Bitmap {
	out := roaring.New()
	for _, s := range x.segments {
		if bm := s.Touching(path); bm != nil {
			out.Or(bm)
		}
	}
	return out
}

// Levels returns per-segment statistics, oldest first.
func (x *Index) Levels() []LevelStats {
	out := make([]LevelStats, len(x.segments))
	for i, s := range x.segments {
		out[i] = LevelStats{
			Name:            s.Name(),
			NumCommits:      s.NumCommits(),
			NumChangedPaths: s.NumChangedPaths(),
			NumPaths:        s.NumPaths(),
		}
	}
	return out
}

// Mutable extends an enabled Index with in-memory commits.
type Mutable struct {
	base   *Index
	tail   *Builder
	frozen bool
}

// NewMutable returns a mutable view on base, which must be enabled.
func NewMutable(base *Index) *Mutable {
	return &Mutable{base: base, tail: NewBuilder(base.End())}
}

// Base returns the readonly index the view was created on.
func (m *Mutable) Base() *Index { return m.base }

// End returns the position the next Add will cover.
func (m *Mutable) End() model.Position { return m.tail.End() }

// Active reports whether Add still extends coverage.
func (m *Mutable) Active() bool { return !m.frozen }

// Freeze stops coverage at the current end. Later commits are not covered.
func (m *Mutable) Freeze() { m.frozen = true }

// Add records the paths changed by the commit at pos. It is a no-op once
// frozen. pos must be End.
func (m *Mutable) Add(pos model.Position, paths []string) error {
	if m.frozen {
		return nil
	}
	if pos != m.tail.End() {
		return fmt.Errorf("changed paths for position %d, want %d", pos, m.tail.End())
	}
	m.tail.Add(paths)
	return nil
}

// Range returns the covered positions.
func (m *Mutable) Range() model.PositionRange {
	return model.PositionRange{Start: m.base.Start(), End: m.tail.End()}
}

// ChangedPaths returns the sorted paths changed by the commit at pos.
func (m *Mutable) ChangedPaths(pos model.Position) ([]string, bool) {
	if pos >= m.tail.Start() {
		return m.tail.ChangedPaths(pos)
	}
	return m.base.ChangedPaths(pos)
}

// CommitsTouching returns the covered positions whose commits changed path.
func (m *Mutable) CommitsTouching(path string) *roaring.Bitmap {
	out := m.base.CommitsTouching(path)
	m.tail.touching(path, out)
	return out
}

// Levels returns per-level statistics, oldest first. Pending commits form
// the newest level.
func (m *Mutable) Levels() []LevelStats {
	out := m.base.Levels()
	if m.tail.NumCommits() > 0 {
		out = append(out, LevelStats{
			NumCommits:      m.tail.NumCommits(),
			NumChangedPaths: m.tail.numChangedPaths(),
			NumPaths:        m.tail.numPaths(),
		})
	}
	return out
}

// Squash writes the pending commits as a new segment, folding in as many of
// the newest base segments as p picks. It returns the resulting readonly
// index and the encoded new segment, or the base index and nil data when
// nothing is pending.
func (m *Mutable) Squash(p level.Policy, c Compression) (*Index, []byte, error) {
	if m.tail.NumCommits() == 0 {
		return m.base, nil, nil
	}

	segs := m.base.Segments()
	sizes := make([]uint64, len(segs))
	for i, s := range segs {
		sizes[len(segs)-1-i] = uint64(s.NumCommits())
	}
	k := p.Pick(uint64(m.tail.NumCommits()), sizes)
	keep := segs[:len(segs)-k]

	b := NewBuilder(m.base.End())
	if k > 0 {
		b = NewBuilder(segs[len(keep)].Start())
		for _, s := range segs[len(keep):] {
			if err := b.AddFrom(s); err != nil {
				return nil, nil, err
			}
		}
	}
	b.commits = append(b.commits, m.tail.commits...)

	data, name, err := b.Encode(c)
	if err != nil {
		return nil, nil, err
	}
	seg, err := Decode(name, data)
	if err != nil {
		return nil, nil, err
	}

	next := make([]*Segment, 0, len(keep)+1)
	next = append(next, keep...)
	next = append(next, seg)
	idx, err := New(m.base.Start(), next)
	if err != nil {
		return nil, nil, err
	}
	return idx, data, nil
}
