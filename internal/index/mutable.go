package index

import (
	"fmt"
	"slices"

	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/internal/level"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/model"
)

// Mutable accepts new commits on top of a Readonly base. It is owned by one
// transaction and is not safe for concurrent use.
type Mutable struct {
	view
	base *Readonly
	// changed is nil unless the base's changed-path index covers every base
	// commit, in which case new commits extend it.
	changed *changedpath.Mutable
}

// NewMutable starts a mutable index on base.
func NewMutable(base *Readonly) *Mutable {
	m := &Mutable{
		view: view{
			layout:  base.layout,
			files:   base.files,
			mutable: segment.NewMutable(base.layout, base.HeadName(), base.NumCommits()),
		},
		base: base,
	}
	if bc := base.changed; bc.Enabled() && uint32(bc.End()) == base.NumCommits() {
		m.changed = changedpath.NewMutable(bc)
	}
	return m
}

// Base returns the snapshot the index was started on.
func (m *Mutable) Base() *Readonly { return m.base }

// NumNewCommits returns the number of commits added since NewMutable.
func (m *Mutable) NumNewCommits() uint32 { return m.mutable.NumLocalCommits() }

// AddCommit indexes c. Adding an already indexed commit is a no-op. Every
// parent must already be indexed; otherwise the index is left unchanged
// and the error wraps ErrMissingParent. Only the first commit of an index
// may be parentless.
func (m *Mutable) AddCommit(c model.Commit) error {
	if m.HasID(c.ID) {
		return nil
	}
	if len(c.Parents) == 0 && m.NumCommits() > 0 {
		return fmt.Errorf("commit %s: %w", c.ID, ErrSecondRoot)
	}
	parents := make([]model.Position, len(c.Parents))
	var gen uint32
	for i, pid := range c.Parents {
		pos, ok := m.Position(pid)
		if !ok {
			return fmt.Errorf("commit %s: %w: %s", c.ID, ErrMissingParent, pid)
		}
		parents[i] = pos
		gen = max(gen, m.Generation(pos)+1)
	}
	pos := model.Position(m.mutable.NumCommits())
	if err := m.mutable.Add(c.ID, c.ChangeID, gen, parents); err != nil {
		return err
	}
	if m.changed != nil {
		return m.changed.Add(pos, c.ChangedPaths)
	}
	return nil
}

// MergeIn adds every commit of other that is not in the segment files both
// indexes share. Commits are added in other's position order, which is
// topological. Changed paths are carried over while other covers them;
// the first uncovered commit ends changed-path coverage of m.
func (m *Mutable) MergeIn(other *Readonly) error {
	shared := 0
	for shared < len(m.files) && shared < len(other.files) && m.files[shared].Name() == other.files[shared].Name() {
		shared++
	}
	var start uint32
	if shared > 0 {
		start = other.files[shared-1].NumCommits()
	}

	for pos := model.Position(start); uint32(pos) < other.NumCommits(); pos++ {
		id := other.CommitID(pos)
		if m.HasID(id) {
			continue
		}
		c := model.Commit{
			ID:       id,
			ChangeID: other.ChangeID(pos),
			Parents:  other.commitIDs(other.Parents(pos)),
		}
		if m.changed != nil && m.changed.Active() {
			if paths, ok := other.changed.ChangedPaths(pos); ok {
				c.ChangedPaths = paths
			} else {
				m.changed.Freeze()
			}
		}
		if err := m.AddCommit(c); err != nil {
			return err
		}
	}
	return nil
}

// ChangedPaths returns the sorted paths changed by id, and false when id's
// position is not covered by the changed-path index.
func (m *Mutable) ChangedPaths(id model.CommitID) ([]string, bool, error) {
	pos, err := m.position(id)
	if err != nil {
		return nil, false, err
	}
	if m.changed != nil {
		paths, ok := m.changed.ChangedPaths(pos)
		return paths, ok, nil
	}
	paths, ok := m.base.changed.ChangedPaths(pos)
	return paths, ok, nil
}

// CommitsTouchingPath returns the covered commits that changed path, newest
// first.
func (m *Mutable) CommitsTouchingPath(path string) []model.CommitID {
	if m.changed != nil {
		return m.touching(m.changed.CommitsTouching(path))
	}
	return m.touching(m.base.changed.CommitsTouching(path))
}

// Stats summarizes the index including pending commits, which form the
// newest level.
func (m *Mutable) Stats() Stats {
	var s Stats
	m.graphStats(&s)
	switch {
	case m.changed != nil:
		r := m.changed.Range()
		s.ChangedPathRange = &r
		s.ChangedPathLevels = m.changed.Levels()
	case m.base.changed.Enabled():
		r, _ := m.base.changed.Range()
		s.ChangedPathRange = &r
		s.ChangedPathLevels = m.base.changed.Levels()
	}
	return s
}

// Squashed is a Mutable laid out for persisting.
type Squashed struct {
	// Keep are the base files that stay unchanged, oldest first.
	Keep []*segment.File
	// Segment is the new newest segment, holding the folded base files and
	// the pending commits. It is nil when nothing is pending.
	Segment *segment.Mutable
	// Changed is the changed-path index to publish. Its newest segment is new
	// when ChangedData is not nil.
	Changed     *changedpath.Index
	ChangedData []byte
	// Folded is the number of base files merged into Segment.
	Folded int
}

// Squash lays out the pending commits according to p. Changed-path segments
// are squashed with the same policy and encoded with c.
func (m *Mutable) Squash(p level.Policy, c changedpath.Compression) (*Squashed, error) {
	out := &Squashed{Keep: m.files, Changed: m.base.changed}
	if m.changed != nil {
		idx, data, err := m.changed.Squash(p, c)
		if err != nil {
			return nil, err
		}
		out.Changed, out.ChangedData = idx, data
	}

	n := m.mutable.NumLocalCommits()
	if n == 0 {
		return out, nil
	}

	sizes := make([]uint64, len(m.files))
	for i, f := range m.files {
		sizes[len(m.files)-1-i] = uint64(f.NumLocalCommits())
	}
	k := p.Pick(uint64(n), sizes)
	keep := m.files[:len(m.files)-k]

	var baseName string
	var numParents uint32
	if len(keep) > 0 {
		head := keep[len(keep)-1]
		baseName, numParents = head.Name(), head.NumCommits()
	}
	seg := segment.NewMutable(m.layout, baseName, numParents)
	for _, f := range m.files[len(keep):] {
		if err := seg.AddFrom(f); err != nil {
			return nil, err
		}
	}
	if err := seg.AddFrom(m.mutable); err != nil {
		return nil, err
	}

	out.Keep = slices.Clip(keep)
	out.Segment = seg
	out.Folded = k
	return out, nil
}
