package index

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/model"
)

// Readonly is an immutable index snapshot. It is safe for concurrent use.
type Readonly struct {
	view
	changed *changedpath.Index
}

// NewReadonly returns a snapshot over files, ordered oldest first. Each file
// must be based on its predecessor. A nil changed index means the
// changed-path index is disabled.
func NewReadonly(layout segment.Layout, files []*segment.File, changed *changedpath.Index) (*Readonly, error) {
	var prev *segment.File
	for _, f := range files {
		var wantBase string
		var wantParents uint32
		if prev != nil {
			wantBase, wantParents = prev.Name(), prev.NumCommits()
		}
		if f.BaseName() != wantBase || f.NumParentCommits() != wantParents {
			return nil, fmt.Errorf("%w: segment %s is not based on %q", segment.ErrCorrupt, f.Name(), wantBase)
		}
		prev = f
	}
	if changed == nil {
		changed = changedpath.Disabled()
	}
	x := &Readonly{
		view:    view{layout: layout, files: slices.Clip(files)},
		changed: changed,
	}
	if r, ok := changed.Range(); ok && uint32(r.End) > x.NumCommits() {
		return nil, fmt.Errorf("%w: changed paths cover %s beyond %d commits", segment.ErrCorrupt, r, x.NumCommits())
	}
	return x, nil
}

// Files returns the segment files, oldest first.
func (x *Readonly) Files() []*segment.File { return x.files }

// HeadName returns the name of the newest segment file, or "" when the
// index is empty.
func (x *Readonly) HeadName() string {
	if len(x.files) == 0 {
		return ""
	}
	return x.files[len(x.files)-1].Name()
}

// ChangedPathIndex returns the changed-path index.
func (x *Readonly) ChangedPathIndex() *changedpath.Index { return x.changed }

// ChangedPaths returns the sorted paths changed by id, and false when id's
// position is not covered by the changed-path index.
func (x *Readonly) ChangedPaths(id model.CommitID) ([]string, bool, error) {
	pos, err := x.position(id)
	if err != nil {
		return nil, false, err
	}
	paths, ok := x.changed.ChangedPaths(pos)
	return paths, ok, nil
}

// CommitsTouchingPath returns the covered commits that changed path, newest
// first.
func (x *Readonly) CommitsTouchingPath(path string) []model.CommitID {
	return x.touching(x.changed.CommitsTouching(path))
}

func (v *view) touching(bm *roaring.Bitmap) []model.CommitID {
	out := make([]model.CommitID, 0, bm.GetCardinality())
	it := bm.ReverseIterator()
	for it.HasNext() {
		out = append(out, v.CommitID(model.Position(it.Next())))
	}
	return out
}

// Stats summarizes the snapshot.
func (x *Readonly) Stats() Stats {
	var s Stats
	x.graphStats(&s)
	if r, ok := x.changed.Range(); ok {
		s.ChangedPathRange = &r
		s.ChangedPathLevels = x.changed.Levels()
	}
	return s
}
