package index

import (
	"fmt"
	"iter"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revindex/internal/changeid"
	"github.com/hupe1980/revindex/internal/revwalk"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/model"
)

// view addresses a chain of segments by global position. Its methods are
// shared by Readonly and Mutable.
type view struct {
	layout  segment.Layout
	files   []*segment.File  // oldest first
	mutable *segment.Mutable // nil for readonly snapshots
}

var _ revwalk.Graph = (*view)(nil)

// Layout returns the id widths of the index.
func (v *view) Layout() segment.Layout { return v.layout }

// NumCommits returns the number of indexed commits.
func (v *view) NumCommits() uint32 {
	if v.mutable != nil {
		return v.mutable.NumCommits()
	}
	return v.numFileCommits()
}

func (v *view) numFileCommits() uint32 {
	if len(v.files) == 0 {
		return 0
	}
	return v.files[len(v.files)-1].NumCommits()
}

// readers returns every segment, oldest first.
func (v *view) readers() []segment.Reader {
	rs := make([]segment.Reader, 0, len(v.files)+1)
	for _, f := range v.files {
		rs = append(rs, f)
	}
	if v.mutable != nil {
		rs = append(rs, v.mutable)
	}
	return rs
}

func (v *view) locate(pos model.Position) (segment.Reader, uint32) {
	if v.mutable != nil && uint32(pos) >= v.mutable.NumParentCommits() {
		return v.mutable, uint32(pos) - v.mutable.NumParentCommits()
	}
	i := sort.Search(len(v.files), func(i int) bool { return v.files[i].NumCommits() > uint32(pos) })
	f := v.files[i]
	return f, uint32(pos) - f.NumParentCommits()
}

// CommitID returns the id of the commit at pos.
func (v *view) CommitID(pos model.Position) model.CommitID {
	r, local := v.locate(pos)
	return r.CommitID(local)
}

// ChangeID returns the change id of the commit at pos.
func (v *view) ChangeID(pos model.Position) model.ChangeID {
	r, local := v.locate(pos)
	return r.ChangeID(local)
}

// Generation returns the generation number of the commit at pos.
func (v *view) Generation(pos model.Position) uint32 {
	r, local := v.locate(pos)
	return r.Generation(local)
}

// Parents returns the parent positions of the commit at pos.
func (v *view) Parents(pos model.Position) []model.Position {
	r, local := v.locate(pos)
	return r.Parents(local)
}

// Position returns the position of id.
func (v *view) Position(id model.CommitID) (model.Position, bool) {
	if v.mutable != nil {
		if local, ok := v.mutable.Lookup(id); ok {
			return model.Position(v.mutable.NumParentCommits() + local), true
		}
	}
	for i := len(v.files) - 1; i >= 0; i-- {
		f := v.files[i]
		if local, ok := f.Lookup(id); ok {
			return model.Position(f.NumParentCommits() + local), true
		}
	}
	return 0, false
}

// HasID reports whether id is indexed.
func (v *view) HasID(id model.CommitID) bool {
	_, ok := v.Position(id)
	return ok
}

func (v *view) position(id model.CommitID) (model.Position, error) {
	pos, ok := v.Position(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return pos, nil
}

func (v *view) positions(ids []model.CommitID) ([]model.Position, error) {
	out := make([]model.Position, len(ids))
	for i, id := range ids {
		pos, err := v.position(id)
		if err != nil {
			return nil, err
		}
		out[i] = pos
	}
	return out, nil
}

func (v *view) commitIDs(ps []model.Position) []model.CommitID {
	out := make([]model.CommitID, len(ps))
	for i, p := range ps {
		out[i] = v.CommitID(p)
	}
	return out
}

// GenerationNumber returns the generation number of id.
func (v *view) GenerationNumber(id model.CommitID) (uint32, error) {
	pos, err := v.position(id)
	if err != nil {
		return 0, err
	}
	return v.Generation(pos), nil
}

// ParentIDs returns the parent ids of id, in parent order.
func (v *view) ParentIDs(id model.CommitID) ([]model.CommitID, error) {
	pos, err := v.position(id)
	if err != nil {
		return nil, err
	}
	return v.commitIDs(v.Parents(pos)), nil
}

// IsAncestor reports whether a is b or an ancestor of b.
func (v *view) IsAncestor(a, b model.CommitID) (bool, error) {
	pa, err := v.position(a)
	if err != nil {
		return false, err
	}
	pb, err := v.position(b)
	if err != nil {
		return false, err
	}
	return revwalk.IsAncestor(v, pa, pb), nil
}

// EvaluateRevset returns the commits that are ancestors of heads but not of
// roots, whose distance from heads lies in gen, following only the parent
// edges selected by parents. Commits are yielded newest first. The sequence
// is lazy and may be ranged over more than once.
func (v *view) EvaluateRevset(roots, heads []model.CommitID, gen model.GenerationRange, parents model.ParentsRange) (iter.Seq[model.CommitID], error) {
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	if err := parents.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	rootPos, err := v.positions(roots)
	if err != nil {
		return nil, err
	}
	headPos, err := v.positions(heads)
	if err != nil {
		return nil, err
	}

	walk := revwalk.WalkGenerationRange(v, headPos, rootPos, gen, parents)
	return func(yield func(model.CommitID) bool) {
		for pos := range walk {
			if !yield(v.CommitID(pos)) {
				return
			}
		}
	}, nil
}

// Heads returns the ids that are not ancestors of other ids in the set,
// newest first.
func (v *view) Heads(ids []model.CommitID) ([]model.CommitID, error) {
	ps, err := v.positions(ids)
	if err != nil {
		return nil, err
	}
	return v.commitIDs(revwalk.Heads(v, ps)), nil
}

// CommonAncestors returns the heads of the commits that are ancestors of
// both sets, newest first.
func (v *view) CommonAncestors(as, bs []model.CommitID) ([]model.CommitID, error) {
	pa, err := v.positions(as)
	if err != nil {
		return nil, err
	}
	pb, err := v.positions(bs)
	if err != nil {
		return nil, err
	}
	return v.commitIDs(revwalk.CommonAncestors(v, pa, pb)), nil
}

// ChangeIDIndex builds a change-id index over the ancestors of heads.
func (v *view) ChangeIDIndex(heads []model.CommitID) (*changeid.Index, error) {
	hp, err := v.positions(heads)
	if err != nil {
		return nil, err
	}
	reachable := roaring.New()
	for pos := range revwalk.Walk(v, hp, nil, model.FullParentsRange) {
		reachable.Add(uint32(pos))
	}
	entries := make([]changeid.Entry, 0, reachable.GetCardinality())
	reachable.Iterate(func(x uint32) bool {
		pos := model.Position(x)
		entries = append(entries, changeid.Entry{
			ChangeID: v.ChangeID(pos),
			CommitID: v.CommitID(pos),
			Position: pos,
		})
		return true
	})
	return changeid.Build(entries), nil
}

// ResolveCommitIDPrefix resolves a commit-id prefix against every indexed
// commit.
func (v *view) ResolveCommitIDPrefix(p model.HexPrefix) model.PrefixResolution {
	var match model.CommitID
	for _, r := range v.readers() {
		id, n := r.ResolvePrefix(p)
		if n == 0 {
			continue
		}
		if n > 1 || match != nil {
			return model.PrefixResolution{Kind: model.AmbiguousMatch}
		}
		match = id
	}
	if match == nil {
		return model.PrefixResolution{Kind: model.NoMatch}
	}
	return model.PrefixResolution{Kind: model.SingleMatch, Matches: []model.CommitID{match.Clone()}}
}

// ShortestUniqueCommitIDPrefixLen returns the number of hex digits needed to
// tell id apart from every other indexed commit id. id need not be indexed.
func (v *view) ShortestUniqueCommitIDPrefixLen(id model.CommitID) int {
	n := 0
	for _, r := range v.readers() {
		prev, next := r.Neighbors(id)
		if prev != nil {
			n = max(n, model.CommonHexPrefixLen(id, prev))
		}
		if next != nil {
			n = max(n, model.CommonHexPrefixLen(id, next))
		}
	}
	return min(n+1, max(2*len(id), 1))
}
