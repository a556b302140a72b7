package changeid

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/hupe1980/revindex/model"
)

// Entry is one reachable commit and its change id.
type Entry struct {
	ChangeID model.ChangeID
	CommitID model.CommitID
	Position model.Position
}

// Index is an immutable change-id index.
type Index struct {
	// entries are sorted by change id, then by descending position.
	entries []Entry
	// starts[i] is the offset in entries of the i-th distinct change id.
	starts []int
}

// Build creates an index over entries. The slice is sorted in place and
// retained.
func Build(entries []Entry) *Index {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := bytes.Compare(a.ChangeID, b.ChangeID); c != 0 {
			return c
		}
		return cmp.Compare(b.Position, a.Position)
	})
	entries = slices.CompactFunc(entries, func(a, b Entry) bool {
		return a.Position == b.Position && a.ChangeID.Equal(b.ChangeID)
	})

	x := &Index{entries: entries}
	for i := range entries {
		if i == 0 || !entries[i].ChangeID.Equal(entries[i-1].ChangeID) {
			x.starts = append(x.starts, i)
		}
	}
	return x
}

// Len returns the number of distinct change ids.
func (x *Index) Len() int { return len(x.starts) }

// NumCommits returns the number of indexed commits.
func (x *Index) NumCommits() int { return len(x.entries) }

func (x *Index) changeID(i int) model.ChangeID { return x.entries[x.starts[i]].ChangeID }

func (x *Index) group(i int) []Entry {
	end := len(x.entries)
	if i+1 < len(x.starts) {
		end = x.starts[i+1]
	}
	return x.entries[x.starts[i]:end]
}

// search returns the index of the first distinct change id >= key.
func (x *Index) search(key []byte) int {
	i, _ := slices.BinarySearchFunc(x.starts, key, func(start int, key []byte) int {
		return bytes.Compare(x.entries[start].ChangeID, key)
	})
	return i
}

// Commits returns the commits with the given change id, newest first.
func (x *Index) Commits(id model.ChangeID) []model.CommitID {
	i := x.search(id)
	if i == len(x.starts) || !x.changeID(i).Equal(id) {
		return nil
	}
	return commitIDs(x.group(i))
}

// ResolvePrefix resolves a change-id prefix. A single match carries every
// commit with that change id, newest first.
func (x *Index) ResolvePrefix(p model.HexPrefix) model.PrefixResolution {
	i := x.search(p.MinPrefixBytes())
	if i == len(x.starts) || !p.Matches(x.changeID(i)) {
		return model.PrefixResolution{Kind: model.NoMatch}
	}
	if i+1 < len(x.starts) && p.Matches(x.changeID(i+1)) {
		return model.PrefixResolution{Kind: model.AmbiguousMatch}
	}
	return model.PrefixResolution{
		Kind:    model.SingleMatch,
		Matches: commitIDs(x.group(i)),
	}
}

// ShortestUniquePrefixLen returns the number of hex digits needed to tell id
// apart from every other change id in the index. The id itself need not be
// indexed. The result is at least 1.
func (x *Index) ShortestUniquePrefixLen(id model.ChangeID) int {
	i := x.search(id)
	n := 0
	if i > 0 {
		n = max(n, model.CommonHexPrefixLen(id, x.changeID(i-1)))
	}
	if i < len(x.starts) && x.changeID(i).Equal(id) {
		i++
	}
	if i < len(x.starts) {
		n = max(n, model.CommonHexPrefixLen(id, x.changeID(i)))
	}
	return min(n+1, max(2*len(id), 1))
}

func commitIDs(group []Entry) []model.CommitID {
	ids := make([]model.CommitID, len(group))
	for i, e := range group {
		ids[i] = e.CommitID
	}
	return ids
}
