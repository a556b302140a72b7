package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"

	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/model"
)

// Mutable is an in-memory segment accepting new entries. It is not safe for
// concurrent use; a transaction owns its Mutable exclusively.
type Mutable struct {
	layout           Layout
	baseName         string
	numParentCommits uint32
	entries          []mutableEntry
	lookup           map[string]uint32
}

type mutableEntry struct {
	commitID   model.CommitID
	changeID   model.ChangeID
	generation uint32
	parents    []model.Position
}

var _ Reader = (*Mutable)(nil)

// NewMutable creates an empty segment on top of a base chain of numParentCommits
// commits whose newest segment is baseName ("" for none).
func NewMutable(layout Layout, baseName string, numParentCommits uint32) *Mutable {
	return &Mutable{
		layout:           layout,
		baseName:         baseName,
		numParentCommits: numParentCommits,
		lookup:           make(map[string]uint32),
	}
}

// BaseName returns the name of the base segment.
func (m *Mutable) BaseName() string { return m.baseName }

// NumLocalCommits returns the number of entries added so far.
func (m *Mutable) NumLocalCommits() uint32 { return uint32(len(m.entries)) }

// NumParentCommits returns the number of commits in the base chain.
func (m *Mutable) NumParentCommits() uint32 { return m.numParentCommits }

// NumCommits returns the number of commits including the base chain.
func (m *Mutable) NumCommits() uint32 { return m.numParentCommits + uint32(len(m.entries)) }

// Add appends an entry. Parents must be global positions lower than the new
// entry's position; the caller guarantees the id is not yet indexed.
func (m *Mutable) Add(commitID model.CommitID, changeID model.ChangeID, generation uint32, parents []model.Position) error {
	if len(commitID) != m.layout.CommitIDLength {
		return fmt.Errorf("commit id %s: expected %d bytes, got %d", commitID, m.layout.CommitIDLength, len(commitID))
	}
	if len(changeID) != m.layout.ChangeIDLength {
		return fmt.Errorf("change id %s: expected %d bytes, got %d", changeID, m.layout.ChangeIDLength, len(changeID))
	}
	own := m.NumCommits()
	if own >= MaxPositions {
		return fmt.Errorf("index is full: %d commits", own)
	}
	for _, p := range parents {
		if uint32(p) >= own {
			return fmt.Errorf("commit %s: parent position %d is not older than %d", commitID, p, own)
		}
	}

	m.lookup[string(commitID)] = uint32(len(m.entries))
	m.entries = append(m.entries, mutableEntry{
		commitID:   commitID.Clone(),
		changeID:   model.ChangeID(bytes.Clone(changeID)),
		generation: generation,
		parents:    slices.Clone(parents),
	})
	return nil
}

// AddFrom appends every local entry of r, preserving order. Used to squash a
// segment into a newer one; positions are unchanged because r's entries are
// re-added at the same global positions.
func (m *Mutable) AddFrom(r Reader) error {
	if r.NumParentCommits() != m.NumCommits() {
		return fmt.Errorf("cannot squash: segment starts at %d, mutable ends at %d", r.NumParentCommits(), m.NumCommits())
	}
	for local := uint32(0); local < r.NumLocalCommits(); local++ {
		if err := m.Add(r.CommitID(local), r.ChangeID(local), r.Generation(local), r.Parents(local)); err != nil {
			return err
		}
	}
	return nil
}

// CommitID returns the commit id of a local entry.
func (m *Mutable) CommitID(local uint32) model.CommitID { return m.entries[local].commitID }

// ChangeID returns the change id of a local entry.
func (m *Mutable) ChangeID(local uint32) model.ChangeID { return m.entries[local].changeID }

// Generation returns the generation number of a local entry.
func (m *Mutable) Generation(local uint32) uint32 { return m.entries[local].generation }

// Parents returns the global parent positions of a local entry.
func (m *Mutable) Parents(local uint32) []model.Position { return m.entries[local].parents }

// Lookup finds the local position of a commit id.
func (m *Mutable) Lookup(id model.CommitID) (uint32, bool) {
	local, ok := m.lookup[string(id)]
	return local, ok
}

// ResolvePrefix scans the local entries for ids matching p.
func (m *Mutable) ResolvePrefix(p model.HexPrefix) (model.CommitID, int) {
	var match model.CommitID
	count := 0
	for i := range m.entries {
		if p.Matches(m.entries[i].commitID) {
			match = m.entries[i].commitID
			count++
			if count == 2 {
				return nil, 2
			}
		}
	}
	return match, count
}

// Neighbors scans the local entries for the ids closest to id.
func (m *Mutable) Neighbors(id model.CommitID) (prev, next model.CommitID) {
	for i := range m.entries {
		c := m.entries[i].commitID
		switch cmp := c.Compare(id); {
		case cmp < 0 && (prev == nil || c.Compare(prev) > 0):
			prev = c
		case cmp > 0 && (next == nil || c.Compare(next) < 0):
			next = c
		}
	}
	return prev, next
}

// Encode serializes the segment and returns its bytes and content name.
func (m *Mutable) Encode() ([]byte, string) {
	n := len(m.entries)

	// Unique change ids in sorted order, each with its local positions.
	changeIDs := make([]string, 0, n)
	changePositions := make(map[string][]uint32, n)
	for i := range m.entries {
		key := string(m.entries[i].changeID)
		if _, ok := changePositions[key]; !ok {
			changeIDs = append(changeIDs, key)
		}
		changePositions[key] = append(changePositions[key], uint32(i))
	}
	sort.Strings(changeIDs)
	changeIndex := make(map[string]uint32, len(changeIDs))
	for i, id := range changeIDs {
		changeIndex[id] = uint32(i)
	}

	var overflowParents []uint32
	var overflowChanges []uint32
	changePosTable := make([]uint32, len(changeIDs))
	for i, id := range changeIDs {
		positions := changePositions[id]
		if len(positions) == 1 {
			changePosTable[i] = positions[0]
			continue
		}
		changePosTable[i] = uint32(len(overflowChanges)) | overflowBit
		overflowChanges = append(overflowChanges, positions...)
	}

	size := 4*6 + len(m.baseName) +
		n*(m.layout.entrySize()+m.layout.lookupSize()) +
		len(changeIDs)*(m.layout.ChangeIDLength+4) + trailerSize
	pb := newPayloadBuffer(make([]byte, 0, size))

	pb.writeUint32(FormatVersion)
	pb.writeString(m.baseName)
	pb.writeUint32(uint32(n))
	pb.writeUint32(uint32(len(changeIDs)))

	// Overflow counts are only known after laying out the entries.
	overflowParentsAt := len(pb.buf)
	pb.writeUint32(0)
	pb.writeUint32(uint32(len(overflowChanges)))

	for i := range m.entries {
		e := &m.entries[i]
		p1, p2 := NoParent, NoParent
		switch len(e.parents) {
		case 0:
		case 1:
			p1 = uint32(e.parents[0])
		case 2:
			p1, p2 = uint32(e.parents[0]), uint32(e.parents[1])
		default:
			p1 = uint32(len(overflowParents)) | overflowBit
			p2 = uint32(len(e.parents))
			for _, p := range e.parents {
				overflowParents = append(overflowParents, uint32(p))
			}
		}
		pb.writeUint32(e.generation)
		pb.writeUint32(p1)
		pb.writeUint32(p2)
		pb.writeUint32(changeIndex[string(e.changeID)])
		pb.buf = append(pb.buf, e.commitID...)
	}
	binary.LittleEndian.PutUint32(pb.buf[overflowParentsAt:], uint32(len(overflowParents)))

	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(a, b int) bool {
		return m.entries[order[a]].commitID.Compare(m.entries[order[b]].commitID) < 0
	})
	for _, local := range order {
		pb.buf = append(pb.buf, m.entries[local].commitID...)
		pb.writeUint32(local)
	}

	for _, id := range changeIDs {
		pb.buf = append(pb.buf, id...)
	}
	for _, v := range changePosTable {
		pb.writeUint32(v)
	}
	for _, v := range overflowParents {
		pb.writeUint32(v)
	}
	for _, v := range overflowChanges {
		pb.writeUint32(v)
	}

	pb.writeUint32(hash.CRC32C(pb.buf))
	return pb.buf, hash.ContentName(pb.buf)
}
