package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/model"
)

// File is a decoded, immutable segment. All accessors slice the encoded bytes
// directly and must treat returned ids as read-only.
type File struct {
	name             string
	header           Header
	layout           Layout
	numParentCommits uint32
	data             []byte

	entriesOff        int
	lookupOff         int
	changeIDsOff      int
	changePosOff      int
	overflowParentOff int
	overflowChangeOff int
}

var _ Reader = (*File)(nil)

// Decode validates and decodes an encoded segment. numParentCommits is the
// number of commits in the base chain, i.e. the global position of the first
// local entry.
func Decode(name string, data []byte, numParentCommits uint32, layout Layout) (*File, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if want := h.expectedSize(layout); uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: length %d does not match header (want %d)", ErrCorrupt, len(data), want)
	}

	body := data[:len(data)-trailerSize]
	if sum := binary.LittleEndian.Uint32(data[len(data)-trailerSize:]); hash.CRC32C(body) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if uint64(numParentCommits)+uint64(h.NumLocalCommits) > MaxPositions {
		return nil, fmt.Errorf("%w: too many commits", ErrCorrupt)
	}

	n := int(h.NumLocalCommits)
	f := &File{
		name:             name,
		header:           h,
		layout:           layout,
		numParentCommits: numParentCommits,
		data:             data,
	}
	f.entriesOff = h.size
	f.lookupOff = f.entriesOff + n*layout.entrySize()
	f.changeIDsOff = f.lookupOff + n*layout.lookupSize()
	f.changePosOff = f.changeIDsOff + int(h.NumChangeIDs)*layout.ChangeIDLength
	f.overflowParentOff = f.changePosOff + int(h.NumChangeIDs)*4
	f.overflowChangeOff = f.overflowParentOff + int(h.NumOverflowParents)*4

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	h := f.header
	for local := uint32(0); local < h.NumLocalCommits; local++ {
		own := f.numParentCommits + local
		e := f.entry(local)
		p1 := binary.LittleEndian.Uint32(e[4:])
		p2 := binary.LittleEndian.Uint32(e[8:])
		if p1 != NoParent && p1&overflowBit != 0 {
			start, count := p1&^overflowBit, p2
			if uint64(start)+uint64(count) > uint64(h.NumOverflowParents) || count < 3 {
				return fmt.Errorf("%w: entry %d: overflow parents out of range", ErrCorrupt, local)
			}
			for i := uint32(0); i < count; i++ {
				if f.overflowParent(start+i) >= own {
					return fmt.Errorf("%w: entry %d: parent is not older than child", ErrCorrupt, local)
				}
			}
		} else {
			if p1 == NoParent && p2 != NoParent {
				return fmt.Errorf("%w: entry %d: second parent without first", ErrCorrupt, local)
			}
			if (p1 != NoParent && p1 >= own) || (p2 != NoParent && p2 >= own) {
				return fmt.Errorf("%w: entry %d: parent is not older than child", ErrCorrupt, local)
			}
		}
		if idx := binary.LittleEndian.Uint32(e[12:]); idx >= h.NumChangeIDs {
			return fmt.Errorf("%w: entry %d: change id index out of range", ErrCorrupt, local)
		}
		if pos := f.lookupPos(local); pos >= h.NumLocalCommits {
			return fmt.Errorf("%w: lookup %d: position out of range", ErrCorrupt, local)
		}
	}
	nextRun := uint32(0)
	for i := uint32(0); i < h.NumChangeIDs; i++ {
		v := f.changePos(i)
		if v&overflowBit != 0 {
			start := v &^ overflowBit
			if start >= h.NumOverflowChangePositions || start < nextRun {
				return fmt.Errorf("%w: change id %d: overflow out of range", ErrCorrupt, i)
			}
			nextRun = start + 1
		} else if v >= h.NumLocalCommits {
			return fmt.Errorf("%w: change id %d: position out of range", ErrCorrupt, i)
		}
	}
	for i := uint32(0); i < h.NumOverflowChangePositions; i++ {
		if f.overflowChange(i) >= h.NumLocalCommits {
			return fmt.Errorf("%w: overflow change position %d out of range", ErrCorrupt, i)
		}
	}
	return nil
}

// Name returns the content-derived file name.
func (f *File) Name() string { return f.name }

// BaseName returns the name of the base segment, or "" for the oldest segment.
func (f *File) BaseName() string { return f.header.BaseName }

// Size returns the encoded size in bytes.
func (f *File) Size() int { return len(f.data) }

// NumLocalCommits returns the number of entries stored in this segment.
func (f *File) NumLocalCommits() uint32 { return f.header.NumLocalCommits }

// NumParentCommits returns the number of commits in the base chain.
func (f *File) NumParentCommits() uint32 { return f.numParentCommits }

// NumCommits returns the number of commits in the chain ending at this segment.
func (f *File) NumCommits() uint32 { return f.numParentCommits + f.header.NumLocalCommits }

// NumChangeIDs returns the number of distinct change ids stored in this segment.
func (f *File) NumChangeIDs() uint32 { return f.header.NumChangeIDs }

func (f *File) entry(local uint32) []byte {
	off := f.entriesOff + int(local)*f.layout.entrySize()
	return f.data[off : off+f.layout.entrySize()]
}

func (f *File) lookupID(i uint32) []byte {
	off := f.lookupOff + int(i)*f.layout.lookupSize()
	return f.data[off : off+f.layout.CommitIDLength]
}

func (f *File) lookupPos(i uint32) uint32 {
	off := f.lookupOff + int(i)*f.layout.lookupSize() + f.layout.CommitIDLength
	return binary.LittleEndian.Uint32(f.data[off:])
}

func (f *File) changeIDAt(i uint32) []byte {
	off := f.changeIDsOff + int(i)*f.layout.ChangeIDLength
	return f.data[off : off+f.layout.ChangeIDLength]
}

func (f *File) changePos(i uint32) uint32 {
	return binary.LittleEndian.Uint32(f.data[f.changePosOff+int(i)*4:])
}

func (f *File) overflowParent(i uint32) uint32 {
	return binary.LittleEndian.Uint32(f.data[f.overflowParentOff+int(i)*4:])
}

func (f *File) overflowChange(i uint32) uint32 {
	return binary.LittleEndian.Uint32(f.data[f.overflowChangeOff+int(i)*4:])
}

// CommitID returns the commit id of a local entry.
func (f *File) CommitID(local uint32) model.CommitID {
	return model.CommitID(f.entry(local)[entryFixedSize:])
}

// ChangeID returns the change id of a local entry.
func (f *File) ChangeID(local uint32) model.ChangeID {
	idx := binary.LittleEndian.Uint32(f.entry(local)[12:])
	return model.ChangeID(f.changeIDAt(idx))
}

// Generation returns the generation number of a local entry.
func (f *File) Generation(local uint32) uint32 {
	return binary.LittleEndian.Uint32(f.entry(local))
}

// Parents returns the global parent positions of a local entry, in parent order.
func (f *File) Parents(local uint32) []model.Position {
	e := f.entry(local)
	p1 := binary.LittleEndian.Uint32(e[4:])
	p2 := binary.LittleEndian.Uint32(e[8:])
	switch {
	case p1 == NoParent:
		return nil
	case p1&overflowBit != 0:
		start := p1 &^ overflowBit
		parents := make([]model.Position, p2)
		for i := range parents {
			parents[i] = model.Position(f.overflowParent(start + uint32(i)))
		}
		return parents
	case p2 == NoParent:
		return []model.Position{model.Position(p1)}
	default:
		return []model.Position{model.Position(p1), model.Position(p2)}
	}
}

// Lookup finds the local position of a commit id.
func (f *File) Lookup(id model.CommitID) (uint32, bool) {
	n := int(f.header.NumLocalCommits)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(f.lookupID(uint32(i)), id) >= 0
	})
	if i < n && bytes.Equal(f.lookupID(uint32(i)), id) {
		return f.lookupPos(uint32(i)), true
	}
	return 0, false
}

// ResolvePrefix returns the local commit id matching p and the match count capped at 2.
func (f *File) ResolvePrefix(p model.HexPrefix) (model.CommitID, int) {
	n := int(f.header.NumLocalCommits)
	lower := p.MinPrefixBytes()
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(f.lookupID(uint32(i)), lower) >= 0
	})
	var match model.CommitID
	count := 0
	for ; i < n && count < 2; i++ {
		id := f.lookupID(uint32(i))
		if !p.Matches(id) {
			break
		}
		match = model.CommitID(id)
		count++
	}
	if count != 1 {
		return nil, count
	}
	return match, 1
}

// Neighbors returns the local ids sorting immediately before and after id.
func (f *File) Neighbors(id model.CommitID) (prev, next model.CommitID) {
	n := int(f.header.NumLocalCommits)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(f.lookupID(uint32(i)), id) >= 0
	})
	if i > 0 {
		prev = model.CommitID(f.lookupID(uint32(i - 1)))
	}
	if i < n && bytes.Equal(f.lookupID(uint32(i)), id) {
		i++
	}
	if i < n {
		next = model.CommitID(f.lookupID(uint32(i)))
	}
	return prev, next
}
