package segment

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/revindex/model"
)

const (
	// FormatVersion is the only segment format version this package reads and writes.
	FormatVersion uint32 = 1

	// NoParent marks an unused parent slot.
	NoParent uint32 = 0xFFFFFFFF

	// MaxPositions bounds the number of commits in one chain; the high bit of
	// a position slot is reserved for overflow references.
	MaxPositions = 1 << 31

	overflowBit uint32 = 1 << 31

	entryFixedSize = 16
	trailerSize    = 4
)

// Layout holds the id widths of one index. All segments of an index share it.
type Layout struct {
	CommitIDLength int
	ChangeIDLength int
}

// DefaultLayout returns the default id widths.
func DefaultLayout() Layout {
	return Layout{CommitIDLength: 20, ChangeIDLength: 16}
}

// Validate rejects non-positive id widths.
func (l Layout) Validate() error {
	if l.CommitIDLength <= 0 || l.ChangeIDLength <= 0 {
		return fmt.Errorf("invalid id lengths: commit=%d change=%d", l.CommitIDLength, l.ChangeIDLength)
	}
	return nil
}

func (l Layout) entrySize() int  { return entryFixedSize + l.CommitIDLength }
func (l Layout) lookupSize() int { return l.CommitIDLength + 4 }

// Header is the decoded fixed part of a segment file.
type Header struct {
	Version                    uint32
	BaseName                   string
	NumLocalCommits            uint32
	NumChangeIDs               uint32
	NumOverflowParents         uint32
	NumOverflowChangePositions uint32

	size int
}

// ParseHeader decodes the header of an encoded segment. It is cheap and does not
// validate the rest of the file.
func ParseHeader(data []byte) (Header, error) {
	r := newPayloadBuffer(data)
	var h Header
	h.Version = r.readUint32()
	if r.err == nil && h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: %w: %d", ErrCorrupt, ErrIncompatibleVersion, h.Version)
	}
	h.BaseName = r.readString()
	h.NumLocalCommits = r.readUint32()
	h.NumChangeIDs = r.readUint32()
	h.NumOverflowParents = r.readUint32()
	h.NumOverflowChangePositions = r.readUint32()
	if r.err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrCorrupt, r.err)
	}
	h.size = r.pos
	return h, nil
}

// expectedSize returns the exact file length implied by the header counts.
func (h Header) expectedSize(l Layout) uint64 {
	n := uint64(h.NumLocalCommits)
	return uint64(h.size) +
		n*uint64(l.entrySize()) +
		n*uint64(l.lookupSize()) +
		uint64(h.NumChangeIDs)*uint64(l.ChangeIDLength+4) +
		uint64(h.NumOverflowParents)*4 +
		uint64(h.NumOverflowChangePositions)*4 +
		trailerSize
}

// payloadBuffer reads and writes little-endian fields with a sticky error.
type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	p.writeUint32(uint32(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readString() string {
	l := p.readUint32()
	if p.err != nil {
		return ""
	}
	if uint64(p.pos)+uint64(l) > uint64(len(p.buf)) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+int(l)])
	p.pos += int(l)
	return s
}

// Reader is the read interface shared by persisted and in-memory segments.
// Local positions are relative to the segment; parent positions are global.
type Reader interface {
	NumLocalCommits() uint32
	NumParentCommits() uint32
	CommitID(local uint32) model.CommitID
	ChangeID(local uint32) model.ChangeID
	Generation(local uint32) uint32
	Parents(local uint32) []model.Position
	Lookup(id model.CommitID) (uint32, bool)
	// ResolvePrefix returns the single local id matching p, and the number of
	// matches capped at 2.
	ResolvePrefix(p model.HexPrefix) (model.CommitID, int)
	// Neighbors returns the closest local ids sorting before and after id,
	// excluding id itself. Either may be nil.
	Neighbors(id model.CommitID) (prev, next model.CommitID)
}
