package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/model"
)

const (
	linkMagic   = 0x4c4f5852 // "RXOL"
	linkVersion = 1
	linkHeader  = 16
)

// opLink maps an operation to its index.
type opLink struct {
	// Head is the name of the newest commit segment.
	Head string
	// ChangedPaths is nil when the changed-path index is disabled.
	ChangedPaths *changedPathLink
}

type changedPathLink struct {
	Start    model.Position
	Segments []string // oldest first
}

// encodeOpLink serializes a link.
// Format:
//
//	Magic (4 bytes)
//	Version (4 bytes)
//	Checksum (4 bytes) - CRC32C of payload
//	PayloadLength (4 bytes)
//	Payload:
//	  Head (string)
//	  ChangedPathsEnabled (1 byte)
//	  ChangedPathStart (4 bytes)
//	  NumChangedPathSegments (4 bytes)
//	  ChangedPathSegments (strings)
//
// Strings are a 4-byte length followed by the bytes.
func encodeOpLink(l opLink) []byte {
	var p []byte
	p = appendString(p, l.Head)
	if cp := l.ChangedPaths; cp != nil {
		p = append(p, 1)
		p = binary.LittleEndian.AppendUint32(p, uint32(cp.Start))
		p = binary.LittleEndian.AppendUint32(p, uint32(len(cp.Segments)))
		for _, name := range cp.Segments {
			p = appendString(p, name)
		}
	} else {
		p = append(p, 0)
		p = binary.LittleEndian.AppendUint32(p, 0)
		p = binary.LittleEndian.AppendUint32(p, 0)
	}

	buf := make([]byte, linkHeader, linkHeader+len(p))
	binary.LittleEndian.PutUint32(buf[0:4], linkMagic)
	binary.LittleEndian.PutUint32(buf[4:8], linkVersion)
	binary.LittleEndian.PutUint32(buf[8:12], hash.CRC32C(p))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(p)))
	return append(buf, p...)
}

func decodeOpLink(data []byte) (opLink, error) {
	if len(data) < linkHeader {
		return opLink{}, fmt.Errorf("%w: too short", ErrCorruptLink)
	}
	if m := binary.LittleEndian.Uint32(data[0:4]); m != linkMagic {
		return opLink{}, fmt.Errorf("%w: bad magic %#x", ErrCorruptLink, m)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != linkVersion {
		return opLink{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptLink, v)
	}
	sum := binary.LittleEndian.Uint32(data[8:12])
	n := binary.LittleEndian.Uint32(data[12:16])
	p := data[linkHeader:]
	if uint64(n) != uint64(len(p)) {
		return opLink{}, fmt.Errorf("%w: payload length %d, have %d", ErrCorruptLink, n, len(p))
	}
	if hash.CRC32C(p) != sum {
		return opLink{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptLink)
	}

	r := &linkReader{buf: p}
	var l opLink
	l.Head = r.readString()
	enabled := r.readByte()
	start := r.readUint32()
	count := r.readUint32()
	if enabled != 0 {
		cp := &changedPathLink{Start: model.Position(start)}
		for i := uint32(0); i < count && r.err == nil; i++ {
			cp.Segments = append(cp.Segments, r.readString())
		}
		l.ChangedPaths = cp
	}
	if r.err != nil {
		return opLink{}, fmt.Errorf("%w: %w", ErrCorruptLink, r.err)
	}
	if r.pos != len(p) {
		return opLink{}, fmt.Errorf("%w: trailing bytes", ErrCorruptLink)
	}
	return l, nil
}

// decodeLegacyLink parses a legacy link, which holds the hex name of the
// head segment and nothing else. An empty link refers to an empty index.
func decodeLegacyLink(data []byte) (opLink, error) {
	name := strings.TrimSpace(string(data))
	if name != "" && !hash.IsContentName(name) {
		return opLink{}, fmt.Errorf("%w: legacy link %q", ErrCorruptLink, name)
	}
	return opLink{Head: name}, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

type linkReader struct {
	buf []byte
	pos int
	err error
}

func (r *linkReader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos+1 > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *linkReader) readUint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *linkReader) readString() string {
	n := r.readUint32()
	if r.err != nil {
		return ""
	}
	if uint64(r.pos)+uint64(n) > uint64(len(r.buf)) {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}
