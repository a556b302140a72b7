package changedpath

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/willf/bloom"

	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/model"
)

// FormatVersion is the changed-path segment format version.
const FormatVersion uint32 = 1

const (
	headerSize = 4 + 4 + 1 + 6*4
	crcSize    = 4

	bloomFalsePositiveRate = 0.01
)

var magic = [4]byte{'R', 'X', 'C', 'P'}

type payload struct {
	Paths    []string   `msgpack:"paths"`
	Commits  [][]uint32 `msgpack:"commits"`
	Postings [][]byte   `msgpack:"postings"`
	Bloom    []byte     `msgpack:"bloom"`
}

// Segment is an immutable changed-path segment.
type Segment struct {
	name            string
	size            int
	start           model.Position
	paths           []string
	commits         [][]uint32
	postings        []*roaring.Bitmap
	filter          *bloom.BloomFilter
	numChangedPaths uint32
}

// Name returns the content-derived file name of the segment.
func (s *Segment) Name() string { return s.name }

// Size returns the encoded size in bytes.
func (s *Segment) Size() int { return s.size }

// Start returns the first covered position.
func (s *Segment) Start() model.Position { return s.start }

// End returns the position after the last covered one.
func (s *Segment) End() model.Position { return s.start + model.Position(len(s.commits)) }

// NumCommits returns the number of covered commits.
func (s *Segment) NumCommits() uint32 { return uint32(len(s.commits)) }

// NumChangedPaths returns the total number of (commit, path) pairs.
func (s *Segment) NumChangedPaths() uint32 { return s.numChangedPaths }

// NumPaths returns the number of distinct paths.
func (s *Segment) NumPaths() uint32 { return uint32(len(s.paths)) }

// ChangedPaths returns the sorted paths changed by the commit at pos.
func (s *Segment) ChangedPaths(pos model.Position) ([]string, bool) {
	if pos < s.start || pos >= s.End() {
		return nil, false
	}
	idx := s.commits[pos-s.start]
	out := make([]string, len(idx))
	for i, p := range idx {
		out[i] = s.paths[p]
	}
	return out, true
}

// MayContain reports whether path might have been changed by a covered
// commit. False positives are possible.
func (s *Segment) MayContain(path string) bool {
	return s.filter.Test([]byte(path))
}

// Touching returns the positions of the covered commits that changed path,
// or nil.
func (s *Segment) Touching(path string) *roaring.Bitmap {
	if !s.MayContain(path) {
		return nil
	}
	i, ok := slices.BinarySearch(s.paths, path)
	if !ok {
		return nil
	}
	return s.postings[i]
}

// encode serializes per-commit path lists covering [start, start+len(commits)).
// Each list must be sorted and free of duplicates.
func encode(start model.Position, commits [][]string, c Compression) ([]byte, string, error) {
	var distinct []string
	var numChangedPaths uint32
	for _, paths := range commits {
		distinct = append(distinct, paths...)
		numChangedPaths += uint32(len(paths))
	}
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	p := payload{
		Paths:    distinct,
		Commits:  make([][]uint32, len(commits)),
		Postings: make([][]byte, len(distinct)),
	}
	postings := make([]*roaring.Bitmap, len(distinct))
	for i := range postings {
		postings[i] = roaring.New()
	}
	filter := bloom.NewWithEstimates(uint(max(len(distinct), 1)), bloomFalsePositiveRate)
	for _, path := range distinct {
		filter.Add([]byte(path))
	}
	for local, paths := range commits {
		idx := make([]uint32, len(paths))
		for j, path := range paths {
			k, _ := slices.BinarySearch(distinct, path)
			idx[j] = uint32(k)
			postings[k].Add(uint32(start) + uint32(local))
		}
		p.Commits[local] = idx
	}
	for i, bm := range postings {
		bm.RunOptimize()
		b, err := bm.ToBytes()
		if err != nil {
			return nil, "", err
		}
		p.Postings[i] = b
	}
	fb, err := filter.GobEncode()
	if err != nil {
		return nil, "", err
	}
	p.Bloom = fb

	raw, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, "", err
	}
	stored, c, err := compress(raw, c)
	if err != nil {
		return nil, "", err
	}

	buf := make([]byte, 0, headerSize+len(stored)+crcSize)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, FormatVersion)
	buf = append(buf, byte(c))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(start))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(commits)))
	buf = binary.LittleEndian.AppendUint32(buf, numChangedPaths)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(distinct)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(stored)))
	buf = append(buf, stored...)
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(buf))

	return buf, hash.ContentName(buf), nil
}

func corrupt(name, format string, args ...any) error {
	return fmt.Errorf("%w: changed-path segment %s: %s", segment.ErrCorrupt, name, fmt.Sprintf(format, args...))
}

// Decode parses and validates an encoded changed-path segment. data is not
// retained.
func Decode(name string, data []byte) (*Segment, error) {
	if len(data) < headerSize+crcSize {
		return nil, corrupt(name, "too short (%d bytes)", len(data))
	}
	if [4]byte(data[:4]) != magic {
		return nil, corrupt(name, "bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %w: changed-path segment %s: version %d",
			segment.ErrCorrupt, segment.ErrIncompatibleVersion, name, v)
	}
	c := Compression(data[8])
	start := binary.LittleEndian.Uint32(data[9:])
	numCommits := binary.LittleEndian.Uint32(data[13:])
	numChangedPaths := binary.LittleEndian.Uint32(data[17:])
	numPaths := binary.LittleEndian.Uint32(data[21:])
	rawSize := binary.LittleEndian.Uint32(data[25:])
	storedSize := binary.LittleEndian.Uint32(data[29:])

	if !c.valid() {
		return nil, corrupt(name, "unknown compression %d", c)
	}
	if uint64(headerSize)+uint64(storedSize)+crcSize != uint64(len(data)) {
		return nil, corrupt(name, "length %d does not match header", len(data))
	}
	if uint64(start)+uint64(numCommits) > segment.MaxPositions {
		return nil, corrupt(name, "position range overflows")
	}
	body := data[:len(data)-crcSize]
	if got, want := hash.CRC32C(body), binary.LittleEndian.Uint32(data[len(body):]); got != want {
		return nil, corrupt(name, "checksum mismatch")
	}

	raw, err := decompress(body[headerSize:], c, rawSize)
	if err != nil {
		return nil, corrupt(name, "payload: %v", err)
	}
	var p payload
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return nil, corrupt(name, "payload: %v", err)
	}

	if uint32(len(p.Commits)) != numCommits || uint32(len(p.Paths)) != numPaths || len(p.Postings) != len(p.Paths) {
		return nil, corrupt(name, "payload counts do not match header")
	}
	for i := 1; i < len(p.Paths); i++ {
		if p.Paths[i-1] >= p.Paths[i] {
			return nil, corrupt(name, "paths not sorted")
		}
	}
	var total uint32
	for _, idx := range p.Commits {
		for j, k := range idx {
			if k >= numPaths || (j > 0 && idx[j-1] >= k) {
				return nil, corrupt(name, "bad path index")
			}
		}
		total += uint32(len(idx))
	}
	if total != numChangedPaths {
		return nil, corrupt(name, "changed-path count mismatch")
	}

	s := &Segment{
		name:            name,
		size:            len(data),
		start:           model.Position(start),
		paths:           p.Paths,
		commits:         p.Commits,
		postings:        make([]*roaring.Bitmap, len(p.Postings)),
		filter:          &bloom.BloomFilter{},
		numChangedPaths: numChangedPaths,
	}
	for i, b := range p.Postings {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(b); err != nil {
			return nil, corrupt(name, "posting %d: %v", i, err)
		}
		s.postings[i] = bm
	}
	if err := s.filter.GobDecode(p.Bloom); err != nil {
		return nil, corrupt(name, "bloom filter: %v", err)
	}
	return s, nil
}
