package segment

import (
	"bytes"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = Layout{CommitIDLength: 4, ChangeIDLength: 2}

func cid(b byte) model.CommitID { return model.CommitID{b, b, b, b} }
func chg(b byte) model.ChangeID { return model.ChangeID{b, b} }

// buildMutable creates root(0), a(1), b(2), c(3) with c merging 0,1,2 and
// a and b sharing one change id.
func buildMutable(t *testing.T) *Mutable {
	t.Helper()
	m := NewMutable(testLayout, "", 0)
	require.NoError(t, m.Add(cid(0x00), chg(0x00), 0, nil))
	require.NoError(t, m.Add(cid(0x30), chg(0x11), 1, []model.Position{0}))
	require.NoError(t, m.Add(cid(0x10), chg(0x11), 1, []model.Position{0}))
	require.NoError(t, m.Add(cid(0x20), chg(0x22), 2, []model.Position{0, 1, 2}))
	return m
}

func TestMutable_EncodeDecode(t *testing.T) {
	m := buildMutable(t)
	data, name := m.Encode()
	assert.Equal(t, hash.ContentName(data), name)

	f, err := Decode(name, data, 0, testLayout)
	require.NoError(t, err)

	assert.Equal(t, name, f.Name())
	assert.Equal(t, "", f.BaseName())
	assert.Equal(t, uint32(4), f.NumLocalCommits())
	assert.Equal(t, uint32(4), f.NumCommits())
	assert.Equal(t, uint32(3), f.NumChangeIDs())

	for local := uint32(0); local < m.NumLocalCommits(); local++ {
		assert.Equal(t, m.CommitID(local), f.CommitID(local))
		assert.Equal(t, m.ChangeID(local), f.ChangeID(local))
		assert.Equal(t, m.Generation(local), f.Generation(local))
		assert.Equal(t, m.Parents(local), f.Parents(local))
	}
	assert.Empty(t, f.Parents(0))
	assert.Len(t, f.Parents(1), 1)
	assert.Len(t, f.Parents(3), 3)

	local, ok := f.Lookup(cid(0x10))
	require.True(t, ok)
	assert.Equal(t, uint32(2), local)
	_, ok = f.Lookup(cid(0x99))
	assert.False(t, ok)

	assert.Equal(t, []uint32{1, 2}, changeIDPositions(f, chg(0x11)))
	assert.Equal(t, []uint32{3}, changeIDPositions(f, chg(0x22)))
	assert.Nil(t, changeIDPositions(f, chg(0x33)))
}

func TestSegment_ChainedPositions(t *testing.T) {
	base := buildMutable(t)
	baseData, baseName := base.Encode()
	baseFile, err := Decode(baseName, baseData, 0, testLayout)
	require.NoError(t, err)

	m := NewMutable(testLayout, baseName, baseFile.NumCommits())
	require.NoError(t, m.Add(cid(0x40), chg(0x44), 3, []model.Position{3}))
	data, name := m.Encode()

	f, err := Decode(name, data, baseFile.NumCommits(), testLayout)
	require.NoError(t, err)
	assert.Equal(t, baseName, f.BaseName())
	assert.Equal(t, uint32(4), f.NumParentCommits())
	assert.Equal(t, uint32(5), f.NumCommits())
	assert.Equal(t, []model.Position{3}, f.Parents(0))

	// Decoding with the wrong base offset makes the parent a forward reference.
	_, err = Decode(name, data, 0, testLayout)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSegment_PrefixAndNeighbors(t *testing.T) {
	m := buildMutable(t)
	data, name := m.Encode()
	f, err := Decode(name, data, 0, testLayout)
	require.NoError(t, err)

	for _, r := range []Reader{m, f} {
		id, n := r.ResolvePrefix(model.MustParseHexPrefix("1"))
		assert.Equal(t, 1, n)
		assert.Equal(t, cid(0x10), id)

		_, n = r.ResolvePrefix(model.MustParseHexPrefix(""))
		assert.Equal(t, 2, n)

		_, n = r.ResolvePrefix(model.MustParseHexPrefix("5"))
		assert.Equal(t, 0, n)

		prev, next := r.Neighbors(cid(0x20))
		assert.Equal(t, cid(0x10), prev)
		assert.Equal(t, cid(0x30), next)

		prev, next = r.Neighbors(cid(0x25))
		assert.Equal(t, cid(0x20), prev)
		assert.Equal(t, cid(0x30), next)

		prev, next = r.Neighbors(cid(0x00))
		assert.Nil(t, prev)
		assert.Equal(t, cid(0x10), next)
	}
}

func TestSegment_SquashPreservesEntries(t *testing.T) {
	base := buildMutable(t)
	data, name := base.Encode()
	f, err := Decode(name, data, 0, testLayout)
	require.NoError(t, err)

	squashed := NewMutable(testLayout, "", 0)
	require.NoError(t, squashed.AddFrom(f))
	require.NoError(t, squashed.Add(cid(0x40), chg(0x44), 3, []model.Position{3}))

	assert.Equal(t, uint32(5), squashed.NumLocalCommits())
	assert.Equal(t, f.Parents(3), squashed.Parents(3))

	// Squashing out of order is rejected.
	assert.Error(t, squashed.AddFrom(f))
}

func TestMutable_AddValidation(t *testing.T) {
	m := NewMutable(testLayout, "", 0)
	assert.Error(t, m.Add(model.CommitID{1}, chg(1), 0, nil))
	assert.Error(t, m.Add(cid(1), model.ChangeID{1}, 0, nil))
	assert.Error(t, m.Add(cid(1), chg(1), 1, []model.Position{0}))
}

func TestDecode_Corruption(t *testing.T) {
	data, name := buildMutable(t).Encode()

	t.Run("Zeroes", func(t *testing.T) {
		_, err := Decode(name, make([]byte, 24), 0, testLayout)
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(name, data[:len(data)-1], 0, testLayout)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Extended", func(t *testing.T) {
		_, err := Decode(name, append(bytes.Clone(data), 0), 0, testLayout)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-trailerSize-1] ^= 0xff
		_, err := Decode(name, bad, 0, testLayout)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("ForwardParent", func(t *testing.T) {
		bad := bytes.Clone(data)
		h, err := ParseHeader(bad)
		require.NoError(t, err)
		// Point the root's first parent at itself and fix up the checksum.
		binary.LittleEndian.PutUint32(bad[h.size+4:], 0)
		binary.LittleEndian.PutUint32(bad[len(bad)-trailerSize:], hash.CRC32C(bad[:len(bad)-trailerSize]))
		_, err = Decode(name, bad, 0, testLayout)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("WrongLayout", func(t *testing.T) {
		_, err := Decode(name, data, 0, DefaultLayout())
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestLayoutValidate(t *testing.T) {
	assert.NoError(t, DefaultLayout().Validate())
	assert.Error(t, Layout{}.Validate())
}

// changeIDPositions reads the change-id position table of f.
func changeIDPositions(f *File, id model.ChangeID) []uint32 {
	n := int(f.header.NumChangeIDs)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(f.changeIDAt(uint32(i)), id) >= 0
	})
	if i == n || !bytes.Equal(f.changeIDAt(uint32(i)), id) {
		return nil
	}
	v := f.changePos(uint32(i))
	if v&overflowBit == 0 {
		return []uint32{v}
	}
	start := v &^ overflowBit
	end := f.header.NumOverflowChangePositions
	for j := uint32(i) + 1; j < f.header.NumChangeIDs; j++ {
		if next := f.changePos(j); next&overflowBit != 0 {
			end = next &^ overflowBit
			break
		}
	}
	positions := make([]uint32, 0, end-start)
	for j := start; j < end; j++ {
		positions = append(positions, f.overflowChange(j))
	}
	return positions
}
