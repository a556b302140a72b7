package store

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revindex/internal/hash"
)

func TestOpLinkRoundTrip(t *testing.T) {
	a := hash.ContentName([]byte("a"))
	b := hash.ContentName([]byte("b"))

	tests := []struct {
		name string
		link opLink
	}{
		{"empty", opLink{}},
		{"head only", opLink{Head: a}},
		{"changed paths without segments", opLink{Head: a, ChangedPaths: &changedPathLink{Start: 7}}},
		{"changed paths", opLink{Head: b, ChangedPaths: &changedPathLink{Start: 3, Segments: []string{a, b}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeOpLink(encodeOpLink(tt.link))
			require.NoError(t, err)
			assert.Equal(t, tt.link, got)
		})
	}
}

func TestDecodeOpLinkCorrupt(t *testing.T) {
	valid := encodeOpLink(opLink{Head: hash.ContentName([]byte("a"))})

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return f(b)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", valid[:linkHeader-1]},
		{"magic", mutate(func(b []byte) []byte { b[0] ^= 0xff; return b })},
		{"version", mutate(func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 9); return b })},
		{"checksum", mutate(func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b })},
		{"truncated", valid[:len(valid)-1]},
		{"trailing", mutate(func(b []byte) []byte { return append(b, 0) })},
		{"zeros", make([]byte, 24)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeOpLink(tt.data)
			assert.ErrorIs(t, err, ErrCorruptLink)
		})
	}
}

func TestDecodeLegacyLink(t *testing.T) {
	name := hash.ContentName([]byte("a"))

	l, err := decodeLegacyLink([]byte(name + "\n"))
	require.NoError(t, err)
	assert.Equal(t, opLink{Head: name}, l)

	l, err = decodeLegacyLink(nil)
	require.NoError(t, err)
	assert.Equal(t, opLink{}, l)

	_, err = decodeLegacyLink([]byte(strings.ToUpper(name)))
	assert.ErrorIs(t, err, ErrCorruptLink)
	_, err = decodeLegacyLink([]byte("not a name"))
	assert.ErrorIs(t, err, ErrCorruptLink)
}

func TestTopoOrder(t *testing.T) {
	parents := map[string][]string{
		"d": {"b", "c"},
		"c": {"a"},
		"b": {"a"},
		"a": nil,
	}
	got := topoOrder([]string{"d", "c", "b", "a"}, func(k string) []string { return parents[k] })
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)

	pos := make(map[string]int)
	for i, k := range got {
		pos[k] = i
	}
	for k, ps := range parents {
		for _, p := range ps {
			assert.Less(t, pos[p], pos[k], "%s before %s", p, k)
		}
	}
}
