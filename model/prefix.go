package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexPrefix is a hex-encoded id prefix that may have an odd number of digits.
type HexPrefix struct {
	// minBytes holds the complete bytes of the prefix.
	minBytes []byte
	// hasOddByte reports whether the last digit is held in oddNibble.
	hasOddByte bool
	oddNibble  byte
}

// ParseHexPrefix parses a hex prefix. Upper-case digits are accepted.
func ParseHexPrefix(s string) (HexPrefix, error) {
	s = strings.ToLower(s)
	even := s
	var p HexPrefix
	if len(s)%2 == 1 {
		even = s[:len(s)-1]
		n, err := hex.DecodeString(s[len(s)-1:] + "0")
		if err != nil {
			return HexPrefix{}, fmt.Errorf("invalid hex prefix %q: %w", s, err)
		}
		p.hasOddByte = true
		p.oddNibble = n[0]
	}
	b, err := hex.DecodeString(even)
	if err != nil {
		return HexPrefix{}, fmt.Errorf("invalid hex prefix %q: %w", s, err)
	}
	p.minBytes = b
	return p, nil
}

// MustParseHexPrefix is like ParseHexPrefix but panics on malformed input.
func MustParseHexPrefix(s string) HexPrefix {
	p, err := ParseHexPrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Hex returns the prefix as typed, lower-cased.
func (p HexPrefix) Hex() string {
	s := hex.EncodeToString(p.minBytes)
	if p.hasOddByte {
		s += hex.EncodeToString([]byte{p.oddNibble})[:1]
	}
	return s
}

// Len returns the number of hex digits in the prefix.
func (p HexPrefix) Len() int {
	n := 2 * len(p.minBytes)
	if p.hasOddByte {
		n++
	}
	return n
}

// MinPrefixBytes returns the smallest byte string starting with the prefix.
// It is the lower bound for a binary search over sorted ids.
func (p HexPrefix) MinPrefixBytes() []byte {
	if !p.hasOddByte {
		return p.minBytes
	}
	b := make([]byte, len(p.minBytes)+1)
	copy(b, p.minBytes)
	b[len(p.minBytes)] = p.oddNibble
	return b
}

// Matches reports whether id starts with the prefix.
func (p HexPrefix) Matches(id []byte) bool {
	if len(id) < len(p.minBytes) {
		return false
	}
	for i, b := range p.minBytes {
		if id[i] != b {
			return false
		}
	}
	if !p.hasOddByte {
		return true
	}
	if len(id) == len(p.minBytes) {
		return false
	}
	return id[len(p.minBytes)]&0xf0 == p.oddNibble
}

// CommonHexPrefixLen returns the number of leading hex digits a and b share.
func CommonHexPrefixLen(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			continue
		}
		if a[i]&0xf0 == b[i]&0xf0 {
			return 2*i + 1
		}
		return 2 * i
	}
	return 2 * n
}

// PrefixResolutionKind classifies the outcome of a prefix lookup.
type PrefixResolutionKind uint8

const (
	// NoMatch means no id starts with the prefix.
	NoMatch PrefixResolutionKind = iota
	// SingleMatch means exactly one target starts with the prefix.
	SingleMatch
	// AmbiguousMatch means at least two distinct targets start with the prefix.
	AmbiguousMatch
)

// String implements fmt.Stringer.
func (k PrefixResolutionKind) String() string {
	switch k {
	case NoMatch:
		return "NoMatch"
	case SingleMatch:
		return "SingleMatch"
	case AmbiguousMatch:
		return "AmbiguousMatch"
	default:
		return fmt.Sprintf("PrefixResolutionKind(%d)", uint8(k))
	}
}

// PrefixResolution is the result of resolving a short id.
// For a change-id SingleMatch, Matches holds every visible commit of that change.
type PrefixResolution struct {
	Kind    PrefixResolutionKind
	Matches []CommitID
}
