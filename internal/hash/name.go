package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentNameLength is the length in hex characters of names produced by ContentName.
const ContentNameLength = 2 * blake2b.Size

// ContentName returns the lower-case hex BLAKE2b-512 digest of data.
func ContentName(data []byte) string {
	sum := blake2b.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// IsContentName reports whether s has the shape of a name produced by ContentName.
func IsContentName(s string) bool {
	if len(s) != ContentNameLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
