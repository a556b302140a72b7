package model

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Position is the dense, global index of a commit within one index snapshot.
// A commit's position is always greater than the positions of its parents.
type Position uint32

// CommitID is the content hash of a commit. The index never interprets its bytes.
type CommitID []byte

// Hex returns the lower-case hex encoding of the id.
func (id CommitID) Hex() string { return hex.EncodeToString(id) }

// String implements fmt.Stringer.
func (id CommitID) String() string { return id.Hex() }

// Equal reports whether both ids have the same bytes.
func (id CommitID) Equal(other CommitID) bool { return bytes.Equal(id, other) }

// Compare orders ids lexicographically by their bytes.
func (id CommitID) Compare(other CommitID) int { return bytes.Compare(id, other) }

// Clone returns a copy that does not alias the receiver.
func (id CommitID) Clone() CommitID { return bytes.Clone(id) }

// ChangeID is the stable identifier of a change. Several commits may share one
// change id when a change has diverged.
type ChangeID []byte

// Hex returns the lower-case hex encoding of the id.
func (id ChangeID) Hex() string { return hex.EncodeToString(id) }

// String implements fmt.Stringer.
func (id ChangeID) String() string { return id.Hex() }

// Equal reports whether both ids have the same bytes.
func (id ChangeID) Equal(other ChangeID) bool { return bytes.Equal(id, other) }

// Compare orders ids lexicographically by their bytes.
func (id ChangeID) Compare(other ChangeID) int { return bytes.Compare(id, other) }

// OperationID names an entry in the operation log. It is an opaque version token.
type OperationID []byte

// Hex returns the lower-case hex encoding of the id.
func (id OperationID) Hex() string { return hex.EncodeToString(id) }

// String implements fmt.Stringer.
func (id OperationID) String() string { return id.Hex() }

// Equal reports whether both ids have the same bytes.
func (id OperationID) Equal(other OperationID) bool { return bytes.Equal(id, other) }

// CommitIDFromHex decodes a full-length hex commit id.
func CommitIDFromHex(s string) (CommitID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid commit id %q: %w", s, err)
	}
	return CommitID(b), nil
}

// ChangeIDFromHex decodes a full-length hex change id.
func ChangeIDFromHex(s string) (ChangeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid change id %q: %w", s, err)
	}
	return ChangeID(b), nil
}

// OperationIDFromHex decodes a full-length hex operation id.
func OperationIDFromHex(s string) (OperationID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid operation id %q: %w", s, err)
	}
	return OperationID(b), nil
}

// Commit is the subset of a commit object the index consumes.
type Commit struct {
	ID       CommitID
	ChangeID ChangeID
	// Parents are ordered; the first parent is the mainline.
	Parents []CommitID
	// ChangedPaths lists the repository paths that differ from the parents.
	// Only consulted when the changed-path index is enabled.
	ChangedPaths []string
}

// Operation is an operation-log entry as seen by the index.
type Operation struct {
	ID      OperationID
	Parents []OperationID
	// Heads lists every commit the operation's view references, including
	// commits that have since been hidden.
	Heads []CommitID
}
