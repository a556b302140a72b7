package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/revindex/model"
)

// ErrObjectNotFound is returned by the in-memory stores for unknown ids.
var ErrObjectNotFound = errors.New("object not found")

// OpStore is an in-memory operation log.
type OpStore struct {
	mu  sync.RWMutex
	ops map[string]*model.Operation
}

// NewOpStore returns an empty operation log.
func NewOpStore() *OpStore {
	return &OpStore{ops: make(map[string]*model.Operation)}
}

// Add records op.
func (s *OpStore) Add(op *model.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.ID.Hex()] = op
}

// Operation returns the operation with the given id.
func (s *OpStore) Operation(_ context.Context, id model.OperationID) (*model.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.ops[id.Hex()]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", id.Hex(), ErrObjectNotFound)
	}
	return op, nil
}

// CommitStore is an in-memory commit store.
type CommitStore struct {
	mu      sync.RWMutex
	commits map[string]*model.Commit
}

// NewCommitStore returns an empty commit store.
func NewCommitStore() *CommitStore {
	return &CommitStore{commits: make(map[string]*model.Commit)}
}

// Add records c.
func (s *CommitStore) Add(c *model.Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[c.ID.Hex()] = c
}

// Remove forgets the commit with the given id, simulating a damaged
// object store.
func (s *CommitStore) Remove(id model.CommitID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commits, id.Hex())
}

// Len returns the number of stored commits.
func (s *CommitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.commits)
}

// Commit returns the commit with the given id.
func (s *CommitStore) Commit(_ context.Context, id model.CommitID) (*model.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[id.Hex()]
	if !ok {
		return nil, fmt.Errorf("commit %s: %w", id.Hex(), ErrObjectNotFound)
	}
	return c, nil
}
