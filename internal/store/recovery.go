package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/model"
)

// BuildIndexAtOperation rebuilds the index of op from the newest indexed
// ancestor operations. Operations without a usable index are replayed by
// indexing every commit their views reference, so hidden commits that are
// still referenced stay indexed. The result is written and linked to op.
func (s *Store) BuildIndexAtOperation(ctx context.Context, op *model.Operation) (ro *index.Readonly, err error) {
	start := time.Now()
	var added uint32
	defer func() { s.metrics.RecordRecovery(int(added), time.Since(start), err) }()

	candidates, replay, err := s.findIndexedAncestors(ctx, op)
	if err != nil {
		return nil, err
	}

	base := s.Empty()
	for _, c := range candidates {
		if c.NumCommits() > base.NumCommits() {
			base = c
		}
	}
	m := s.StartTransaction(base)
	for _, c := range candidates {
		if c == base {
			continue
		}
		if err := m.MergeIn(c); err != nil {
			return nil, err
		}
	}

	s.logger.Info("rebuilding index",
		"op", op.ID.Hex(),
		"base_commits", base.NumCommits(),
		"indexed_ancestors", len(candidates),
		"ops_to_replay", len(replay),
	)

	progress := s.progress()
	for i, o := range replay {
		if err := s.indexOperationHeads(ctx, m, o); err != nil {
			return nil, err
		}
		progress.Do(func() {
			s.logger.Info("rebuilding index", "ops_done", i+1, "ops_total", len(replay), "commits_added", m.NumNewCommits())
		})
	}
	added = m.NumNewCommits()

	ro, err = s.WriteIndex(ctx, m, op.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rebuilt index", "op", op.ID.Hex(), "commits", ro.NumCommits(), "commits_added", added, "took", time.Since(start))
	return ro, nil
}

// findIndexedAncestors walks the operation log from op. Operations with a
// loadable index end the walk along their path and are returned as
// candidates. The others are returned parents first.
func (s *Store) findIndexedAncestors(ctx context.Context, op *model.Operation) ([]*index.Readonly, []*model.Operation, error) {
	var candidates []*index.Readonly
	unindexed := make(map[string]*model.Operation)
	var order []string

	seen := map[string]bool{op.ID.Hex(): true}
	queue := []*model.Operation{op}
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]

		ro, err := s.loadAtOperation(ctx, o.ID)
		switch {
		case err == nil:
			candidates = append(candidates, ro)
			continue
		case errors.Is(err, blobstore.ErrNotFound):
		case isDamaged(err):
			s.logger.Warn("ignoring damaged index", "op", o.ID.Hex(), "error", err)
		default:
			return nil, nil, err
		}

		key := o.ID.Hex()
		unindexed[key] = o
		order = append(order, key)
		for _, pid := range o.Parents {
			if seen[pid.Hex()] {
				continue
			}
			seen[pid.Hex()] = true
			parent, err := s.ops.Operation(ctx, pid)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read operation %s: %w", pid.Hex(), err)
			}
			queue = append(queue, parent)
		}
	}

	sorted := topoOrder(order, func(key string) []string {
		var ps []string
		for _, pid := range unindexed[key].Parents {
			if _, ok := unindexed[pid.Hex()]; ok {
				ps = append(ps, pid.Hex())
			}
		}
		return ps
	})
	replay := make([]*model.Operation, len(sorted))
	for i, key := range sorted {
		replay[i] = unindexed[key]
	}
	return candidates, replay, nil
}

// indexOperationHeads adds the heads of o and all their ancestors missing
// from m, parents first.
func (s *Store) indexOperationHeads(ctx context.Context, m *index.Mutable, o *model.Operation) error {
	commits := make(map[string]*model.Commit)
	var order []string

	stack := make([]model.CommitID, 0, len(o.Heads))
	for i := len(o.Heads) - 1; i >= 0; i-- {
		stack = append(stack, o.Heads[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := id.Hex()
		if _, ok := commits[key]; ok || m.HasID(id) {
			continue
		}
		c, err := s.commits.Commit(ctx, id)
		if err != nil {
			return &IndexCommitsError{OpID: o.ID, Err: err}
		}
		commits[key] = c
		order = append(order, key)
		for i := len(c.Parents) - 1; i >= 0; i-- {
			stack = append(stack, c.Parents[i])
		}
	}

	sorted := topoOrder(order, func(key string) []string {
		var ps []string
		for _, pid := range commits[key].Parents {
			if _, ok := commits[pid.Hex()]; ok {
				ps = append(ps, pid.Hex())
			}
		}
		return ps
	})
	for _, key := range sorted {
		if err := m.AddCommit(*commits[key]); err != nil {
			return &IndexCommitsError{OpID: o.ID, Err: err}
		}
	}
	return nil
}

// topoOrder returns nodes ordered so that every node follows its parents.
// Ties keep the order of nodes.
func topoOrder(nodes []string, parents func(string) []string) []string {
	type frame struct {
		key  string
		next int
		ps   []string
	}

	out := make([]string, 0, len(nodes))
	done := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool)
	for _, n := range nodes {
		if done[n] {
			continue
		}
		stack := []frame{{key: n, ps: parents(n)}}
		onStack[n] = true
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.ps) {
				p := top.ps[top.next]
				top.next++
				if done[p] || onStack[p] {
					continue
				}
				onStack[p] = true
				stack = append(stack, frame{key: p, ps: parents(p)})
				continue
			}
			done[top.key] = true
			delete(onStack, top.key)
			out = append(out, top.key)
			stack = stack[:len(stack)-1]
		}
	}
	return out
}
