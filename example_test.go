package revindex_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/revindex"
	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/model"
	"github.com/hupe1980/revindex/testutil"
)

func Example() {
	ctx := context.Background()

	ops := testutil.NewOpStore()
	commits := testutil.NewCommitStore()

	root := &model.Commit{ID: make(model.CommitID, 20), ChangeID: make(model.ChangeID, 16)}
	commits.Add(root)
	rootOp := &model.Operation{ID: model.OperationID{1}, Heads: []model.CommitID{root.ID}}
	ops.Add(rootOp)

	s, err := revindex.Open(ctx, blobstore.NewMemoryStore(), ops, commits)
	if err != nil {
		log.Fatal(err)
	}

	idx, err := s.IndexAtOperation(ctx, rootOp)
	if err != nil {
		log.Fatal(err)
	}

	m := s.StartTransaction(idx)
	parent := root.ID
	for i := range 3 {
		c := &model.Commit{
			ID:       model.CommitID(fmt.Appendf(nil, "%020d", i+1)),
			ChangeID: model.ChangeID(fmt.Appendf(nil, "%016d", i+1)),
			Parents:  []model.CommitID{parent},
		}
		if err := m.AddCommit(*c); err != nil {
			log.Fatal(err)
		}
		commits.Add(c)
		parent = c.ID
	}

	op := &model.Operation{ID: model.OperationID{2}, Parents: []model.OperationID{rootOp.ID}, Heads: []model.CommitID{parent}}
	ops.Add(op)
	idx, err = s.WriteIndex(ctx, m, op.ID)
	if err != nil {
		log.Fatal(err)
	}

	gen, _ := idx.GenerationNumber(parent)
	stats := idx.Stats()
	fmt.Println("commits:", stats.NumCommits)
	fmt.Println("levels:", len(stats.Levels))
	fmt.Println("generation:", gen)
	// Output:
	// commits: 4
	// levels: 1
	// generation: 3
}
