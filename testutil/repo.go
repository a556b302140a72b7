package testutil

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/internal/store"
	"github.com/hupe1980/revindex/model"
)

// Repo is an in-memory repository with an operation log, a commit store
// and an index store.
type Repo struct {
	Blobs   blobstore.BlobStore
	Ops     *OpStore
	Commits *CommitStore
	Store   *store.Store

	opts    store.Options
	rng     *RNG
	root    model.CommitID
	rootOp  *model.Operation
	head    *model.Operation
	visible map[string][]model.CommitID
}

// NewRepo creates a repository whose index lives in memory.
func NewRepo(tb testing.TB, opts store.Options) *Repo {
	tb.Helper()
	return NewRepoWithBlobs(tb, blobstore.NewMemoryStore(), opts)
}

// NewRepoWithBlobs creates a repository whose index lives in blobs.
func NewRepoWithBlobs(tb testing.TB, blobs blobstore.BlobStore, opts store.Options) *Repo {
	tb.Helper()
	if opts.Layout.CommitIDLength == 0 {
		opts.Layout = store.DefaultOptions().Layout
	}

	r := &Repo{
		Blobs:   blobs,
		Ops:     NewOpStore(),
		Commits: NewCommitStore(),
		opts:    opts,
		rng:     NewRNG(4711),
		visible: make(map[string][]model.CommitID),
	}

	r.root = model.CommitID(make([]byte, opts.Layout.CommitIDLength))
	r.Commits.Add(&model.Commit{
		ID:       r.root,
		ChangeID: model.ChangeID(make([]byte, opts.Layout.ChangeIDLength)),
	})
	r.rootOp = &model.Operation{ID: r.rng.OperationID(), Heads: []model.CommitID{r.root}}
	r.Ops.Add(r.rootOp)
	r.head = r.rootOp
	r.visible[r.rootOp.ID.Hex()] = []model.CommitID{r.root}

	s, err := store.Open(tb.Context(), blobs, r.Ops, r.Commits, opts)
	require.NoError(tb, err)
	r.Store = s
	return r
}

// Reload returns a view of the same repository through a freshly opened
// store, so nothing is served from caches.
func (r *Repo) Reload(tb testing.TB) *Repo {
	tb.Helper()
	s, err := store.Open(tb.Context(), r.Blobs, r.Ops, r.Commits, r.opts)
	require.NoError(tb, err)
	cp := *r
	cp.Store = s
	return &cp
}

// Root returns the root commit id.
func (r *Repo) Root() model.CommitID { return r.root }

// RootOperation returns the root operation.
func (r *Repo) RootOperation() *model.Operation { return r.rootOp }

// Head returns the current operation.
func (r *Repo) Head() *model.Operation { return r.head }

// SetHead makes op the current operation.
func (r *Repo) SetHead(op *model.Operation) { r.head = op }

// RNG returns the repository's random source.
func (r *Repo) RNG() *RNG { return r.rng }

// VisibleHeads returns the visible heads of op.
func (r *Repo) VisibleHeads(op *model.Operation) []model.CommitID {
	return slices.Clone(r.visible[op.ID.Hex()])
}

// Index returns the index of the current operation.
func (r *Repo) Index(tb testing.TB) *index.Readonly {
	tb.Helper()
	return r.IndexAt(tb, r.head)
}

// IndexAt returns the index of op.
func (r *Repo) IndexAt(tb testing.TB, op *model.Operation) *index.Readonly {
	tb.Helper()
	ro, err := r.Store.GetIndexAtOperation(tb.Context(), op)
	require.NoError(tb, err)
	return ro
}

// StartTransaction starts a transaction on the current operation.
func (r *Repo) StartTransaction(tb testing.TB) *Tx {
	tb.Helper()
	return r.StartTransactionAt(tb, r.head)
}

// StartTransactionAt starts a transaction on op.
func (r *Repo) StartTransactionAt(tb testing.TB, op *model.Operation) *Tx {
	tb.Helper()
	return &Tx{
		repo:    r,
		parent:  op,
		index:   r.Store.StartTransaction(r.IndexAt(tb, op)),
		visible: r.VisibleHeads(op),
	}
}

// MergeOperations records an operation merging ops, as done after
// concurrent transactions, and makes it current.
func (r *Repo) MergeOperations(tb testing.TB, ops ...*model.Operation) *model.Operation {
	tb.Helper()
	require.NotEmpty(tb, ops)

	m := r.Store.StartTransaction(r.IndexAt(tb, ops[0]))
	op := &model.Operation{ID: r.rng.OperationID()}
	var visible []model.CommitID
	for i, o := range ops {
		if i > 0 {
			require.NoError(tb, m.MergeIn(r.IndexAt(tb, o)))
		}
		op.Parents = append(op.Parents, o.ID)
		visible = appendUnique(visible, r.visible[o.ID.Hex()]...)
	}
	op.Heads = slices.Clone(visible)
	return r.record(tb, op, m, visible)
}

func (r *Repo) record(tb testing.TB, op *model.Operation, m *index.Mutable, visible []model.CommitID) *model.Operation {
	tb.Helper()
	r.Ops.Add(op)
	_, err := r.Store.WriteIndex(tb.Context(), m, op.ID)
	require.NoError(tb, err)
	r.visible[op.ID.Hex()] = visible
	r.head = op
	return op
}

// Tx is a transaction creating commits on top of one operation.
type Tx struct {
	repo    *Repo
	parent  *model.Operation
	index   *index.Mutable
	visible []model.CommitID
	created []model.CommitID
}

// Index returns the transaction's mutable index.
func (tx *Tx) Index() *index.Mutable { return tx.index }

// NewCommit creates a commit with a new change id on parents.
func (tx *Tx) NewCommit(tb testing.TB, parents ...model.CommitID) model.CommitID {
	tb.Helper()
	return tx.NewCommitWithPaths(tb, nil, parents...)
}

// NewCommitWithPaths creates a commit changing paths.
func (tx *Tx) NewCommitWithPaths(tb testing.TB, paths []string, parents ...model.CommitID) model.CommitID {
	tb.Helper()
	rng := tx.repo.rng
	l := tx.repo.opts.Layout
	c := model.Commit{
		ID:           rng.CommitID(l.CommitIDLength),
		ChangeID:     rng.ChangeID(l.ChangeIDLength),
		Parents:      parents,
		ChangedPaths: paths,
	}
	tx.AddCommit(tb, c)
	return c.ID
}

// AddCommit stores and indexes c and makes it a visible head in place of
// its parents.
func (tx *Tx) AddCommit(tb testing.TB, c model.Commit) {
	tb.Helper()
	require.NoError(tb, tx.index.AddCommit(c))
	tx.repo.Commits.Add(&c)
	tx.created = append(tx.created, c.ID)
	tx.visible = slices.DeleteFunc(tx.visible, func(h model.CommitID) bool {
		return slices.ContainsFunc(c.Parents, h.Equal)
	})
	tx.visible = appendUnique(tx.visible, c.ID)
}

// RemoveHead hides id. The operation still references it.
func (tx *Tx) RemoveHead(id model.CommitID) {
	tx.visible = slices.DeleteFunc(tx.visible, id.Equal)
}

// Commit records the transaction as a new operation, writes its index and
// makes it current.
func (tx *Tx) Commit(tb testing.TB) *model.Operation {
	tb.Helper()
	op := &model.Operation{
		ID:      tx.repo.rng.OperationID(),
		Parents: []model.OperationID{tx.parent.ID},
		Heads:   appendUnique(slices.Clone(tx.visible), tx.created...),
	}
	return tx.repo.record(tb, op, tx.index, tx.visible)
}

func appendUnique(dst []model.CommitID, ids ...model.CommitID) []model.CommitID {
	for _, id := range ids {
		if !slices.ContainsFunc(dst, id.Equal) {
			dst = append(dst, id)
		}
	}
	return dst
}
