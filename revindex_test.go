package revindex_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revindex"
	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/model"
	"github.com/hupe1980/revindex/testutil"
)

type fixture struct {
	blobs   blobstore.BlobStore
	ops     *testutil.OpStore
	commits *testutil.CommitStore
	rng     *testutil.RNG
	root    model.CommitID
	rootOp  *model.Operation
}

func newFixture(blobs blobstore.BlobStore) *fixture {
	f := &fixture{
		blobs:   blobs,
		ops:     testutil.NewOpStore(),
		commits: testutil.NewCommitStore(),
		rng:     testutil.NewRNG(1),
		root:    make(model.CommitID, 20),
	}
	f.commits.Add(&model.Commit{ID: f.root, ChangeID: make(model.ChangeID, 16)})
	f.rootOp = &model.Operation{ID: f.rng.OperationID(), Heads: []model.CommitID{f.root}}
	f.ops.Add(f.rootOp)
	return f
}

func (f *fixture) open(t *testing.T, opts ...revindex.Option) *revindex.Store {
	t.Helper()
	s, err := revindex.Open(t.Context(), f.blobs, f.ops, f.commits, opts...)
	require.NoError(t, err)
	return s
}

// commit adds a commit to m and the commit store.
func (f *fixture) commit(t *testing.T, m *revindex.MutableIndex, paths []string, parents ...model.CommitID) model.CommitID {
	t.Helper()
	c := model.Commit{ID: f.rng.CommitID(20), ChangeID: f.rng.ChangeID(16), Parents: parents, ChangedPaths: paths}
	require.NoError(t, m.AddCommit(c))
	f.commits.Add(&c)
	return c.ID
}

func (f *fixture) operation(parent *model.Operation, heads ...model.CommitID) *model.Operation {
	op := &model.Operation{ID: f.rng.OperationID(), Parents: []model.OperationID{parent.ID}, Heads: heads}
	f.ops.Add(op)
	return op
}

func TestStoreLifecycle(t *testing.T) {
	f := newFixture(blobstore.NewLocalStore(t.TempDir()))
	metrics := &revindex.BasicMetricsCollector{}
	s := f.open(t, revindex.WithMetricsCollector(metrics))

	idx, err := s.IndexAtOperation(t.Context(), f.rootOp)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx.NumCommits())

	m := s.StartTransaction(idx)
	a := f.commit(t, m, nil, f.root)
	b := f.commit(t, m, nil, a)
	op := f.operation(f.rootOp, b)
	idx, err = s.WriteIndex(t.Context(), m, op.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), idx.NumCommits())

	idx, err = f.open(t).IndexAtOperation(t.Context(), op)
	require.NoError(t, err)
	ok, err := idx.IsAncestor(a, b)
	require.NoError(t, err)
	assert.True(t, ok)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.RecoveryCount)
	assert.Equal(t, int64(1), stats.RecoveredCommits)
	assert.Equal(t, int64(2), stats.WriteCount)
	assert.Equal(t, int64(1), stats.CompactionCount)
	assert.Positive(t, stats.WriteBytes)
	assert.Zero(t, stats.WriteErrors)
}

func TestStoreErrors(t *testing.T) {
	f := newFixture(blobstore.NewMemoryStore())
	s := f.open(t)

	idx, err := s.IndexAtOperation(t.Context(), f.rootOp)
	require.NoError(t, err)

	m := s.StartTransaction(idx)
	err = m.AddCommit(model.Commit{
		ID:       f.rng.CommitID(20),
		ChangeID: f.rng.ChangeID(16),
		Parents:  []model.CommitID{f.rng.CommitID(20)},
	})
	assert.ErrorIs(t, err, revindex.ErrMissingParent)

	err = m.AddCommit(model.Commit{ID: f.rng.CommitID(20), ChangeID: f.rng.ChangeID(16)})
	assert.ErrorIs(t, err, revindex.ErrSecondRoot)
	assert.Equal(t, uint32(1), m.NumCommits())

	_, err = idx.GenerationNumber(f.rng.CommitID(20))
	assert.ErrorIs(t, err, revindex.ErrNotFound)

	_, err = idx.EvaluateRevset([]model.CommitID{f.root}, nil, revindex.GenerationRange{Start: 2, End: 1}, revindex.FullParentsRange)
	assert.ErrorIs(t, err, revindex.ErrInvalidRange)

	require.NoError(t, f.blobs.Put(t.Context(), "type", []byte("other")))
	_, err = revindex.Open(t.Context(), f.blobs, f.ops, f.commits)
	assert.ErrorIs(t, err, revindex.ErrUnsupportedIndexType)
}

func TestRebuildMissingCommit(t *testing.T) {
	f := newFixture(blobstore.NewMemoryStore())
	s := f.open(t)

	idx, err := s.IndexAtOperation(t.Context(), f.rootOp)
	require.NoError(t, err)
	m := s.StartTransaction(idx)
	a := f.commit(t, m, nil, f.root)
	op := f.operation(f.rootOp, a)
	_, err = s.WriteIndex(t.Context(), m, op.ID)
	require.NoError(t, err)

	require.NoError(t, s.Reinit(t.Context()))
	f.commits.Remove(a)

	_, err = s.BuildIndexAtOperation(t.Context(), op)
	var ie *revindex.IndexCommitsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, op.ID, ie.OpID)
}

func TestChangedPathCompression(t *testing.T) {
	for _, c := range []revindex.Compression{revindex.CompressionNone, revindex.CompressionLZ4, revindex.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			f := newFixture(blobstore.NewMemoryStore())
			s := f.open(t, revindex.WithChangedPathCompression(c))

			idx, err := s.EnableChangedPathIndex(t.Context(), f.rootOp)
			require.NoError(t, err)

			m := s.StartTransaction(idx)
			a := f.commit(t, m, []string{"a.txt", "lib/b.go"}, f.root)
			op := f.operation(f.rootOp, a)
			_, err = s.WriteIndex(t.Context(), m, op.ID)
			require.NoError(t, err)

			idx, err = f.open(t).IndexAtOperation(t.Context(), op)
			require.NoError(t, err)
			paths, ok, err := idx.ChangedPaths(a)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []string{"a.txt", "lib/b.go"}, paths)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := revindex.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f := newFixture(blobstore.NewMemoryStore())
	s := f.open(t, revindex.WithLogger(logger))
	assert.Same(t, logger, s.Logger())

	_, err := s.IndexAtOperation(t.Context(), f.rootOp)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "index rebuild completed")
	assert.Contains(t, out, "index written")
	assert.Contains(t, out, f.rootOp.ID.Hex())
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := revindex.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.WithOperation(model.OperationID{0xab}).WithSegment("seg").LogCompaction(3)
	assert.Contains(t, buf.String(), "op=ab")
	assert.Contains(t, buf.String(), "segment=seg")
	assert.Contains(t, buf.String(), "folded=3")

	revindex.NoopLogger().LogRecovery(1, 0, context.Canceled)
	assert.NotNil(t, revindex.NewLogger(nil))
}
