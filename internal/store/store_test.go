package store_test

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/internal/fs"
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/internal/store"
	"github.com/hupe1980/revindex/model"
	"github.com/hupe1980/revindex/testutil"
)

func newRepo(t *testing.T) *testutil.Repo {
	t.Helper()
	return testutil.NewRepo(t, store.DefaultOptions())
}

// createCommits adds a chain of n commits on the first visible head of the
// current operation.
func createCommits(t *testing.T, repo *testutil.Repo, n int) *model.Operation {
	t.Helper()
	tx := repo.StartTransaction(t)
	parent := repo.VisibleHeads(repo.Head())[0]
	for range n {
		parent = tx.NewCommit(t, parent)
	}
	return tx.Commit(t)
}

func levelSizes(t *testing.T, repo *testutil.Repo) []uint32 {
	t.Helper()
	var out []uint32
	for _, l := range repo.Index(t).Stats().Levels {
		out = append(out, l.NumCommits)
	}
	return out
}

func listBlobs(t *testing.T, blobs blobstore.BlobStore, dir string) []string {
	t.Helper()
	names, err := blobs.List(t.Context(), dir+"/")
	require.NoError(t, err)
	return names
}

func TestOpen_TypeFile(t *testing.T) {
	repo := newRepo(t)

	data, err := blobstore.ReadAll(t.Context(), repo.Blobs, "type")
	require.NoError(t, err)
	assert.Equal(t, store.IndexType, string(data))

	require.NoError(t, repo.Blobs.Put(t.Context(), "type", []byte("other")))
	_, err = store.Open(t.Context(), repo.Blobs, repo.Ops, repo.Commits, store.DefaultOptions())
	assert.ErrorIs(t, err, store.ErrUnsupportedIndexType)
}

func TestIndexCommits_PreviousOperations(t *testing.T) {
	repo := newRepo(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	b := tx.NewCommit(t, a)
	c := tx.NewCommit(t, b)
	tx.Commit(t)

	tx = repo.StartTransaction(t)
	tx.RemoveHead(c)
	d := tx.NewCommit(t, b)
	op := tx.Commit(t)

	ro := repo.Reload(t).IndexAt(t, op)
	assert.Equal(t, uint32(5), ro.NumCommits())
	for _, id := range []model.CommitID{repo.Root(), a, b, c, d} {
		assert.True(t, ro.HasID(id), id.Hex())
	}

	gen, err := ro.GenerationNumber(d)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), gen)
}

func TestIndexCommits_HiddenButReferenced(t *testing.T) {
	repo := newRepo(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	b := tx.NewCommit(t, repo.Root())
	tx.RemoveHead(a)
	tx.RemoveHead(b)
	op := tx.Commit(t)

	require.NoError(t, repo.Store.Reinit(t.Context()))

	ro := repo.Reload(t).IndexAt(t, op)
	assert.Equal(t, uint32(3), ro.NumCommits())
	assert.True(t, ro.HasID(a))
	assert.True(t, ro.HasID(b))
}

func TestIndexCommits_Incremental(t *testing.T) {
	repo := newRepo(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	op1 := tx.Commit(t)

	tx = repo.StartTransaction(t)
	b := tx.NewCommit(t, a)
	op2 := tx.Commit(t)

	reloaded := repo.Reload(t)

	ro := reloaded.IndexAt(t, op1)
	assert.Equal(t, uint32(2), ro.NumCommits())
	assert.False(t, ro.HasID(b))

	ro = reloaded.IndexAt(t, op2)
	stats := ro.Stats()
	assert.Equal(t, uint32(3), stats.NumCommits)
	require.Len(t, stats.Levels, 1)
	assert.Equal(t, uint32(3), stats.Levels[0].NumCommits)
	assert.Equal(t, ro.HeadName(), stats.Levels[0].Name)
}

func TestIndexCommits_IncrementalSquashed(t *testing.T) {
	tests := []struct {
		name    string
		batches []int
		want    []uint32
	}{
		{"one", []int{1}, []uint32{2}},
		{"two", []int{2}, []uint32{3}},
		{"hundred", []int{100}, []uint32{101}},
		{"one then one", []int{1, 1}, []uint32{3}},
		{"two then one", []int{2, 1}, []uint32{3, 1}},
		{"hundred then one", []int{100, 1}, []uint32{101, 1}},
		{"growing", []int{1, 2, 4, 8, 16, 32}, []uint32{64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			for _, n := range tt.batches {
				createCommits(t, repo, n)
			}
			assert.Equal(t, tt.want, levelSizes(t, repo.Reload(t)))
		})
	}
}

func TestIndexCommits_EmptyTransaction(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 3)
	before := repo.Index(t)
	segments := listBlobs(t, repo.Blobs, "segments")

	op := repo.StartTransaction(t).Commit(t)

	after := repo.Reload(t).IndexAt(t, op)
	assert.Equal(t, before.HeadName(), after.HeadName())
	assert.Equal(t, before.NumCommits(), after.NumCommits())
	assert.Equal(t, segments, listBlobs(t, repo.Blobs, "segments"))
}

func TestIndexCommits_AlreadyIndexed(t *testing.T) {
	repo := newRepo(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	tx.Commit(t)
	head := repo.Index(t).HeadName()

	c, err := repo.Commits.Commit(t.Context(), a)
	require.NoError(t, err)

	tx = repo.StartTransaction(t)
	require.NoError(t, tx.Index().AddCommit(*c))
	assert.Equal(t, uint32(0), tx.Index().NumNewCommits())
	op := tx.Commit(t)

	assert.Equal(t, head, repo.Reload(t).IndexAt(t, op).HeadName())
}

func TestReindex_NoSegmentsDir(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 3)
	want := repo.Index(t).NumCommits()

	for _, name := range listBlobs(t, repo.Blobs, "segments") {
		require.NoError(t, repo.Blobs.Delete(t.Context(), name))
	}

	ro := repo.Reload(t).Index(t)
	assert.Equal(t, want, ro.NumCommits())
	assert.NotEmpty(t, listBlobs(t, repo.Blobs, "segments"))
}

func TestReindex_PreservesGraph(t *testing.T) {
	repo := newRepo(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	b := tx.NewCommit(t, a)
	hidden := tx.NewCommit(t, a)
	tx.RemoveHead(hidden)
	tx.Commit(t)

	tx = repo.StartTransaction(t)
	c := tx.NewCommit(t, repo.Root())
	merge := tx.NewCommit(t, b, c)
	d := tx.NewCommit(t, merge)
	tx.Commit(t)

	tx = repo.StartTransaction(t)
	e := tx.NewCommit(t, d)
	tx.NewCommit(t, e)
	tx.NewCommit(t, c)
	tx.Commit(t)

	ids := []model.CommitID{repo.Root(), a, b, hidden, c, merge, d, e}

	type snapshot struct {
		generations []uint32
		ancestors   []bool
		stats       [5]uint32
	}
	take := func(ro *index.Readonly) snapshot {
		var snap snapshot
		for _, x := range ids {
			gen, err := ro.GenerationNumber(x)
			require.NoError(t, err)
			snap.generations = append(snap.generations, gen)
			for _, y := range ids {
				ok, err := ro.IsAncestor(x, y)
				require.NoError(t, err)
				snap.ancestors = append(snap.ancestors, ok)
			}
		}
		st := ro.Stats()
		snap.stats = [5]uint32{st.NumCommits, st.NumMerges, st.MaxGenerationNumber, st.NumHeads, st.NumChanges}
		return snap
	}

	want := take(repo.Index(t))
	assert.Equal(t, [5]uint32{10, 1, 6, 3, 10}, want.stats)

	for _, name := range listBlobs(t, repo.Blobs, "segments") {
		require.NoError(t, repo.Blobs.Delete(t.Context(), name))
	}

	after := repo.Reload(t).Index(t)
	assert.True(t, after.HasID(hidden))
	assert.Equal(t, want, take(after))
	assert.Len(t, after.Stats().Levels, 1)
}

func TestReindex_CorruptSegmentFiles(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 3)
	createCommits(t, repo, 1)
	want := repo.Index(t).NumCommits()

	names := listBlobs(t, repo.Blobs, "segments")
	require.NotEmpty(t, names)
	for _, name := range names {
		require.NoError(t, repo.Blobs.Put(t.Context(), name, make([]byte, 24)))
	}

	ro := repo.Reload(t).Index(t)
	assert.Equal(t, want, ro.NumCommits())

	data, err := blobstore.ReadAll(t.Context(), repo.Blobs, "type")
	require.NoError(t, err)
	assert.Equal(t, store.IndexType, string(data))
}

func TestReindex_CorruptOpLink(t *testing.T) {
	repo := newRepo(t)
	op := createCommits(t, repo, 2)

	require.NoError(t, repo.Blobs.Put(t.Context(), path.Join("op_links", op.ID.Hex()), []byte("garbage")))

	ro := repo.Reload(t).Index(t)
	assert.Equal(t, uint32(3), ro.NumCommits())
}

func TestReindex_FromMergedOperation(t *testing.T) {
	tests := []struct {
		name string
		// drop returns the operations whose links are deleted.
		drop func(all []*model.Operation) []*model.Operation
	}{
		{"merged and later", func(all []*model.Operation) []*model.Operation { return all[3:] }},
		{"everything", func(all []*model.Operation) []*model.Operation { return all }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			base := repo.Head()
			repo.Index(t)

			tx1 := repo.StartTransactionAt(t, base)
			tx1.NewCommit(t, repo.Root())
			op1 := tx1.Commit(t)

			tx2 := repo.StartTransactionAt(t, base)
			tx2.NewCommit(t, repo.Root())
			op2 := tx2.Commit(t)

			merged := repo.MergeOperations(t, op1, op2)
			op4 := createCommits(t, repo, 1)

			for _, op := range tt.drop([]*model.Operation{base, op1, op2, merged, op4}) {
				require.NoError(t, repo.Blobs.Delete(t.Context(), path.Join("op_links", op.ID.Hex())))
			}

			reloaded := repo.Reload(t)
			assert.Equal(t, uint32(4), reloaded.IndexAt(t, op4).NumCommits())
			assert.Equal(t, uint32(3), reloaded.IndexAt(t, merged).NumCommits())
		})
	}
}

func TestReindex_MissingCommit(t *testing.T) {
	repo := newRepo(t)
	repo.Index(t)

	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.Root())
	op := tx.Commit(t)

	require.NoError(t, repo.Store.Reinit(t.Context()))
	repo.Commits.Remove(a)

	_, err := repo.Reload(t).Store.GetIndexAtOperation(t.Context(), op)
	require.Error(t, err)

	var ie *store.IndexCommitsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, op.ID, ie.OpID)
	assert.ErrorIs(t, err, testutil.ErrObjectNotFound)
}

func TestLegacyOpLink(t *testing.T) {
	repo := newRepo(t)
	op := createCommits(t, repo, 2)
	head := repo.Index(t).HeadName()

	assert.Empty(t, listBlobs(t, repo.Blobs, "operations"))

	link := path.Join("op_links", op.ID.Hex())
	require.NoError(t, repo.Blobs.Delete(t.Context(), link))
	require.NoError(t, repo.Blobs.Put(t.Context(), path.Join("operations", op.ID.Hex()), []byte(head)))

	ro := repo.Reload(t).IndexAt(t, op)
	assert.Equal(t, uint32(3), ro.NumCommits())
	assert.Equal(t, head, ro.HeadName())
	assert.False(t, ro.ChangedPathIndex().Enabled())

	_, err := repo.Blobs.Open(t.Context(), link)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestChangedPathIndex(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 2)

	ro, err := repo.Store.EnableChangedPathIndex(t.Context(), repo.Head())
	require.NoError(t, err)
	r, ok := ro.ChangedPathIndex().Range()
	require.True(t, ok)
	assert.Equal(t, model.PositionRange{Start: 3, End: 3}, r)

	again, err := repo.Store.EnableChangedPathIndex(t.Context(), repo.Head())
	require.NoError(t, err)
	r2, ok := again.ChangedPathIndex().Range()
	require.True(t, ok)
	assert.Equal(t, r, r2)

	tx := repo.StartTransaction(t)
	parent := repo.VisibleHeads(repo.Head())[0]
	a := tx.NewCommitWithPaths(t, []string{"src/main.go", "README"}, parent)
	tx.Commit(t)

	tx = repo.StartTransaction(t)
	b := tx.NewCommitWithPaths(t, []string{"src/main.go"}, a)
	tx.Commit(t)

	ro = repo.Reload(t).Index(t)
	stats := ro.Stats()
	require.NotNil(t, stats.ChangedPathRange)
	assert.Equal(t, model.PositionRange{Start: 3, End: 5}, *stats.ChangedPathRange)
	require.Len(t, stats.ChangedPathLevels, 1)
	assert.Equal(t, uint32(2), stats.ChangedPathLevels[0].NumCommits)

	paths, ok, err := ro.ChangedPaths(a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"README", "src/main.go"}, paths)

	_, ok, err = ro.ChangedPaths(parent)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []model.CommitID{b, a}, ro.CommitsTouchingPath("src/main.go"))
	assert.Equal(t, []model.CommitID{a}, ro.CommitsTouchingPath("README"))
	assert.Empty(t, ro.CommitsTouchingPath("missing"))

	assert.Len(t, listBlobs(t, repo.Blobs, "changed_paths"), 2)
}

func TestReinit(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 2)

	require.NoError(t, repo.Store.Reinit(t.Context()))
	for _, dir := range []string{"segments", "changed_paths", "op_links", "operations"} {
		assert.Empty(t, listBlobs(t, repo.Blobs, dir), dir)
	}
	_, err := blobstore.ReadAll(t.Context(), repo.Blobs, "type")
	require.NoError(t, err)

	assert.Equal(t, uint32(3), repo.Index(t).NumCommits())
}

func TestLocalStore(t *testing.T) {
	blobs := blobstore.NewLocalStore(t.TempDir())
	repo := testutil.NewRepoWithBlobs(t, blobs, store.DefaultOptions())
	createCommits(t, repo, 5)
	createCommits(t, repo, 1)

	ro := repo.Reload(t).Index(t)
	assert.Equal(t, uint32(7), ro.NumCommits())
	assert.Equal(t, []uint32{6, 1}, levelSizes(t, repo))
}

func TestCache(t *testing.T) {
	repo := newRepo(t)
	createCommits(t, repo, 2)

	first := repo.Index(t)
	second := repo.Index(t)
	assert.Same(t, first.Files()[0], second.Files()[0])
	assert.Positive(t, repo.Store.CacheStats().Hits)
}

type recordingMetrics struct {
	mu          sync.Mutex
	loads       int
	writes      int
	compactions int
	recoveries  int
	errors      int
}

func (m *recordingMetrics) count(n *int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*n++
	if err != nil {
		m.errors++
	}
}

func (m *recordingMetrics) RecordLoad(_ int, _ time.Duration, err error)  { m.count(&m.loads, err) }
func (m *recordingMetrics) RecordWrite(_ int, _ time.Duration, err error) { m.count(&m.writes, err) }
func (m *recordingMetrics) RecordCompaction(int)                          { m.count(&m.compactions, nil) }
func (m *recordingMetrics) RecordRecovery(_ int, _ time.Duration, err error) {
	m.count(&m.recoveries, err)
}

func TestMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	opts := store.DefaultOptions()
	opts.Metrics = metrics
	repo := testutil.NewRepo(t, opts)

	createCommits(t, repo, 1)
	repo.Index(t)

	assert.Equal(t, 1, metrics.recoveries)
	assert.Equal(t, 2, metrics.writes)
	assert.Equal(t, 1, metrics.compactions)
	assert.Equal(t, 1, metrics.loads)
	assert.Zero(t, metrics.errors)
}

type failingOps struct{}

func (failingOps) Operation(context.Context, model.OperationID) (*model.Operation, error) {
	return nil, errors.New("op store offline")
}

func TestBuildIndex_OperationStoreError(t *testing.T) {
	repo := newRepo(t)
	op := createCommits(t, repo, 1)
	require.NoError(t, repo.Store.Reinit(t.Context()))

	s, err := store.Open(t.Context(), repo.Blobs, failingOps{}, repo.Commits, store.DefaultOptions())
	require.NoError(t, err)

	_, err = s.GetIndexAtOperation(t.Context(), op)
	assert.ErrorContains(t, err, "op store offline")
}

func TestWriteIndex_CrashBeforeLink(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	blobs := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))
	repo := testutil.NewRepoWithBlobs(t, blobs, store.DefaultOptions())
	op1 := createCommits(t, repo, 2)
	segments := listBlobs(t, blobs, "segments")

	ffs.AddRule("op_links", fs.Fault{FailOnRename: true})
	tx := repo.StartTransaction(t)
	a := tx.NewCommit(t, repo.VisibleHeads(op1)[0])
	_, err := repo.Store.WriteIndex(t.Context(), tx.Index(), model.OperationID{0xee})
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.Len(t, listBlobs(t, blobs, "segments"), len(segments)+1)
	_, err = blobs.Open(t.Context(), "op_links/ee")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	ffs.Reset()
	ro := repo.Reload(t).IndexAt(t, op1)
	assert.Equal(t, uint32(3), ro.NumCommits())
	assert.False(t, ro.HasID(a))
}
