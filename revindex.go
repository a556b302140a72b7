package revindex

import (
	"context"
	"time"

	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/internal/changeid"
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/internal/store"
	"github.com/hupe1980/revindex/model"
)

type (
	// Index is an immutable snapshot of the commit index of one operation.
	// It is safe for concurrent use.
	Index = index.Readonly
	// MutableIndex accepts new commits on top of an Index. It is owned by one
	// transaction.
	MutableIndex = index.Mutable
	// Stats summarizes an index.
	Stats = index.Stats
	// LevelStats describes one commit level.
	LevelStats = index.LevelStats
	// ChangedPathLevelStats describes one changed-path level.
	ChangedPathLevelStats = changedpath.LevelStats
	// ChangeIDIndex resolves change ids among the ancestors of a head set.
	ChangeIDIndex = changeid.Index
	// Compression is the payload compression of changed-path segments.
	Compression = changedpath.Compression

	// OperationStore is the operation log as seen by the index.
	OperationStore = store.OperationStore
	// CommitStore looks up commits by id.
	CommitStore = store.CommitStore

	CommitID             = model.CommitID
	ChangeID             = model.ChangeID
	OperationID          = model.OperationID
	Position             = model.Position
	Commit               = model.Commit
	Operation            = model.Operation
	HexPrefix            = model.HexPrefix
	PrefixResolution     = model.PrefixResolution
	PrefixResolutionKind = model.PrefixResolutionKind
	GenerationRange      = model.GenerationRange
	ParentsRange         = model.ParentsRange
)

const (
	CompressionNone = changedpath.CompressionNone
	CompressionLZ4  = changedpath.CompressionLZ4
	CompressionZSTD = changedpath.CompressionZSTD

	NoMatch        = model.NoMatch
	SingleMatch    = model.SingleMatch
	AmbiguousMatch = model.AmbiguousMatch
)

var (
	// FullGenerationRange selects every ancestor.
	FullGenerationRange = model.FullGenerationRange
	// FullParentsRange follows every parent edge.
	FullParentsRange = model.FullParentsRange
)

// Store manages the commit indexes of one repository.
type Store struct {
	store  *store.Store
	logger *Logger
}

// Open opens the index directory held by blobs, creating it when empty.
// ops and commits give access to the repository's operation log and commit
// objects, which are consulted only when an index has to be rebuilt.
//
// Example:
//
//	blobs := blobstore.NewLocalStore(".jj/repo/index")
//	s, err := revindex.Open(ctx, blobs, opLog, objects, revindex.WithLogLevel(slog.LevelInfo))
//	if err != nil {
//	    return err
//	}
//	idx, err := s.IndexAtOperation(ctx, headOp)
func Open(ctx context.Context, blobs blobstore.BlobStore, ops OperationStore, commits CommitStore, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	so := store.DefaultOptions()
	so.Layout = segment.Layout{CommitIDLength: o.commitIDLength, ChangeIDLength: o.changeIDLength}
	so.Compression = o.compression
	if o.cacheSize > 0 {
		so.CacheSize = o.cacheSize
	}
	if o.progressInterval > 0 {
		so.ProgressInterval = o.progressInterval
	}
	so.Logger = o.logger.Logger
	so.Metrics = observer{metrics: o.metricsCollector, logger: o.logger}

	s, err := store.Open(ctx, blobs, ops, commits, so)
	if err != nil {
		return nil, err
	}
	return &Store{store: s, logger: o.logger}, nil
}

// Logger returns the configured logger.
func (s *Store) Logger() *Logger { return s.logger }

// IndexAtOperation returns the index of op. A missing index is rebuilt from
// the operation log; a damaged index directory is reinitialized first.
func (s *Store) IndexAtOperation(ctx context.Context, op *Operation) (*Index, error) {
	return s.store.GetIndexAtOperation(ctx, op)
}

// StartTransaction returns a mutable index on base.
func (s *Store) StartTransaction(base *Index) *MutableIndex {
	return s.store.StartTransaction(base)
}

// WriteIndex persists m as the index of the operation op and returns the
// resulting snapshot.
func (s *Store) WriteIndex(ctx context.Context, m *MutableIndex, op OperationID) (*Index, error) {
	start := time.Now()
	ro, err := s.store.WriteIndex(ctx, m, op)
	if err != nil {
		s.logger.WithOperation(op).Error("failed to write index", "error", err)
		return nil, err
	}
	s.logger.WithOperation(op).WithSegment(ro.HeadName()).Debug("published index",
		"commits", ro.NumCommits(),
		"new_commits", m.NumNewCommits(),
		"took", time.Since(start),
	)
	return ro, nil
}

// BuildIndexAtOperation rebuilds the index of op from the operation log,
// starting at the newest indexed ancestors.
func (s *Store) BuildIndexAtOperation(ctx context.Context, op *Operation) (*Index, error) {
	return s.store.BuildIndexAtOperation(ctx, op)
}

// EnableChangedPathIndex starts recording changed paths for commits added
// after op. It returns the index of op with the empty changed-path range.
func (s *Store) EnableChangedPathIndex(ctx context.Context, op *Operation) (*Index, error) {
	return s.store.EnableChangedPathIndex(ctx, op)
}

// Reinit discards every persisted index. Later loads rebuild from the
// operation log.
func (s *Store) Reinit(ctx context.Context) error {
	return s.store.Reinit(ctx)
}
