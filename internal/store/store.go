package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/revindex/blobstore"
	"github.com/hupe1980/revindex/internal/cache"
	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/internal/hash"
	"github.com/hupe1980/revindex/internal/index"
	"github.com/hupe1980/revindex/internal/segment"
	"github.com/hupe1980/revindex/model"
)

const (
	// IndexType is the implementation tag written to the type file.
	IndexType = "default"

	typeFile           = "type"
	segmentsDir        = "segments"
	changedPathsDir    = "changed_paths"
	opLinksDir         = "op_links"
	legacyOpLinksDir   = "operations"
	maxParallelDeletes = 16
)

// OperationStore is the operation log as seen by the index.
type OperationStore interface {
	Operation(ctx context.Context, id model.OperationID) (*model.Operation, error)
}

// CommitStore looks up commits by id.
type CommitStore interface {
	Commit(ctx context.Context, id model.CommitID) (*model.Commit, error)
}

// Store persists commit indexes, one per operation. It is safe for
// concurrent use; writers are serialized by the operation log.
type Store struct {
	blobs   blobstore.BlobStore
	ops     OperationStore
	commits CommitStore
	opts    Options
	logger  *slog.Logger
	metrics MetricsCollector

	files   *cache.LRU[*segment.File]
	changed *cache.LRU[*changedpath.Segment]
}

// Open opens the index directory in blobs, initializing it when empty.
func Open(ctx context.Context, blobs blobstore.BlobStore, ops OperationStore, commits CommitStore, opts Options) (*Store, error) {
	opts.normalize()
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		blobs:   blobs,
		ops:     ops,
		commits: commits,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		files:   cache.NewLRU[*segment.File](opts.CacheSize),
		changed: cache.NewLRU[*changedpath.Segment](opts.CacheSize / 4),
	}

	data, err := blobstore.ReadAll(ctx, blobs, typeFile)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		if err := blobs.Put(ctx, typeFile, []byte(IndexType)); err != nil {
			return nil, fmt.Errorf("failed to write index type: %w", err)
		}
		s.logger.Debug("initialized index directory")
	case err != nil:
		return nil, fmt.Errorf("failed to read index type: %w", err)
	case strings.TrimSpace(string(data)) != IndexType:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIndexType, data)
	}
	return s, nil
}

// Options returns the effective options.
func (s *Store) Options() Options { return s.opts }

// CacheStats returns statistics of the commit segment cache.
func (s *Store) CacheStats() cache.Stats { return s.files.Stats() }

// Reinit discards every persisted index. The type file is kept.
func (s *Store) Reinit(ctx context.Context) error {
	s.logger.Info("reinitializing index directory")

	var names []string
	for _, dir := range []string{segmentsDir, changedPathsDir, opLinksDir, legacyOpLinksDir} {
		ns, err := s.blobs.List(ctx, dir+"/")
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		names = append(names, ns...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDeletes)
	for _, name := range names {
		g.Go(func() error {
			return s.blobs.Delete(gctx, name)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to reinitialize index: %w", err)
	}

	s.files.Purge()
	s.changed.Purge()
	return nil
}

// StartTransaction returns a mutable index on base.
func (s *Store) StartTransaction(base *index.Readonly) *index.Mutable {
	return index.NewMutable(base)
}

// Empty returns an index without any commits, the base for rebuilding from
// the start of the operation log.
func (s *Store) Empty() *index.Readonly {
	ro, _ := index.NewReadonly(s.opts.Layout, nil, nil)
	return ro
}

// GetIndexAtOperation returns the index of op. A missing index is rebuilt
// from the operation log. A damaged index causes the whole directory to be
// reinitialized and the index of op to be rebuilt.
func (s *Store) GetIndexAtOperation(ctx context.Context, op *model.Operation) (*index.Readonly, error) {
	ro, err := s.loadAtOperation(ctx, op.ID)
	switch {
	case err == nil:
		return ro, nil
	case errors.Is(err, blobstore.ErrNotFound):
		s.logger.Info("no index for operation, building", "op", op.ID.Hex())
		return s.BuildIndexAtOperation(ctx, op)
	case isDamaged(err):
		s.logger.Warn("index is damaged, reindexing", "op", op.ID.Hex(), "error", err)
		if err := s.Reinit(ctx); err != nil {
			return nil, err
		}
		return s.BuildIndexAtOperation(ctx, op)
	default:
		return nil, err
	}
}

// isDamaged reports whether err stems from missing or corrupt index files.
func isDamaged(err error) bool {
	return errors.Is(err, ErrMissingSegment) ||
		errors.Is(err, segment.ErrCorrupt) ||
		errors.Is(err, ErrCorruptLink)
}

// readLink reads the link of op, falling back to the legacy link. A missing
// link yields an error wrapping blobstore.ErrNotFound.
func (s *Store) readLink(ctx context.Context, id model.OperationID) (opLink, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, path.Join(opLinksDir, id.Hex()))
	if err == nil {
		return decodeOpLink(data)
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		return opLink{}, err
	}
	data, err = blobstore.ReadAll(ctx, s.blobs, path.Join(legacyOpLinksDir, id.Hex()))
	if err != nil {
		return opLink{}, err
	}
	return decodeLegacyLink(data)
}

// loadAtOperation loads the persisted index of op without any recovery.
func (s *Store) loadAtOperation(ctx context.Context, id model.OperationID) (ro *index.Readonly, err error) {
	start := time.Now()
	segments := 0
	defer func() {
		if !errors.Is(err, blobstore.ErrNotFound) {
			s.metrics.RecordLoad(segments, time.Since(start), err)
		}
	}()

	link, err := s.readLink(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.loadChain(ctx, link.Head)
	if err != nil {
		return nil, err
	}
	segments = len(files)

	var changed *changedpath.Index
	if cp := link.ChangedPaths; cp != nil {
		if changed, err = s.loadChangedPaths(ctx, cp); err != nil {
			return nil, err
		}
	}

	ro, err = index.NewReadonly(s.opts.Layout, files, changed)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded index", "op", id.Hex(), "segments", segments, "commits", ro.NumCommits())
	return ro, nil
}

func (s *Store) readSegment(ctx context.Context, dir, name string) ([]byte, error) {
	if !hash.IsContentName(name) {
		return nil, &SegmentError{Name: name, Err: fmt.Errorf("%w: invalid name", segment.ErrCorrupt)}
	}
	data, err := blobstore.ReadAll(ctx, s.blobs, path.Join(dir, name))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, &SegmentError{Name: name, Err: ErrMissingSegment}
	}
	if err != nil {
		return nil, &SegmentError{Name: name, Err: err}
	}
	if hash.ContentName(data) != name {
		return nil, &SegmentError{Name: name, Err: fmt.Errorf("%w: content does not match name", segment.ErrCorrupt)}
	}
	return data, nil
}

// loadChain loads the commit segment head and all of its bases, returning
// them oldest first. Cached files are reused.
func (s *Store) loadChain(ctx context.Context, head string) ([]*segment.File, error) {
	type link struct {
		name string
		file *segment.File
		data []byte
	}

	var chain []link // newest first
	seen := make(map[string]bool)
	for name := head; name != ""; {
		if seen[name] {
			return nil, &SegmentError{Name: name, Err: fmt.Errorf("%w: base chain has a cycle", segment.ErrCorrupt)}
		}
		seen[name] = true

		if f, ok := s.files.Get(name); ok {
			chain = append(chain, link{name: name, file: f})
			name = f.BaseName()
			continue
		}
		data, err := s.readSegment(ctx, segmentsDir, name)
		if err != nil {
			return nil, err
		}
		h, err := segment.ParseHeader(data)
		if err != nil {
			return nil, &SegmentError{Name: name, Err: err}
		}
		chain = append(chain, link{name: name, data: data})
		name = h.BaseName
	}

	files := make([]*segment.File, 0, len(chain))
	var numParents uint32
	for i := len(chain) - 1; i >= 0; i-- {
		l := chain[i]
		f := l.file
		if f == nil {
			var err error
			f, err = s.files.GetOrLoad(l.name, func() (*segment.File, int64, error) {
				f, err := segment.Decode(l.name, l.data, numParents, s.opts.Layout)
				if err != nil {
					return nil, 0, err
				}
				return f, int64(f.Size()), nil
			})
			if err != nil {
				return nil, &SegmentError{Name: l.name, Err: err}
			}
		}
		if f.NumParentCommits() != numParents {
			return nil, &SegmentError{Name: l.name, Err: fmt.Errorf("%w: expected %d parent commits, have %d", segment.ErrCorrupt, numParents, f.NumParentCommits())}
		}
		files = append(files, f)
		numParents = f.NumCommits()
	}
	return files, nil
}

// loadChangedPaths loads the changed-path segments of a link in parallel.
func (s *Store) loadChangedPaths(ctx context.Context, l *changedPathLink) (*changedpath.Index, error) {
	segs := make([]*changedpath.Segment, len(l.Segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range l.Segments {
		g.Go(func() error {
			seg, err := s.changed.GetOrLoad(name, func() (*changedpath.Segment, int64, error) {
				data, err := s.readSegment(gctx, changedPathsDir, name)
				if err != nil {
					return nil, 0, err
				}
				seg, err := changedpath.Decode(name, data)
				if err != nil {
					return nil, 0, &SegmentError{Name: name, Err: err}
				}
				return seg, int64(seg.Size()), nil
			})
			segs[i] = seg
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	x, err := changedpath.New(l.Start, segs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", segment.ErrCorrupt, err)
	}
	return x, nil
}

// WriteIndex persists m and links it to op. Segment files are stored before
// the link, so a crash leaves at worst unreferenced files behind.
func (s *Store) WriteIndex(ctx context.Context, m *index.Mutable, op model.OperationID) (ro *index.Readonly, err error) {
	start := time.Now()
	written := 0
	defer func() { s.metrics.RecordWrite(written, time.Since(start), err) }()

	sq, err := m.Squash(s.opts.Policy, s.opts.Compression)
	if err != nil {
		return nil, err
	}

	files := sq.Keep
	if sq.Segment != nil {
		data, name := sq.Segment.Encode()
		if err := s.blobs.Put(ctx, path.Join(segmentsDir, name), data); err != nil {
			return nil, fmt.Errorf("failed to write segment %s: %w", name, err)
		}
		written += len(data)

		f, err := s.files.GetOrLoad(name, func() (*segment.File, int64, error) {
			f, err := segment.Decode(name, data, sq.Segment.NumParentCommits(), s.opts.Layout)
			if err != nil {
				return nil, 0, err
			}
			return f, int64(f.Size()), nil
		})
		if err != nil {
			return nil, &SegmentError{Name: name, Err: err}
		}
		files = append(files[:len(files):len(files)], f)

		if sq.Folded > 0 {
			s.metrics.RecordCompaction(sq.Folded)
		}
		s.logger.Debug("wrote segment", "name", name, "commits", sq.Segment.NumLocalCommits(), "folded", sq.Folded, "levels", len(files))
	}

	if sq.ChangedData != nil {
		segs := sq.Changed.Segments()
		newest := segs[len(segs)-1]
		if err := s.blobs.Put(ctx, path.Join(changedPathsDir, newest.Name()), sq.ChangedData); err != nil {
			return nil, fmt.Errorf("failed to write changed-path segment %s: %w", newest.Name(), err)
		}
		written += len(sq.ChangedData)
		s.changed.Set(newest.Name(), newest, int64(newest.Size()))
	}

	ro, err = index.NewReadonly(s.opts.Layout, files, sq.Changed)
	if err != nil {
		return nil, err
	}
	n, err := s.writeLink(ctx, op, ro)
	written += n
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// writeLink stores the link of op to ro. Legacy links are only ever read.
func (s *Store) writeLink(ctx context.Context, op model.OperationID, ro *index.Readonly) (int, error) {
	link := opLink{Head: ro.HeadName()}
	if r, ok := ro.ChangedPathIndex().Range(); ok {
		cp := &changedPathLink{Start: r.Start}
		for _, seg := range ro.ChangedPathIndex().Segments() {
			cp.Segments = append(cp.Segments, seg.Name())
		}
		link.ChangedPaths = cp
	}

	data := encodeOpLink(link)
	if err := s.blobs.Put(ctx, path.Join(opLinksDir, op.Hex()), data); err != nil {
		return 0, fmt.Errorf("failed to write operation link %s: %w", op.Hex(), err)
	}
	return len(data), nil
}

// EnableChangedPathIndex starts tracking changed paths in the index of op
// from its current end. It is a no-op when already enabled.
func (s *Store) EnableChangedPathIndex(ctx context.Context, op *model.Operation) (*index.Readonly, error) {
	ro, err := s.GetIndexAtOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if ro.ChangedPathIndex().Enabled() {
		return ro, nil
	}
	changed, err := changedpath.New(model.Position(ro.NumCommits()), nil)
	if err != nil {
		return nil, err
	}
	ro, err = index.NewReadonly(s.opts.Layout, ro.Files(), changed)
	if err != nil {
		return nil, err
	}
	if _, err := s.writeLink(ctx, op.ID, ro); err != nil {
		return nil, err
	}
	s.logger.Info("enabled changed-path index", "op", op.ID.Hex(), "start", ro.NumCommits())
	return ro, nil
}

func (s *Store) progress() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: s.opts.ProgressInterval}
}
