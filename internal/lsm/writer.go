package lsm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// CommitResult is what PrepareCommit hands the commit path for one bucket:
// newly flushed/compacted files to add, the before/after of any compaction
// that ran, and any changelog files produced.
type CommitResult struct {
	NewFiles           []*manifest.DataFileMeta
	CompactBeforeFiles []*manifest.DataFileMeta
	CompactAfterFiles  []*manifest.DataFileMeta
	ChangelogFiles     []*manifest.DataFileMeta
}

// MergeTreeWriter is the per-(partition, bucket) write path: it owns the
// write buffer, the Levels a CompactManager mutates, and the monotonic
// sequence counter that orders records when no sequence.field is set.
type MergeTreeWriter struct {
	io            fileio.FileIO
	layoutMgr     *layout.Manager
	ff            format.FileFormat
	cfg           *config.Config
	partitionPath string
	bucket        int
	schemaID      int64
	primaryKey    []string
	valueType     *types.RowType
	sequenceIdx   int // index into valueType.Fields of the user sequence field, -1 if unset

	buffer  *WriteBuffer
	levels  *Levels
	compact *CompactManager

	mu       sync.Mutex
	nextSeq  int64
	pending  []mergefunc.KeyValue // INPUT changelog producer: verbatim copy of every write since the last prepareCommit
}

// NewMergeTreeWriter constructs a writer with empty state, the path used
// when a bucket is written to for the first time.
func NewMergeTreeWriter(
	io fileio.FileIO,
	layoutMgr *layout.Manager,
	ff format.FileFormat,
	cfg *config.Config,
	pool *WorkerPool,
	partitionPath string,
	bucket int,
	schemaID int64,
	primaryKey []string,
	valueType *types.RowType,
	mergeSpec mergefunc.Spec,
	logger zerolog.Logger,
) *MergeTreeWriter {
	levels := NewLevels(cfg.NumLevels)
	w := &MergeTreeWriter{
		io:            io,
		layoutMgr:     layoutMgr,
		ff:            ff,
		cfg:           cfg,
		partitionPath: partitionPath,
		bucket:        bucket,
		schemaID:      schemaID,
		primaryKey:    primaryKey,
		valueType:     valueType,
		sequenceIdx:   sequenceFieldIndex(cfg, valueType),
		buffer:        NewWriteBuffer(),
		levels:        levels,
		nextSeq:       1,
	}
	w.compact = NewCompactManager(levels, pool, cfg, io, layoutMgr, ff, partitionPath, bucket, schemaID, primaryKey, valueType, mergeSpec, logger)
	return w
}

// Restore rebuilds a writer from the DataFileMeta list belonging to this
// bucket in the latest snapshot, resuming sequence numbering above the
// highest sequence already persisted.
func Restore(
	io fileio.FileIO,
	layoutMgr *layout.Manager,
	ff format.FileFormat,
	cfg *config.Config,
	pool *WorkerPool,
	partitionPath string,
	bucket int,
	schemaID int64,
	primaryKey []string,
	valueType *types.RowType,
	mergeSpec mergefunc.Spec,
	files []*manifest.DataFileMeta,
	logger zerolog.Logger,
) *MergeTreeWriter {
	w := NewMergeTreeWriter(io, layoutMgr, ff, cfg, pool, partitionPath, bucket, schemaID, primaryKey, valueType, mergeSpec, logger)
	w.levels.Restore(files)
	w.nextSeq = w.levels.MaxSequence() + 1
	return w
}

func sequenceFieldIndex(cfg *config.Config, valueType *types.RowType) int {
	if cfg.SequenceField == "" {
		return -1
	}
	return valueType.IndexOf(cfg.SequenceField)
}

// Write buffers one record. It blocks until the bucket's sorted-run count
// drops below the stop trigger if backpressure is currently engaged.
func (w *MergeTreeWriter) Write(ctx context.Context, kind mergefunc.RowKind, key, value []any) error {
	for w.compact.ShouldBlockWrites() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	seq := w.nextSequence(value)
	kv := mergefunc.KeyValue{Key: key, Sequence: seq, Kind: kind, Value: value}
	w.buffer.Put(kv)

	if w.cfg.ChangelogProducer == config.ChangelogInput {
		w.mu.Lock()
		w.pending = append(w.pending, kv)
		w.mu.Unlock()
	}

	if w.buffer.SizeBytes() >= w.cfg.WriteBufferSizeBytes {
		if _, err := w.flush(); err != nil {
			return err
		}
	}
	return w.compact.MaybeTriggerAsync()
}

func (w *MergeTreeWriter) nextSequence(value []any) int64 {
	if w.sequenceIdx >= 0 && w.sequenceIdx < len(value) {
		if s, ok := toSequence(value[w.sequenceIdx]); ok {
			return s
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	seq := w.nextSeq
	w.nextSeq++
	return seq
}

func toSequence(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// flush drains the buffer into a new L0 sorted run, returning its
// DataFileMeta (nil if the buffer was empty).
func (w *MergeTreeWriter) flush() (*manifest.DataFileMeta, error) {
	rows := w.buffer.Drain()
	if len(rows) == 0 {
		return nil, nil
	}

	writer, err := NewDataFileWriter(w.io, w.layoutMgr, w.ff, w.partitionPath, w.bucket, 0, w.schemaID, w.primaryKey, w.valueType)
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to open flush output file", err)
	}
	for _, kv := range rows {
		if err := writer.Write(kv); err != nil {
			return nil, errors.New(ErrWriteFailed, "failed writing flush record", err)
		}
	}
	meta, err := writer.Close()
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to finalize flush output file", err)
	}
	w.levels.AddL0(meta)
	return meta, nil
}

// PrepareCommit drains the buffer, optionally forces a synchronous
// compaction, and returns every file the commit path needs to fold into
// the next snapshot's manifest.
func (w *MergeTreeWriter) PrepareCommit(ctx context.Context, forceCompact bool) (CommitResult, error) {
	var result CommitResult

	flushed, err := w.flush()
	if err != nil {
		return result, err
	}
	if flushed != nil {
		result.NewFiles = append(result.NewFiles, flushed)
	}

	if forceCompact {
		if err := w.compact.RunSync(ctx); err != nil {
			return result, errors.New(ErrCompactionFailed, "forced compaction failed during prepare-commit", err)
		}
	}

	for _, cr := range w.compact.DrainResults() {
		result.CompactBeforeFiles = append(result.CompactBeforeFiles, cr.CompactBefore...)
		result.CompactAfterFiles = append(result.CompactAfterFiles, cr.CompactAfter...)
		result.ChangelogFiles = append(result.ChangelogFiles, cr.Changelog...)
	}

	if w.cfg.ChangelogProducer == config.ChangelogInput {
		w.mu.Lock()
		pending := w.pending
		w.pending = nil
		w.mu.Unlock()

		if len(pending) > 0 {
			cf, err := w.writeInputChangelog(pending)
			if err != nil {
				return result, err
			}
			result.ChangelogFiles = append(result.ChangelogFiles, cf)
		}
	}

	return result, nil
}

func (w *MergeTreeWriter) writeInputChangelog(rows []mergefunc.KeyValue) (*manifest.DataFileMeta, error) {
	writer, err := NewDataFileWriter(w.io, w.layoutMgr, w.ff, w.partitionPath, w.bucket, 0, w.schemaID, w.primaryKey, w.valueType)
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to open input changelog file", err)
	}
	for _, kv := range rows {
		if err := writer.Write(kv); err != nil {
			return nil, errors.New(ErrWriteFailed, "failed writing input changelog row", err)
		}
	}
	meta, err := writer.Close()
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to finalize input changelog file", err)
	}
	return meta, nil
}
