package lsm

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/types"
)

func newFileMeta(name string, level int, size int64) *manifest.DataFileMeta {
	return &manifest.DataFileMeta{FileName: name, Level: level, FileSize: size}
}

func sampleValueType() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "amount", types.NewPrimitive(types.Int64), true),
	)
}

func newTestEnv() (fileio.FileIO, *layout.Manager, format.FileFormat) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	reg := format.NewRegistry()
	pq := format.NewParquet("uncompressed", 0)
	reg.Register(pq)
	return mem, lm, pq
}

func TestWriteBufferDrainOrdersByKey(t *testing.T) {
	b := NewWriteBuffer()
	b.Put(mergefunc.KeyValue{Key: []any{int64(3)}, Sequence: 1, Kind: mergefunc.Insert, Value: []any{int64(3), int64(30)}})
	b.Put(mergefunc.KeyValue{Key: []any{int64(1)}, Sequence: 2, Kind: mergefunc.Insert, Value: []any{int64(1), int64(10)}})
	b.Put(mergefunc.KeyValue{Key: []any{int64(2)}, Sequence: 3, Kind: mergefunc.Insert, Value: []any{int64(2), int64(20)}})

	assert.Equal(t, 3, b.Len())
	out := b.Drain()
	require.Len(t, out, 3)
	assert.Equal(t, []any{int64(1)}, out[0].Key)
	assert.Equal(t, []any{int64(2)}, out[1].Key)
	assert.Equal(t, []any{int64(3)}, out[2].Key)
	assert.Equal(t, 0, b.Len())
}

func TestWriteBufferOverwritesSameKey(t *testing.T) {
	b := NewWriteBuffer()
	b.Put(mergefunc.KeyValue{Key: []any{int64(1)}, Sequence: 1, Value: []any{int64(1), int64(10)}})
	b.Put(mergefunc.KeyValue{Key: []any{int64(1)}, Sequence: 2, Value: []any{int64(1), int64(99)}})

	out := b.Drain()
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].Sequence)
	assert.Equal(t, int64(99), out[0].Value[1])
}

func TestLevelsRestoreGroupsByLevel(t *testing.T) {
	l := NewLevels(3)
	l.Restore([]*manifest.DataFileMeta{
		newFileMeta("l0.parquet", 0, 10),
		newFileMeta("l1.parquet", 1, 20),
	})
	assert.Equal(t, 2, l.NumSortedRuns())
	assert.Equal(t, int64(30), l.TotalSize())
}

func TestLevelsAddAndRemoveL0(t *testing.T) {
	l := NewLevels(2)
	f1 := newFileMeta("a.parquet", 0, 100)
	f2 := newFileMeta("b.parquet", 0, 200)
	l.AddL0(f1)
	l.AddL0(f2)
	assert.Equal(t, 2, l.NumSortedRuns())
	assert.Equal(t, int64(300), l.TotalSize())

	l.RemoveL0([]*manifest.DataFileMeta{f1})
	assert.Equal(t, 1, l.NumSortedRuns())
}

func TestMergeTreeWriterFlushProducesL0File(t *testing.T) {
	mem, lm, pq := newTestEnv()
	cfg := config.DefaultConfig()
	cfg.WriteBufferSizeBytes = 1 << 30 // large enough that Write never auto-flushes
	pool := NewWorkerPool(cfg.CompactionMaxWorkers, 0, zerolog.Nop())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	mergeSpec := mergefunc.Spec{Engine: config.MergeDedup}
	w := NewMergeTreeWriter(mem, lm, pq, cfg, pool, "/db/orders", 0, 0, []string{"id"}, sampleValueType(), mergeSpec, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(1)}, []any{int64(1), int64(10)}))
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(2)}, []any{int64(2), int64(20)}))

	result, err := w.PrepareCommit(ctx, false)
	require.NoError(t, err)
	require.Len(t, result.NewFiles, 1)
	assert.Equal(t, int64(2), result.NewFiles[0].RowCount)
}

func TestMergeTreeWriterCompactionMergesOnDedup(t *testing.T) {
	mem, lm, pq := newTestEnv()
	cfg := config.DefaultConfig()
	cfg.WriteBufferSizeBytes = 1
	// Neutralize every async trigger so the only compaction that runs is the
	// forced, synchronous one below — otherwise the background worker pool
	// races PrepareCommit's forceCompact and the test becomes flaky.
	cfg.NumSortedRunCompactionTrigger = 100
	cfg.MaxSizeAmplificationPercent = 1 << 20
	cfg.SortedRunSizeRatio = 0
	pool := NewWorkerPool(cfg.CompactionMaxWorkers, time.Second, zerolog.Nop())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	mergeSpec := mergefunc.Spec{Engine: config.MergeDedup}
	w := NewMergeTreeWriter(mem, lm, pq, cfg, pool, "/db/orders", 0, 0, []string{"id"}, sampleValueType(), mergeSpec, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(1)}, []any{int64(1), int64(10)}))
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(1)}, []any{int64(1), int64(50)}))

	result, err := w.PrepareCommit(ctx, true)
	require.NoError(t, err)
	assert.NotEmpty(t, result.CompactAfterFiles)
}

func TestMergeTreeWriterInputChangelogCapturesEveryWrite(t *testing.T) {
	mem, lm, pq := newTestEnv()
	cfg := config.DefaultConfig()
	cfg.ChangelogProducer = config.ChangelogInput
	cfg.WriteBufferSizeBytes = 1 << 30
	pool := NewWorkerPool(cfg.CompactionMaxWorkers, 0, zerolog.Nop())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	mergeSpec := mergefunc.Spec{Engine: config.MergeDedup}
	w := NewMergeTreeWriter(mem, lm, pq, cfg, pool, "/db/orders", 0, 0, []string{"id"}, sampleValueType(), mergeSpec, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(1)}, []any{int64(1), int64(10)}))
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(2)}, []any{int64(2), int64(20)}))

	result, err := w.PrepareCommit(ctx, false)
	require.NoError(t, err)
	require.Len(t, result.ChangelogFiles, 1)
	assert.Equal(t, int64(2), result.ChangelogFiles[0].RowCount)
}

func TestMergeTreeWriterChangelogNoneProducesNoChangelogFile(t *testing.T) {
	mem, lm, pq := newTestEnv()
	cfg := config.DefaultConfig()
	cfg.WriteBufferSizeBytes = 1 << 30
	pool := NewWorkerPool(cfg.CompactionMaxWorkers, 0, zerolog.Nop())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	mergeSpec := mergefunc.Spec{Engine: config.MergeDedup}
	w := NewMergeTreeWriter(mem, lm, pq, cfg, pool, "/db/orders", 0, 0, []string{"id"}, sampleValueType(), mergeSpec, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, mergefunc.Insert, []any{int64(1)}, []any{int64(1), int64(10)}))

	result, err := w.PrepareCommit(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, result.ChangelogFiles)
}
