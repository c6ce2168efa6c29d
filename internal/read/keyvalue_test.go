package read

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/lsm"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/types"
)

func kvValueType() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "amount", types.NewPrimitive(types.Int64), true),
	)
}

func writeSortedRun(t *testing.T, io fileio.FileIO, lm *layout.Manager, ff format.FileFormat, partitionPath string, bucket, level int, rows []mergefunc.KeyValue) *manifest.DataFileMeta {
	t.Helper()
	w, err := lsm.NewDataFileWriter(io, lm, ff, partitionPath, bucket, level, 1, []string{"id"}, kvValueType())
	require.NoError(t, err)
	for _, kv := range rows {
		require.NoError(t, w.Write(kv))
	}
	meta, err := w.Close()
	require.NoError(t, err)
	return meta
}

func TestKeyValueReadValueContentMergesDuplicateKeysByDedup(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	pq := format.NewParquet(format.CompressionNone, 0)
	partitionPath := lm.PartitionPath(nil)

	m1 := writeSortedRun(t, mem, lm, pq, partitionPath, 0, 0, []mergefunc.KeyValue{
		{Key: []any{int64(1)}, Sequence: 1, Kind: mergefunc.Insert, Value: []any{int64(1), int64(10)}},
	})
	m2 := writeSortedRun(t, mem, lm, pq, partitionPath, 0, 1, []mergefunc.KeyValue{
		{Key: []any{int64(1)}, Sequence: 2, Kind: mergefunc.Insert, Value: []any{int64(1), int64(99)}},
		{Key: []any{int64(2)}, Sequence: 3, Kind: mergefunc.Insert, Value: []any{int64(2), int64(20)}},
	})

	kvr := NewKeyValueFileStoreRead(mem, lm, pq, []string{"id"}, kvValueType(), func() mergefunc.MergeFunction { return mergefunc.NewDeduplicate() }, ShapeValueContent)
	split := &scan.Split{Bucket: 0, Files: []manifest.DataFileMeta{*m1, *m2}}

	reader, err := kvr.CreateReader(split, Options{})
	require.NoError(t, err)
	defer reader.Close()

	row1, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(99)}, row1.Values, "higher sequence wins under deduplicate")

	row2, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(20)}, row2.Values)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestKeyValueReadValueCountRepeatsRowsBySignedCount(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/clicks")
	pq := format.NewParquet(format.CompressionNone, 0)
	partitionPath := lm.PartitionPath(nil)

	// key (1,10) seen twice (+2), key (2,20) inserted once then deleted
	// (net 0, dropped entirely).
	m1 := writeSortedRun(t, mem, lm, pq, partitionPath, 0, 0, []mergefunc.KeyValue{
		{Key: []any{int64(1), int64(10)}, Sequence: 1, Kind: mergefunc.Insert, Value: []any{int64(1), int64(10)}},
		{Key: []any{int64(2), int64(20)}, Sequence: 2, Kind: mergefunc.Insert, Value: []any{int64(2), int64(20)}},
	})
	m2 := writeSortedRun(t, mem, lm, pq, partitionPath, 0, 1, []mergefunc.KeyValue{
		{Key: []any{int64(1), int64(10)}, Sequence: 3, Kind: mergefunc.Insert, Value: []any{int64(1), int64(10)}},
		{Key: []any{int64(2), int64(20)}, Sequence: 4, Kind: mergefunc.Delete, Value: []any{int64(2), int64(20)}},
	})

	kvr := NewKeyValueFileStoreRead(mem, lm, pq, []string{"id", "amount"}, kvValueType(), nil, ShapeValueCount)
	split := &scan.Split{Bucket: 0, Files: []manifest.DataFileMeta{*m1, *m2}}

	reader, err := kvr.CreateReader(split, Options{})
	require.NoError(t, err)
	defer reader.Close()

	row1, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(10)}, row1.Values)
	assert.Equal(t, mergefunc.Insert, row1.Kind)

	row2, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(10)}, row2.Values, "repeated once per unit of count above 1")
	assert.Equal(t, mergefunc.Insert, row2.Kind)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF, "key (2,20) nets to zero and is dropped")
}

func TestKeyValueReadValueContentIncludesRowKindColumnWhenRequested(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	pq := format.NewParquet(format.CompressionNone, 0)
	partitionPath := lm.PartitionPath(nil)

	m1 := writeSortedRun(t, mem, lm, pq, partitionPath, 0, 0, []mergefunc.KeyValue{
		{Key: []any{int64(1)}, Sequence: 1, Kind: mergefunc.Insert, Value: []any{int64(1), int64(10)}},
	})

	kvr := NewKeyValueFileStoreRead(mem, lm, pq, []string{"id"}, kvValueType(), func() mergefunc.MergeFunction { return mergefunc.NewFirstRow() }, ShapeValueContent)
	split := &scan.Split{Bucket: 0, Files: []manifest.DataFileMeta{*m1}}

	reader, err := kvr.CreateReader(split, Options{IncludeRowKind: true})
	require.NoError(t, err)
	defer reader.Close()

	row, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "+I", row.Values[len(row.Values)-1])
}
