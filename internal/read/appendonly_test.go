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
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/types"
)

func appendOnlyRowType() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "msg", types.NewPrimitive(types.String), true),
	)
}

func writeAppendOnlyFile(t *testing.T, io fileio.FileIO, ff format.FileFormat, path string, rowType *types.RowType, rows [][]any) {
	t.Helper()
	w, err := io.Create(path)
	require.NoError(t, err)
	fw, err := ff.NewWriter(w, rowType)
	require.NoError(t, err)
	require.NoError(t, fw.Write(format.RecordBatch{Schema: rowType, Rows: rows}))
	_, err = fw.Close()
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestAppendOnlyConcatReaderReadsFilesInOrder(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/events")
	pq := format.NewParquet(format.CompressionNone, 0)
	rowType := appendOnlyRowType()

	bucketPath := lm.BucketPath(lm.PartitionPath(nil), 0)
	require.NoError(t, mem.MkdirAll(bucketPath))
	writeAppendOnlyFile(t, mem, pq, bucketPath+"/a.parquet", rowType, [][]any{{int64(1), "hello"}})
	writeAppendOnlyFile(t, mem, pq, bucketPath+"/b.parquet", rowType, [][]any{{int64(2), "world"}})

	aor := NewAppendOnlyFileStoreRead(mem, lm, pq, rowType)
	split := &scan.Split{Bucket: 0, Files: []manifest.DataFileMeta{{FileName: "a.parquet"}, {FileName: "b.parquet"}}}

	reader, err := aor.CreateReader(split, Options{})
	require.NoError(t, err)
	defer reader.Close()

	row1, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), row1.Values[0])

	row2, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), row2.Values[0])

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAppendOnlyConcatReaderAppliesProjectionAndPredicate(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/events")
	pq := format.NewParquet(format.CompressionNone, 0)
	rowType := appendOnlyRowType()

	bucketPath := lm.BucketPath(lm.PartitionPath(nil), 0)
	require.NoError(t, mem.MkdirAll(bucketPath))
	writeAppendOnlyFile(t, mem, pq, bucketPath+"/a.parquet", rowType, [][]any{
		{int64(1), "keep"},
		{int64(2), "drop"},
	})

	aor := NewAppendOnlyFileStoreRead(mem, lm, pq, rowType)
	split := &scan.Split{Bucket: 0, Files: []manifest.DataFileMeta{{FileName: "a.parquet"}}}

	opts := Options{
		Projection: []int{1},
		Predicate:  func(values []any) bool { return values[1] == "keep" },
	}
	reader, err := aor.CreateReader(split, opts)
	require.NoError(t, err)
	defer reader.Close()

	row, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []any{"keep"}, row.Values)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}
