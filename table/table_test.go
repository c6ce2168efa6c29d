package table

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/read"
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/systable"
	"github.com/lakestore/core/internal/types"
)

func ordersDef() schema.TableDef {
	return schema.TableDef{
		RowType: types.NewRowType(
			types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
			types.NewField(2, "region", types.NewPrimitive(types.String), false),
			types.NewField(3, "amount", types.NewPrimitive(types.Int64), true),
		),
		PrimaryKeys:   []string{"id"},
		PartitionKeys: []string{"region"},
		Options:       map[string]string{"bucket": "2", "file.format": "parquet"},
	}
}

func readAllRows(t *testing.T, r read.RecordReader) [][]any {
	t.Helper()
	var rows [][]any
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row.Values)
	}
	require.NoError(t, r.Close())
	return rows
}

func TestTableWriteCommitScanReadRoundTrip(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	tbl, err := Create(mem, "/db/orders", ordersDef(), zerolog.Nop())
	require.NoError(t, err)
	defer tbl.Close()

	ctx := context.Background()
	require.NoError(t, tbl.Write(ctx, mergefunc.Insert, []any{int64(1), "us", int64(100)}))
	require.NoError(t, tbl.Write(ctx, mergefunc.Insert, []any{int64(2), "us", int64(200)}))
	require.NoError(t, tbl.Write(ctx, mergefunc.Insert, []any{int64(3), "eu", int64(50)}))
	require.NoError(t, tbl.Commit(ctx))

	// A later update to id=1 must supersede the first value after merging.
	require.NoError(t, tbl.Write(ctx, mergefunc.Insert, []any{int64(1), "us", int64(999)}))
	require.NoError(t, tbl.Commit(ctx))

	plan, err := tbl.Scan(scan.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, plan.Splits)

	var rows [][]any
	for _, split := range plan.Splits {
		r, err := tbl.OpenSplit(split, read.Options{})
		require.NoError(t, err)
		rows = append(rows, readAllRows(t, r)...)
	}

	byID := make(map[int64][]any)
	for _, row := range rows {
		byID[row[0].(int64)] = row
	}
	require.Len(t, byID, 3)
	assert.Equal(t, int64(999), byID[1][2])
	assert.Equal(t, int64(200), byID[2][2])
	assert.Equal(t, int64(50), byID[3][2])
}

func TestTableSystemTablesReflectCommits(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	tbl, err := Create(mem, "/db/metrics", ordersDef(), zerolog.Nop())
	require.NoError(t, err)
	defer tbl.Close()

	ctx := context.Background()
	require.NoError(t, tbl.Write(ctx, mergefunc.Insert, []any{int64(1), "us", int64(10)}))
	require.NoError(t, tbl.Commit(ctx))

	it, err := tbl.SystemTable(systable.NameSnapshots)
	require.NoError(t, err)
	rows := readRawRows(t, it)
	require.Len(t, rows, 1)
	assert.Equal(t, "APPEND", rows[0][4])

	it, err = tbl.SystemTable(systable.NameFiles)
	require.NoError(t, err)
	rows = readRawRows(t, it)
	require.Len(t, rows, 1)
}

func readRawRows(t *testing.T, it systable.RowIterator) [][]any {
	t.Helper()
	var rows [][]any
	for {
		row, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, it.Close())
	return rows
}

func TestTableBucketAssignmentIsStableForSameKey(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	tbl, err := Create(mem, "/db/stable", ordersDef(), zerolog.Nop())
	require.NoError(t, err)
	defer tbl.Close()

	value := []any{int64(42), int64(7)}
	b1 := bucketOf(value, tbl.bucketKeyIdx, tbl.cfg.Bucket)
	b2 := bucketOf(value, tbl.bucketKeyIdx, tbl.cfg.Bucket)
	assert.Equal(t, b1, b2)
	assert.GreaterOrEqual(t, b1, 0)
	assert.Less(t, b1, tbl.cfg.Bucket)
}
