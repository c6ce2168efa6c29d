package systable

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/commit"
	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
)

func newTestRegistry(t *testing.T) (*Registry, *commit.FileStoreCommit) {
	t.Helper()
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	codec, err := manifest.NewCodec(mem)
	require.NoError(t, err)
	snapMgr := snapshot.NewManager(mem, lm, zerolog.Nop())
	schemaMgr := schema.NewManager(mem, lm, zerolog.Nop())
	cfg := config.DefaultConfig()
	fsc := commit.NewFileStoreCommit(mem, lm, snapMgr, codec, cfg, fileio.NewLocalLock(), zerolog.Nop())

	_, err = schemaMgr.CreateTable(schema.TableDef{
		RowType: types.NewRowType(
			types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
			types.NewField(2, "amount", types.NewPrimitive(types.Int64), true),
		),
		PrimaryKeys: []string{"id"},
		Options:     map[string]string{"bucket": "2", "file.format": "parquet"},
	})
	require.NoError(t, err)

	lister := NewFileLister(mem, lm, codec)
	return NewRegistry(snapMgr, schemaMgr, lister), fsc
}

func commitOneFile(t *testing.T, fsc *commit.FileStoreCommit, id int64, bucket int, name string) {
	t.Helper()
	require.NoError(t, fsc.Commit(context.Background(), commit.Committable{
		CommitUser: "w", CommitIdentifier: id, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: bucket, TotalBuckets: 2,
			Added: []*manifest.DataFileMeta{{FileName: name, RowCount: 5, FileSize: 100}}}},
	}))
}

func drain(t *testing.T, it RowIterator) [][]any {
	t.Helper()
	var out [][]any
	for {
		row, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, row)
	}
	require.NoError(t, it.Close())
	return out
}

func TestSnapshotsTableListsCommitHistory(t *testing.T) {
	reg, fsc := newTestRegistry(t)
	commitOneFile(t, fsc, 1, 0, "a.parquet")
	commitOneFile(t, fsc, 2, 1, "b.parquet")

	it, err := reg.Open(NameSnapshots)
	require.NoError(t, err)
	rows := drain(t, it)

	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0][0])
	assert.Equal(t, "w", rows[0][2])
	assert.Equal(t, "APPEND", rows[0][4])
}

func TestSchemasTableListsVersionsWithFieldSummary(t *testing.T) {
	reg, _ := newTestRegistry(t)

	it, err := reg.Open(NameSchemas)
	require.NoError(t, err)
	rows := drain(t, it)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0][0])
	assert.Contains(t, rows[0][1], "id")
	assert.Equal(t, "id", rows[0][2])
}

func TestOptionsTableFlattensLatestSchemaOptions(t *testing.T) {
	reg, _ := newTestRegistry(t)

	it, err := reg.Open(NameOptions)
	require.NoError(t, err)
	rows := drain(t, it)

	seen := make(map[string]string)
	for _, r := range rows {
		seen[r[0].(string)] = r[1].(string)
	}
	assert.Equal(t, "2", seen["bucket"])
	assert.Equal(t, "parquet", seen["file.format"])
}

func TestAuditLogTableNarrowsToCommitFields(t *testing.T) {
	reg, fsc := newTestRegistry(t)
	commitOneFile(t, fsc, 1, 0, "a.parquet")

	it, err := reg.Open(NameAuditLog)
	require.NoError(t, err)
	rows := drain(t, it)

	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 5)
	assert.Equal(t, int64(1), rows[0][0])
}

func TestFilesTableListsLiveFilesAcrossBuckets(t *testing.T) {
	reg, fsc := newTestRegistry(t)
	commitOneFile(t, fsc, 1, 0, "a.parquet")
	commitOneFile(t, fsc, 2, 1, "b.parquet")

	it, err := reg.Open(NameFiles)
	require.NoError(t, err)
	rows := drain(t, it)

	require.Len(t, rows, 2)
	names := map[string]bool{}
	for _, r := range rows {
		names[r[2].(string)] = true
	}
	assert.True(t, names["a.parquet"])
	assert.True(t, names["b.parquet"])
}

func TestOpenUnknownTableFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Open(Name("bogus"))
	assert.Error(t, err)
}
