package enumerator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/commit"
	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/snapshot"
)

func newTestEnumerator(t *testing.T) (*SnapshotEnumerator, *commit.FileStoreCommit, *snapshot.Manager, fileio.FileIO) {
	t.Helper()
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/clicks")
	codec, err := manifest.NewCodec(mem)
	require.NoError(t, err)
	snapMgr := snapshot.NewManager(mem, lm, zerolog.Nop())
	cfg := config.DefaultConfig()
	fsc := commit.NewFileStoreCommit(mem, lm, snapMgr, codec, cfg, fileio.NewLocalLock(), zerolog.Nop())
	e := NewSnapshotEnumerator(mem, lm, snapMgr, codec, 1, zerolog.Nop())
	return e, fsc, snapMgr, mem
}

func commitOneFile(t *testing.T, fsc *commit.FileStoreCommit, id int64, bucket int, name string) {
	t.Helper()
	require.NoError(t, fsc.Commit(context.Background(), commit.Committable{
		CommitUser: "w", CommitIdentifier: id, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: bucket, TotalBuckets: 2,
			Added: []*manifest.DataFileMeta{{FileName: name, RowCount: 1}}}},
	}))
}

func TestSnapshotEnumeratorEmitsIncrementalPlansInOrder(t *testing.T) {
	e, fsc, _, _ := newTestEnumerator(t)
	commitOneFile(t, fsc, 1, 0, "a.parquet")
	commitOneFile(t, fsc, 2, 1, "b.parquet")

	r1, err := e.Next()
	require.NoError(t, err)
	require.NotNil(t, r1.Plan)
	assert.Equal(t, int64(1), r1.Plan.SnapshotID)
	assert.Len(t, r1.Plan.SplitsByBucket[0], 1)

	r2, err := e.Next()
	require.NoError(t, err)
	require.NotNil(t, r2.Plan)
	assert.Equal(t, int64(2), r2.Plan.SnapshotID)
	assert.Len(t, r2.Plan.SplitsByBucket[1], 1)

	r3, err := e.Next()
	require.NoError(t, err)
	assert.Nil(t, r3.Plan)
	assert.False(t, r3.Finished)
}

func TestSnapshotEnumeratorDetectsGapAsFinished(t *testing.T) {
	e, fsc, snapMgr, mem := newTestEnumerator(t)
	commitOneFile(t, fsc, 1, 0, "a.parquet")
	commitOneFile(t, fsc, 2, 0, "b.parquet")

	require.NoError(t, mem.Delete(snapMgr.SnapshotPath(1)))

	r, err := e.Next()
	require.NoError(t, err)
	assert.True(t, r.Finished)
	assert.Nil(t, r.Plan)
}
