package expire

import (
	"context"
	"testing"
	"time"

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

func newTestExpire(t *testing.T, cfg *config.Config) (*Expire, *commit.FileStoreCommit, *snapshot.Manager, fileio.FileIO, *layout.Manager) {
	t.Helper()
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	codec, err := manifest.NewCodec(mem)
	require.NoError(t, err)
	snapMgr := snapshot.NewManager(mem, lm, zerolog.Nop())
	fsc := commit.NewFileStoreCommit(mem, lm, snapMgr, codec, cfg, fileio.NewLocalLock(), zerolog.Nop())
	e := NewExpire(mem, lm, snapMgr, codec, cfg, zerolog.Nop())
	return e, fsc, snapMgr, mem, lm
}

func writeDataFile(t *testing.T, io fileio.FileIO, lm *layout.Manager, name string) {
	t.Helper()
	bucketPath := lm.BucketPath(lm.PartitionPath(nil), 0)
	require.NoError(t, io.MkdirAll(bucketPath))
	w, err := io.Create(bucketPath + "/" + name)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestExpireDeletesFileAddedThenDeletedWithinRange(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NumRetainedMin = 1
	cfg.MillisRetained = 0
	e, fsc, _, mem, lm := newTestExpire(t, cfg)

	writeDataFile(t, mem, lm, "data-1.parquet")
	writeDataFile(t, mem, lm, "data-2.parquet")

	require.NoError(t, fsc.Commit(context.Background(), committableOf("data-1.parquet", nil)))
	require.NoError(t, fsc.Commit(context.Background(), commit.Committable{
		CommitUser: "w", CommitIdentifier: 2, SchemaID: 0,
		Append: []commit.FileIncrement{{
			Bucket: 0, TotalBuckets: 1,
			Added:   []*manifest.DataFileMeta{{FileName: "data-2.parquet", RowCount: 1}},
			Deleted: []*manifest.DataFileMeta{{FileName: "data-1.parquet"}},
		}},
	}))
	// Force this snapshot's own timestamp old enough to be eligible too.
	e.now = func() int64 { return time.Now().Add(48 * time.Hour).UnixMilli() }

	result, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, result.DataFilesDeleted)

	exists, err := mem.Exists(lm.BucketPath(lm.PartitionPath(nil), 0) + "/data-1.parquet")
	require.NoError(t, err)
	assert.False(t, exists, "data-1.parquet's add-then-delete lifecycle fell entirely inside the expiring range")

	exists, err = mem.Exists(lm.BucketPath(lm.PartitionPath(nil), 0) + "/data-2.parquet")
	require.NoError(t, err)
	assert.True(t, exists, "data-2.parquet is still referenced by the retained snapshot")
}

func TestExpireKeepsAtLeastOneSnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NumRetainedMin = 1
	e, fsc, snapMgr, _, _ := newTestExpire(t, cfg)

	require.NoError(t, fsc.Commit(context.Background(), committableOf("data-1.parquet", nil)))

	result, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, result.SnapshotsExpired)

	_, ok, err := snapMgr.LatestSnapshotID()
	require.NoError(t, err)
	assert.True(t, ok)
}

func committableOf(fileName string, deleted []*manifest.DataFileMeta) commit.Committable {
	return commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{
			Bucket: 0, TotalBuckets: 1,
			Added:   []*manifest.DataFileMeta{{FileName: fileName, RowCount: 1}},
			Deleted: deleted,
		}},
	}
}
