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
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
)

func newTestPartitionExpire(t *testing.T, cfg *config.Config) (*PartitionExpire, *commit.FileStoreCommit, *schema.Manager) {
	t.Helper()
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/events")
	codec, err := manifest.NewCodec(mem)
	require.NoError(t, err)
	snapMgr := snapshot.NewManager(mem, lm, zerolog.Nop())
	fsc := commit.NewFileStoreCommit(mem, lm, snapMgr, codec, cfg, fileio.NewLocalLock(), zerolog.Nop())
	schemas := schema.NewManager(mem, lm, zerolog.Nop())

	rowType := &types.RowType{Fields: []types.Field{
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "dt", types.NewPrimitive(types.String), false),
	}}
	_, err = schemas.CreateTable(schema.TableDef{RowType: rowType, PartitionKeys: []string{"dt"}})
	require.NoError(t, err)

	pe := NewPartitionExpire(mem, lm, snapMgr, codec, schemas, fsc, cfg, zerolog.Nop())
	return pe, fsc, schemas
}

func TestPartitionExpireDeletesAgedPartition(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PartitionExpirationEnabled = true
	cfg.PartitionExpirationTime = 24 * time.Hour
	cfg.PartitionTimestampPattern = "$dt"
	cfg.PartitionTimestampFormatter = "2006-01-02"

	pe, fsc, _ := newTestPartitionExpire(t, cfg)
	ctx := context.Background()

	old := time.Now().Add(-72 * time.Hour).Format("2006-01-02")
	fresh := time.Now().Format("2006-01-02")

	require.NoError(t, fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{
			{PartitionValues: []string{old}, Bucket: 0, TotalBuckets: 1,
				Added: []*manifest.DataFileMeta{{FileName: "old.parquet", RowCount: 1}}},
			{PartitionValues: []string{fresh}, Bucket: 0, TotalBuckets: 1,
				Added: []*manifest.DataFileMeta{{FileName: "fresh.parquet", RowCount: 1}}},
		},
	}))

	expired, err := pe.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	latestID, ok, err := pe.snapshots.LatestSnapshotID()
	require.NoError(t, err)
	require.True(t, ok)
	groups, err := pe.liveEntriesByPartition(latestID)
	require.NoError(t, err)
	_, oldStillLive := groups[partitionKey([]string{old})]
	assert.False(t, oldStillLive, "aged partition should have been overwritten away")
	_, freshStillLive := groups[partitionKey([]string{fresh})]
	assert.True(t, freshStillLive)
}

func TestPartitionExpireNoopWhenDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	pe, fsc, _ := newTestPartitionExpire(t, cfg)
	ctx := context.Background()

	require.NoError(t, fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{PartitionValues: []string{"2020-01-01"}, Bucket: 0, TotalBuckets: 1,
			Added: []*manifest.DataFileMeta{{FileName: "old.parquet", RowCount: 1}}}},
	}))

	expired, err := pe.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestPartitionExpireSkipsUnparsableTimestamp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PartitionExpirationEnabled = true
	cfg.PartitionExpirationTime = time.Hour
	cfg.PartitionTimestampPattern = "$dt"
	cfg.PartitionTimestampFormatter = "2006-01-02"

	pe, fsc, _ := newTestPartitionExpire(t, cfg)
	ctx := context.Background()

	require.NoError(t, fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{PartitionValues: []string{"not-a-date"}, Bucket: 0, TotalBuckets: 1,
			Added: []*manifest.DataFileMeta{{FileName: "a.parquet", RowCount: 1}}}},
	}))

	expired, err := pe.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired, "unparsable partition timestamps are skipped, not treated as expired")
}
