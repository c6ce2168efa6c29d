package scan

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
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
)

type testEnv struct {
	scan *Scan
	fsc  *commit.FileStoreCommit
}

func newTestScan(t *testing.T, primaryKeys, partitionKeys []string) *testEnv {
	t.Helper()
	mem := fileio.NewMemory(zerolog.Nop())
	lm := layout.NewManager("/db/orders")
	codec, err := manifest.NewCodec(mem)
	require.NoError(t, err)
	snapMgr := snapshot.NewManager(mem, lm, zerolog.Nop())
	cfg := config.DefaultConfig()
	fsc := commit.NewFileStoreCommit(mem, lm, snapMgr, codec, cfg, fileio.NewLocalLock(), zerolog.Nop())
	schemas := schema.NewManager(mem, lm, zerolog.Nop())

	rowType := &types.RowType{Fields: []types.Field{
		types.NewField(1, "id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "region", types.NewPrimitive(types.String), false),
	}}
	_, err = schemas.CreateTable(schema.TableDef{RowType: rowType, PrimaryKeys: primaryKeys, PartitionKeys: partitionKeys})
	require.NoError(t, err)

	s := NewScan(mem, lm, snapMgr, codec, schemas, cfg, zerolog.Nop())
	return &testEnv{scan: s, fsc: fsc}
}

func TestPlanGroupsAppendOnlyFilesByPartitionAndBucket(t *testing.T) {
	env := newTestScan(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{
			{Bucket: 0, TotalBuckets: 2, Added: []*manifest.DataFileMeta{
				{FileName: "a.parquet", FileSize: 10, RowCount: 5},
				{FileName: "b.parquet", FileSize: 10, RowCount: 5},
			}},
			{Bucket: 1, TotalBuckets: 2, Added: []*manifest.DataFileMeta{
				{FileName: "c.parquet", FileSize: 10, RowCount: 5},
			}},
		},
	}))

	plan, err := env.scan.Plan(Options{Mode: config.ScanLatest})
	require.NoError(t, err)
	assert.Equal(t, int64(1), plan.SnapshotID)
	assert.Len(t, plan.Splits, 2, "bucket 0 and bucket 1 each produce one packed split")

	totalFiles := 0
	for _, split := range plan.Splits {
		totalFiles += len(split.Files)
	}
	assert.Equal(t, 3, totalFiles)
}

func TestPlanAppliesPartitionPredicate(t *testing.T) {
	env := newTestScan(t, nil, []string{"region"})
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{
			{PartitionValues: []string{"us"}, Bucket: 0, TotalBuckets: 1,
				Added: []*manifest.DataFileMeta{{FileName: "us.parquet", FileSize: 10, RowCount: 1}}},
			{PartitionValues: []string{"eu"}, Bucket: 0, TotalBuckets: 1,
				Added: []*manifest.DataFileMeta{{FileName: "eu.parquet", FileSize: 10, RowCount: 1}}},
		},
	}))

	plan, err := env.scan.Plan(Options{
		Mode:      config.ScanLatest,
		Partition: func(values []string) bool { return len(values) == 1 && values[0] == "us" },
	})
	require.NoError(t, err)
	require.Len(t, plan.Splits, 1)
	require.Len(t, plan.Splits[0].Files, 1)
	assert.Equal(t, "us.parquet", plan.Splits[0].Files[0].FileName)
}

func TestPlanSplitsMergeTreeBucketByDisjointKeyRanges(t *testing.T) {
	env := newTestScan(t, []string{"id"}, nil)
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: 0, TotalBuckets: 1, Added: []*manifest.DataFileMeta{
			{FileName: "lo.parquet", FileSize: 10, RowCount: 1, Level: 1, MinKey: []byte{0x00}, MaxKey: []byte{0x10}},
			{FileName: "hi.parquet", FileSize: 10, RowCount: 1, Level: 1, MinKey: []byte{0x20}, MaxKey: []byte{0x30}},
		}}},
	}))

	plan, err := env.scan.Plan(Options{Mode: config.ScanLatest})
	require.NoError(t, err)
	assert.Len(t, plan.Splits, 2, "disjoint key ranges split independently")
}

func TestPlanKeepsOverlappingMergeTreeFilesInOneSplit(t *testing.T) {
	env := newTestScan(t, []string{"id"}, nil)
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: 0, TotalBuckets: 1, Added: []*manifest.DataFileMeta{
			{FileName: "run1.parquet", FileSize: 10, RowCount: 1, Level: 0, MinKey: []byte{0x00}, MaxKey: []byte{0x30}},
			{FileName: "run2.parquet", FileSize: 10, RowCount: 1, Level: 1, MinKey: []byte{0x10}, MaxKey: []byte{0x20}},
		}}},
	}))

	plan, err := env.scan.Plan(Options{Mode: config.ScanLatest})
	require.NoError(t, err)
	require.Len(t, plan.Splits, 1)
	assert.Len(t, plan.Splits[0].Files, 2)
}

func TestPlanIgnoresValueFilterForPrimaryKeyTable(t *testing.T) {
	env := newTestScan(t, []string{"id"}, nil)
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: 0, TotalBuckets: 1, Added: []*manifest.DataFileMeta{
			{FileName: "a.parquet", FileSize: 10, RowCount: 5, NullCounts: map[int]int64{2: 5}},
		}}},
	}))

	plan, err := env.scan.Plan(Options{
		Mode:  config.ScanLatest,
		Value: &ValueFilter{Column: 2, RequireNonNull: true},
	})
	require.NoError(t, err)
	require.Len(t, plan.Splits, 1, "value-filter pushdown must not prune files on a PK table")
}

func TestResolveLatestCompactFallsBackWhenNoCompactSnapshotExists(t *testing.T) {
	env := newTestScan(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, env.fsc.Commit(ctx, commit.Committable{
		CommitUser: "w", CommitIdentifier: 1, SchemaID: 0,
		Append: []commit.FileIncrement{{Bucket: 0, TotalBuckets: 1, Added: []*manifest.DataFileMeta{
			{FileName: "a.parquet", FileSize: 10, RowCount: 1},
		}}},
	}))

	plan, err := env.scan.Plan(Options{Mode: config.ScanLatestCompact})
	require.NoError(t, err)
	assert.Equal(t, int64(1), plan.SnapshotID)
}
