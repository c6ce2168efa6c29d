package enumerator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/manifest"
)

func planWith(snapshotID int64, bucket int, names ...string) *IncrementalPlan {
	files := make([]manifest.DataFileMeta, len(names))
	for i, n := range names {
		files[i] = manifest.DataFileMeta{FileName: n}
	}
	return &IncrementalPlan{SnapshotID: snapshotID, SplitsByBucket: map[int][]manifest.DataFileMeta{bucket: files}}
}

func TestSplitEnumeratorAssignsBucketsRoundRobin(t *testing.T) {
	e := NewContinuousFileSplitEnumerator(zerolog.Nop())
	e.RegisterReader("r1")
	e.RegisterReader("r2")

	e.AddPlan(planWith(1, 0, "a.parquet"))
	e.AddPlan(planWith(1, 1, "b.parquet"))

	assert.Equal(t, "r1", e.owner[0])
	assert.Equal(t, "r2", e.owner[1])
}

func TestSplitEnumeratorPreservesBucketAffinityAndFIFO(t *testing.T) {
	e := NewContinuousFileSplitEnumerator(zerolog.Nop())
	e.RegisterReader("r1")

	e.AddPlan(planWith(1, 0, "a.parquet"))
	e.AddPlan(planWith(2, 0, "b.parquet"))

	s1, ok := e.PollSplit("r1")
	require.True(t, ok)
	assert.Equal(t, int64(1), s1.SnapshotID)
	assert.Equal(t, "a.parquet", s1.File.FileName)

	s2, ok := e.PollSplit("r1")
	require.True(t, ok)
	assert.Equal(t, int64(2), s2.SnapshotID)

	_, ok = e.PollSplit("r1")
	assert.False(t, ok, "no more pending splits for bucket 0")
}

func TestSplitEnumeratorReassignsOnReaderUnavailable(t *testing.T) {
	e := NewContinuousFileSplitEnumerator(zerolog.Nop())
	e.RegisterReader("r1")
	e.AddPlan(planWith(1, 0, "a.parquet"))

	split, ok := e.PollSplit("r1")
	require.True(t, ok)

	e.MarkReaderUnavailable("r1")
	assert.NotContains(t, e.owner, 0, "bucket affinity is released when its reader goes away")

	e.RegisterReader("r2")
	assert.Equal(t, "r2", e.owner[0], "re-registration reassigns the orphaned bucket")

	reassigned, ok := e.PollSplit("r2")
	require.True(t, ok)
	assert.Equal(t, split.File.FileName, reassigned.File.FileName, "the in-flight split lost to the failed reader is requeued")
}

func TestSplitEnumeratorAckRemovesFromInFlight(t *testing.T) {
	e := NewContinuousFileSplitEnumerator(zerolog.Nop())
	e.RegisterReader("r1")
	e.AddPlan(planWith(1, 0, "a.parquet"))

	split, ok := e.PollSplit("r1")
	require.True(t, ok)
	require.Len(t, e.inFlight["r1"], 1)

	e.Ack("r1", split)
	assert.Empty(t, e.inFlight["r1"])
}
