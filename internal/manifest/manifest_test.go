package manifest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakestore/core/internal/fileio"
)

func sampleEntry(name string, kind Kind) ManifestEntry {
	return ManifestEntry{
		Kind:            kind,
		PartitionValues: []string{"2024-01-01"},
		Bucket:          0,
		TotalBuckets:    4,
		File: DataFileMeta{
			FileName:       name,
			FileSize:       1024,
			RowCount:       10,
			MinKey:         []byte("a"),
			MaxKey:         []byte("z"),
			MinSequence:    1,
			MaxSequence:    10,
			Level:          0,
			SchemaID:       1,
			ValueStatsCols: []int{1, 2},
			NullCounts:     map[int]int64{1: 0},
			CreationTimeMs: 1700000000000,
			ExtraFiles:     nil,
		},
	}
}

func TestManifestFileRoundTrip(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	codec, err := NewCodec(mem)
	require.NoError(t, err)

	mf := &ManifestFile{Entries: []ManifestEntry{
		sampleEntry("data-1.parquet", KindAdd),
		sampleEntry("data-2.parquet", KindAdd),
	}}

	path := "/t/manifest/" + NewManifestFileName()
	size, err := codec.WriteManifestFile(path, mf)
	require.NoError(t, err)
	assert.Positive(t, size)

	got, err := codec.ReadManifestFile(path)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "data-1.parquet", got.Entries[0].File.FileName)
	assert.Equal(t, int64(10), got.Entries[0].File.RowCount)
}

func TestManifestListRoundTrip(t *testing.T) {
	mem := fileio.NewMemory(zerolog.Nop())
	codec, err := NewCodec(mem)
	require.NoError(t, err)

	ml := &ManifestList{Manifests: []ManifestFileMeta{
		{FileName: "manifest-a.avro", FileSize: 512, NumAddedFiles: 3, SchemaID: 1},
	}}

	path := "/t/manifest/" + NewManifestListFileName()
	_, err = codec.WriteManifestList(path, ml)
	require.NoError(t, err)

	got, err := codec.ReadManifestList(path)
	require.NoError(t, err)
	require.Len(t, got.Manifests, 1)
	assert.Equal(t, "manifest-a.avro", got.Manifests[0].FileName)
}

func TestMergeCollapsesAddThenDelete(t *testing.T) {
	f1 := &ManifestFile{Entries: []ManifestEntry{sampleEntry("data-1.parquet", KindAdd)}}
	f2 := &ManifestFile{Entries: []ManifestEntry{sampleEntry("data-1.parquet", KindDelete)}}

	merged := Merge([]*ManifestFile{f1, f2})
	assert.Empty(t, merged)
}

func TestMergeKeepsSurvivingAdds(t *testing.T) {
	f1 := &ManifestFile{Entries: []ManifestEntry{
		sampleEntry("data-1.parquet", KindAdd),
		sampleEntry("data-2.parquet", KindAdd),
	}}
	f2 := &ManifestFile{Entries: []ManifestEntry{sampleEntry("data-1.parquet", KindDelete)}}

	merged := Merge([]*ManifestFile{f1, f2})
	require.Len(t, merged, 1)
	assert.Equal(t, "data-2.parquet", merged[0].File.FileName)
}
