package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerBasePaths(t *testing.T) {
	m := NewManager("/tmp/test/db1/orders")
	require.NotNil(t, m)

	t.Run("Roots", func(t *testing.T) {
		assert.Equal(t, "/tmp/test/db1/orders", m.Root())
		assert.Equal(t, "/tmp/test/db1/orders/schema", m.SchemaDir())
		assert.Equal(t, "/tmp/test/db1/orders/snapshot", m.SnapshotDir())
		assert.Equal(t, "/tmp/test/db1/orders/manifest", m.ManifestDir())
	})

	t.Run("SchemaAndSnapshotFiles", func(t *testing.T) {
		assert.Equal(t, "/tmp/test/db1/orders/schema/schema-3", m.SchemaFile(3))
		assert.Equal(t, "/tmp/test/db1/orders/snapshot/snapshot-42", m.SnapshotFile(42))
		assert.Equal(t, "/tmp/test/db1/orders/snapshot/LATEST", m.LatestHintFile())
		assert.Equal(t, "/tmp/test/db1/orders/snapshot/EARLIEST", m.EarliestHintFile())
	})
}

func TestPartitionPathUnpartitioned(t *testing.T) {
	m := NewManager("/warehouse/db/t")
	assert.Equal(t, "/warehouse/db/t", m.PartitionPath(nil))
}

func TestPartitionPathSubstitutesDefaultForEmptyValue(t *testing.T) {
	m := NewManager("/warehouse/db/t")
	p := m.PartitionPath([]string{"2024-01-01", ""})
	assert.Equal(t, "/warehouse/db/t/2024-01-01/"+DefaultPartitionName, p)
}

func TestPartitionValuesOfRoundTrip(t *testing.T) {
	m := NewManager("/warehouse/db/t")
	p := m.PartitionPath([]string{"us", "2024"})
	values := m.PartitionValuesOf(p)
	assert.Equal(t, []string{"us", "2024"}, values)
}

func TestPartitionValuesOfRecoversDefaultAsEmpty(t *testing.T) {
	m := NewManager("/warehouse/db/t")
	p := m.PartitionPath([]string{DefaultPartitionName})
	values := m.PartitionValuesOf(p)
	assert.Equal(t, []string{""}, values)
}

func TestBucketPath(t *testing.T) {
	m := NewManager("/warehouse/db/t")
	p := m.PartitionPath([]string{"2024"})
	assert.Equal(t, "/warehouse/db/t/2024/bucket-3", m.BucketPath(p, 3))
}

func TestParseBucket(t *testing.T) {
	n, err := ParseBucket("bucket-7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = ParseBucket("not-a-bucket")
	assert.Error(t, err)
}

func TestFileNameHelpers(t *testing.T) {
	assert.Equal(t, "data-abc.parquet", DataFileName("abc", "parquet"))
	assert.Equal(t, "changelog-abc.parquet", ChangelogFileName("abc", "parquet"))
	assert.Equal(t, "manifest-abc.avro", ManifestFileName("abc"))
	assert.Equal(t, "manifest-list-abc.avro", ManifestListFileName("abc"))
}
