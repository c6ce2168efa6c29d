package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadAppliesOverridesOntoDefaults(t *testing.T) {
	cfg, err := Load([]byte("bucket: 16\nmerge_engine: partial-update\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Bucket)
	assert.Equal(t, MergePartialUpdate, cfg.MergeEngine)
	assert.Equal(t, "parquet", cfg.FileFormat, "unset fields should keep their default")
}

func TestLoadRejectsUnknownMergeEngine(t *testing.T) {
	_, err := Load([]byte("merge_engine: bogus\n"))
	assert.Error(t, err)
}

func TestLoadRejectsIncompatibleChangelogAndMergeEngine(t *testing.T) {
	_, err := Load([]byte("merge_engine: first-row\nchangelog_producer: lookup\n"))
	assert.Error(t, err)
}

func TestLoadRejectsPartitionExpirationWithoutPattern(t *testing.T) {
	_, err := Load([]byte("partition_expiration_enabled: true\n"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidRetentionBounds(t *testing.T) {
	_, err := Load([]byte("snapshot_num_retained_min: 50\nsnapshot_num_retained_max: 10\n"))
	assert.Error(t, err)
}
