// Package config holds the per-table options that govern bucketing, file
// format, compaction, merge behavior and retention, loaded the same way the
// rest of the stack loads configuration: a YAML document unmarshaled onto a
// set of sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lakestore/core/pkg/errors"
)

// MergeEngine selects how the LSM write path reconciles multiple values for
// the same primary key.
type MergeEngine string

const (
	MergeDedup         MergeEngine = "deduplicate"
	MergePartialUpdate MergeEngine = "partial-update"
	MergeAggregate     MergeEngine = "aggregation"
	MergeFirstRow      MergeEngine = "first-row"
)

// ChangelogProducer selects how (and whether) the write path emits a
// changelog alongside the base LSM files.
type ChangelogProducer string

const (
	ChangelogNone           ChangelogProducer = "none"
	ChangelogInput          ChangelogProducer = "input"
	ChangelogLookup         ChangelogProducer = "lookup"
	ChangelogFullCompaction ChangelogProducer = "full-compaction"
)

// ScanMode controls which snapshot a Scan resolves against by default.
type ScanMode string

const (
	ScanDefault       ScanMode = "default"
	ScanLatest        ScanMode = "latest"
	ScanLatestCompact ScanMode = "latest-full"
	ScanCompactedFull ScanMode = "compacted-full"
	ScanFromTimestamp ScanMode = "from-timestamp"
	ScanFromSnapshot  ScanMode = "from-snapshot"
)

// Config is the full set of options governing one table.
type Config struct {
	Bucket            int               `yaml:"bucket"`
	BucketKeys        []string          `yaml:"bucket_keys,omitempty"`
	FileFormat        string            `yaml:"file_format"`
	FileCompression   string            `yaml:"file_compression"`
	CompressionLevel  int               `yaml:"compression_level"`
	TargetFileSize    int64             `yaml:"target_file_size_bytes"`
	ManifestTargetSize int64            `yaml:"manifest_target_size_bytes"`
	ManifestMergeMinCount int           `yaml:"manifest_merge_min_count"`
	MergeEngine       MergeEngine       `yaml:"merge_engine"`
	ChangelogProducer ChangelogProducer `yaml:"changelog_producer"`
	SequenceField     string            `yaml:"sequence_field,omitempty"`

	NumLevels              int   `yaml:"num_levels"`
	NumSortedRunCompactionTrigger int `yaml:"num_sorted_run_compaction_trigger"`
	NumSortedRunStopTrigger       int `yaml:"num_sorted_run_stop_trigger"`
	MaxSizeAmplificationPercent   int `yaml:"max_size_amplification_percent"`
	SortedRunSizeRatio            int `yaml:"sorted_run_size_ratio_percent"`
	TargetFileSizeLevel0   int64 `yaml:"target_file_size_level0_bytes"`
	WriteBufferSizeBytes   int64 `yaml:"write_buffer_size_bytes"`
	CompactionMaxWorkers   int   `yaml:"compaction_max_workers"`

	NumRetainedMin  int           `yaml:"snapshot_num_retained_min"`
	NumRetainedMax  int           `yaml:"snapshot_num_retained_max"`
	MillisRetained  time.Duration `yaml:"snapshot_time_retained"`

	PartitionExpirationEnabled bool          `yaml:"partition_expiration_enabled"`
	PartitionExpirationTime    time.Duration `yaml:"partition_expiration_time"`
	PartitionTimestampPattern  string        `yaml:"partition_timestamp_pattern"`
	PartitionTimestampFormatter string       `yaml:"partition_timestamp_formatter"`
	PartitionCheckInterval     time.Duration `yaml:"partition_expiration_check_interval"`

	ScanMode            ScanMode      `yaml:"scan_mode"`
	ScanTimestampMillis int64         `yaml:"scan_timestamp_millis"`
	ScanSnapshotID      int64         `yaml:"scan_snapshot_id"`
	DiscoveryInterval   time.Duration `yaml:"continuous_discovery_interval"`

	OpenFileCost int64 `yaml:"open_file_cost_bytes"`

	CommitMaxRetries int           `yaml:"commit_max_retries"`
	CommitRetryDelay time.Duration `yaml:"commit_retry_delay"`
}

// DefaultConfig returns the options a freshly created table uses when the
// caller supplies none explicitly.
func DefaultConfig() *Config {
	return &Config{
		Bucket:                4,
		FileFormat:            "parquet",
		FileCompression:       "zstd",
		CompressionLevel:      1,
		TargetFileSize:        128 << 20,
		ManifestTargetSize:    8 << 20,
		ManifestMergeMinCount: 30,
		MergeEngine:           MergeDedup,
		ChangelogProducer:     ChangelogNone,

		NumLevels:                     3,
		NumSortedRunCompactionTrigger: 5,
		NumSortedRunStopTrigger:       12,
		MaxSizeAmplificationPercent:   200,
		SortedRunSizeRatio:            100,
		TargetFileSizeLevel0:          32 << 20,
		WriteBufferSizeBytes:          64 << 20,
		CompactionMaxWorkers:          4,

		NumRetainedMin: 10,
		NumRetainedMax: 2000,
		MillisRetained: 24 * time.Hour,

		PartitionExpirationEnabled: false,
		PartitionCheckInterval:     time.Hour,

		ScanMode:          ScanLatest,
		DiscoveryInterval: 10 * time.Second,

		OpenFileCost: 4 << 20,

		CommitMaxRetries: 10,
		CommitRetryDelay: 100 * time.Millisecond,
	}
}

// Load parses a YAML document onto DefaultConfig, so an option the document
// omits keeps its default rather than zeroing out.
func Load(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(ErrParseFailed, "failed to parse table config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a table config file from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(ErrParseFailed, "failed to read table config file", err).AddContext("path", path)
	}
	return Load(data)
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New(ErrParseFailed, "failed to marshal table config", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects option combinations the rest of the stack cannot act on.
func (c *Config) Validate() error {
	if c.Bucket <= 0 && c.Bucket != -1 {
		return errors.New(ErrInvalidOption, fmt.Sprintf("bucket count must be positive or -1 (dynamic), got %d", c.Bucket), nil)
	}
	if c.NumLevels < 1 {
		return errors.New(ErrInvalidOption, "num_levels must be at least 1", nil)
	}
	if c.NumSortedRunCompactionTrigger < 1 {
		return errors.New(ErrInvalidOption, "num_sorted_run_compaction_trigger must be at least 1", nil)
	}
	if c.NumSortedRunStopTrigger < c.NumSortedRunCompactionTrigger {
		return errors.New(ErrInvalidOption, "num_sorted_run_stop_trigger must be >= num_sorted_run_compaction_trigger", nil)
	}
	if c.CompactionMaxWorkers < 1 {
		return errors.New(ErrInvalidOption, "compaction_max_workers must be at least 1", nil)
	}
	switch c.MergeEngine {
	case MergeDedup, MergePartialUpdate, MergeAggregate, MergeFirstRow:
	default:
		return errors.New(ErrInvalidOption, fmt.Sprintf("unknown merge_engine %q", c.MergeEngine), nil)
	}
	switch c.ChangelogProducer {
	case ChangelogNone, ChangelogInput, ChangelogLookup, ChangelogFullCompaction:
	default:
		return errors.New(ErrInvalidOption, fmt.Sprintf("unknown changelog_producer %q", c.ChangelogProducer), nil)
	}
	if c.ChangelogProducer == ChangelogLookup && c.MergeEngine == MergeFirstRow {
		return errors.New(ErrInvalidOption, "lookup changelog producer is not compatible with first-row merge engine", nil)
	}
	if c.NumRetainedMin <= 0 {
		return errors.New(ErrInvalidOption, "snapshot_num_retained_min must be positive", nil)
	}
	if c.NumRetainedMax < c.NumRetainedMin {
		return errors.New(ErrInvalidOption, "snapshot_num_retained_max must be >= snapshot_num_retained_min", nil)
	}
	if c.PartitionExpirationEnabled && c.PartitionTimestampPattern == "" {
		return errors.New(ErrInvalidOption, "partition_expiration_enabled requires a partition_timestamp_pattern", nil)
	}
	if c.CommitMaxRetries < 0 {
		return errors.New(ErrInvalidOption, "commit_max_retries cannot be negative", nil)
	}
	return nil
}
