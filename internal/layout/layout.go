// Package layout builds the on-disk directory tree for a table: schema
// store, snapshot directory and hint files, manifest directory, and the
// partition/bucket tree that holds data and changelog files.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs and shutdown ordering.
const ComponentType = "layout"

// DefaultPartitionName is substituted for a null or empty partition value so
// that directory names never contain an empty path segment.
const DefaultPartitionName = "__DEFAULT_PARTITION__"

const (
	schemaDir   = "schema"
	snapshotDir = "snapshot"
	manifestDir = "manifest"

	latestHintName   = "LATEST"
	earliestHintName = "EARLIEST"
)

// Manager resolves every path under a single table's root directory. It
// performs no I/O itself; callers pass the resulting paths to a FileIO.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at root, e.g. "<warehouse>/db/table".
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) GetType() string { return ComponentType }

// Root returns the table's root directory.
func (m *Manager) Root() string { return m.root }

// SchemaDir returns the directory holding one file per schema version.
func (m *Manager) SchemaDir() string {
	return filepath.Join(m.root, schemaDir)
}

// SchemaFile returns the path of a specific schema version's file.
func (m *Manager) SchemaFile(schemaID int64) string {
	return filepath.Join(m.SchemaDir(), fmt.Sprintf("schema-%d", schemaID))
}

// SnapshotDir returns the directory holding one file per committed snapshot
// plus the LATEST/EARLIEST hint files.
func (m *Manager) SnapshotDir() string {
	return filepath.Join(m.root, snapshotDir)
}

// SnapshotFile returns the path of a specific snapshot's file.
func (m *Manager) SnapshotFile(snapshotID int64) string {
	return filepath.Join(m.SnapshotDir(), fmt.Sprintf("snapshot-%d", snapshotID))
}

// LatestHintFile returns the path of the LATEST hint file, a small text file
// that caches the highest committed snapshot ID to avoid a directory listing
// on every read.
func (m *Manager) LatestHintFile() string {
	return filepath.Join(m.SnapshotDir(), latestHintName)
}

// EarliestHintFile returns the path of the EARLIEST hint file, caching the
// lowest snapshot ID not yet expired.
func (m *Manager) EarliestHintFile() string {
	return filepath.Join(m.SnapshotDir(), earliestHintName)
}

// ManifestDir returns the directory holding manifest files and manifest
// lists, named by UUID rather than by sequence.
func (m *Manager) ManifestDir() string {
	return filepath.Join(m.root, manifestDir)
}

// ManifestFilePath joins a manifest file name (as stored in a ManifestList
// entry) onto the manifest directory.
func (m *Manager) ManifestFilePath(name string) string {
	return filepath.Join(m.ManifestDir(), name)
}

// PartitionPath builds the partition directory from an ordered list of
// partition values, one directory level per value, substituting
// DefaultPartitionName for any empty value. Each level is named by the value
// alone; partition key names do not appear in the path. An unpartitioned
// table (no values) returns the table root.
func (m *Manager) PartitionPath(values []string) string {
	if len(values) == 0 {
		return m.root
	}
	segments := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			segments[i] = DefaultPartitionName
		} else {
			segments[i] = v
		}
	}
	return filepath.Join(m.root, filepath.Join(segments...))
}

// PartitionValuesOf recovers the partition values encoded by PartitionPath,
// the inverse operation used when listing an existing table from disk.
func (m *Manager) PartitionValuesOf(partitionPath string) []string {
	rel, err := filepath.Rel(m.root, partitionPath)
	if err != nil || rel == "." {
		return nil
	}
	segments := strings.Split(rel, string(filepath.Separator))
	values := make([]string, len(segments))
	for i, s := range segments {
		if s == DefaultPartitionName {
			values[i] = ""
		} else {
			values[i] = s
		}
	}
	return values
}

// BucketPath returns the bucket directory under a partition, e.g.
// "<partition>/bucket-3".
func (m *Manager) BucketPath(partitionPath string, bucket int) string {
	return filepath.Join(partitionPath, fmt.Sprintf("bucket-%d", bucket))
}

// ParseBucket extracts the bucket number from a "bucket-<n>" directory name.
func ParseBucket(dirName string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(dirName, "bucket-%d", &n); err != nil {
		return 0, errors.Newf(ErrInvalidBucket, "malformed bucket directory name %q", dirName)
	}
	return n, ValidateBucket(n)
}

// DataFileName builds a data file name for the given extension and UUID,
// e.g. "data-<uuid>.parquet".
func DataFileName(id string, extension string) string {
	return fmt.Sprintf("data-%s.%s", id, extension)
}

// ChangelogFileName builds a changelog file name, separate from the data
// file namespace so a bucket directory listing can distinguish the two by
// prefix alone.
func ChangelogFileName(id string, extension string) string {
	return fmt.Sprintf("changelog-%s.%s", id, extension)
}

// ManifestFileName builds a manifest file name.
func ManifestFileName(id string) string {
	return fmt.Sprintf("manifest-%s.avro", id)
}

// ManifestListFileName builds a manifest list file name.
func ManifestListFileName(id string) string {
	return fmt.Sprintf("manifest-list-%s.avro", id)
}
