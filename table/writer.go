package table

import (
	"context"

	"github.com/lakestore/core/internal/lsm"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/pkg/errors"
)

// Write routes one row into the correct (partition, bucket) writer, creating
// it on first touch. Primary-keyed tables go through the LSM merge tree;
// tables with no primary key outside their partition columns go through the
// plain append-only writer, matching the two shapes internal/read exposes.
func (t *Table) Write(ctx context.Context, kind mergefunc.RowKind, row []any) error {
	value := nonPartitionValues(row, t.partitionIdx)
	partitionPath := t.partitionPathOf(row)
	bucket := bucketOf(value, t.bucketKeyIdx, t.cfg.Bucket)

	if t.isPK {
		w, err := t.mergeTreeWriter(partitionPath, bucket)
		if err != nil {
			return err
		}
		key := make([]any, len(t.primaryKey))
		for i, name := range t.primaryKey {
			key[i] = value[t.valueType.IndexOf(name)]
		}
		return w.Write(ctx, kind, key, value)
	}

	w := t.appendOnlyWriterFor(partitionPath, bucket)
	return w.Write(value)
}

// nonPartitionValues drops the row's partition columns, leaving it in the
// order valueType expects.
func nonPartitionValues(row []any, partitionIdx []int) []any {
	if len(partitionIdx) == 0 {
		return row
	}
	skip := make(map[int]bool, len(partitionIdx))
	for _, idx := range partitionIdx {
		skip[idx] = true
	}
	out := make([]any, 0, len(row)-len(partitionIdx))
	for i, v := range row {
		if !skip[i] {
			out = append(out, v)
		}
	}
	return out
}

// bucketKey identifies one (partition, bucket) writer.
type bucketKey struct {
	partitionPath string
	bucket        int
}

func (t *Table) mergeTreeWriter(partitionPath string, bucket int) (*lsm.MergeTreeWriter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := bucketKey{partitionPath, bucket}
	if w, ok := t.writers[key]; ok {
		return w, nil
	}

	files, err := t.liveBucketFiles(partitionPath, bucket)
	if err != nil {
		return nil, err
	}
	w := lsm.Restore(t.io, t.layoutMgr, t.ff, t.cfg, t.pool, partitionPath, bucket, t.schemaID, t.primaryKey, t.valueType, t.mergeSpec, files, t.logger)
	t.writers[key] = w
	return w, nil
}

// liveBucketFiles asks the scanner to plan the latest snapshot restricted to
// this (partition, bucket), reusing internal/scan's manifest reduction
// instead of a fourth copy of the ADD/DELETE-by-filename walk. A table with
// no snapshot yet (first write ever) restores from an empty file set.
func (t *Table) liveBucketFiles(partitionPath string, bucket int) ([]*manifest.DataFileMeta, error) {
	wantValues := t.layoutMgr.PartitionValuesOf(partitionPath)
	plan, err := t.scanner.Plan(scan.Options{
		Partition: func(values []string) bool { return partitionValuesEqual(values, wantValues) },
		Bucket:    func(b int) bool { return b == bucket },
	})
	if err != nil {
		if errors.Is(err, scan.ErrNoSnapshot) {
			return nil, nil
		}
		return nil, err
	}
	var files []*manifest.DataFileMeta
	for _, split := range plan.Splits {
		if split.Bucket != bucket {
			continue
		}
		for i := range split.Files {
			files = append(files, &split.Files[i])
		}
	}
	return files, nil
}

func partitionValuesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
