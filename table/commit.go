package table

import (
	"context"

	"github.com/lakestore/core/internal/commit"
	"github.com/lakestore/core/internal/manifest"
)

// Commit flushes every writer touched since the last Commit and publishes
// one snapshot (two, if any bucket produced a compaction alongside its
// append) through internal/commit's optimistic-concurrency path.
func (t *Table) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var appendIncrements, compactIncrements []commit.FileIncrement

	for key, w := range t.writers {
		result, err := w.PrepareCommit(ctx, false)
		if err != nil {
			return err
		}
		partitionValues := t.layoutMgr.PartitionValuesOf(key.partitionPath)
		if len(result.NewFiles) > 0 || len(result.ChangelogFiles) > 0 {
			appendIncrements = append(appendIncrements, commit.FileIncrement{
				PartitionValues: partitionValues,
				Bucket:          key.bucket,
				TotalBuckets:    t.cfg.Bucket,
				Added:           result.NewFiles,
				Changelog:       result.ChangelogFiles,
			})
		}
		if len(result.CompactBeforeFiles) > 0 || len(result.CompactAfterFiles) > 0 {
			compactIncrements = append(compactIncrements, commit.FileIncrement{
				PartitionValues: partitionValues,
				Bucket:          key.bucket,
				TotalBuckets:    t.cfg.Bucket,
				Added:           result.CompactAfterFiles,
				Deleted:         result.CompactBeforeFiles,
			})
		}
	}

	for key, w := range t.appends {
		meta, err := w.flush()
		if err != nil {
			return err
		}
		if meta == nil {
			continue
		}
		appendIncrements = append(appendIncrements, commit.FileIncrement{
			PartitionValues: t.layoutMgr.PartitionValuesOf(key.partitionPath),
			Bucket:          key.bucket,
			TotalBuckets:    t.cfg.Bucket,
			Added:           []*manifest.DataFileMeta{meta},
		})
	}

	if len(appendIncrements) == 0 && len(compactIncrements) == 0 {
		return nil
	}

	t.nextCommitID++
	return t.committer.Commit(ctx, commit.Committable{
		CommitUser:       t.commitUser,
		CommitIdentifier: t.nextCommitID,
		SchemaID:         t.schemaID,
		Append:           appendIncrements,
		Compact:          compactIncrements,
	})
}
