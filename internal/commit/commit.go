// Package commit implements the optimistic-concurrency publish path: turning
// a writer's pending files into manifests and atomically installing the
// next snapshot, retrying past compatible races and failing fast on
// logically conflicting ones.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs.
const ComponentType = "file_store_commit"

// FileIncrement is one bucket's worth of file changes going into a single
// snapshot: files to add, files to remove (only set for compaction swaps
// and overwrites), and changelog files produced alongside them.
type FileIncrement struct {
	PartitionValues []string
	Bucket          int
	TotalBuckets    int
	Added           []*manifest.DataFileMeta
	Deleted         []*manifest.DataFileMeta
	Changelog       []*manifest.DataFileMeta
}

// Committable is what a writer's prepareCommit assembles for one commit
// call: an APPEND increment set, and an optional COMPACT increment set that,
// per the contract, becomes a second snapshot chained after the first.
type Committable struct {
	CommitUser       string
	CommitIdentifier int64
	SchemaID         int64
	Append           []FileIncrement
	Compact          []FileIncrement
}

func (c Committable) empty() bool { return len(c.Append) == 0 && len(c.Compact) == 0 }

// FileStoreCommit is the single writer-facing entry point for publishing
// snapshots: commit() for normal append/compact flows, overwrite() for
// partition replacement (used by expire and INSERT OVERWRITE).
type FileStoreCommit struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	snapshots *snapshot.Manager
	manifests *manifest.Codec
	cfg       *config.Config
	lock      fileio.Lock
	logger    zerolog.Logger
}

// NewFileStoreCommit wires a commit path. lock may be nil; when nil and
// io.IsObjectStore() is true, every publish attempt still relies on
// CreateExclusive alone (correct for stores that implement it atomically,
// unsafe otherwise — callers on such stores must supply a Lock).
func NewFileStoreCommit(
	io fileio.FileIO,
	layoutMgr *layout.Manager,
	snapshots *snapshot.Manager,
	manifests *manifest.Codec,
	cfg *config.Config,
	lock fileio.Lock,
	logger zerolog.Logger,
) *FileStoreCommit {
	return &FileStoreCommit{
		io:        io,
		layoutMgr: layoutMgr,
		snapshots: snapshots,
		manifests: manifests,
		cfg:       cfg,
		lock:      lock,
		logger:    logger.With().Str("component", ComponentType).Logger(),
	}
}

// Commit installs one APPEND snapshot from committable.Append and, if
// committable.Compact is non-empty, a chained COMPACT snapshot after it. A
// replay of an already-committed (commitUser, commitIdentifier) is a no-op.
func (c *FileStoreCommit) Commit(ctx context.Context, committable Committable) error {
	if committable.empty() {
		return nil
	}
	already, err := c.IsCommitted(committable.CommitUser, committable.CommitIdentifier)
	if err != nil {
		return err
	}
	if already {
		c.logger.Info().Str("commit_user", committable.CommitUser).Int64("commit_identifier", committable.CommitIdentifier).Msg("commit already applied, skipping")
		return nil
	}

	if len(committable.Append) > 0 {
		if _, err := c.publish(ctx, committable.Append, snapshot.CommitAppend, committable.CommitUser, committable.CommitIdentifier, committable.SchemaID); err != nil {
			return err
		}
	}
	if len(committable.Compact) > 0 {
		if _, err := c.publish(ctx, committable.Compact, snapshot.CommitCompact, committable.CommitUser, committable.CommitIdentifier, committable.SchemaID); err != nil {
			return err
		}
	}
	return nil
}

// Overwrite installs a single OVERWRITE snapshot deleting the files in
// increments and adding their replacements. partitionSpec is advisory
// (logged for diagnostics); the actual delete set is whatever the caller
// already computed into increments' Deleted slices.
func (c *FileStoreCommit) Overwrite(ctx context.Context, partitionSpec []string, committable Committable) error {
	if committable.empty() {
		return nil
	}
	c.logger.Info().Strs("partition_spec", partitionSpec).Msg("overwrite commit")
	_, err := c.publish(ctx, committable.Append, snapshot.CommitOverwrite, committable.CommitUser, committable.CommitIdentifier, committable.SchemaID)
	return err
}

// IsCommitted reports whether commitIdentifier has already been reflected
// in some snapshot committed by commitUser, the idempotence check callers
// make before retrying after a failover.
func (c *FileStoreCommit) IsCommitted(commitUser string, commitIdentifier int64) (bool, error) {
	ids, err := c.FilterCommitted(commitUser, []int64{commitIdentifier})
	if err != nil {
		return false, err
	}
	return len(ids) == 0, nil
}

// FilterCommitted returns the subset of identifiers not yet reflected in any
// snapshot committed by commitUser.
func (c *FileStoreCommit) FilterCommitted(commitUser string, identifiers []int64) ([]int64, error) {
	pending := make(map[int64]bool, len(identifiers))
	for _, id := range identifiers {
		pending[id] = true
	}
	err := c.snapshots.TraversalSnapshotsFromLatestSafely(func(s *snapshot.Snapshot) bool {
		if s.CommitUser == commitUser {
			delete(pending, s.CommitIdentifier)
		}
		return len(pending) > 0
	})
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(pending))
	for _, id := range identifiers {
		if pending[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// publish runs the optimistic-concurrency loop for one snapshot: read the
// latest id, build a manifest and manifest list for increments, and attempt
// to create the next snapshot file. A loss to a concurrent committer is
// checked for logical conflict against every snapshot published in the
// meantime before retrying.
func (c *FileStoreCommit) publish(ctx context.Context, increments []FileIncrement, kind snapshot.CommitKind, commitUser string, commitIdentifier int64, schemaID int64) (int64, error) {
	retryCfg := &RetryConfig{
		MaxAttempts:   c.cfg.CommitMaxRetries + 1,
		BaseDelay:     c.cfg.CommitRetryDelay,
		MaxDelay:      10 * c.cfg.CommitRetryDelay,
		BackoffFactor: 2.0,
	}

	var publishedID int64
	lastChecked := int64(-1)

	err := RetryWithBackoff(ctx, retryCfg, func(ctx context.Context, attempt int) (bool, error) {
		latestID, ok, err := c.snapshots.LatestSnapshotID()
		if err != nil {
			return false, err
		}

		if lastChecked >= 0 && ok && latestID > lastChecked {
			conflict, fatal, err := c.checkConflicts(lastChecked+1, latestID, increments, kind, schemaID)
			if err != nil {
				return false, err
			}
			if fatal {
				return false, errors.New(ErrFatalConflict, "commit conflicts with an intervening snapshot", conflict)
			}
		}
		if ok {
			lastChecked = latestID
		} else {
			lastChecked = 0
		}

		nextID := int64(1)
		if ok {
			nextID = latestID + 1
		}

		if c.lock != nil {
			name := lockName(c.layoutMgr)
			acquired, err := c.lock.TryLock(name)
			if err != nil {
				return false, errors.New(ErrLockFailed, "failed to acquire commit lock", err)
			}
			if !acquired {
				return true, errors.New(ErrConflict, "commit lock already held", nil)
			}
			defer c.lock.Unlock(name)
		}

		if err := c.publishAt(nextID, increments, kind, commitUser, commitIdentifier, schemaID); err != nil {
			if errors.Is(err, fileio.ErrAlreadyExists) {
				return true, err
			}
			return false, err
		}

		c.snapshots.CommitLatestHint(nextID)
		publishedID = nextID
		return false, nil
	}, c.logger)

	return publishedID, err
}

func lockName(layoutMgr *layout.Manager) string {
	return "commit-" + layoutMgr.Root()
}

// publishAt writes one manifest file, one manifest list, and attempts to
// create the snapshot file for id. Returns fileio.ErrAlreadyExists
// (wrapped) if a concurrent committer already claimed id.
func (c *FileStoreCommit) publishAt(id int64, increments []FileIncrement, kind snapshot.CommitKind, commitUser string, commitIdentifier int64, schemaID int64) error {
	entries := make([]manifest.ManifestEntry, 0, len(increments)*2)
	var totalRecords, deltaRecords int64
	var changelogEntries []manifest.ManifestEntry

	for _, inc := range increments {
		for _, f := range inc.Added {
			entries = append(entries, manifest.ManifestEntry{
				Kind: manifest.KindAdd, PartitionValues: inc.PartitionValues,
				Bucket: inc.Bucket, TotalBuckets: inc.TotalBuckets, File: *f,
			})
			deltaRecords += f.RowCount
			totalRecords += f.RowCount
		}
		for _, f := range inc.Deleted {
			entries = append(entries, manifest.ManifestEntry{
				Kind: manifest.KindDelete, PartitionValues: inc.PartitionValues,
				Bucket: inc.Bucket, TotalBuckets: inc.TotalBuckets, File: *f,
			})
			totalRecords -= f.RowCount
		}
		for _, f := range inc.Changelog {
			changelogEntries = append(changelogEntries, manifest.ManifestEntry{
				Kind: manifest.KindAdd, PartitionValues: inc.PartitionValues,
				Bucket: inc.Bucket, TotalBuckets: inc.TotalBuckets, File: *f,
			})
		}
	}

	deltaListName, err := c.writeManifestAndList(entries, schemaID)
	if err != nil {
		return err
	}

	var changelogListName string
	if len(changelogEntries) > 0 {
		changelogListName, err = c.writeManifestAndList(changelogEntries, schemaID)
		if err != nil {
			return err
		}
	}

	s := &snapshot.Snapshot{
		ID:                    id,
		SchemaID:              schemaID,
		DeltaManifestList:     deltaListName,
		ChangelogManifestList: changelogListName,
		CommitKind:            kind,
		CommitUser:            commitUser,
		CommitIdentifier:      commitIdentifier,
		TimeMillis:            nowMillis(),
		TotalRecordCount:      totalRecords,
		DeltaRecordCount:      deltaRecords,
	}
	return c.snapshots.WriteSnapshot(s)
}

func (c *FileStoreCommit) writeManifestAndList(entries []manifest.ManifestEntry, schemaID int64) (string, error) {
	mfName := manifest.NewManifestFileName()
	mfPath := c.layoutMgr.ManifestFilePath(mfName)
	size, err := c.manifests.WriteManifestFile(mfPath, &manifest.ManifestFile{Entries: entries})
	if err != nil {
		return "", err
	}

	var added, deleted int64
	for _, e := range entries {
		if e.Kind == manifest.KindAdd {
			added++
		} else {
			deleted++
		}
	}

	listName := manifest.NewManifestListFileName()
	listPath := c.layoutMgr.ManifestFilePath(listName)
	list := &manifest.ManifestList{Manifests: []manifest.ManifestFileMeta{{
		FileName: mfName, FileSize: size, NumAddedFiles: added, NumDeletedFiles: deleted, SchemaID: schemaID,
	}}}
	if _, err := c.manifests.WriteManifestList(listPath, list); err != nil {
		return "", err
	}
	return listName, nil
}

// checkConflicts inspects every snapshot published in [fromID, toID] for a
// logical conflict with the pending increments. It reports conflict==nil,
// fatal==false when the range is compatible (the caller can safely retarget
// and retry).
func (c *FileStoreCommit) checkConflicts(fromID, toID int64, increments []FileIncrement, kind snapshot.CommitKind, schemaID int64) (conflict error, fatal bool, err error) {
	ourDeletes := make(map[string]bool)
	ourBuckets := make(map[string]bool)
	for _, inc := range increments {
		for _, f := range inc.Deleted {
			ourDeletes[f.FileName] = true
		}
		ourBuckets[bucketKey(inc.PartitionValues, inc.Bucket)] = true
	}

	intervening, err := c.snapshots.SnapshotsBetween(fromID, toID)
	if err != nil {
		return nil, false, err
	}

	for _, s := range intervening {
		if s.SchemaID != schemaID {
			return errors.New(ErrSchemaMismatch, "schema changed by an intervening snapshot", nil), true, nil
		}
		if s.DeltaManifestList == "" {
			continue
		}
		list, err := c.manifests.ReadManifestList(c.layoutMgr.ManifestFilePath(s.DeltaManifestList))
		if err != nil {
			return nil, false, err
		}
		for _, mfMeta := range list.Manifests {
			mf, err := c.manifests.ReadManifestFile(c.layoutMgr.ManifestFilePath(mfMeta.FileName))
			if err != nil {
				return nil, false, err
			}
			for _, e := range mf.Entries {
				if e.Kind == manifest.KindDelete && ourDeletes[e.File.FileName] {
					return errors.New(ErrFatalConflict, fmt.Sprintf("file %s deleted by two committers", e.File.FileName), nil), true, nil
				}
				bk := bucketKey(e.PartitionValues, e.Bucket)
				if ourBuckets[bk] && (kind == snapshot.CommitOverwrite || s.CommitKind == snapshot.CommitOverwrite) {
					return errors.New(ErrFatalConflict, fmt.Sprintf("overwrite conflicts with concurrent write to bucket %s", bk), nil), true, nil
				}
			}
		}
	}
	return nil, false, nil
}

func bucketKey(partitionValues []string, bucket int) string {
	return fmt.Sprintf("%v#%d", partitionValues, bucket)
}

func nowMillis() int64 { return time.Now().UnixMilli() }
