// Package expire implements snapshot retention: deleting data, changelog,
// manifest and snapshot files that have aged out of the retained window
// while tolerating files a previous, crashed expiration already removed.
package expire

import (
	"path/filepath"
	"sort"
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
const ComponentType = "expire"

// Result summarizes one Run: how many snapshots, data files, changelog
// files and manifest files were physically removed.
type Result struct {
	SnapshotsExpired int
	DataFilesDeleted int
	ChangelogDeleted int
	ManifestsDeleted int
	NewEarliestID    int64
}

// Expire deletes snapshots (and the files they alone reference) outside the
// retained window governed by config.NumRetainedMin/NumRetainedMax/
// MillisRetained.
type Expire struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	snapshots *snapshot.Manager
	manifests *manifest.Codec
	cfg       *config.Config
	logger    zerolog.Logger
	now       func() int64
}

func NewExpire(io fileio.FileIO, layoutMgr *layout.Manager, snapshots *snapshot.Manager, manifests *manifest.Codec, cfg *config.Config, logger zerolog.Logger) *Expire {
	return &Expire{
		io: io, layoutMgr: layoutMgr, snapshots: snapshots, manifests: manifests, cfg: cfg,
		logger: logger.With().Str("component", ComponentType).Logger(),
		now:    nowMillis,
	}
}

// filePath reconstructs a data or changelog file's full path from the
// partition/bucket context its manifest entry carries — manifest entries
// only ever store a file's bare name, same as internal/lsm writes it.
func (e *Expire) filePath(entry manifest.ManifestEntry) string {
	partitionPath := e.layoutMgr.PartitionPath(entry.PartitionValues)
	bucketPath := e.layoutMgr.BucketPath(partitionPath, entry.Bucket)
	return filepath.Join(bucketPath, entry.File.FileName)
}

// Run expires every snapshot that has aged out of the retained window,
// physically deleting files whose entire lifecycle (ADD then DELETE) falls
// within the expiring range.
func (e *Expire) Run() (Result, error) {
	var result Result

	latestID, ok, err := e.snapshots.LatestSnapshotID()
	if err != nil || !ok {
		return result, err
	}
	earliestID, ok, err := e.snapshots.EarliestSnapshotID()
	if err != nil || !ok {
		return result, err
	}

	endExclusive, err := e.computeEndExclusive(earliestID, latestID)
	if err != nil {
		return result, err
	}
	if endExclusive <= earliestID {
		return result, nil
	}

	added := make(map[string]manifest.ManifestEntry)
	deleted := make(map[string]manifest.ManifestEntry)
	var changelogEntries []manifest.ManifestEntry
	var manifestListNames []string

	// Lifecycle accumulation reads through endExclusive INCLUSIVE: a DELETE
	// published by the first retained snapshot can still cancel an ADD made
	// by an expiring one, even though that boundary snapshot itself survives.
	for id := earliestID; id <= endExclusive; id++ {
		s, err := e.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue // already removed by a crashed prior expiration
			}
			return result, err
		}
		if s.DeltaManifestList == "" {
			continue
		}
		entries, err := e.readManifestListEntries(s.DeltaManifestList)
		if err != nil {
			return result, err
		}
		for _, entry := range entries {
			switch entry.Kind {
			case manifest.KindAdd:
				added[entry.File.FileName] = entry
			case manifest.KindDelete:
				deleted[entry.File.FileName] = entry
			}
		}
	}

	// Only snapshots strictly below endExclusive are actually removed; their
	// manifest lists and changelog files go with them.
	for id := earliestID; id < endExclusive; id++ {
		s, err := e.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return result, err
		}
		if s.DeltaManifestList != "" {
			manifestListNames = append(manifestListNames, s.DeltaManifestList)
		}
		if s.ChangelogManifestList != "" {
			manifestListNames = append(manifestListNames, s.ChangelogManifestList)
			entries, err := e.readManifestListEntries(s.ChangelogManifestList)
			if err != nil {
				return result, err
			}
			changelogEntries = append(changelogEntries, entries...)
		}
	}

	// ADD without a DELETE in range means the file carries forward into the
	// retained table state; only physically delete files whose lifecycle
	// both began and ended inside the expiring range, or DELETEs whose ADD
	// predates this range and is not referenced by any retained snapshot.
	retainedAdds, err := e.retainedFileNames(endExclusive, latestID)
	if err != nil {
		return result, err
	}

	for name, entry := range added {
		if _, wasDeleted := deleted[name]; !wasDeleted {
			continue
		}
		if err := e.deleteTolerant(e.filePath(entry)); err == nil {
			result.DataFilesDeleted++
		}
	}
	for name, entry := range deleted {
		if _, wasAdded := added[name]; wasAdded {
			continue
		}
		if retainedAdds[name] {
			continue
		}
		if err := e.deleteTolerant(e.filePath(entry)); err == nil {
			result.DataFilesDeleted++
		}
	}

	for _, entry := range changelogEntries {
		if err := e.deleteTolerant(e.filePath(entry)); err == nil {
			result.ChangelogDeleted++
		}
	}

	for _, name := range dedupStrings(manifestListNames) {
		if err := e.deleteManifestListAndFiles(name); err == nil {
			result.ManifestsDeleted++
		}
	}

	for id := earliestID; id < endExclusive; id++ {
		if err := e.io.Delete(e.snapshots.SnapshotPath(id)); err == nil {
			result.SnapshotsExpired++
		}
	}

	e.snapshots.CommitEarliestHint(endExclusive)
	result.NewEarliestID = endExclusive
	return result, nil
}

// computeEndExclusive applies the retention policy to find the first
// snapshot id that must survive: always-retained recent snapshots, aged-out
// snapshots beyond millisRetained (bounded below by numRetainedMin), and a
// numRetainedMax cap that trims the oldest first.
func (e *Expire) computeEndExclusive(earliestID, latestID int64) (int64, error) {
	alwaysRetainedFrom := latestID - int64(e.cfg.NumRetainedMin) + 1
	if alwaysRetainedFrom < earliestID {
		alwaysRetainedFrom = earliestID
	}

	cutoffMillis := e.now() - e.cfg.MillisRetained.Milliseconds()
	endExclusive := alwaysRetainedFrom

	for id := earliestID; id < alwaysRetainedFrom; id++ {
		s, err := e.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return 0, err
		}
		if s.TimeMillis < cutoffMillis {
			endExclusive = id + 1
		}
	}

	totalRetained := latestID - endExclusive + 1
	if int(totalRetained) > e.cfg.NumRetainedMax {
		endExclusive = latestID - int64(e.cfg.NumRetainedMax) + 1
	}
	if endExclusive > latestID-int64(e.cfg.NumRetainedMin)+1 {
		endExclusive = latestID - int64(e.cfg.NumRetainedMin) + 1
	}
	if endExclusive < earliestID {
		endExclusive = earliestID
	}
	return endExclusive, nil
}

// retainedFileNames collects every ADD file name referenced by the
// snapshots that survive expiration, used to avoid deleting a file a
// stale DELETE-without-ADD entry would otherwise orphan.
func (e *Expire) retainedFileNames(fromID, toID int64) (map[string]bool, error) {
	names := make(map[string]bool)
	for id := fromID; id <= toID; id++ {
		s, err := e.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if s.DeltaManifestList == "" {
			continue
		}
		entries, err := e.readManifestListEntries(s.DeltaManifestList)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Kind == manifest.KindAdd {
				names[entry.File.FileName] = true
			}
		}
	}
	return names, nil
}

// readManifestListEntries reads a manifest list and the manifest files it
// references, tolerating a list or manifest file a previous, crashed
// expiration already removed by checking Exists first rather than
// classifying manifest.Codec's read error.
func (e *Expire) readManifestListEntries(listName string) ([]manifest.ManifestEntry, error) {
	return readManifestListEntries(e.io, e.layoutMgr, e.manifests, listName)
}

// readManifestListEntries is the package-level form shared with
// PartitionExpire, which needs the same tolerant manifest-list walk to
// compute the table's current live file set.
func readManifestListEntries(io fileio.FileIO, layoutMgr *layout.Manager, manifests *manifest.Codec, listName string) ([]manifest.ManifestEntry, error) {
	listPath := layoutMgr.ManifestFilePath(listName)
	exists, err := io.Exists(listPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	list, err := manifests.ReadManifestList(listPath)
	if err != nil {
		return nil, err
	}
	var entries []manifest.ManifestEntry
	for _, mfMeta := range list.Manifests {
		mfPath := layoutMgr.ManifestFilePath(mfMeta.FileName)
		mfExists, err := io.Exists(mfPath)
		if err != nil {
			return nil, err
		}
		if !mfExists {
			continue
		}
		mf, err := manifests.ReadManifestFile(mfPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, mf.Entries...)
	}
	return entries, nil
}

func (e *Expire) deleteManifestListAndFiles(listName string) error {
	listPath := e.layoutMgr.ManifestFilePath(listName)
	exists, err := e.io.Exists(listPath)
	if err != nil {
		return err
	}
	if exists {
		list, err := e.manifests.ReadManifestList(listPath)
		if err != nil {
			return err
		}
		for _, mfMeta := range list.Manifests {
			if derr := e.io.Delete(e.layoutMgr.ManifestFilePath(mfMeta.FileName)); derr != nil {
				e.logger.Warn().Err(derr).Str("manifest_file", mfMeta.FileName).Msg("failed to delete manifest file, may already be gone")
			}
		}
	}
	return e.io.Delete(listPath)
}

// deleteTolerant deletes a file by path, tolerating fileio.ErrNotFound from
// a previous, crashed expiration that already removed it.
func (e *Expire) deleteTolerant(path string) error {
	err := e.io.Delete(path)
	if err != nil && !errors.Is(err, fileio.ErrNotFound) {
		e.logger.Warn().Err(err).Str("file", path).Msg("failed to delete expired file")
		return err
	}
	return nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
