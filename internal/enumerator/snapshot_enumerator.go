// Package enumerator implements the streaming discovery/distribution half
// of Scan (spec §4.K): SnapshotEnumerator ticks forward through committed
// snapshots emitting incremental per-bucket plans, and
// ContinuousFileSplitEnumerator fans those plans out to parallel readers
// under bucket affinity and FIFO ordering.
package enumerator

import (
	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs.
const ComponentType = "snapshot_enumerator"

// IncrementalPlan is the set of files one snapshot added, grouped by the
// bucket they belong to.
type IncrementalPlan struct {
	SnapshotID     int64
	SplitsByBucket map[int][]manifest.DataFileMeta
}

// Result is what one SnapshotEnumerator.Next tick produces: either a plan
// to distribute, nothing yet (caller retries after discovery-interval), or
// Finished when a gap means the caller must restart from a fresh scan.
type Result struct {
	Plan     *IncrementalPlan
	Finished bool
}

// SnapshotEnumerator walks snapshot ids forward from a starting point,
// emitting one IncrementalPlan per snapshot as it's discovered.
type SnapshotEnumerator struct {
	io             fileio.FileIO
	layoutMgr      *layout.Manager
	snapshots      *snapshot.Manager
	manifests      *manifest.Codec
	nextSnapshotID int64
	logger         zerolog.Logger
}

func NewSnapshotEnumerator(io fileio.FileIO, layoutMgr *layout.Manager, snapshots *snapshot.Manager, manifests *manifest.Codec, startSnapshotID int64, logger zerolog.Logger) *SnapshotEnumerator {
	return &SnapshotEnumerator{
		io: io, layoutMgr: layoutMgr, snapshots: snapshots, manifests: manifests,
		nextSnapshotID: startSnapshotID,
		logger:         logger.With().Str("component", ComponentType).Logger(),
	}
}

// ResolveStart seeds a starting snapshot id from the same config.ScanMode
// semantics a one-shot Scan.Plan would use, so continuous and batch reads
// agree on "latest" / "latest compact" / explicit snapshot.
func ResolveStart(s *scan.Scan, opts scan.Options) (int64, error) {
	id, err := s.ResolveSnapshot(opts)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Next advances one tick: if the enumerator has caught up to the latest
// snapshot, it returns an empty Result for the caller to retry later. If
// the next snapshot in sequence is missing (expired while the enumerator
// fell behind), it returns Finished so the caller restarts from latest.
func (e *SnapshotEnumerator) Next() (Result, error) {
	latestID, ok, err := e.snapshots.LatestSnapshotID()
	if err != nil {
		return Result{}, err
	}
	if !ok || e.nextSnapshotID > latestID {
		return Result{}, nil
	}

	exists, err := e.snapshots.SnapshotExists(e.nextSnapshotID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		e.logger.Warn().Int64("snapshot_id", e.nextSnapshotID).Msg("snapshot gap detected, enumerator fell behind expiration")
		return Result{Finished: true}, nil
	}

	sn, err := e.snapshots.Snapshot(e.nextSnapshotID)
	if err != nil {
		return Result{}, err
	}

	byBucket := make(map[int][]manifest.DataFileMeta)
	if sn.DeltaManifestList != "" {
		entries, err := e.readAddedEntries(sn.DeltaManifestList)
		if err != nil {
			return Result{}, err
		}
		for _, entry := range entries {
			if entry.Kind == manifest.KindAdd {
				byBucket[entry.Bucket] = append(byBucket[entry.Bucket], entry.File)
			}
		}
	}

	plan := &IncrementalPlan{SnapshotID: e.nextSnapshotID, SplitsByBucket: byBucket}
	e.nextSnapshotID++
	return Result{Plan: plan}, nil
}

func (e *SnapshotEnumerator) readAddedEntries(listName string) ([]manifest.ManifestEntry, error) {
	listPath := e.layoutMgr.ManifestFilePath(listName)
	exists, err := e.io.Exists(listPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	list, err := e.manifests.ReadManifestList(listPath)
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to read manifest list", err).AddContext("list", listName)
	}
	var entries []manifest.ManifestEntry
	for _, mfMeta := range list.Manifests {
		mfPath := e.layoutMgr.ManifestFilePath(mfMeta.FileName)
		mfExists, err := e.io.Exists(mfPath)
		if err != nil {
			return nil, err
		}
		if !mfExists {
			continue
		}
		mf, err := e.manifests.ReadManifestFile(mfPath)
		if err != nil {
			return nil, errors.New(ErrReadFailed, "failed to read manifest file", err).AddContext("manifest", mfMeta.FileName)
		}
		entries = append(entries, mf.Entries...)
	}
	return entries, nil
}
