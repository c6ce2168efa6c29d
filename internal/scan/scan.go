// Package scan implements snapshot-to-split planning (spec §4.H): resolving
// a snapshot, reducing its manifests to the live ADD set, pruning by
// partition/bucket/key/value filters, and packing survivors into splits a
// reader can open independently.
package scan

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/pkg/errors"
)

// ComponentType identifies this component in logs.
const ComponentType = "scan"

// Options parameterizes one Plan call.
type Options struct {
	// SnapshotID, when non-nil, pins the scan to an explicit snapshot
	// (config.ScanFromSnapshot). Otherwise Mode resolves it.
	SnapshotID      *int64
	Mode            config.ScanMode
	TimestampMillis int64

	Partition PartitionPredicate
	Bucket    BucketFilter
	Key       *KeyFilter
	Value     *ValueFilter
}

// Plan is the result of one Scan: the resolved snapshot id and the splits a
// reader should open, in no particular order.
type Plan struct {
	SnapshotID int64
	Splits     []*Split
}

// Split is one unit of work: every ManifestEntry a reader must merge to
// answer for one (partition, bucket).
type Split struct {
	PartitionValues []string
	Bucket          int
	Files           []manifest.DataFileMeta
}

// Scan plans reads against the snapshot/manifest metadata of one table.
type Scan struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	snapshots *snapshot.Manager
	manifests *manifest.Codec
	schemas   *schema.Manager
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewScan(io fileio.FileIO, layoutMgr *layout.Manager, snapshots *snapshot.Manager, manifests *manifest.Codec, schemas *schema.Manager, cfg *config.Config, logger zerolog.Logger) *Scan {
	return &Scan{
		io: io, layoutMgr: layoutMgr, snapshots: snapshots, manifests: manifests,
		schemas: schemas, cfg: cfg,
		logger: logger.With().Str("component", ComponentType).Logger(),
	}
}

// Plan resolves opts to a snapshot, reduces its manifests to the live ADD
// set, applies every configured filter, and groups survivors into Splits
// via SplitGenerator.
func (s *Scan) Plan(opts Options) (*Plan, error) {
	snapshotID, err := s.resolveSnapshot(opts)
	if err != nil {
		return nil, err
	}

	sn, err := s.snapshots.Snapshot(snapshotID)
	if err != nil {
		return nil, err
	}

	ts, err := s.schemas.Schema(sn.SchemaID)
	if err != nil {
		return nil, err
	}
	isPK := isPrimaryKeyTable(ts.PrimaryKeys, ts.PartitionKeys)

	live, err := s.liveEntries(snapshotID)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*Split)
	var order []string
	for _, entry := range live {
		if opts.Partition != nil && !opts.Partition(entry.PartitionValues) {
			continue
		}
		if opts.Bucket != nil && !opts.Bucket(entry.Bucket) {
			continue
		}
		if isPK {
			if opts.Key != nil && !opts.Key.Satisfiable(entry.File.MinKey, entry.File.MaxKey) {
				continue
			}
			// PK tables must not apply value-filter pushdown: an unchanged
			// key's current value may live in an older file the value
			// filter would otherwise prune, hiding a row that still exists.
		} else if opts.Value != nil && !opts.Value.Satisfiable(entry.File.RowCount, entry.File.NullCounts) {
			continue
		}

		key := groupKey(entry.PartitionValues, entry.Bucket)
		g, ok := groups[key]
		if !ok {
			g = &Split{PartitionValues: entry.PartitionValues, Bucket: entry.Bucket}
			groups[key] = g
			order = append(order, key)
		}
		g.Files = append(g.Files, entry.File)
	}

	gen := NewSplitGenerator(s.cfg, isPK)
	var splits []*Split
	for _, key := range order {
		splits = append(splits, gen.Generate(groups[key])...)
	}

	return &Plan{SnapshotID: snapshotID, Splits: splits}, nil
}

func (s *Scan) resolveSnapshot(opts Options) (int64, error) {
	if opts.SnapshotID != nil {
		exists, err := s.snapshots.SnapshotExists(*opts.SnapshotID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, errors.New(ErrNoSnapshot, "explicit scan snapshot does not exist", nil).AddContext("snapshot_id", *opts.SnapshotID)
		}
		return *opts.SnapshotID, nil
	}

	switch opts.Mode {
	case config.ScanLatestCompact, config.ScanCompactedFull:
		return s.resolveLatestCompact()
	case config.ScanFromSnapshot:
		return 0, errors.New(ErrInvalidScan, "scan.from-snapshot requires an explicit SnapshotID", nil)
	case config.ScanFromTimestamp:
		return s.resolveFromTimestamp(opts.TimestampMillis)
	default:
		latestID, ok, err := s.snapshots.LatestSnapshotID()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.New(ErrNoSnapshot, "table has no snapshots yet", nil)
		}
		return latestID, nil
	}
}

// resolveFromTimestamp returns the most recent snapshot committed at or
// before timestampMillis.
func (s *Scan) resolveFromTimestamp(timestampMillis int64) (int64, error) {
	var found int64
	var ok bool
	err := s.snapshots.TraversalSnapshotsFromLatestSafely(func(sn *snapshot.Snapshot) bool {
		if sn.TimeMillis <= timestampMillis {
			found = sn.ID
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New(ErrNoSnapshot, "no snapshot exists at or before the requested timestamp", nil).AddContext("timestamp_millis", timestampMillis)
	}
	return found, nil
}

// ResolveSnapshot exposes the snapshot-id resolution Plan uses internally,
// so SnapshotEnumerator can seed its starting position from the same
// config.ScanMode semantics without duplicating them.
func (s *Scan) ResolveSnapshot(opts Options) (int64, error) {
	return s.resolveSnapshot(opts)
}

// resolveLatestCompact walks backward from the latest snapshot for the most
// recent COMPACT snapshot, the last point at which the table's sorted runs
// were fully merged. Falls back to the plain latest snapshot if the table
// has never compacted (e.g. append-only tables never emit COMPACT).
func (s *Scan) resolveLatestCompact() (int64, error) {
	var found int64
	var ok bool
	err := s.snapshots.TraversalSnapshotsFromLatestSafely(func(sn *snapshot.Snapshot) bool {
		if sn.CommitKind == snapshot.CommitCompact {
			found = sn.ID
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if ok {
		return found, nil
	}
	latestID, has, err := s.snapshots.LatestSnapshotID()
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, errors.New(ErrNoSnapshot, "table has no snapshots yet", nil)
	}
	s.logger.Debug().Msg("no COMPACT snapshot found, falling back to latest")
	return latestID, nil
}

// liveEntries reduces every delta manifest list from the earliest retained
// snapshot through snapshotID by ADD/DELETE-on-file-name.
func (s *Scan) liveEntries(snapshotID int64) ([]manifest.ManifestEntry, error) {
	earliestID, ok, err := s.snapshots.EarliestSnapshotID()
	if err != nil {
		return nil, err
	}
	if !ok {
		earliestID = snapshotID
	}

	added := make(map[string]manifest.ManifestEntry)
	for id := earliestID; id <= snapshotID; id++ {
		sn, err := s.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if sn.DeltaManifestList == "" {
			continue
		}
		entries, err := s.readManifestListEntries(sn.DeltaManifestList)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			switch entry.Kind {
			case manifest.KindAdd:
				added[entry.File.FileName] = entry
			case manifest.KindDelete:
				delete(added, entry.File.FileName)
			}
		}
	}

	out := make([]manifest.ManifestEntry, 0, len(added))
	for _, entry := range added {
		out = append(out, entry)
	}
	return out, nil
}

func (s *Scan) readManifestListEntries(listName string) ([]manifest.ManifestEntry, error) {
	listPath := s.layoutMgr.ManifestFilePath(listName)
	exists, err := s.io.Exists(listPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	list, err := s.manifests.ReadManifestList(listPath)
	if err != nil {
		return nil, err
	}
	var entries []manifest.ManifestEntry
	for _, mfMeta := range list.Manifests {
		mfPath := s.layoutMgr.ManifestFilePath(mfMeta.FileName)
		mfExists, err := s.io.Exists(mfPath)
		if err != nil {
			return nil, err
		}
		if !mfExists {
			continue
		}
		mf, err := s.manifests.ReadManifestFile(mfPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, mf.Entries...)
	}
	return entries, nil
}

func groupKey(partitionValues []string, bucket int) string {
	var b strings.Builder
	for _, v := range partitionValues {
		b.WriteString(v)
		b.WriteByte('\x1f')
	}
	b.WriteString("#")
	b.WriteString(strconv.Itoa(bucket))
	return b.String()
}

// isPrimaryKeyTable mirrors the schema's own invariant: a table is PK'd
// when primaryKeys has members outside partitionKeys, not merely when
// primaryKeys is non-empty (partition-only keys are every table's implicit
// bucketing key, not a merge-tree primary key).
func isPrimaryKeyTable(primaryKeys, partitionKeys []string) bool {
	partitionSet := make(map[string]bool, len(partitionKeys))
	for _, k := range partitionKeys {
		partitionSet[k] = true
	}
	for _, k := range primaryKeys {
		if !partitionSet[k] {
			return true
		}
	}
	return false
}
