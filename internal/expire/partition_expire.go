package expire

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/commit"
	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/pkg/errors"
)

// PartitionExpireCommitUser identifies the synthetic OVERWRITE commits
// PartitionExpire issues, distinguishing them in snapshot.CommitUser from
// ordinary writer traffic.
const PartitionExpireCommitUser = "partition-expire"

// PartitionExpire deletes whole partitions whose timestamp, recovered from
// their partition values via a configured pattern and formatter, has aged
// past config.PartitionExpirationTime. It runs independently of Expire's
// snapshot-count retention and only fires when
// config.PartitionExpirationEnabled is set.
type PartitionExpire struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	snapshots *snapshot.Manager
	manifests *manifest.Codec
	schemas   *schema.Manager
	commit    *commit.FileStoreCommit
	cfg       *config.Config
	logger    zerolog.Logger
	now       func() int64
}

func NewPartitionExpire(io fileio.FileIO, layoutMgr *layout.Manager, snapshots *snapshot.Manager, manifests *manifest.Codec, schemas *schema.Manager, commitr *commit.FileStoreCommit, cfg *config.Config, logger zerolog.Logger) *PartitionExpire {
	return &PartitionExpire{
		io: io, layoutMgr: layoutMgr, snapshots: snapshots, manifests: manifests,
		schemas: schemas, commit: commitr, cfg: cfg,
		logger: logger.With().Str("component", ComponentType+"_partition").Logger(),
		now:    nowMillis,
	}
}

// partitionGroup collects every live manifest entry sharing one partition
// value tuple, across every bucket.
type partitionGroup struct {
	values  []string
	entries []manifest.ManifestEntry
}

// Run scans the current table state for partitions whose extracted
// timestamp is older than the configured expiration time and deletes all of
// them in a single OVERWRITE commit. Returns the number of partitions
// expired.
func (p *PartitionExpire) Run(ctx context.Context) (int, error) {
	if !p.cfg.PartitionExpirationEnabled {
		return 0, nil
	}

	latestID, ok, err := p.snapshots.LatestSnapshotID()
	if err != nil || !ok {
		return 0, err
	}
	latest, err := p.snapshots.Snapshot(latestID)
	if err != nil {
		return 0, err
	}

	ts, err := p.schemas.Schema(latest.SchemaID)
	if err != nil {
		return 0, err
	}
	if len(ts.PartitionKeys) == 0 {
		return 0, nil
	}

	groups, err := p.liveEntriesByPartition(latestID)
	if err != nil {
		return 0, err
	}

	nowMs := p.now()
	expirationMillis := p.cfg.PartitionExpirationTime.Milliseconds()

	var increments []commit.FileIncrement
	var partitionSpecs []string
	expired := 0

	for _, g := range groups {
		extracted, err := extractPartitionTime(ts.PartitionKeys, g.values, p.cfg.PartitionTimestampPattern, p.cfg.PartitionTimestampFormatter)
		if err != nil {
			p.logger.Warn().Err(err).Strs("partition", g.values).Msg("skipping partition expiration check, could not parse partition timestamp")
			continue
		}
		if nowMs-extracted.UnixMilli() <= expirationMillis {
			continue
		}

		byBucket := make(map[int][]*manifest.DataFileMeta)
		totalBuckets := make(map[int]int)
		for _, entry := range g.entries {
			byBucket[entry.Bucket] = append(byBucket[entry.Bucket], &entry.File)
			totalBuckets[entry.Bucket] = entry.TotalBuckets
		}
		for bucket, files := range byBucket {
			increments = append(increments, commit.FileIncrement{
				PartitionValues: g.values,
				Bucket:          bucket,
				TotalBuckets:    totalBuckets[bucket],
				Deleted:         files,
			})
		}
		partitionSpecs = append(partitionSpecs, partitionKey(g.values))
		expired++
		p.logger.Info().Strs("partition", g.values).Msg("expiring partition")
	}

	if expired == 0 {
		return 0, nil
	}

	err = p.commit.Overwrite(ctx, partitionSpecs, commit.Committable{
		CommitUser:       PartitionExpireCommitUser,
		CommitIdentifier: math.MaxInt64,
		SchemaID:         latest.SchemaID,
		Append:           increments,
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// liveEntriesByPartition reduces every delta manifest list from the
// earliest retained snapshot through latestID by ADD/DELETE-by-file-name,
// then groups the surviving ADD entries by partition value tuple.
func (p *PartitionExpire) liveEntriesByPartition(latestID int64) (map[string]*partitionGroup, error) {
	earliestID, ok, err := p.snapshots.EarliestSnapshotID()
	if err != nil || !ok {
		return nil, err
	}

	added := make(map[string]manifest.ManifestEntry)
	for id := earliestID; id <= latestID; id++ {
		s, err := p.snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if s.DeltaManifestList == "" {
			continue
		}
		entries, err := readManifestListEntries(p.io, p.layoutMgr, p.manifests, s.DeltaManifestList)
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

	groups := make(map[string]*partitionGroup)
	for _, entry := range added {
		key := partitionKey(entry.PartitionValues)
		g, ok := groups[key]
		if !ok {
			g = &partitionGroup{values: entry.PartitionValues}
			groups[key] = g
		}
		g.entries = append(g.entries, entry)
	}
	return groups, nil
}

func partitionKey(values []string) string { return strings.Join(values, "\x1f") }

// extractPartitionTime substitutes each $<partitionKey> placeholder in
// pattern with the corresponding partition value, then parses the result
// with formatter, a standard Go time layout.
func extractPartitionTime(keys, values []string, pattern, formatter string) (time.Time, error) {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	pairs := make([]string, 0, n*2)
	for i := 0; i < n; i++ {
		pairs = append(pairs, "$"+keys[i], values[i])
	}
	substituted := strings.NewReplacer(pairs...).Replace(pattern)

	t, err := time.Parse(formatter, substituted)
	if err != nil {
		return time.Time{}, errors.New(ErrPartitionPattern, "failed to parse partition timestamp", err).
			AddContext("pattern", pattern).
			AddContext("substituted", substituted)
	}
	return t, nil
}
