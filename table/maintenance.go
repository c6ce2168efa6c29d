package table

import (
	"context"

	"github.com/lakestore/core/internal/expire"
)

// ExpireSnapshots reclaims old snapshots and their now-unreferenced data
// files per the table's retention configuration.
func (t *Table) ExpireSnapshots() (expire.Result, error) {
	e := expire.NewExpire(t.io, t.layoutMgr, t.snapshots, t.manifests, t.cfg, t.logger)
	return e.Run()
}

// ExpirePartitions drops partitions whose timestamp-derived age exceeds the
// table's partition_expiration_time, publishing an OVERWRITE snapshot per
// dropped partition. It is a no-op when partition expiration is disabled.
func (t *Table) ExpirePartitions(ctx context.Context) (int, error) {
	if !t.cfg.PartitionExpirationEnabled {
		return 0, nil
	}
	p := expire.NewPartitionExpire(t.io, t.layoutMgr, t.snapshots, t.manifests, t.schemas, t.committer, t.cfg, t.logger)
	return p.Run(ctx)
}
