package systable

import (
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
)

// SnapshotsTable exposes every retained snapshot's full commit metadata,
// one row per `snapshot/snapshot-<id>` file still on disk.
type SnapshotsTable struct {
	snapshots *snapshot.Manager
}

func NewSnapshotsTable(snapshots *snapshot.Manager) *SnapshotsTable {
	return &SnapshotsTable{snapshots: snapshots}
}

func (t *SnapshotsTable) Name() Name { return NameSnapshots }

func (t *SnapshotsTable) Schema() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "snapshot_id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "schema_id", types.NewPrimitive(types.Int64), false),
		types.NewField(3, "commit_user", types.NewPrimitive(types.String), false),
		types.NewField(4, "commit_identifier", types.NewPrimitive(types.Int64), false),
		types.NewField(5, "commit_kind", types.NewPrimitive(types.String), false),
		types.NewField(6, "base_manifest_list", types.NewPrimitive(types.String), true),
		types.NewField(7, "delta_manifest_list", types.NewPrimitive(types.String), true),
		types.NewField(8, "changelog_manifest_list", types.NewPrimitive(types.String), true),
		types.NewField(9, "commit_time", types.NewPrimitive(types.Timestamp), false),
		types.NewField(10, "total_record_count", types.NewPrimitive(types.Int64), true),
		types.NewField(11, "delta_record_count", types.NewPrimitive(types.Int64), true),
	)
}

func (t *SnapshotsTable) Open() (RowIterator, error) {
	earliestID, ok, err := t.snapshots.EarliestSnapshotID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return newSliceIterator(nil), nil
	}
	latestID, _, err := t.snapshots.LatestSnapshotID()
	if err != nil {
		return nil, err
	}

	snaps, err := t.snapshots.SnapshotsBetween(earliestID, latestID)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(snaps))
	for i, sn := range snaps {
		rows[i] = snapshotRow(sn)
	}
	return newSliceIterator(rows), nil
}

func snapshotRow(sn *snapshot.Snapshot) []any {
	return []any{
		sn.ID, sn.SchemaID, sn.CommitUser, sn.CommitIdentifier, string(sn.CommitKind),
		nullableString(sn.BaseManifestList), nullableString(sn.DeltaManifestList), nullableString(sn.ChangelogManifestList),
		sn.TimeMillis, sn.TotalRecordCount, sn.DeltaRecordCount,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
