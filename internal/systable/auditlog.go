package systable

import (
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
)

// AuditLogTable narrows the snapshot history to the fields an auditor
// cares about: who committed what kind of change and when, without the
// manifest-list plumbing the snapshots table carries for planners.
type AuditLogTable struct {
	snapshots *snapshot.Manager
}

func NewAuditLogTable(snapshots *snapshot.Manager) *AuditLogTable {
	return &AuditLogTable{snapshots: snapshots}
}

func (t *AuditLogTable) Name() Name { return NameAuditLog }

func (t *AuditLogTable) Schema() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "snapshot_id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "commit_user", types.NewPrimitive(types.String), false),
		types.NewField(3, "commit_identifier", types.NewPrimitive(types.Int64), false),
		types.NewField(4, "commit_kind", types.NewPrimitive(types.String), false),
		types.NewField(5, "commit_time", types.NewPrimitive(types.Timestamp), false),
	)
}

func (t *AuditLogTable) Open() (RowIterator, error) {
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
		rows[i] = []any{sn.ID, sn.CommitUser, sn.CommitIdentifier, string(sn.CommitKind), sn.TimeMillis}
	}
	return newSliceIterator(rows), nil
}
