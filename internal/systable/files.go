package systable

import (
	"strings"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// FileLister reduces a table's manifests down to the set of data files live
// as of a snapshot, the same ADD/DELETE-by-file-name reduction
// internal/scan and internal/expire each already carry their own copy of —
// every metadata-reduction walk in this package set reads only its own
// consumer's slice of history, so this one serves exactly the files table
// and nothing else.
type FileLister struct {
	io        fileio.FileIO
	layoutMgr *layout.Manager
	manifests *manifest.Codec
}

func NewFileLister(io fileio.FileIO, layoutMgr *layout.Manager, manifests *manifest.Codec) *FileLister {
	return &FileLister{io: io, layoutMgr: layoutMgr, manifests: manifests}
}

// LiveEntries returns every ManifestEntry whose file is live as of
// snapshotID, reducing from the table's earliest retained snapshot forward.
func (l *FileLister) LiveEntries(snapshots *snapshot.Manager, snapshotID int64) ([]manifest.ManifestEntry, error) {
	earliestID, ok, err := snapshots.EarliestSnapshotID()
	if err != nil {
		return nil, err
	}
	if !ok {
		earliestID = snapshotID
	}

	live := make(map[string]manifest.ManifestEntry)
	for id := earliestID; id <= snapshotID; id++ {
		sn, err := snapshots.Snapshot(id)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if sn.DeltaManifestList == "" {
			continue
		}
		entries, err := l.readManifestListEntries(sn.DeltaManifestList)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			switch entry.Kind {
			case manifest.KindAdd:
				live[entry.File.FileName] = entry
			case manifest.KindDelete:
				delete(live, entry.File.FileName)
			}
		}
	}

	out := make([]manifest.ManifestEntry, 0, len(live))
	for _, entry := range live {
		out = append(out, entry)
	}
	return out, nil
}

func (l *FileLister) readManifestListEntries(listName string) ([]manifest.ManifestEntry, error) {
	listPath := l.layoutMgr.ManifestFilePath(listName)
	exists, err := l.io.Exists(listPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	list, err := l.manifests.ReadManifestList(listPath)
	if err != nil {
		return nil, errReadFailed("failed to read manifest list", err)
	}
	var entries []manifest.ManifestEntry
	for _, mfMeta := range list.Manifests {
		mfPath := l.layoutMgr.ManifestFilePath(mfMeta.FileName)
		mfExists, err := l.io.Exists(mfPath)
		if err != nil {
			return nil, err
		}
		if !mfExists {
			continue
		}
		mf, err := l.manifests.ReadManifestFile(mfPath)
		if err != nil {
			return nil, errReadFailed("failed to read manifest file", err)
		}
		entries = append(entries, mf.Entries...)
	}
	return entries, nil
}

// FilesTable exposes every data file currently live in the table, one row
// per file, as of the latest snapshot.
type FilesTable struct {
	lister    *FileLister
	snapshots *snapshot.Manager
}

func NewFilesTable(lister *FileLister, snapshots *snapshot.Manager) *FilesTable {
	return &FilesTable{lister: lister, snapshots: snapshots}
}

func (t *FilesTable) Name() Name { return NameFiles }

func (t *FilesTable) Schema() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "partition", types.NewPrimitive(types.String), true),
		types.NewField(2, "bucket", types.NewPrimitive(types.Int32), false),
		types.NewField(3, "file_name", types.NewPrimitive(types.String), false),
		types.NewField(4, "file_size", types.NewPrimitive(types.Int64), false),
		types.NewField(5, "row_count", types.NewPrimitive(types.Int64), false),
		types.NewField(6, "level", types.NewPrimitive(types.Int32), false),
		types.NewField(7, "min_sequence", types.NewPrimitive(types.Int64), true),
		types.NewField(8, "max_sequence", types.NewPrimitive(types.Int64), true),
	)
}

func (t *FilesTable) Open() (RowIterator, error) {
	latestID, ok, err := t.snapshots.LatestSnapshotID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return newSliceIterator(nil), nil
	}
	entries, err := t.lister.LiveEntries(t.snapshots, latestID)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			nullableString(strings.Join(e.PartitionValues, "/")),
			int32(e.Bucket), e.File.FileName, e.File.FileSize, e.File.RowCount, int32(e.File.Level),
			e.File.MinSequence, e.File.MaxSequence,
		}
	}
	return newSliceIterator(rows), nil
}
