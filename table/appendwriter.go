package table

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// appendOnlyWriter buffers rows for one (partition, bucket) of a table with
// no primary key outside its partition columns and flushes them as a plain
// data file carrying no synthetic kind/sequence columns, the shape
// internal/read.AppendOnlyFileStoreRead expects to open directly against
// the table's row type. It mirrors internal/lsm.DataFileWriter's
// open/write/stat/close sequence without that writer's key/kind/sequence
// bookkeeping, which a table with no merge key has no use for.
type appendOnlyWriter struct {
	io            fileio.FileIO
	layoutMgr     *layout.Manager
	ff            format.FileFormat
	partitionPath string
	bucket        int
	schemaID      int64
	rowType       *types.RowType

	buffered [][]any
}

func newAppendOnlyWriter(io fileio.FileIO, layoutMgr *layout.Manager, ff format.FileFormat, partitionPath string, bucket int, schemaID int64, rowType *types.RowType) *appendOnlyWriter {
	return &appendOnlyWriter{io: io, layoutMgr: layoutMgr, ff: ff, partitionPath: partitionPath, bucket: bucket, schemaID: schemaID, rowType: rowType}
}

func (w *appendOnlyWriter) Write(row []any) error {
	w.buffered = append(w.buffered, row)
	return nil
}

// flush writes every buffered row as one new data file and clears the
// buffer, returning nil (no error, no meta) when nothing was buffered.
func (w *appendOnlyWriter) flush() (*manifest.DataFileMeta, error) {
	if len(w.buffered) == 0 {
		return nil, nil
	}

	id := uuid.NewString()
	name := layout.DataFileName(id, w.ff.Extension())
	bucketPath := w.layoutMgr.BucketPath(w.partitionPath, w.bucket)
	path := filepath.Join(bucketPath, name)

	if err := w.io.MkdirAll(bucketPath); err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to create bucket directory", err).AddContext("path", bucketPath)
	}
	out, err := w.io.Create(path)
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to open append-only data file", err).AddContext("path", path)
	}
	fw, err := w.ff.NewWriter(out, w.rowType)
	if err != nil {
		out.Close()
		return nil, errors.New(ErrWriteFailed, "failed to create format writer", err).AddContext("path", path)
	}
	if err := fw.Write(format.RecordBatch{Schema: w.rowType, Rows: w.buffered}); err != nil {
		out.Close()
		return nil, errors.New(ErrWriteFailed, "failed to write append-only data", err).AddContext("path", path)
	}
	if _, err := fw.Close(); err != nil {
		out.Close()
		return nil, errors.New(ErrWriteFailed, "failed to finalize append-only data file", err).AddContext("path", path)
	}
	if err := out.Close(); err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to close append-only data file handle", err).AddContext("path", path)
	}

	var fileSize int64
	if entries, err := w.io.List(bucketPath); err == nil {
		for _, e := range entries {
			if e.Path == path {
				fileSize = e.Size
				break
			}
		}
	}

	rowCount := int64(len(w.buffered))
	w.buffered = nil
	return &manifest.DataFileMeta{
		FileName: name,
		FileSize: fileSize,
		RowCount: rowCount,
		Level:    0,
		SchemaID: w.schemaID,
	}, nil
}

func (t *Table) appendOnlyWriterFor(partitionPath string, bucket int) *appendOnlyWriter {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := bucketKey{partitionPath, bucket}
	if w, ok := t.appends[key]; ok {
		return w
	}
	w := newAppendOnlyWriter(t.io, t.layoutMgr, t.ff, partitionPath, bucket, t.schemaID, t.valueType)
	t.appends[key] = w
	return w
}
