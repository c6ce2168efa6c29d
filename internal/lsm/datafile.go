package lsm

import (
	"io"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/manifest"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// kindFieldName and sequenceFieldName are the synthetic columns datafile.go
// appends to a table's value RowType so that a KeyValue's RowKind and
// sequence number survive the round trip through a format.FileFormat, which
// only knows about RecordBatch rows.
const (
	kindFieldName     = "_kind"
	sequenceFieldName = "_sequence"
)

// DataFileWriter accumulates a sorted run of KeyValue records and flushes
// them as one physical data file plus the DataFileMeta a manifest entry
// needs to reference it.
type DataFileWriter struct {
	io         fileio.FileIO
	layoutMgr  *layout.Manager
	ff         format.FileFormat
	primaryKey []string
	valueType  *types.RowType
	fileType   *types.RowType

	level   int
	schemaID int64

	path  string
	name  string
	w     io.WriteCloser
	fw    format.Writer

	rowCount    int64
	minKey      []any
	maxKey      []any
	minSequence int64
	maxSequence int64
	hasRows     bool
}

// NewDataFileWriter opens a new data file under partitionPath/bucket for the
// given level. valueType is the table's value columns (primary key fields
// included); primaryKey names the key fields used to derive MinKey/MaxKey.
func NewDataFileWriter(
	io fileio.FileIO,
	layoutMgr *layout.Manager,
	ff format.FileFormat,
	partitionPath string,
	bucket int,
	level int,
	schemaID int64,
	primaryKey []string,
	valueType *types.RowType,
) (*DataFileWriter, error) {
	fileType := augmentedRowType(valueType)

	id := ulid.Make().String()
	name := layout.DataFileName(id, ff.Extension())
	bucketPath := layoutMgr.BucketPath(partitionPath, bucket)
	path := filepath.Join(bucketPath, name)

	if err := io.MkdirAll(bucketPath); err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to create bucket directory", err).AddContext("path", bucketPath)
	}
	w, err := io.Create(path)
	if err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to open data file for write", err).AddContext("path", path)
	}
	fw, err := ff.NewWriter(w, fileType)
	if err != nil {
		w.Close()
		return nil, errors.New(ErrWriteFailed, "failed to create format writer", err).AddContext("path", path)
	}

	return &DataFileWriter{
		io:         io,
		layoutMgr:  layoutMgr,
		ff:         ff,
		primaryKey: primaryKey,
		valueType:  valueType,
		fileType:   fileType,
		level:      level,
		schemaID:   schemaID,
		path:       path,
		name:       name,
		w:          w,
		fw:         fw,
	}, nil
}

// augmentedRowType appends the synthetic kind/sequence columns onto a
// table's value RowType, minting field IDs above the table's own so they
// never collide with a real column during schema evolution.
func augmentedRowType(valueType *types.RowType) *types.RowType {
	base := valueType.MaxFieldID()
	fields := append([]types.Field{}, valueType.Fields...)
	fields = append(fields,
		types.NewField(base+1, kindFieldName, types.NewPrimitive(types.Int32), false),
		types.NewField(base+2, sequenceFieldName, types.NewPrimitive(types.Int64), false),
	)
	return types.NewRowType(fields...)
}

// Write appends one record, updating the running key bounds and sequence
// range that will populate the resulting DataFileMeta.
func (w *DataFileWriter) Write(kv mergefunc.KeyValue) error {
	row := make([]any, 0, len(w.valueType.Fields)+2)
	row = append(row, kv.Value...)
	row = append(row, int32(kv.Kind), kv.Sequence)

	if err := w.fw.Write(format.RecordBatch{Schema: w.fileType, Rows: [][]any{row}}); err != nil {
		return errors.New(ErrWriteFailed, "failed to write data file row", err).AddContext("path", w.path)
	}

	if !w.hasRows {
		w.minKey = kv.Key
		w.maxKey = kv.Key
		w.minSequence = kv.Sequence
		w.maxSequence = kv.Sequence
		w.hasRows = true
	} else {
		if mergefunc.CompareKeys(kv.Key, w.minKey) < 0 {
			w.minKey = kv.Key
		}
		if mergefunc.CompareKeys(kv.Key, w.maxKey) > 0 {
			w.maxKey = kv.Key
		}
		if kv.Sequence < w.minSequence {
			w.minSequence = kv.Sequence
		}
		if kv.Sequence > w.maxSequence {
			w.maxSequence = kv.Sequence
		}
	}
	w.rowCount++
	return nil
}

// Abandoned reports whether no rows were ever written, the signal a caller
// uses to discard an empty file rather than commit it.
func (w *DataFileWriter) Abandoned() bool { return !w.hasRows }

// Close finalizes the file and returns its DataFileMeta. Callers must not
// call Close on an Abandoned writer without first deleting the empty file it
// already created.
func (w *DataFileWriter) Close() (*manifest.DataFileMeta, error) {
	stats, err := w.fw.Close()
	if err != nil {
		w.w.Close()
		return nil, errors.New(ErrWriteFailed, "failed to finalize data file", err).AddContext("path", w.path)
	}
	if err := w.w.Close(); err != nil {
		return nil, errors.New(ErrWriteFailed, "failed to close data file handle", err).AddContext("path", w.path)
	}

	minKeyBytes, err := encodeKey(w.minKey)
	if err != nil {
		return nil, err
	}
	maxKeyBytes, err := encodeKey(w.maxKey)
	if err != nil {
		return nil, err
	}

	nullCounts := make(map[int]int64, len(stats))
	valueStatsCols := make([]int, 0, len(stats))
	var fileSize int64
	for _, s := range stats {
		nullCounts[s.FieldID] = s.NullCount
		valueStatsCols = append(valueStatsCols, s.FieldID)
	}
	if exists, _ := w.io.Exists(w.path); exists {
		if status, err := w.statSize(); err == nil {
			fileSize = status
		}
	}

	return &manifest.DataFileMeta{
		FileName:       w.name,
		FileSize:       fileSize,
		RowCount:       w.rowCount,
		MinKey:         minKeyBytes,
		MaxKey:         maxKeyBytes,
		MinSequence:    w.minSequence,
		MaxSequence:    w.maxSequence,
		Level:          w.level,
		SchemaID:       w.schemaID,
		ValueStatsCols: valueStatsCols,
		NullCounts:     nullCounts,
		ExtraFiles:     nil,
	}, nil
}

func (w *DataFileWriter) statSize() (int64, error) {
	entries, err := w.io.List(filepath.Dir(w.path))
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Path == w.path {
			return e.Size, nil
		}
	}
	return 0, nil
}

// DataFileReader reads an existing data file in full, returning every row
// as a mergefunc.KeyValue in the order the file stores them (ascending key
// order, the order in which flushes and compactions write them).
type DataFileReader struct {
	fr         format.Reader
	closer     io.Closer
	valueType  *types.RowType
	keyIndexes []int
	batch      format.RecordBatch
	pos        int
}

// OpenDataFile opens path for reading. primaryKey names the fields (by
// position in valueType) that make up the record key.
func OpenDataFile(
	io fileio.FileIO,
	ff format.FileFormat,
	path string,
	primaryKey []string,
	valueType *types.RowType,
) (*DataFileReader, error) {
	r, err := io.Open(path)
	if err != nil {
		return nil, errors.New(ErrReadFailed, "failed to open data file", err).AddContext("path", path)
	}
	fileType := augmentedRowType(valueType)
	fr, err := ff.NewReader(r, fileType)
	if err != nil {
		r.Close()
		return nil, errors.New(ErrReadFailed, "failed to create format reader", err).AddContext("path", path)
	}

	keyIndexes := make([]int, len(primaryKey))
	for i, k := range primaryKey {
		keyIndexes[i] = valueType.IndexOf(k)
	}

	return &DataFileReader{fr: fr, closer: r, valueType: valueType, keyIndexes: keyIndexes}, nil
}

// Next returns the next record, io.EOF when the file is exhausted.
func (r *DataFileReader) Next() (mergefunc.KeyValue, error) {
	for r.pos >= len(r.batch.Rows) {
		batch, err := r.fr.Next()
		if err != nil {
			return mergefunc.KeyValue{}, err
		}
		r.batch = batch
		r.pos = 0
	}
	row := r.batch.Rows[r.pos]
	r.pos++

	numValue := len(r.valueType.Fields)
	value := row[:numValue]
	kind := mergefunc.RowKind(row[numValue].(int32))
	sequence := row[numValue+1].(int64)

	key := make([]any, len(r.keyIndexes))
	for i, idx := range r.keyIndexes {
		key[i] = value[idx]
	}

	return mergefunc.KeyValue{Key: key, Sequence: sequence, Kind: kind, Value: value}, nil
}

// Close releases the underlying format reader and file handle.
func (r *DataFileReader) Close() error {
	err1 := r.fr.Close()
	err2 := r.closer.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
