// Package format implements the FileFormat capability: converting a RowType
// to the columnar schema a physical file format expects, writing/reading
// data files, and extracting per-column statistics used by scan pruning.
package format

import (
	"io"

	"github.com/lakestore/core/internal/types"
)

// FieldStats carries the per-column aggregates a ManifestEntry stores:
// null count and min/max bounds, used by Scan to prune files without
// opening them.
type FieldStats struct {
	FieldID    int
	NullCount  int64
	ValueCount int64
	Min        []byte // format-native encoded bound, nil if unavailable
	Max        []byte
}

// RecordBatch is a columnar batch of rows in the shape the write path
// produces and the read path consumes, decoupling internal/lsm and
// internal/read from any one physical encoding.
type RecordBatch struct {
	Schema *types.RowType
	Rows   [][]any
}

// Writer writes RecordBatches to a single physical file.
type Writer interface {
	Write(batch RecordBatch) error
	// Close flushes and finalizes the file, returning the per-field stats
	// accumulated across every batch written.
	Close() ([]FieldStats, error)
}

// Reader reads RecordBatches back out of a single physical file.
type Reader interface {
	// Next returns the next batch, io.EOF when exhausted.
	Next() (RecordBatch, error)
	Close() error
}

// FileFormat is the capability implemented once per physical encoding
// (parquet, avro, ...). Extension is used for data file naming.
type FileFormat interface {
	Name() string
	Extension() string
	NewWriter(w io.Writer, schema *types.RowType) (Writer, error)
	NewReader(r io.Reader, schema *types.RowType) (Reader, error)
}

// Registry resolves a FileFormat by the "file.format" table option.
type Registry struct {
	formats map[string]FileFormat
}

func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]FileFormat)}
}

func (r *Registry) Register(f FileFormat) {
	r.formats[f.Name()] = f
}

func (r *Registry) Get(name string) (FileFormat, bool) {
	f, ok := r.formats[name]
	return f, ok
}
