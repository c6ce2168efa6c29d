package read

import (
	"io"
	"path/filepath"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/format"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/lsm"
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/scan"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// KeyValueFileStoreRead builds a merging reader over a split's sorted runs:
// a k-way merge by (key ASC, sequence ASC), the table's merge function
// applied within each key group, and the result shaped per Shape.
type KeyValueFileStoreRead struct {
	io         fileio.FileIO
	layoutMgr  *layout.Manager
	ff         format.FileFormat
	primaryKey []string
	valueType  *types.RowType
	newMergeFn func() mergefunc.MergeFunction
	shape      Shape
}

// NewKeyValueFileStoreRead wires a read path over value-content tables
// (primaryKey non-empty, newMergeFn the table's configured merge engine) or
// value-count tables (primaryKey is the full row, newMergeFn unused).
func NewKeyValueFileStoreRead(
	io fileio.FileIO,
	layoutMgr *layout.Manager,
	ff format.FileFormat,
	primaryKey []string,
	valueType *types.RowType,
	newMergeFn func() mergefunc.MergeFunction,
	shape Shape,
) *KeyValueFileStoreRead {
	return &KeyValueFileStoreRead{
		io: io, layoutMgr: layoutMgr, ff: ff,
		primaryKey: primaryKey, valueType: valueType,
		newMergeFn: newMergeFn, shape: shape,
	}
}

// CreateReader opens every file in split, merges them by (key, sequence),
// and shapes the merged stream per r.shape.
func (r *KeyValueFileStoreRead) CreateReader(split *scan.Split, opts Options) (RecordReader, error) {
	partitionPath := r.layoutMgr.PartitionPath(split.PartitionValues)
	bucketPath := r.layoutMgr.BucketPath(partitionPath, split.Bucket)

	readers := make([]*lsm.DataFileReader, 0, len(split.Files))
	funcs := make([]func() (mergefunc.KeyValue, error), 0, len(split.Files))
	for _, f := range split.Files {
		path := filepath.Join(bucketPath, f.FileName)
		dr, err := lsm.OpenDataFile(r.io, r.ff, path, r.primaryKey, r.valueType)
		if err != nil {
			for _, opened := range readers {
				opened.Close()
			}
			return nil, errors.New(ErrOpenFailed, "failed to open key-value data file", err).AddContext("path", path)
		}
		readers = append(readers, dr)
		funcs = append(funcs, dr.Next)
	}

	merger, err := lsm.NewKWayMerger(funcs)
	if err != nil {
		for _, opened := range readers {
			opened.Close()
		}
		return nil, errors.New(ErrReadFailed, "failed to start k-way merge", err)
	}

	closeAll := func() error {
		var first error
		for _, opened := range readers {
			if err := opened.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	switch r.shape {
	case ShapeValueContent:
		mr := lsm.NewMergingReader(merger, r.newMergeFn)
		return &valueContentReader{merging: mr, opts: opts, closeFn: closeAll}, nil
	case ShapeValueCount:
		return &valueCountReader{merger: merger, opts: opts, closeFn: closeAll}, nil
	default:
		return nil, errors.New(ErrUnsupportedShape, "unrecognized read shape", nil).AddContext("shape", string(r.shape))
	}
}

// valueContentReader presents each merged key's surviving value as one row,
// optionally appending a virtual rowkind column.
type valueContentReader struct {
	merging *lsm.MergingReader
	opts    Options
	closeFn func() error
}

func (r *valueContentReader) Next() (Row, error) {
	for {
		kv, err := r.merging.Next()
		if err != nil {
			return Row{}, err
		}
		values := kv.Value
		if r.opts.IncludeRowKind {
			values = append(append([]any{}, values...), kv.Kind.String())
		}
		if !r.opts.accept(values) {
			continue
		}
		return Row{Values: r.opts.project(values), Kind: kv.Kind}, nil
	}
}

func (r *valueContentReader) Close() error { return r.closeFn() }

// valueCountReader groups the merged stream by key the same way
// MergingReader does, but accumulates a signed running count instead of
// applying a MergeFunction: spec's value-count shape must surface a
// negative running total as a retraction (-D), not suppress it the way a
// compaction-time reduce would.
type valueCountReader struct {
	merger  *lsm.KWayMerger
	opts    Options
	closeFn func() error

	pending *mergefunc.KeyValue
	repeat  []any
	kind    mergefunc.RowKind
	left    int
}

func (r *valueCountReader) Next() (Row, error) {
	for {
		if r.left > 0 {
			r.left--
			if !r.opts.accept(r.repeat) {
				continue
			}
			return Row{Values: r.opts.project(r.repeat), Kind: r.kind}, nil
		}

		var first mergefunc.KeyValue
		if r.pending != nil {
			first = *r.pending
			r.pending = nil
		} else {
			kv, err := r.merger.Next()
			if err != nil {
				return Row{}, err
			}
			first = kv
		}

		total := countOf(first)
		key := first.Key
		var lastValue []any = first.Value

		for {
			kv, err := r.merger.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return Row{}, err
			}
			if mergefunc.CompareKeys(kv.Key, key) != 0 {
				r.pending = &kv
				break
			}
			total += countOf(kv)
			lastValue = kv.Value
		}

		if total == 0 {
			continue
		}
		n := total
		kind := mergefunc.Insert
		if n < 0 {
			n = -n
			kind = mergefunc.Delete
		}
		r.repeat = lastValue
		r.kind = kind
		r.left = int(n)
	}
}

func (r *valueCountReader) Close() error { return r.closeFn() }

// countOf reads a KeyValue's signed count contribution much as
// mergefunc.ValueCount does: an int64 count in the value's leading field,
// negated by a DELETE kind, defaulting to 1 when the value is empty or its
// leading field is not an int64.
func countOf(kv mergefunc.KeyValue) int64 {
	count := int64(1)
	if len(kv.Value) > 0 {
		if n, ok := kv.Value[0].(int64); ok {
			count = n
		}
	}
	if kv.Kind == mergefunc.Delete {
		count = -count
	}
	return count
}
