package table

import (
	"github.com/lakestore/core/internal/mergefunc"
	"github.com/lakestore/core/internal/read"
	"github.com/lakestore/core/internal/scan"
)

// Scan plans a read against this table's metadata, delegating to
// internal/scan.
func (t *Table) Scan(opts scan.Options) (*scan.Plan, error) {
	return t.scanner.Plan(opts)
}

// OpenSplit opens one split for reading, choosing the append-only or
// key-value read path by the same primary-key test Open used to pick the
// write path, so a split from this table's own Scan always opens with the
// reader that matches how it was written.
func (t *Table) OpenSplit(split *scan.Split, opts read.Options) (read.RecordReader, error) {
	if t.isPK {
		kv := read.NewKeyValueFileStoreRead(t.io, t.layoutMgr, t.ff, t.primaryKey, t.valueType, t.newMergeFunction, read.ShapeValueContent)
		return kv.CreateReader(split, opts)
	}
	ao := read.NewAppendOnlyFileStoreRead(t.io, t.layoutMgr, t.ff, t.valueType)
	return ao.CreateReader(split, opts)
}

// newMergeFunction builds one merge function instance per merged key group.
// mergeSpec was already validated once in Open, so the error here cannot
// occur in practice.
func (t *Table) newMergeFunction() mergefunc.MergeFunction {
	fn, _ := mergefunc.New(t.mergeSpec)
	return fn
}
