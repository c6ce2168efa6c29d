// Package read implements the split-to-rows side of a table (spec §4.L):
// AppendOnlyFileStoreRead concatenates a split's files in file order,
// KeyValueFileStoreRead k-way merges them by (key ASC, sequence ASC) and
// applies the table's merge function, presenting either merged values or a
// value-count changelog depending on table shape.
package read

import (
	"github.com/lakestore/core/internal/mergefunc"
)

// ComponentType identifies this component in logs.
const ComponentType = "read"

// Shape selects how KeyValueFileStoreRead presents a merged key group.
type Shape string

const (
	// ShapeValueContent emits the merged value as one row, for tables with
	// a primary key.
	ShapeValueContent Shape = "value-content"
	// ShapeValueCount emits the row repeated |count| times with +I or -D
	// depending on the running count's sign, for tables without a primary
	// key whose dedup key is the full row.
	ShapeValueCount Shape = "value-count"
)

// Row is one output record: a value tuple tagged with the change kind that
// produced it, so a caller building a changelog stream can tell inserts
// from retractions without re-deriving it.
type Row struct {
	Values []any
	Kind   mergefunc.RowKind
}

// RecordReader is the shape every split reader presents to its caller,
// closed when the caller is done or cancels.
type RecordReader interface {
	// Next returns the next row, io.EOF when exhausted.
	Next() (Row, error)
	Close() error
}

// Options parameterizes one createReader call: which columns the caller
// wants (nil means all), a row-level predicate evaluated after decode (the
// engine's own best-effort pushdown, since format.Reader has no native
// predicate support and file-level pruning already happened in scan), and
// for KeyValueFileStoreRead, whether value-content rows carry a virtual
// rowkind column.
type Options struct {
	Projection     []int
	Predicate      func(values []any) bool
	IncludeRowKind bool
}

func (o Options) accept(values []any) bool {
	return o.Predicate == nil || o.Predicate(values)
}

func (o Options) project(values []any) []any {
	if o.Projection == nil {
		return values
	}
	out := make([]any, len(o.Projection))
	for i, idx := range o.Projection {
		out[i] = values[idx]
	}
	return out
}
