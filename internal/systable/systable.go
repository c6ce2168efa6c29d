// Package systable implements the read-only virtual tables spec's external
// interfaces section names: snapshots, schemas, options, audit_log, files.
// Each exposes a fixed row schema and a lazy row sequence over the table's
// own snapshot/schema/manifest metadata, never over its data files.
package systable

import (
	"io"

	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/snapshot"
	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// Name identifies one system table by its logical name.
type Name string

const (
	NameSnapshots Name = "snapshots"
	NameSchemas   Name = "schemas"
	NameOptions   Name = "options"
	NameAuditLog  Name = "audit_log"
	NameFiles     Name = "files"
)

// RowIterator yields rows one at a time, io.EOF when exhausted.
type RowIterator interface {
	Next() ([]any, error)
	Close() error
}

// Table is one system table: a fixed schema plus a factory for a fresh
// iterator over its current row set.
type Table interface {
	Name() Name
	Schema() *types.RowType
	Open() (RowIterator, error)
}

// sliceIterator adapts an already-materialized row set to RowIterator. The
// snapshot/schema managers' list operations aren't streaming themselves, so
// this is the most "lazy" a sequence built on them can be: rows are
// computed once per Open call, not once per table construction.
type sliceIterator struct {
	rows [][]any
	pos  int
}

func newSliceIterator(rows [][]any) *sliceIterator {
	return &sliceIterator{rows: rows}
}

func (it *sliceIterator) Next() ([]any, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIterator) Close() error { return nil }

// Registry resolves a system table by its logical name.
type Registry struct {
	tables map[Name]Table
}

// NewRegistry builds the fixed set of system tables over one table's
// metadata managers. lister serves the files table; it is nil-safe only in
// that NameFiles.Open will fail if lister is nil, since every other table
// needs no file-level access.
func NewRegistry(snapshots *snapshot.Manager, schemas *schema.Manager, lister *FileLister) *Registry {
	r := &Registry{tables: make(map[Name]Table, 5)}
	r.tables[NameSnapshots] = NewSnapshotsTable(snapshots)
	r.tables[NameSchemas] = NewSchemasTable(schemas)
	r.tables[NameOptions] = NewOptionsTable(schemas)
	r.tables[NameAuditLog] = NewAuditLogTable(snapshots)
	r.tables[NameFiles] = NewFilesTable(lister, snapshots)
	return r
}

// Open returns a fresh iterator for name, ErrUnknownTable if name isn't one
// of the five system tables spec defines.
func (r *Registry) Open(name Name) (RowIterator, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, errors.New(ErrUnknownTable, "unrecognized system table", nil).AddContext("name", string(name))
	}
	return t.Open()
}

// Table returns the Table implementation for name, for callers that need
// its Schema() ahead of opening it (e.g. a query planner).
func (r *Registry) Table(name Name) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}
