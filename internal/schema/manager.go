// Package schema implements the append-only schema store: one immutable
// file per schema version, plus the evolution operations (add/drop/rename/
// retype column) that mint a new version from the current one.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/fileio"
	"github.com/lakestore/core/internal/layout"
	"github.com/lakestore/core/internal/types"
)

// ComponentType identifies this component in logs.
const ComponentType = "schema_manager"

// Manager is the append-only SchemaManager: schema files are written once
// and never modified, so Latest/Schema/ListAll need no locking beyond what
// the underlying FileIO gives a concurrent directory listing.
type Manager struct {
	io     fileio.FileIO
	layout *layout.Manager
	logger zerolog.Logger
}

func NewManager(io fileio.FileIO, layoutMgr *layout.Manager, logger zerolog.Logger) *Manager {
	return &Manager{io: io, layout: layoutMgr, logger: logger.With().Str("component", ComponentType).Logger()}
}

func (m *Manager) GetType() string { return ComponentType }

// CreateTable validates def and writes schema 0, failing with
// ErrAlreadyExists if the table already has a schema on disk.
func (m *Manager) CreateTable(def TableDef) (*TableSchema, error) {
	if err := def.RowType.Validate(); err != nil {
		return nil, errorsSchema(ErrInvalidChange, "invalid row type", err)
	}
	if err := def.RowType.ValidateKeys(def.PrimaryKeys, def.PartitionKeys); err != nil {
		return nil, errorsSchema(ErrInvalidChange, "invalid primary/partition keys", err)
	}

	if err := m.io.MkdirAll(m.layout.SchemaDir()); err != nil {
		return nil, errorsSchema(ErrWriteFailed, "failed to create schema directory", err)
	}

	if exists, _ := m.io.Exists(m.layout.SchemaFile(0)); exists {
		return nil, errorsSchema(ErrAlreadyExists, "table already has a schema", nil).
			AddContext("path", m.layout.SchemaFile(0))
	}

	ts := &TableSchema{
		ID:             0,
		Fields:         fromRowType(def.RowType),
		HighestFieldID: def.RowType.MaxFieldID(),
		PrimaryKeys:    def.PrimaryKeys,
		PartitionKeys:  def.PartitionKeys,
		Options:        def.Options,
		Comment:        def.Comment,
	}
	if err := m.writeSchema(ts); err != nil {
		return nil, err
	}
	m.logger.Info().Int64("schema_id", 0).Int("fields", len(ts.Fields)).Msg("table created")
	return ts, nil
}

// CommitChanges applies changes in order to the current latest schema and
// writes the result as schema id+1. It never mutates the previous schema
// file.
func (m *Manager) CommitChanges(changes []Change) (*TableSchema, error) {
	current, err := m.Latest()
	if err != nil {
		return nil, err
	}
	rt, err := current.RowType()
	if err != nil {
		return nil, err
	}

	nextID := current.HighestFieldID
	fields := append([]types.Field(nil), rt.Fields...)

	for _, ch := range changes {
		fields, nextID, err = applyChange(fields, nextID, ch)
		if err != nil {
			return nil, err
		}
	}

	newRT := &types.RowType{Fields: fields}
	if err := newRT.Validate(); err != nil {
		return nil, errorsSchema(ErrInvalidChange, "schema invalid after applying changes", err)
	}
	if err := newRT.ValidateKeys(current.PrimaryKeys, current.PartitionKeys); err != nil {
		return nil, errorsSchema(ErrInvalidChange, "schema violates key invariants after applying changes", err)
	}

	ts := &TableSchema{
		ID:             current.ID + 1,
		Fields:         fromRowType(newRT),
		HighestFieldID: nextID,
		PrimaryKeys:    current.PrimaryKeys,
		PartitionKeys:  current.PartitionKeys,
		Options:        current.Options,
		Comment:        current.Comment,
	}
	if err := m.writeSchema(ts); err != nil {
		return nil, err
	}
	m.logger.Info().Int64("schema_id", ts.ID).Int("changes", len(changes)).Msg("schema committed")
	return ts, nil
}

func applyChange(fields []types.Field, highestFieldID int, ch Change) ([]types.Field, int, error) {
	indexOf := func(name string) int {
		for i, f := range fields {
			if f.Name == name {
				return i
			}
		}
		return -1
	}

	switch ch.Kind {
	case AddColumn:
		if indexOf(ch.ColumnName) >= 0 {
			return nil, 0, errorsSchema(ErrColumnExists, "column already exists", nil).AddContext("column", ch.ColumnName)
		}
		highestFieldID++
		f := types.NewField(highestFieldID, ch.ColumnName, ch.NewType, ch.Nullable).WithDescription(ch.Comment)
		if ch.AfterColumn == "" {
			fields = append(fields, f)
		} else {
			pos := indexOf(ch.AfterColumn)
			if pos < 0 {
				return nil, 0, errorsSchema(ErrUnknownColumn, "after-column not found", nil).AddContext("column", ch.AfterColumn)
			}
			fields = append(fields[:pos+1], append([]types.Field{f}, fields[pos+1:]...)...)
		}
		return fields, highestFieldID, nil

	case DropColumn:
		pos := indexOf(ch.ColumnName)
		if pos < 0 {
			return nil, 0, errorsSchema(ErrUnknownColumn, "column not found", nil).AddContext("column", ch.ColumnName)
		}
		fields = append(fields[:pos], fields[pos+1:]...)
		return fields, highestFieldID, nil

	case RenameColumn:
		pos := indexOf(ch.ColumnName)
		if pos < 0 {
			return nil, 0, errorsSchema(ErrUnknownColumn, "column not found", nil).AddContext("column", ch.ColumnName)
		}
		if indexOf(ch.NewName) >= 0 {
			return nil, 0, errorsSchema(ErrColumnExists, "target name already exists", nil).AddContext("column", ch.NewName)
		}
		fields[pos].Name = ch.NewName
		return fields, highestFieldID, nil

	case UpdateColumnType:
		pos := indexOf(ch.ColumnName)
		if pos < 0 {
			return nil, 0, errorsSchema(ErrUnknownColumn, "column not found", nil).AddContext("column", ch.ColumnName)
		}
		if err := checkWideningCast(fields[pos].Type, ch.NewType); err != nil {
			return nil, 0, err
		}
		fields[pos].Type = ch.NewType
		return fields, highestFieldID, nil

	case UpdateColumnNullability:
		pos := indexOf(ch.ColumnName)
		if pos < 0 {
			return nil, 0, errorsSchema(ErrUnknownColumn, "column not found", nil).AddContext("column", ch.ColumnName)
		}
		if !ch.Nullable && fields[pos].Nullable {
			return nil, 0, errorsSchema(ErrInvalidChange, "cannot tighten an existing nullable column to not-null", nil).
				AddContext("column", ch.ColumnName)
		}
		fields[pos].Nullable = ch.Nullable
		return fields, highestFieldID, nil

	case UpdateColumnComment:
		pos := indexOf(ch.ColumnName)
		if pos < 0 {
			return nil, 0, errorsSchema(ErrUnknownColumn, "column not found", nil).AddContext("column", ch.ColumnName)
		}
		fields[pos].Description = ch.Comment
		return fields, highestFieldID, nil
	}

	return nil, 0, errorsSchema(ErrInvalidChange, fmt.Sprintf("unknown change kind %d", ch.Kind), nil)
}

// checkWideningCast allows only widening numeric conversions and
// identical-kind parameter changes (decimal precision growth); anything
// else is rejected since it could lose data already on disk under the old
// type.
func checkWideningCast(from, to types.DataType) error {
	if from.Equals(to) {
		return nil
	}
	widen := map[types.Kind][]types.Kind{
		types.Int32:   {types.Int64, types.Float64},
		types.Int64:   {types.Float64},
		types.Float32: {types.Float64},
	}
	for _, allowed := range widen[from.Kind()] {
		if to.Kind() == allowed {
			return nil
		}
	}
	if from.Kind() == types.DecimalKind && to.Kind() == types.DecimalKind {
		fd, td := from.(*types.Decimal), to.(*types.Decimal)
		if td.Precision >= fd.Precision && td.Scale == fd.Scale {
			return nil
		}
	}
	return errorsSchema(ErrIncompatibleCast, "type change is not a widening conversion", nil).
		AddContext("from", from.String()).AddContext("to", to.String())
}

// Latest returns the highest-numbered schema currently on disk.
func (m *Manager) Latest() (*TableSchema, error) {
	ids, err := m.listIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errorsSchema(ErrNotFound, "table has no schema", nil)
	}
	return m.Schema(ids[len(ids)-1])
}

// Schema returns one historical schema version by ID.
func (m *Manager) Schema(id int64) (*TableSchema, error) {
	r, err := m.io.Open(m.layout.SchemaFile(id))
	if err != nil {
		return nil, errorsSchema(ErrNotFound, "schema not found", err).AddContext("schema_id", strconv.FormatInt(id, 10))
	}
	defer r.Close()

	data, err := readAll(r)
	if err != nil {
		return nil, errorsSchema(ErrReadFailed, "failed to read schema file", err)
	}
	ts, err := unmarshalSchema(data)
	if err != nil {
		return nil, errorsSchema(ErrReadFailed, "failed to decode schema file", err)
	}
	return ts, nil
}

// ListAll returns every schema version, oldest first.
func (m *Manager) ListAll() ([]*TableSchema, error) {
	ids, err := m.listIDs()
	if err != nil {
		return nil, err
	}
	out := make([]*TableSchema, 0, len(ids))
	for _, id := range ids {
		ts, err := m.Schema(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

func (m *Manager) listIDs() ([]int64, error) {
	entries, err := m.io.List(m.layout.SchemaDir())
	if err != nil {
		return nil, errorsSchema(ErrReadFailed, "failed to list schema directory", err)
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		name := e.Path[strings.LastIndex(e.Path, "/")+1:]
		if !strings.HasPrefix(name, "schema-") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(name, "schema-"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Manager) writeSchema(ts *TableSchema) error {
	data, err := ts.marshal()
	if err != nil {
		return errorsSchema(ErrWriteFailed, "failed to encode schema", err)
	}
	w, err := m.io.CreateExclusive(m.layout.SchemaFile(ts.ID))
	if err != nil {
		return errorsSchema(ErrWriteFailed, "failed to create schema file", err).AddContext("schema_id", strconv.FormatInt(ts.ID, 10))
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errorsSchema(ErrWriteFailed, "failed to write schema file", err)
	}
	return w.Close()
}
