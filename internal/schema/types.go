package schema

import (
	"encoding/json"

	"github.com/lakestore/core/internal/types"
)

// fieldJSON is the on-disk representation of a types.Field. The type is
// stored via its string form and re-parsed, keeping the schema file format
// decoupled from the in-memory DataType interface hierarchy.
type fieldJSON struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description,omitempty"`
}

// TableSchema is one immutable, versioned schema file. SchemaManager never
// mutates a TableSchema in place; evolution always produces a new ID.
type TableSchema struct {
	ID            int64       `json:"id"`
	Fields        []fieldJSON `json:"fields"`
	HighestFieldID int        `json:"highest_field_id"`
	PrimaryKeys   []string    `json:"primary_keys,omitempty"`
	PartitionKeys []string    `json:"partition_keys,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
	Comment       string      `json:"comment,omitempty"`
	TimeMillis    int64       `json:"time_millis"`
}

// RowType reconstructs the live types.RowType described by this schema.
func (s *TableSchema) RowType() (*types.RowType, error) {
	fields := make([]types.Field, len(s.Fields))
	for i, f := range s.Fields {
		dt, err := types.Parse(f.Type)
		if err != nil {
			return nil, errorsSchema(ErrReadFailed, "failed to parse field type", err).
				AddContext("field", f.Name).AddContext("type", f.Type)
		}
		fields[i] = types.Field{ID: f.ID, Name: f.Name, Type: dt, Nullable: f.Nullable, Description: f.Description}
	}
	return &types.RowType{Fields: fields}, nil
}

func fromRowType(rt *types.RowType) []fieldJSON {
	out := make([]fieldJSON, len(rt.Fields))
	for i, f := range rt.Fields {
		out[i] = fieldJSON{ID: f.ID, Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable, Description: f.Description}
	}
	return out
}

func (s *TableSchema) marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func unmarshalSchema(data []byte) (*TableSchema, error) {
	var s TableSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TableDef is the definition passed to CreateTable.
type TableDef struct {
	RowType       *types.RowType
	PrimaryKeys   []string
	PartitionKeys []string
	Options       map[string]string
	Comment       string
}

// ChangeKind identifies the kind of schema evolution operation a Change
// represents.
type ChangeKind int

const (
	AddColumn ChangeKind = iota
	DropColumn
	RenameColumn
	UpdateColumnType
	UpdateColumnNullability
	UpdateColumnComment
)

// Change is one schema evolution operation applied by CommitChanges. Only
// the fields relevant to Kind are read.
type Change struct {
	Kind        ChangeKind
	ColumnName  string
	NewName     string
	NewType     types.DataType
	Nullable    bool
	Comment     string
	AfterColumn string // empty means append at the end
}

// IndexMapping maps a table schema's field position to the data schema's
// field position, or -1 if the table field is absent from the data schema
// (e.g. a column added after the data file was written).
type IndexMapping []int

// CastMapping records, per table field position present in the data schema,
// whether a cast is required and between which DataTypes.
type CastMapping struct {
	RequiresCast []bool
	FromType     []types.DataType
	ToType       []types.DataType
}

// ComputeMapping builds the IndexMapping and CastMapping a reader needs to
// project a data file written under dataSchema into the shape of
// tableSchema, matching fields by stable ID rather than position or name.
func ComputeMapping(tableSchema, dataSchema *types.RowType) (IndexMapping, *CastMapping) {
	mapping := make(IndexMapping, len(tableSchema.Fields))
	cast := &CastMapping{
		RequiresCast: make([]bool, len(tableSchema.Fields)),
		FromType:     make([]types.DataType, len(tableSchema.Fields)),
		ToType:       make([]types.DataType, len(tableSchema.Fields)),
	}
	for i, tf := range tableSchema.Fields {
		df, ok := dataSchema.FieldByID(tf.ID)
		if !ok {
			mapping[i] = -1
			continue
		}
		mapping[i] = dataSchema.IndexOf(df.Name)
		if !tf.Type.Equals(df.Type) {
			cast.RequiresCast[i] = true
			cast.FromType[i] = df.Type
			cast.ToType[i] = tf.Type
		}
	}
	return mapping, cast
}
