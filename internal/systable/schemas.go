package systable

import (
	"encoding/json"
	"strings"

	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/types"
)

// SchemasTable exposes every schema version the table has ever had, oldest
// first, with its field list serialized as JSON since a system table's own
// row schema can't vary per source row.
type SchemasTable struct {
	schemas *schema.Manager
}

func NewSchemasTable(schemas *schema.Manager) *SchemasTable {
	return &SchemasTable{schemas: schemas}
}

func (t *SchemasTable) Name() Name { return NameSchemas }

func (t *SchemasTable) Schema() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "schema_id", types.NewPrimitive(types.Int64), false),
		types.NewField(2, "fields", types.NewPrimitive(types.String), false),
		types.NewField(3, "primary_keys", types.NewPrimitive(types.String), true),
		types.NewField(4, "partition_keys", types.NewPrimitive(types.String), true),
		types.NewField(5, "options", types.NewPrimitive(types.String), true),
		types.NewField(6, "comment", types.NewPrimitive(types.String), true),
	)
}

func (t *SchemasTable) Open() (RowIterator, error) {
	all, err := t.schemas.ListAll()
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(all))
	for i, ts := range all {
		rt, err := ts.RowType()
		if err != nil {
			return nil, err
		}
		fieldsJSON, err := fieldSummaryJSON(rt)
		if err != nil {
			return nil, err
		}
		optionsJSON, err := optionsJSON(ts.Options)
		if err != nil {
			return nil, err
		}
		rows[i] = []any{
			ts.ID, fieldsJSON,
			nullableString(strings.Join(ts.PrimaryKeys, ",")),
			nullableString(strings.Join(ts.PartitionKeys, ",")),
			nullableString(optionsJSON),
			nullableString(ts.Comment),
		}
	}
	return newSliceIterator(rows), nil
}

type fieldSummary struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func fieldSummaryJSON(rt *types.RowType) (string, error) {
	summaries := make([]fieldSummary, len(rt.Fields))
	for i, f := range rt.Fields {
		summaries[i] = fieldSummary{Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable}
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return "", errReadFailed("failed to encode schema fields summary", err)
	}
	return string(data), nil
}

func optionsJSON(options map[string]string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", errReadFailed("failed to encode schema options", err)
	}
	return string(data), nil
}
