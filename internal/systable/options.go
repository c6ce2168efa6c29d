package systable

import (
	"sort"

	"github.com/lakestore/core/internal/schema"
	"github.com/lakestore/core/internal/types"
)

// OptionsTable exposes the current table's options as key/value rows, the
// flattened view of `schema.TableSchema.Options` a user queries instead of
// reading raw schema JSON.
type OptionsTable struct {
	schemas *schema.Manager
}

func NewOptionsTable(schemas *schema.Manager) *OptionsTable {
	return &OptionsTable{schemas: schemas}
}

func (t *OptionsTable) Name() Name { return NameOptions }

func (t *OptionsTable) Schema() *types.RowType {
	return types.NewRowType(
		types.NewField(1, "key", types.NewPrimitive(types.String), false),
		types.NewField(2, "value", types.NewPrimitive(types.String), false),
	)
}

func (t *OptionsTable) Open() (RowIterator, error) {
	latest, err := t.schemas.Latest()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(latest.Options))
	for k := range latest.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, len(keys))
	for i, k := range keys {
		rows[i] = []any{k, latest.Options[k]}
	}
	return newSliceIterator(rows), nil
}
