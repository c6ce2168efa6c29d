package types

import "fmt"

// Field is a named, stably-identified column in a RowType. Field IDs never
// change across schema evolution: a renamed or type-widened column keeps its
// ID, and a dropped column's ID is never reused.
type Field struct {
	ID          int
	Name        string
	Type        DataType
	Nullable    bool
	Description string
}

func NewField(id int, name string, typ DataType, nullable bool) Field {
	return Field{ID: id, Name: name, Type: typ, Nullable: nullable}
}

func (f Field) WithDescription(desc string) Field {
	f.Description = desc
	return f
}

func (f Field) String() string {
	null := "NOT NULL"
	if f.Nullable {
		null = "NULL"
	}
	return fmt.Sprintf("#%d %s %s %s", f.ID, f.Name, f.Type.String(), null)
}

func (f Field) equals(other Field) bool {
	return f.ID == other.ID && f.Name == other.Name && f.Nullable == other.Nullable && f.Type.Equals(other.Type)
}

// RowType is the top-level ordered field list describing a table's rows, akin
// to an Avro/Parquet record schema but carrying stable field IDs for schema
// evolution.
type RowType struct {
	Fields []Field
}

func NewRowType(fields ...Field) *RowType {
	return &RowType{Fields: fields}
}

// FieldNames returns the ordered field names.
func (r *RowType) FieldNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldByName looks up a field by name.
func (r *RowType) FieldByName(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByID looks up a field by stable ID.
func (r *RowType) FieldByID(id int) (Field, bool) {
	for _, f := range r.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// IndexOf returns the positional index of name, or -1.
func (r *RowType) IndexOf(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// MaxFieldID returns the highest field ID currently assigned, used to mint
// the next ID when a schema evolution adds a column. Returns 0 for an empty
// RowType so that the first minted ID is 1.
func (r *RowType) MaxFieldID() int {
	max := 0
	for _, f := range r.Fields {
		if f.ID > max {
			max = f.ID
		}
		if s, ok := f.Type.(*Struct); ok {
			if nested := (&RowType{Fields: s.Fields}).MaxFieldID(); nested > max {
				max = nested
			}
		}
	}
	return max
}

// Validate checks field-ID uniqueness, field-name uniqueness, and recursively
// validates every field's DataType.
func (r *RowType) Validate() error {
	ids := map[int]bool{}
	names := map[string]bool{}
	for _, f := range r.Fields {
		if f.Name == "" {
			return errorsNew(ErrInvalidStructField, "field name cannot be empty", "")
		}
		if ids[f.ID] {
			return errorsNew(ErrDuplicateFieldID, "duplicate field id", fmt.Sprintf("%d (%s)", f.ID, f.Name))
		}
		ids[f.ID] = true
		if names[f.Name] {
			return errorsNew(ErrDuplicateFieldName, "duplicate field name", f.Name)
		}
		names[f.Name] = true
		if f.Type == nil {
			return errorsNew(ErrInvalidStructField, "field type cannot be nil", f.Name)
		}
		if err := f.Type.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKeys checks the primary-key / partition-key invariants shared by
// every bucketed table: partition keys must be a subset of the row's fields,
// primary keys (when present) must be a superset of the partition keys, and
// must contain at least one field outside the partition keys.
func (r *RowType) ValidateKeys(primaryKeys, partitionKeys []string) error {
	names := map[string]bool{}
	for _, n := range r.FieldNames() {
		names[n] = true
	}
	for _, k := range partitionKeys {
		if !names[k] {
			return errorsNew(ErrPartitionKeyNotInFields, "partition key not present in row fields", k)
		}
	}
	if len(primaryKeys) == 0 {
		return nil
	}
	pkSet := map[string]bool{}
	for _, k := range primaryKeys {
		if !names[k] {
			return errorsNew(ErrPrimaryKeyNotInFields, "primary key not present in row fields", k)
		}
		pkSet[k] = true
	}
	for _, k := range partitionKeys {
		if !pkSet[k] {
			return errorsNew(ErrPrimaryKeyMissingPartition, "primary keys must contain every partition key", k)
		}
	}
	if len(pkSet) == len(partitionKeys) {
		return errorsNew(ErrPrimaryKeyIsPartitionOnly, "primary keys must contain at least one field outside the partition keys", "")
	}
	return nil
}
