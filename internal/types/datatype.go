// Package types defines the columnar type system shared by schemas, manifests
// and the read/write path: DataType, Field and RowType.
package types

import (
	"fmt"
	"hash/fnv"
)

// Kind identifies a DataType's shape.
type Kind string

const (
	Boolean     Kind = "boolean"
	Int32       Kind = "int"
	Int64       Kind = "long"
	Float32     Kind = "float"
	Float64     Kind = "double"
	String      Kind = "string"
	Binary      Kind = "binary"
	Date        Kind = "date"
	Time        Kind = "time"
	Timestamp   Kind = "timestamp"
	TimestampTz Kind = "timestamptz"
	UUID        Kind = "uuid"

	DecimalKind Kind = "decimal"
	FixedKind   Kind = "fixed"

	ListKind   Kind = "list"
	MapKind    Kind = "map"
	StructKind Kind = "struct"
)

var primitiveKinds = map[Kind]bool{
	Boolean: true, Int32: true, Int64: true, Float32: true, Float64: true,
	String: true, Binary: true, Date: true, Time: true, Timestamp: true,
	TimestampTz: true, UUID: true,
}

// DataType is the common interface implemented by every column type.
type DataType interface {
	Kind() Kind
	String() string
	Equals(other DataType) bool
	Hash() uint64
	IsPrimitive() bool
	IsNested() bool
	Children() []DataType
	Validate() error
}

type baseType struct {
	kind Kind
}

func (b baseType) Kind() Kind         { return b.kind }
func (b baseType) IsPrimitive() bool  { return primitiveKinds[b.kind] }
func (b baseType) IsNested() bool     { return b.kind == ListKind || b.kind == MapKind || b.kind == StructKind }
func (b baseType) Children() []DataType { return nil }

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Primitive is a non-parameterized scalar type.
type Primitive struct {
	baseType
}

func NewPrimitive(kind Kind) *Primitive {
	return &Primitive{baseType{kind: kind}}
}

func (p *Primitive) String() string { return string(p.kind) }

func (p *Primitive) Equals(other DataType) bool {
	o, ok := other.(*Primitive)
	return ok && o.kind == p.kind
}

func (p *Primitive) Hash() uint64 { return hashString(string(p.kind)) }

func (p *Primitive) Validate() error {
	if !primitiveKinds[p.kind] {
		return errorsNew(ErrInvalidPrimitiveType, "unknown primitive kind", string(p.kind))
	}
	return nil
}

// Decimal is a fixed-point numeric type with precision and scale, following
// the same bounds as Parquet/Avro decimal logical types.
type Decimal struct {
	baseType
	Precision int
	Scale     int
}

func NewDecimal(precision, scale int) *Decimal {
	return &Decimal{baseType: baseType{kind: DecimalKind}, Precision: precision, Scale: scale}
}

func (d *Decimal) String() string { return fmt.Sprintf("decimal(%d,%d)", d.Precision, d.Scale) }

func (d *Decimal) Equals(other DataType) bool {
	o, ok := other.(*Decimal)
	return ok && o.Precision == d.Precision && o.Scale == d.Scale
}

func (d *Decimal) Hash() uint64 { return hashString(d.String()) }

func (d *Decimal) Validate() error {
	if d.Precision <= 0 || d.Precision > 38 {
		return errorsNew(ErrInvalidDecimalPrecision, "decimal precision must be in (0,38]", fmt.Sprint(d.Precision))
	}
	if d.Scale < 0 {
		return errorsNew(ErrInvalidDecimalScale, "decimal scale must be >= 0", fmt.Sprint(d.Scale))
	}
	if d.Scale > d.Precision {
		return errorsNew(ErrDecimalScaleExceedsPrecision, "decimal scale exceeds precision", fmt.Sprintf("scale=%d precision=%d", d.Scale, d.Precision))
	}
	return nil
}

// Fixed is a fixed-length byte array type.
type Fixed struct {
	baseType
	Length int
}

func NewFixed(length int) *Fixed {
	return &Fixed{baseType: baseType{kind: FixedKind}, Length: length}
}

func (f *Fixed) String() string { return fmt.Sprintf("fixed(%d)", f.Length) }

func (f *Fixed) Equals(other DataType) bool {
	o, ok := other.(*Fixed)
	return ok && o.Length == f.Length
}

func (f *Fixed) Hash() uint64 { return hashString(f.String()) }

func (f *Fixed) Validate() error {
	if f.Length <= 0 {
		return errorsNew(ErrInvalidFixedLength, "fixed length must be positive", fmt.Sprint(f.Length))
	}
	return nil
}

// List is a homogeneous, optionally-nullable-element array type.
type List struct {
	baseType
	ElementType     DataType
	ElementNullable bool
}

func NewList(element DataType, elementNullable bool) *List {
	return &List{baseType: baseType{kind: ListKind}, ElementType: element, ElementNullable: elementNullable}
}

func (l *List) String() string { return fmt.Sprintf("list<%s>", l.ElementType.String()) }

func (l *List) Equals(other DataType) bool {
	o, ok := other.(*List)
	return ok && l.ElementNullable == o.ElementNullable && l.ElementType.Equals(o.ElementType)
}

func (l *List) Hash() uint64 { return hashString(l.String()) }

func (l *List) Children() []DataType { return []DataType{l.ElementType} }

func (l *List) Validate() error {
	if l.ElementType == nil {
		return errorsNew(ErrInvalidListElement, "list element type cannot be nil", "")
	}
	return l.ElementType.Validate()
}

// Map is a key/value associative type. Keys must not be nullable.
type Map struct {
	baseType
	KeyType       DataType
	ValueType     DataType
	ValueNullable bool
}

func NewMap(key, value DataType, valueNullable bool) *Map {
	return &Map{baseType: baseType{kind: MapKind}, KeyType: key, ValueType: value, ValueNullable: valueNullable}
}

func (m *Map) String() string {
	return fmt.Sprintf("map<%s,%s>", m.KeyType.String(), m.ValueType.String())
}

func (m *Map) Equals(other DataType) bool {
	o, ok := other.(*Map)
	return ok && m.ValueNullable == o.ValueNullable && m.KeyType.Equals(o.KeyType) && m.ValueType.Equals(o.ValueType)
}

func (m *Map) Hash() uint64 { return hashString(m.String()) }

func (m *Map) Children() []DataType { return []DataType{m.KeyType, m.ValueType} }

func (m *Map) Validate() error {
	if m.KeyType == nil {
		return errorsNew(ErrInvalidMapKeyType, "map key type cannot be nil", "")
	}
	if m.ValueType == nil {
		return errorsNew(ErrInvalidMapValueType, "map value type cannot be nil", "")
	}
	if err := m.KeyType.Validate(); err != nil {
		return err
	}
	return m.ValueType.Validate()
}

// Struct is a nested record type: an ordered list of Fields.
type Struct struct {
	baseType
	Fields []Field
}

func NewStruct(fields ...Field) *Struct {
	return &Struct{baseType: baseType{kind: StructKind}, Fields: fields}
}

func (s *Struct) String() string {
	out := "struct<"
	for i, f := range s.Fields {
		if i > 0 {
			out += ","
		}
		out += f.Name + ":" + f.Type.String()
	}
	return out + ">"
}

func (s *Struct) Equals(other DataType) bool {
	o, ok := other.(*Struct)
	if !ok || len(o.Fields) != len(s.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if !f.equals(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (s *Struct) Hash() uint64 { return hashString(s.String()) }

func (s *Struct) Children() []DataType {
	children := make([]DataType, len(s.Fields))
	for i, f := range s.Fields {
		children[i] = f.Type
	}
	return children
}

func (s *Struct) Validate() error {
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if f.Name == "" {
			return errorsNew(ErrInvalidStructField, "struct field name cannot be empty", "")
		}
		if f.Type == nil {
			return errorsNew(ErrInvalidStructField, "struct field type cannot be nil", f.Name)
		}
		if seen[f.Name] {
			return errorsNew(ErrDuplicateFieldName, "duplicate struct field name", f.Name)
		}
		seen[f.Name] = true
		if err := f.Type.Validate(); err != nil {
			return err
		}
	}
	return nil
}
