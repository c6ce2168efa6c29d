package format

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/lakestore/core/internal/types"
	"github.com/lakestore/core/pkg/errors"
)

// ToArrowSchema converts a RowType into the Arrow schema the parquet writer
// consumes, carrying the stable field ID as column metadata so the stats
// extractor can map Arrow columns back to ManifestEntry field IDs.
func ToArrowSchema(rt *types.RowType) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(rt.Fields))
	for _, f := range rt.Fields {
		arrowType, err := toArrowType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     arrowType,
			Nullable: f.Nullable,
			Metadata: arrow.MetadataFrom(map[string]string{"field_id": fmt.Sprint(f.ID)}),
		})
	}
	return arrow.NewSchema(fields, nil), nil
}

func toArrowType(dt types.DataType) (arrow.DataType, error) {
	switch t := dt.(type) {
	case *types.Primitive:
		switch t.Kind() {
		case types.Boolean:
			return arrow.FixedWidthTypes.Boolean, nil
		case types.Int32:
			return arrow.PrimitiveTypes.Int32, nil
		case types.Int64:
			return arrow.PrimitiveTypes.Int64, nil
		case types.Float32:
			return arrow.PrimitiveTypes.Float32, nil
		case types.Float64:
			return arrow.PrimitiveTypes.Float64, nil
		case types.String:
			return arrow.BinaryTypes.String, nil
		case types.Binary:
			return arrow.BinaryTypes.Binary, nil
		case types.Date:
			return arrow.FixedWidthTypes.Date32, nil
		case types.Time:
			return arrow.FixedWidthTypes.Time64ns, nil
		case types.Timestamp:
			return arrow.FixedWidthTypes.Timestamp_ns, nil
		case types.TimestampTz:
			return arrow.FixedWidthTypes.Timestamp_ns, nil
		case types.UUID:
			return arrow.BinaryTypes.String, nil
		default:
			return nil, errors.Newf(ErrUnsupportedType, "unsupported primitive kind: %s", t.Kind())
		}
	case *types.Decimal:
		return &arrow.Decimal128Type{Precision: int32(t.Precision), Scale: int32(t.Scale)}, nil
	case *types.Fixed:
		return &arrow.FixedSizeBinaryType{ByteWidth: t.Length}, nil
	case *types.List:
		elem, err := toArrowType(t.ElementType)
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	case *types.Map:
		key, err := toArrowType(t.KeyType)
		if err != nil {
			return nil, err
		}
		val, err := toArrowType(t.ValueType)
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(key, val), nil
	case *types.Struct:
		fields := make([]arrow.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := toArrowType(f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, arrow.Field{Name: f.Name, Type: ft, Nullable: f.Nullable})
		}
		return arrow.StructOf(fields...), nil
	default:
		return nil, errors.Newf(ErrUnsupportedType, "unsupported data type: %T", dt)
	}
}
