package types

import "github.com/lakestore/core/pkg/errors"

// Data type validation error codes.
var (
	ErrInvalidPrimitiveType         = errors.MustNewCode("types.invalid_primitive_type")
	ErrInvalidDecimalPrecision      = errors.MustNewCode("types.invalid_decimal_precision")
	ErrInvalidDecimalScale          = errors.MustNewCode("types.invalid_decimal_scale")
	ErrDecimalScaleExceedsPrecision = errors.MustNewCode("types.decimal_scale_exceeds_precision")
	ErrInvalidFixedLength           = errors.MustNewCode("types.invalid_fixed_length")

	ErrInvalidListElement  = errors.MustNewCode("types.invalid_list_element")
	ErrInvalidMapKeyType   = errors.MustNewCode("types.invalid_map_key_type")
	ErrInvalidMapValueType = errors.MustNewCode("types.invalid_map_value_type")
	ErrInvalidStructField  = errors.MustNewCode("types.invalid_struct_field")
	ErrDuplicateFieldID    = errors.MustNewCode("types.duplicate_field_id")
	ErrDuplicateFieldName  = errors.MustNewCode("types.duplicate_field_name")

	ErrTypeValidationFailed = errors.MustNewCode("types.validation_failed")
	ErrUnsupportedType      = errors.MustNewCode("types.unsupported_type")

	ErrPrimaryKeyNotInFields      = errors.MustNewCode("types.primary_key_not_in_fields")
	ErrPartitionKeyNotInFields    = errors.MustNewCode("types.partition_key_not_in_fields")
	ErrPrimaryKeyMissingPartition = errors.MustNewCode("types.primary_key_missing_partition_keys")
	ErrPrimaryKeyIsPartitionOnly  = errors.MustNewCode("types.primary_key_equals_partition_keys")
)

// errorsNew builds a *errors.Error tagged with the given code, attaching ctx
// as a "detail" context entry when non-empty.
func errorsNew(code errors.Code, message, ctx string) *errors.Error {
	e := errors.New(code, message, nil)
	if ctx != "" {
		e.AddContext("detail", ctx)
	}
	return e
}
