package schema

import "github.com/lakestore/core/pkg/errors"

var (
	ErrWriteFailed      = errors.MustNewCode("schema.write_failed")
	ErrReadFailed       = errors.MustNewCode("schema.read_failed")
	ErrNotFound         = errors.MustNewCode("schema.not_found")
	ErrAlreadyExists    = errors.MustNewCode("schema.already_exists")
	ErrInvalidChange    = errors.MustNewCode("schema.invalid_change")
	ErrUnknownColumn    = errors.MustNewCode("schema.unknown_column")
	ErrColumnExists     = errors.MustNewCode("schema.column_exists")
	ErrIncompatibleCast = errors.MustNewCode("schema.incompatible_cast")
)

func errorsSchema(code errors.Code, message string, cause error) *errors.Error {
	return errors.New(code, message, cause)
}
