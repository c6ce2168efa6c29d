package table

import "github.com/lakestore/core/pkg/errors"

var (
	ErrConfigInvalid  = errors.MustNewCode("table.config_invalid")
	ErrSchemaMismatch = errors.MustNewCode("table.schema_mismatch")
	ErrWriteFailed    = errors.MustNewCode("table.write_failed")
	ErrReadFailed     = errors.MustNewCode("table.read_failed")
	ErrUnknownColumn  = errors.MustNewCode("table.unknown_column")
)
