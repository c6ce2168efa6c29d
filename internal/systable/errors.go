package systable

import "github.com/lakestore/core/pkg/errors"

var (
	ErrUnknownTable = errors.MustNewCode("systable.unknown_table")
	ErrReadFailed   = errors.MustNewCode("systable.read_failed")
)

func errReadFailed(msg string, cause error) error {
	return errors.New(ErrReadFailed, msg, cause)
}
