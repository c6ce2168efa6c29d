package enumerator

import "github.com/lakestore/core/pkg/errors"

var (
	ErrNoSnapshot = errors.MustNewCode("enumerator.no_snapshot")
	ErrReadFailed = errors.MustNewCode("enumerator.read_failed")
)
