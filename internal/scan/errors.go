package scan

import "github.com/lakestore/core/pkg/errors"

var (
	ErrNoSnapshot  = errors.MustNewCode("scan.no_snapshot")
	ErrReadFailed  = errors.MustNewCode("scan.read_failed")
	ErrInvalidScan = errors.MustNewCode("scan.invalid_options")
)
