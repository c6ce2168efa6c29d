package read

import "github.com/lakestore/core/pkg/errors"

var (
	ErrOpenFailed       = errors.MustNewCode("read.open_failed")
	ErrReadFailed       = errors.MustNewCode("read.read_failed")
	ErrUnsupportedShape = errors.MustNewCode("read.unsupported_shape")
)
