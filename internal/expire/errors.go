package expire

import "github.com/lakestore/core/pkg/errors"

var (
	ErrNoRetainedSnapshot = errors.MustNewCode("expire.no_retained_snapshot")
	ErrReadFailed         = errors.MustNewCode("expire.read_failed")
	ErrPartitionPattern   = errors.MustNewCode("expire.partition_pattern")
)
