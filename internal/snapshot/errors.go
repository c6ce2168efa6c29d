package snapshot

import "github.com/lakestore/core/pkg/errors"

var (
	ErrWriteFailed = errors.MustNewCode("snapshot.write_failed")
	ErrReadFailed  = errors.MustNewCode("snapshot.read_failed")
	ErrNotFound    = errors.MustNewCode("snapshot.not_found")
	ErrCorruptHint = errors.MustNewCode("snapshot.corrupt_hint")
)
