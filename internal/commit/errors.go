package commit

import "github.com/lakestore/core/pkg/errors"

var (
	ErrConflict       = errors.MustNewCode("commit.conflict")
	ErrFatalConflict  = errors.MustNewCode("commit.fatal_conflict")
	ErrRetryExhausted = errors.MustNewCode("commit.retry_exhausted")
	ErrSchemaMismatch = errors.MustNewCode("commit.schema_mismatch")
	ErrWriteFailed    = errors.MustNewCode("commit.write_failed")
	ErrLockFailed     = errors.MustNewCode("commit.lock_failed")
)
