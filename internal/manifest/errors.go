package manifest

import "github.com/lakestore/core/pkg/errors"

var (
	ErrWriteFailed    = errors.MustNewCode("manifest.write_failed")
	ErrReadFailed     = errors.MustNewCode("manifest.read_failed")
	ErrUnknownKind    = errors.MustNewCode("manifest.unknown_kind")
	ErrChecksumFailed = errors.MustNewCode("manifest.checksum_failed")
)
