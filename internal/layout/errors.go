package layout

import "github.com/lakestore/core/pkg/errors"

var ErrInvalidBucket = errors.MustNewCode("layout.invalid_bucket")

// ValidateBucket checks that a bucket number parsed from a directory name
// (or about to be used to build one) is non-negative.
func ValidateBucket(bucket int) error {
	if bucket < 0 {
		return errors.New(ErrInvalidBucket, "bucket number must be non-negative", nil).
			AddContext("bucket", bucket)
	}
	return nil
}
