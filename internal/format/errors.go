package format

import "github.com/lakestore/core/pkg/errors"

var (
	ErrUnsupportedFormat    = errors.MustNewCode("format.unsupported_format")
	ErrUnsupportedType      = errors.MustNewCode("format.unsupported_type")
	ErrUnsupportedCodec     = errors.MustNewCode("format.unsupported_codec")
	ErrInvalidCompressLevel = errors.MustNewCode("format.invalid_compression_level")
	ErrEncodeFailed         = errors.MustNewCode("format.encode_failed")
	ErrDecodeFailed         = errors.MustNewCode("format.decode_failed")
)
