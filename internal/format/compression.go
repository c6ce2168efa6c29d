package format

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/lakestore/core/pkg/errors"
)

// Codec names recognized by the "file.compression" table option.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionGzip   = "gzip"
	CompressionZSTD   = "zstd"
	CompressionLZ4    = "lz4"
)

func codecFor(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip", "gz":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4, nil
	default:
		return compress.Codecs.Uncompressed, errors.New(ErrUnsupportedCodec, "unsupported compression codec", nil).
			AddContext("codec", name)
	}
}

// ValidateCompressionLevel checks the level bound for codecs that use one;
// codecs without a tunable level (snappy, lz4) ignore it.
func ValidateCompressionLevel(name string, level int) error {
	switch strings.ToLower(name) {
	case "gzip", "gz":
		if level < 1 || level > 9 {
			return errors.New(ErrInvalidCompressLevel, "gzip level must be in [1,9]", nil).AddContext("level", level)
		}
	case "zstd":
		if level < 1 || level > 22 {
			return errors.New(ErrInvalidCompressLevel, "zstd level must be in [1,22]", nil).AddContext("level", level)
		}
	}
	return nil
}
