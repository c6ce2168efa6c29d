package config

import "github.com/lakestore/core/pkg/errors"

var (
	ErrInvalidOption = errors.MustNewCode("config.invalid_option")
	ErrParseFailed   = errors.MustNewCode("config.parse_failed")
)
