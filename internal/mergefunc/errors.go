package mergefunc

import "github.com/lakestore/core/pkg/errors"

var (
	ErrUnknownEngine     = errors.MustNewCode("mergefunc.unknown_engine")
	ErrUnknownAggregator = errors.MustNewCode("mergefunc.unknown_aggregator")
	ErrNotAssociative    = errors.MustNewCode("mergefunc.not_associative")
)
