package mergefunc

import (
	"fmt"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/pkg/errors"
)

// Spec carries what a Factory needs beyond the bare MergeEngine name:
// Aggregate needs one Aggregator per value field, PartialUpdate needs the
// value field count and its delete policy.
type Spec struct {
	Engine          config.MergeEngine
	NumValueFields  int
	Aggregators     []Aggregator
	IgnoreDeletePartialUpdate bool
}

// New builds the MergeFunction a table's configured merge engine requires.
func New(spec Spec) (MergeFunction, error) {
	switch spec.Engine {
	case config.MergeDedup:
		return NewDeduplicate(), nil
	case config.MergeFirstRow:
		return NewFirstRow(), nil
	case config.MergePartialUpdate:
		return NewPartialUpdate(spec.NumValueFields, spec.IgnoreDeletePartialUpdate), nil
	case config.MergeAggregate:
		for _, a := range spec.Aggregators {
			if err := ValidateAggregator(a); err != nil {
				return nil, err
			}
		}
		return NewAggregate(spec.Aggregators), nil
	default:
		return nil, errors.New(ErrUnknownEngine, fmt.Sprintf("unknown merge engine %q", spec.Engine), nil)
	}
}
