package mergefunc

import (
	"fmt"

	"github.com/lakestore/core/pkg/errors"
)

// Aggregator names the per-field reduction Aggregate applies. Only Sum
// accepts retractions (a DELETE/UpdateBefore record feeding it back out);
// the others simply ignore retracted records.
type Aggregator string

const (
	AggSum               Aggregator = "sum"
	AggMin               Aggregator = "min"
	AggMax               Aggregator = "max"
	AggLastValue         Aggregator = "last_value"
	AggLastNonNullValue  Aggregator = "last_non_null_value"
	AggListAgg           Aggregator = "listagg"
	AggBoolAnd           Aggregator = "bool_and"
	AggBoolOr            Aggregator = "bool_or"
)

func ValidateAggregator(a Aggregator) error {
	switch a {
	case AggSum, AggMin, AggMax, AggLastValue, AggLastNonNullValue, AggListAgg, AggBoolAnd, AggBoolOr:
		return nil
	default:
		return errors.New(ErrUnknownAggregator, fmt.Sprintf("unknown aggregator %q", a), nil)
	}
}

// Aggregate applies one named aggregator per value field. Sum is the only
// associative-under-retraction aggregator in this set; every other
// aggregator silently drops retracted input, which is sound as long as
// compaction never reorders a retraction ahead of the value it retracts
// (guaranteed by sequence-ordered merging upstream).
type Aggregate struct {
	aggregators []Aggregator

	acc  []any
	init []bool
	seen bool
}

func NewAggregate(aggregators []Aggregator) *Aggregate {
	return &Aggregate{aggregators: aggregators}
}

func (a *Aggregate) Reset() {
	a.acc = make([]any, len(a.aggregators))
	a.init = make([]bool, len(a.aggregators))
	a.seen = false
}

func (a *Aggregate) Add(kv KeyValue) {
	a.seen = true
	retract := kv.IsRetract()
	for i, agg := range a.aggregators {
		if i >= len(kv.Value) {
			continue
		}
		v := kv.Value[i]
		if retract && agg != AggSum {
			continue
		}
		a.acc[i] = applyAggregator(agg, a.acc[i], a.init[i], v, retract)
		if v != nil || agg == AggLastValue {
			a.init[i] = true
		}
	}
}

func (a *Aggregate) GetResult() (KeyValue, bool) {
	if !a.seen {
		return KeyValue{}, false
	}
	return KeyValue{Kind: Insert, Value: append([]any(nil), a.acc...)}, true
}

func applyAggregator(agg Aggregator, acc any, accInit bool, v any, retract bool) any {
	switch agg {
	case AggSum:
		delta := toFloat(v)
		if retract {
			delta = -delta
		}
		if !accInit {
			return delta
		}
		return toFloat(acc) + delta
	case AggMin:
		if v == nil {
			return acc
		}
		if !accInit {
			return v
		}
		if compareScalars(v, acc) < 0 {
			return v
		}
		return acc
	case AggMax:
		if v == nil {
			return acc
		}
		if !accInit {
			return v
		}
		if compareScalars(v, acc) > 0 {
			return v
		}
		return acc
	case AggLastValue:
		return v
	case AggLastNonNullValue:
		if v == nil {
			return acc
		}
		return v
	case AggListAgg:
		if v == nil {
			return acc
		}
		s := fmt.Sprint(v)
		if !accInit {
			return s
		}
		return acc.(string) + "," + s
	case AggBoolAnd:
		if v == nil {
			return acc
		}
		b := v.(bool)
		if !accInit {
			return b
		}
		return acc.(bool) && b
	case AggBoolOr:
		if v == nil {
			return acc
		}
		b := v.(bool)
		if !accInit {
			return b
		}
		return acc.(bool) || b
	default:
		return acc
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
