package mergefunc

import (
	"strings"
	"time"
)

// compareScalars orders two values of the same underlying type, the
// building block CompareKeys uses for composite primary keys and Aggregate
// uses for min/max.
func compareScalars(a, b any) int {
	switch x := a.(type) {
	case int:
		return compareOrdered(x, toInt(b))
	case int32:
		return compareOrdered(int64(x), toInt(b))
	case int64:
		return compareOrdered(x, toInt(b))
	case float32:
		return compareOrdered(float64(x), toFloat(b))
	case float64:
		return compareOrdered(x, toFloat(b))
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case bool:
		y, _ := b.(bool)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	case time.Time:
		y, _ := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// CompareKeys orders two composite keys position by position, the first
// non-equal position deciding the result. Shorter keys sort before longer
// ones that share a common prefix.
func CompareKeys(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareScalars(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
