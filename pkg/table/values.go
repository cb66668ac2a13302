package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize converts v to the canonical Go type stored for kind:
// int64, float64, string, bool or time.Time. nil (and NaN for floats)
// is the null marker.
func Normalize(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInt:
		switch val := v.(type) {
		case int64:
			return val, nil
		case int:
			return int64(val), nil
		case int8:
			return int64(val), nil
		case int16:
			return int64(val), nil
		case int32:
			return int64(val), nil
		case uint8:
			return int64(val), nil
		case uint16:
			return int64(val), nil
		case uint32:
			return int64(val), nil
		case float64:
			if math.IsNaN(val) {
				return nil, nil
			}
			if val == math.Trunc(val) && !math.IsInf(val, 0) {
				return int64(val), nil
			}
		}
	case KindFloat:
		var f float64
		switch val := v.(type) {
		case float64:
			f = val
		case float32:
			f = float64(val)
		case int64:
			f = float64(val)
		case int:
			f = float64(val)
		case int32:
			f = float64(val)
		default:
			return nil, fmt.Errorf("%w: %T is not a float", ErrTypeMismatch, v)
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, kind)
}

// Compare orders two non-null values of compatible kinds. Ints and
// floats compare numerically.
func Compare(a, b any) int {
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv)
		case float64:
			return cmpOrdered(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpOrdered(av, bv)
		case int64:
			return cmpOrdered(av, float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CompareNullsLast orders values with nulls after every non-null value.
func CompareNullsLast(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return Compare(a, b)
}

// Equal reports whether two non-null values are equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return Compare(a, b) == 0
}

// FormatValue renders a value the way it appears in keys, pivoted
// column names and text output. Null renders as the empty string.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// Key builds a hashable key for a tuple of values. Nulls get a
// dedicated marker so that they compare equal to each other.
func Key(vals ...any) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteByte(0)
		}
		switch val := v.(type) {
		case nil:
			sb.WriteString("\x01")
		case int64:
			sb.WriteString("i")
			sb.WriteString(strconv.FormatInt(val, 10))
		case float64:
			if val == 0 {
				val = 0 // -0 and 0 share a key
			}
			sb.WriteString("f")
			sb.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		case string:
			sb.WriteString("s")
			sb.WriteString(val)
		case bool:
			sb.WriteString("b")
			sb.WriteString(strconv.FormatBool(val))
		case time.Time:
			sb.WriteString("t")
			sb.WriteString(strconv.FormatInt(val.UnixNano(), 10))
		default:
			sb.WriteString(fmt.Sprint(val))
		}
	}
	return sb.String()
}
