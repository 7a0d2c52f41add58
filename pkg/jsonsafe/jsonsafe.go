// Package jsonsafe coerces arbitrary cell values into a strictly
// JSON-representable form. Normalize is total and idempotent: it never
// panics, and applying it twice yields the same value.
package jsonsafe

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// TimeLayout is the canonical string form for temporal values.
const TimeLayout = "2006-01-02 15:04:05"

// Normalize converts v into a JSON-safe value: nil, string, bool, int64,
// float64, map[string]any, or []any. Non-finite floats and unconvertible
// values collapse to nil rather than erroring.
func Normalize(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[fmt.Sprintf("%v", k)] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = Normalize(item)
		}
		return out
	case string:
		return value
	case bool:
		return value
	case int64:
		return value
	case int:
		return int64(value)
	case int8:
		return int64(value)
	case int16:
		return int64(value)
	case int32:
		return int64(value)
	case uint:
		return normalizeUint(uint64(value))
	case uint8:
		return int64(value)
	case uint16:
		return int64(value)
	case uint32:
		return int64(value)
	case uint64:
		return normalizeUint(value)
	case float64:
		return normalizeFloat(value)
	case float32:
		return normalizeFloat(float64(value))
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return value.String()
	case time.Time:
		return normalizeTime(value)
	case *time.Time:
		if value == nil {
			return nil
		}
		return normalizeTime(*value)
	case []byte:
		return string(value)
	case []string:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out
	case fmt.Stringer:
		return value.String()
	case error:
		return value.Error()
	default:
		return normalizeReflect(value)
	}
}

// normalizeReflect handles mapping and sequence kinds not covered by the
// concrete cases above, e.g. map[string]string or []int. Anything else
// collapses to its string form.
func normalizeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				key = fmt.Sprintf("%v", iter.Key().Interface())
			}
			out[key] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}

func normalizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func normalizeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(TimeLayout)
}
