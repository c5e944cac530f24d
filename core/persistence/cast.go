package persistence

import "time"

// Cast converts the portable subset every backend shares: time values become
// TimeFormat strings, maps and slices are converted element by element.
// Other values pass unchanged.
func Cast(value any, native func(any) (any, bool)) any {
	if native != nil {
		if v, ok := native(value); ok {
			return v
		}
	}
	switch v := value.(type) {
	case time.Time:
		return FormatTime(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return FormatTime(*v)
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, e := range v {
			result[k] = Cast(e, native)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, e := range v {
			result[i] = Cast(e, native)
		}
		return result
	}
	return value
}
