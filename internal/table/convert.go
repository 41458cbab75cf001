package table

import (
	"strconv"
	"strings"
)

// Float reads a numeric cell. Strings are parsed; bools map to 0/1; nil is not numeric.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case []byte:
		return Float(string(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FloatOr reads a numeric cell, returning def when the cell is null or not numeric.
func FloatOr(v any, def float64) float64 {
	if f, ok := Float(v); ok {
		return f
	}
	return def
}

// String reads a text cell; nil yields "".
func String(v any) string {
	if v == nil {
		return ""
	}
	return Format(v)
}
