package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// canonical enum values keyed by their lower-cased variants.
var (
	planNames = map[string]string{
		"basic":      "Basic",
		"standard":   "Standard",
		"pro":        "Pro",
		"enterprise": "Enterprise",
	}
	billingStates = map[string]string{
		"active":    "Active",
		"past due":  "Past Due",
		"past_due":  "Past Due",
		"pastdue":   "Past Due",
		"cancelled": "Cancelled",
		"canceled":  "Cancelled",
	}
	paymentFrequencies = map[string]string{
		"monthly":  "Monthly",
		"month":    "Monthly",
		"yearly":   "Yearly",
		"annual":   "Yearly",
		"annually": "Yearly",
		"year":     "Yearly",
	}
)

// parseNumber parses a plain or thousands-separated decimal number ("1,234.5").
func parseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", "")
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceCount converts a cell to an integer count. Fractions truncate toward zero.
// ok is false when a non-null value could not be parsed; the result is then 0.
func coerceCount(v any) (n int64, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return countFromFloat(x)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, true
		}
		f, ok := parseNumber(x)
		if !ok {
			return 0, false
		}
		return countFromFloat(f)
	default:
		return 0, false
	}
}

// countFromFloat truncates f to an int64. Non-finite values and values
// outside the int64 range are coercion failures.
func countFromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 0x1p63 {
		return 0, false
	}
	return int64(f), true
}

// parseCurrency strips currency symbols and thousands separators ("$1,234.50").
func parseCurrency(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		raw := strings.TrimSpace(x)
		for _, sym := range []string{"$", "€", "£", "USD", "usd"} {
			raw = strings.ReplaceAll(raw, sym, "")
		}
		if raw == "" {
			return 0, true
		}
		return parseNumber(raw)
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	"2006-01-02", time.RFC3339, "2006/01/02", "01/02/2006", "1/2/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05.999999999-07:00",
}

// parseDate returns the calendar date of a cell, or false when it is unparseable.
func parseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return truncateDay(x), true
	case string:
		s := strings.TrimSpace(x)
		for _, l := range dateLayouts {
			if t, err := time.Parse(l, s); err == nil {
				return truncateDay(t), true
			}
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseFlag converts a truthy cell to bool. Null and unrecognized text are false.
func parseFlag(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "true", "t", "yes", "y", "on":
			return true
		case "", "false", "f", "no", "n", "off":
			return false
		}
		if f, ok := parseNumber(s); ok {
			return f != 0
		}
	}
	return false
}

// canonicalize maps a text cell through variants (matched case-insensitively).
// Unrecognized values are returned unchanged.
func canonicalize(v any, variants map[string]string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if c, ok := variants[key]; ok {
		return c
	}
	if c, ok := variants[strings.TrimSuffix(key, " plan")]; ok {
		return c
	}
	return v
}

// CanonicalPlan returns the canonical plan name for a case-insensitive variant.
func CanonicalPlan(s string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := planNames[key]; ok {
		return c, true
	}
	return s, false
}
