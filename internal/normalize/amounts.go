package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyNoise = regexp.MustCompile(`[$€£,\s]`)

// ParseAmount coerces a currency-formatted source value to a decimal. It
// tolerates symbols, thousands separators, accounting parentheses, and
// trailing minus signs. The bool reports whether a numeric value was found.
func ParseAmount(raw string, pattern *regexp.Regexp) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, false
	}

	if pattern != nil {
		m := pattern.FindStringSubmatch(value)
		if m == nil {
			return decimal.Zero, false
		}
		if len(m) > 1 {
			value = m[1]
		} else {
			value = m[0]
		}
	}

	negative := false
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		negative = true
		value = value[1 : len(value)-1]
	}
	if strings.HasSuffix(value, "-") {
		negative = true
		value = strings.TrimSuffix(value, "-")
	}

	value = currencyNoise.ReplaceAllString(value, "")
	if value == "" || value == "-" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ParsePercent coerces a split percentage to the 0..100 range. Accepts
// "43", "43%", and "43.5". The bool reports whether a value was found.
func ParsePercent(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if value == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseTriState interprets a source shared-flag value. Absent or
// unrecognized values stay unknown.
func ParseTriState(raw string) TriState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "x", "shared":
		return FlagTrue
	case "false", "no", "n", "0", "individual", "personal":
		return FlagFalse
	default:
		return FlagUnknown
	}
}
