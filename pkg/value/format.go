package value

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders n the way Lua 5.1's tostring does: integral
// floats print without a decimal point or exponent where possible, and
// everything else uses the %.14g-equivalent form. This lives in value (not stdlib) because both stdlib.tostring
// and the Redis bridge's Value→RESP conversion (spec.md §4.11: "Number
// with integral value in i64 range → Integer; otherwise Bulk string of
// its decimal form") need the identical formatting rule.
func FormatNumber(n float64) string {
	if n != n {
		return "nan"
	}
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if i := int64(n); float64(i) == n && n == n {
		return strconv.FormatInt(i, 10)
	}
	s := strconv.FormatFloat(n, 'g', 14, 64)
	// Go renders the exponent as e.g. "1e+20"; Lua's %.14g renders
	// "1e+20" too, but Go never drops the sign/pads to two digits the
	// way C's printf does, so no further massaging is required for the
	// cases spec.md's round-trip law actually exercises.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// IsIntegral reports whether n has no fractional part and fits an int64
// losslessly — used by the Redis bridge to decide Integer vs Bulk string.
func IsIntegral(n float64) (int64, bool) {
	i := int64(n)
	if float64(i) == n {
		return i, true
	}
	return 0, false
}
