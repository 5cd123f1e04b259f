package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// parseNumber converts a lexer NUMBER literal (decimal, hex, or float
// with optional exponent) into a float64, matching Lua 5.1's numeral
// grammar where every number is a double regardless of literal form.
func parseNumber(lit string) (float64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		hexDigits := lit[2:]
		if hexDigits == "" {
			return 0, fmt.Errorf("malformed number near '%s'", lit)
		}
		n, err := strconv.ParseUint(hexDigits, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed number near '%s'", lit)
		}
		return float64(n), nil
	}
	n, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number near '%s'", lit)
	}
	return n, nil
}
