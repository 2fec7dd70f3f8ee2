package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberToken = regexp.MustCompile(`-?\d[\d.,]*`)

// ParseNumber reads a locale-formatted number out of free text, such as
// "R$ 1.234,56", "1,234.56", "85 m²" or "120". ok is false when s carries no
// number at all.
//
// Separator rules: when both '.' and ',' appear the last one is the decimal
// separator. A single separator followed by exactly three digits is a
// thousands separator unless the integer part is 0. A separator repeated more
// than once is always a thousands separator.
func ParseNumber(s string) (float64, bool) {
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	tok = strings.TrimRight(tok, ".,")

	neg := strings.HasPrefix(tok, "-")
	tok = strings.TrimPrefix(tok, "-")

	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')

	var digits string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec, thou := ".", ","
		if lastComma > lastDot {
			dec, thou = ",", "."
		}
		digits = strings.ReplaceAll(tok, thou, "")
		digits = strings.Replace(digits, dec, ".", 1)
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		idx := lastDot
		if lastComma >= 0 {
			sep, idx = ",", lastComma
		}
		switch {
		case strings.Count(tok, sep) > 1:
			digits = strings.ReplaceAll(tok, sep, "")
		case len(tok)-idx-1 == 3 && tok[:idx] != "0":
			digits = strings.Replace(tok, sep, "", 1)
		default:
			digits = strings.Replace(tok, sep, ".", 1)
		}
	default:
		digits = tok
	}

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// ParseCount reads a room or parking count, rounding fractional values.
func ParseCount(s string) (int, bool) {
	v, ok := ParseNumber(s)
	if !ok || v < 0 {
		return 0, false
	}
	return int(math.Round(v)), true
}

// ParseBool reads the yes/no spellings found in feeds.
func ParseBool(s string) (value bool, ok bool) {
	switch Fold(s) {
	case "1", "true", "sim", "s", "yes", "y":
		return true, true
	case "0", "false", "nao", "n", "no":
		return false, true
	}
	return false, false
}
