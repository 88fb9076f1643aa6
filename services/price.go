package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizePrice turns locale-ambiguous price text such as "1.234,56 €",
// "$1,234.56" or "23.911" into a decimal. It never fails: text with no
// recoverable number yields zero, which callers treat as "price unknown".
func NormalizePrice(raw string) decimal.Decimal {
	s := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if s == "" {
		return decimal.Zero
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case commas == 1 && commaIsDecimal(s, dots, lastDot, lastComma):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commas == 0 && dotsAreGrouping(s, dots, lastDot):
		s = strings.ReplaceAll(s, ".", "")
	case dots == 0 && commas == 0:
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// commaIsDecimal decides a lone comma. Two trailing digits, or a comma after
// the last dot, mark a decimal comma. A dotless comma with three trailing
// digits ("1,000") is read as a thousands group.
func commaIsDecimal(s string, dots, lastDot, lastComma int) bool {
	after := len(s) - lastComma - 1
	if after == 2 {
		return true
	}
	if dots == 0 && after == 3 {
		return false
	}
	return lastComma > lastDot
}

// dotsAreGrouping reports whether dots in a comma-free number only group
// thousands, as in "23.911", "1.000" or "1.234.567".
func dotsAreGrouping(s string, dots, lastDot int) bool {
	if dots > 1 {
		return true
	}
	if dots == 1 {
		return len(s)-lastDot-1 == 3 || strings.HasSuffix(s, "000")
	}
	return false
}
