// Package core provides amount parsing and formatting utilities.
//
// Amounts are integers in the smallest unit of whatever currency the user
// keeps their books in. There is no fractional part.
package core

import (
	"strconv"
	"strings"
)

const maxAmount = 1<<63 - 1

// ParseAmount converts a user-entered amount to an int64.
//
// It accepts plain digits and digits grouped in threes by ',', '.', '_' or
// spaces. The grouping separator must be consistent and every group after the
// first must have exactly three digits, which keeps "12.50" from silently
// becoming 1250.
//
// Examples:
//
//	ParseAmount("100000")  -> 100000, nil
//	ParseAmount("100,000") -> 100000, nil
//	ParseAmount("1.250.000") -> 1250000, nil
//	ParseAmount("12.50")   -> error
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, InvalidField("amount", "is required")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, InvalidField("amount", "must be a positive whole number")
	}

	sep := rune(0)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		switch r {
		case ',', '.', '_', ' ':
			if sep != 0 && sep != r {
				return 0, InvalidField("amount", "mixes grouping separators")
			}
			sep = r
		default:
			return 0, InvalidField("amount", "must be a positive whole number")
		}
	}

	digits := s
	if sep != 0 {
		groups := strings.Split(s, string(sep))
		if len(groups[0]) == 0 || len(groups[0]) > 3 {
			return 0, InvalidField("amount", "has malformed digit grouping")
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return 0, InvalidField("amount", "has malformed digit grouping")
			}
		}
		digits = strings.Join(groups, "")
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, InvalidField("amount", "is out of range")
	}
	if v <= 0 {
		return 0, InvalidField("amount", "must be greater than zero")
	}
	return v, nil
}

// FormatAmount renders an amount with ',' thousands separators, e.g. 1250000 -> "1,250,000".
func FormatAmount(v int64) string {
	neg := v < 0
	if neg {
		if v == -maxAmount-1 {
			return "-9,223,372,036,854,775,808"
		}
		v = -v
	}
	raw := strconv.FormatInt(v, 10)
	var b strings.Builder
	lead := len(raw) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(raw[:lead])
	for i := lead; i < len(raw); i += 3 {
		b.WriteByte(',')
		b.WriteString(raw[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
