// Package estimate parses free-form revenue strings and computes
// employee/revenue totals over a scope of business records.
package estimate

import (
	"math"
	"strconv"
	"strings"
)

// revenueMultipliers maps a trailing magnitude suffix to its multiplier.
var revenueMultipliers = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// ParseAmount converts a revenue string such as "$5M" or "1,106,000" into
// dollars. Currency symbols and thousands separators are ignored; a
// trailing K, M or B scales the value. Empty or unparseable input yields 0.
func ParseAmount(text string) float64 {
	if text == "" {
		return 0
	}

	clean := strings.NewReplacer("$", "", ",", "").Replace(text)
	clean = strings.ToUpper(strings.TrimSpace(clean))
	if clean == "" {
		return 0
	}

	multiplier := 1.0
	if m, ok := revenueMultipliers[clean[len(clean)-1]]; ok {
		multiplier = m
	}

	// Suffix letters are dropped wherever they appear, then the longest
	// numeric prefix is parsed.
	numPart := strings.Map(func(r rune) rune {
		switch r {
		case 'K', 'M', 'B':
			return -1
		}
		return r
	}, clean)

	n, ok := LeadingFloat(numPart)
	if !ok {
		return 0
	}
	return n * multiplier
}

// FormatAmount renders dollars compactly: "$1.2B", "$5.0M", "$12k" or the
// raw number below one thousand.
func FormatAmount(n float64) string {
	switch {
	case n >= 1e9:
		return "$" + toFixed(n/1e9, 1) + "B"
	case n >= 1e6:
		return "$" + toFixed(n/1e6, 1) + "M"
	case n >= 1e3:
		return "$" + toFixed(n/1e3, 0) + "k"
	default:
		return "$" + strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// toFixed rounds half away from zero before formatting so ties such as
// 2.5k render as "3".
func toFixed(n float64, digits int) string {
	pow := math.Pow(10, float64(digits))
	return strconv.FormatFloat(math.Round(n*pow)/pow, 'f', digits, 64)
}

// LeadingFloat parses the longest prefix of s that forms a decimal number,
// after skipping leading whitespace.
func LeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := 0
	for end < len(s) && isDigit(s[end]) {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && isDigit(s[end]) {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	// Optional exponent, only consumed when complete.
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		start := exp
		for exp < len(s) && isDigit(s[exp]) {
			exp++
		}
		if exp > start {
			end = exp
		}
	}

	n, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
