package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// SafeAtoi parses a decimal integer, returning 0 for anything unparseable.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var leadingNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseHumanNumber converts abbreviated counters like "1.5K", "2M" or "42"
// into integers. Empty or non-numeric input yields 0.
func ParseHumanNumber(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Russian UI renders "1,5K" and "1 234".
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.Join(strings.Fields(s), "")

	token := leadingNumberRegex.FindString(s)
	if token == "" {
		return 0
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "B"):
		value *= 1e9
	case strings.Contains(upper, "M"):
		value *= 1e6
	case strings.Contains(upper, "K"):
		value *= 1e3
	}
	return int(math.Round(value))
}
