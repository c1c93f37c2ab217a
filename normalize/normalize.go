// Package normalize parses Dutch-formatted prices, mileages and years
// out of free-form listing text.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Build years below 1980 are almost always oldtimers or typos, not the
// small hatchbacks this pipeline trades in.
const minYear = 1980

var (
	yearRegex  = regexp.MustCompile(`\b(19[89]\d|20\d{2})\b`)
	digitRegex = regexp.MustCompile(`\d`)
)

// ParsePrice parses a Dutch/European price string like "€ 12.500,00" or
// "€2.900,-". Returns false when no usable amount is present.
func ParsePrice(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "eur", "")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",-")
	s = strings.TrimSuffix(s, ".-")
	s = strings.ReplaceAll(s, " ", "")

	if !digitRegex.MatchString(s) {
		return 0, false
	}

	// Keep only digits and separators
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return 0, false
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	switch {
	case hasDot && hasComma:
		// Dutch convention: dot is thousands, comma is decimal
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasDot:
		// "2.900" is thousands, "29.5" is a decimal
		idx := strings.LastIndex(s, ".")
		if len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	case hasComma:
		// "2900,50" is a decimal, "2,900" is thousands
		idx := strings.LastIndex(s, ",")
		if len(s)-idx-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseMileage strips km suffixes and separators: "125.000 km" -> 125000.
func ParseMileage(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}

	v, err := strconv.Atoi(b.String())
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseYear finds the first plausible 4-digit build year in s.
func ParseYear(s string) (int, bool) {
	maxYear := time.Now().Year() + 1
	for _, match := range yearRegex.FindAllString(s, -1) {
		y, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if y >= minYear && y <= maxYear {
			return y, true
		}
	}
	return 0, false
}
