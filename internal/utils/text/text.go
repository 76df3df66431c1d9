// Package textutil normalizes scraped text and parses numbers out of it
// only when the reading is unambiguous.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps applied to extracted text
const (
	MaxFullText    = 10000
	MaxMainContent = 5000
	MaxCodeBlock   = 500
)

// Normalize collapses runs of whitespace into single spaces and trims
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes without splitting a character
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Clean normalizes and truncates in one step
func Clean(s string, max int) string {
	return Truncate(Normalize(s), max)
}

// WordCount counts whitespace separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

var numberToken = regexp.MustCompile(`\d[\d.,\s]*\d|\d`)

// ParseRating reads the first decimal number in s ("4.5 stars", "4,5/5").
// A comma followed by exactly three digits could be a thousands separator
// and is rejected as ambiguous.
func ParseRating(s string) (float64, bool) {
	tok := firstToken(s)
	if tok == "" {
		return 0, false
	}
	tok = strings.Fields(tok)[0]

	dots := strings.Count(tok, ".")
	commas := strings.Count(tok, ",")
	switch {
	case dots == 0 && commas == 0:
	case dots == 1 && commas == 0:
	case dots == 0 && commas == 1:
		idx := strings.IndexByte(tok, ',')
		if len(tok)-idx-1 == 3 {
			return 0, false
		}
		tok = strings.Replace(tok, ",", ".", 1)
	default:
		return 0, false
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseCount reads the first integer in s ("1,234 reviews", "1.234",
// "(87)"). Separators must split the number into groups of three digits,
// otherwise the value is ambiguous and rejected.
func ParseCount(s string) (int, bool) {
	tok := firstToken(s)
	if tok == "" {
		return 0, false
	}

	groups := strings.FieldsFunc(tok, func(r rune) bool {
		return r == ',' || r == '.' || unicode.IsSpace(r)
	})
	if len(groups) == 0 {
		return 0, false
	}
	for i, g := range groups {
		if i > 0 && len(g) != 3 {
			return 0, false
		}
		if i == 0 && (len(g) > 3 && len(groups) > 1) {
			return 0, false
		}
	}

	v, err := strconv.Atoi(strings.Join(groups, ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

// firstToken returns the first run of digits and separators, trimmed of
// trailing separators
func firstToken(s string) string {
	tok := numberToken.FindString(s)
	return strings.TrimRight(tok, "., ")
}

var priceLevel = regexp.MustCompile(`^[$€£¥₹]{1,4}$`)

// IsPriceLevel reports whether s is a bare tier marker like "$$"
func IsPriceLevel(s string) bool {
	return priceLevel.MatchString(strings.TrimSpace(s))
}

// FirstNonEmpty returns the first argument that is not blank
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
