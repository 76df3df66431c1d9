package textutil

import (
	"regexp"
	"strings"
)

const maxMatches = 20

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{1,4}(?:[-.\s]?\d{2,4}){2,4}\b`),
	}

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?`),
		regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d{1,2})?\s?(?:USD|dollars?)\b`),
		regexp.MustCompile(`(?:Rs\.?|₹)\s?\d[\d,]*(?:\.\d{1,2})?`),
		regexp.MustCompile(`€\s?\d[\d,]*(?:[.,]\d{1,2})?`),
		regexp.MustCompile(`£\s?\d[\d,]*(?:\.\d{1,2})?`),
	}

	ratingPattern = regexp.MustCompile(`(?i)\b(\d(?:[.,]\d)?)\s?(?:/\s?5|out of 5|stars?)\b`)

	priceTierPattern = regexp.MustCompile(`[$€£]{1,4}`)
)

// Emails returns the distinct email addresses in s, in order of appearance
func Emails(s string) []string {
	return distinct(emailPattern.FindAllString(s, -1))
}

// Phones returns the distinct phone numbers in s, US formats first
func Phones(s string) []string {
	var all []string
	for _, re := range phonePatterns {
		for _, m := range re.FindAllString(s, -1) {
			digits := countDigits(m)
			if digits >= 10 && digits <= 15 {
				all = append(all, strings.TrimSpace(m))
			}
		}
	}
	return distinct(all)
}

// Prices returns the distinct price mentions in s with their currency text
func Prices(s string) []string {
	var all []string
	for _, re := range pricePatterns {
		for _, m := range re.FindAllString(s, -1) {
			all = append(all, strings.TrimSpace(m))
		}
	}
	return distinct(all)
}

// Ratings returns the distinct "4.5/5" or "4 stars" style ratings in s
func Ratings(s string) []float64 {
	var out []float64
	seen := map[float64]bool{}
	for _, m := range ratingPattern.FindAllStringSubmatch(s, -1) {
		if v, ok := ParseRating(m[1]); ok && v <= 5 && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
		if len(out) >= maxMatches {
			break
		}
	}
	return out
}

// PriceTier extracts a "$$" style marker from s
func PriceTier(s string) string {
	return priceTierPattern.FindString(s)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func distinct(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= maxMatches {
			break
		}
	}
	return out
}
