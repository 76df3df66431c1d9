package textutil

import "testing"

func TestNormalize(t *testing.T) {
	got := Normalize("  Joe's \n\t Pizza   Place ")
	if got != "Joe's Pizza Place" {
		t.Errorf("unexpected %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	got := Truncate("café crème", 4)
	if got != "café" {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
	if Truncate("short", 100) != "short" {
		t.Error("short strings must be untouched")
	}
}

func TestParseRating(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4.5 stars", 4.5, true},
		{"Rated 4,5 / 5", 4.5, true},
		{"4 out of 5", 4, true},
		{"4.5 (1,234 reviews)", 4.5, true},
		{"4,500", 0, false},
		{"1.234,5", 0, false},
		{"no rating yet", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseRating(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseRating(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1,234 reviews", 1234, true},
		{"(87)", 87, true},
		{"1.234.567", 1234567, true},
		{"12345 ratings", 12345, true},
		{"4.5", 0, false},
		{"12,34", 0, false},
		{"none", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseCount(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseCount(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsPriceLevel(t *testing.T) {
	if !IsPriceLevel("$$") || !IsPriceLevel(" €€€ ") {
		t.Error("expected tier markers to match")
	}
	if IsPriceLevel("$25") {
		t.Error("a price is not a tier marker")
	}
}
