package ui

import (
	"strings"
	"testing"
)

func withColor(t *testing.T, on bool) {
	t.Helper()
	prev := colorOn
	SetColor(on)
	t.Cleanup(func() { SetColor(prev) })
}

func TestPaintDisabled(t *testing.T) {
	withColor(t, false)
	if got := Bold("job"); got != "job" {
		t.Fatalf("Bold with color off = %q", got)
	}
	if got := Status("failed"); got != "failed" {
		t.Fatalf("Status with color off = %q", got)
	}
	if got := Rule(3); got != "━━━" {
		t.Fatalf("Rule(3) = %q", got)
	}
}

func TestPaintEnabled(t *testing.T) {
	withColor(t, true)
	got := Paint("x", Strong, Cyan)
	if got != string(Strong)+string(Cyan)+"x"+string(Reset) {
		t.Fatalf("Paint = %q", got)
	}
	if Paint("", Red) != "" {
		t.Fatal("empty string should stay empty")
	}
}

func TestStatus(t *testing.T) {
	withColor(t, true)
	cases := map[string]Style{
		"completed":   Green,
		"done":        Green,
		"failed":      Red,
		"timed-out":   Red,
		"running":     Yellow,
		"in-progress": Yellow,
	}
	for status, want := range cases {
		if got := Status(status); !strings.HasPrefix(got, string(want)) {
			t.Errorf("Status(%q) = %q, want prefix %q", status, got, want)
		}
	}
	if got := Status("pending"); got != "pending" {
		t.Errorf("Status(pending) = %q, want plain", got)
	}
}
