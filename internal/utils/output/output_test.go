package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/law-makers/harvest/pkg/models"
)

func TestFlatten(t *testing.T) {
	rec := models.Record{
		"url":     "https://example.com/joes",
		"name":    "Joe's",
		"rating":  4.5,
		"cuisine": []any{"Pizza", "Italian"},
		"address_parts": map[string]any{
			"city":  "New York",
			"state": "NY",
		},
		"hours": []any{
			map[string]any{"day": "Monday", "opens": "11:00"},
			map[string]any{"day": "Tuesday", "opens": "12:00"},
		},
		"empty": []any{},
	}

	flat := Flatten(rec)
	want := map[string]string{
		"url":                 "https://example.com/joes",
		"name":                "Joe's",
		"rating":              "4.5",
		"cuisine":             "Pizza; Italian",
		"address_parts.city":  "New York",
		"address_parts.state": "NY",
		"hours.0.day":         "Monday",
		"hours.0.opens":       "11:00",
		"hours.1.day":         "Tuesday",
		"hours.1.opens":       "12:00",
	}
	if len(flat) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(flat), flat)
	}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, flat[k])
		}
	}
}

func TestWriteCSVUnionOfKeys(t *testing.T) {
	records := []models.Record{
		{"url": "https://a.com/1", "name": "A"},
		{"url": "https://a.com/2", "phone": "555-0100"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rows[0], ",") != "url,name,phone" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[2][1] != "" || rows[2][2] != "555-0100" {
		t.Errorf("unexpected second row %v", rows[2])
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMarkdown(&buf, []models.Record{{"url": "https://a.com/1", "name": "A | B"}})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `## 1. A \| B`) {
		t.Errorf("missing escaped heading in %q", out)
	}
	if !strings.Contains(out, "| url | https://a.com/1 |") {
		t.Errorf("missing url row in %q", out)
	}
}

func TestToMarkdownResolvesLinks(t *testing.T) {
	got, err := ToMarkdown("https://example.com/menu/", `<nav><a href="/">Home</a></nav><h2>Dinner</h2><p>See <a href="wine">wine list</a></p><script>x()</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "[wine list](https://example.com/menu/wine)") {
		t.Errorf("link not resolved: %q", got)
	}
	if strings.Contains(got, "Home") || strings.Contains(got, "x()") {
		t.Errorf("chrome or script leaked: %q", got)
	}
}
