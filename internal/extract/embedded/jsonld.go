package embedded

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONLD decodes every ld+json block of a document. Top-level arrays and
// @graph containers are flattened so each element is one schema.org node.
func JSONLD(doc *goquery.Document) []any {
	var out []any
	doc.Find("script[type*='ld+json']").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		v, ok := decodeLoose(raw)
		if !ok {
			return
		}
		out = append(out, flattenGraph(v)...)
	})
	return out
}

func flattenGraph(v any) []any {
	switch t := v.(type) {
	case []any:
		var out []any
		for _, item := range t {
			out = append(out, flattenGraph(item)...)
		}
		return out
	case map[string]any:
		graph, ok := t["@graph"].([]any)
		if !ok {
			return []any{t}
		}
		var out []any
		if _, typed := t["@type"]; typed {
			rest := make(map[string]any, len(t))
			for k, val := range t {
				if k != "@graph" {
					rest[k] = val
				}
			}
			out = append(out, rest)
		}
		for _, item := range graph {
			out = append(out, flattenGraph(item)...)
		}
		return out
	}
	return nil
}

// decodeLoose parses JSON that may carry raw control characters inside
// strings, which browsers accept in script blocks
func decodeLoose(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), ";")
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, true
	}
	return nil, false
}
