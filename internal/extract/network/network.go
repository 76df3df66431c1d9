// Package network extracts from the JSON API responses a page fetched
// while it rendered.
package network

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/law-makers/harvest/internal/extract/fields"
	textutil "github.com/law-makers/harvest/internal/utils/text"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

const (
	maxKept       = 10
	minTokenLen   = 4
	maxBusinesses = 50
)

// Extract keeps the captured responses that mention the page itself and
// promotes the business fields of the best matching entity
func Extract(capture *models.PageCapture) (map[string]any, error) {
	out := map[string]any{}
	if len(capture.Network) == 0 {
		return out, nil
	}

	tokens := identityTokens(capture)
	var kept []any
	var found []map[string]any
	for _, nc := range capture.Network {
		if len(kept) >= maxKept {
			break
		}
		if !references(nc.Body, tokens) {
			continue
		}
		var data any
		if err := json.Unmarshal(nc.Body, &data); err != nil {
			continue
		}
		kept = append(kept, map[string]any{
			"url":    nc.URL,
			"status": nc.Status,
			"data":   data,
		})
		found = append(found, fields.Find(data, maxBusinesses)...)
	}
	if len(kept) == 0 {
		return out, nil
	}
	out["network_data"] = kept

	if best := bestMatch(found, tokens); best != nil {
		for k, v := range fields.FromAPI(best) {
			out[k] = v
		}
	}
	return out, nil
}

// identityTokens are lowercase strings that identify the captured page:
// its path slugs and its title
func identityTokens(capture *models.PageCapture) []string {
	seen := map[string]bool{}
	var tokens []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) >= minTokenLen && !seen[s] {
			seen[s] = true
			tokens = append(tokens, s)
		}
	}
	for _, raw := range []string{capture.URL, capture.FinalURL} {
		if raw == "" {
			continue
		}
		slug := urlutil.Slug(raw)
		if decoded, err := url.PathUnescape(slug); err == nil {
			slug = decoded
		}
		add(slug)
		if u, err := url.Parse(raw); err == nil && u.Path != "/" {
			add(u.Path)
		}
	}
	title := textutil.Normalize(capture.Title)
	if i := strings.IndexAny(title, "|-–—"); i > 0 {
		title = strings.TrimSpace(title[:i])
	}
	add(title)
	return tokens
}

func references(body []byte, tokens []string) bool {
	if len(body) == 0 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, t := range tokens {
		if bytes.Contains(lower, []byte(t)) {
			return true
		}
	}
	return false
}

// bestMatch prefers the entity whose own fields mention the page; the
// first entity wins otherwise
func bestMatch(found []map[string]any, tokens []string) map[string]any {
	if len(found) == 0 {
		return nil
	}
	for _, b := range found {
		for _, key := range []string{"alias", "url", "slug", "name", "profileUrl"} {
			v := strings.ToLower(fields.String(b[key]))
			if v == "" {
				continue
			}
			for _, t := range tokens {
				if strings.Contains(v, t) || (len(v) >= minTokenLen && strings.Contains(t, v)) {
					return b
				}
			}
		}
	}
	return found[0]
}
