// Package embedded reads the structured data a page ships alongside its
// markup: JSON-LD, microdata, Next.js payloads and hydrated window state.
package embedded

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/internal/extract/fields"
	"github.com/law-makers/harvest/pkg/models"
)

const maxBusinesses = 50

// Extract returns the raw blobs under "structured_data" plus the business
// fields of the page's primary entity at the top level
func Extract(capture *models.PageCapture) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.HTML))
	if err != nil {
		return nil, err
	}

	blobs := map[string]any{}
	jsonld := JSONLD(doc)
	if len(jsonld) > 0 {
		blobs["json_ld"] = jsonld
	}
	micro := Microdata(doc)
	if len(micro) > 0 {
		blobs["microdata"] = micro
	}
	var next any
	if raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text()); raw != "" {
		if v, ok := decodeLoose(raw); ok {
			next = v
			blobs["next_data"] = v
		}
	}
	state := State(doc, capture.Identity())
	if len(state) > 0 {
		blobs["state"] = state
	}

	out := map[string]any{}
	if len(blobs) == 0 {
		return out, nil
	}
	out["structured_data"] = blobs

	// Schema.org types are authoritative; heuristic matches on app payloads
	// only fill what they leave open
	var primary map[string]any
	for _, item := range append(jsonld, micro...) {
		if m, ok := item.(map[string]any); ok && fields.IsBusinessType(m["@type"]) {
			primary = fields.FromSchema(m)
			break
		}
	}

	var found []map[string]any
	if next != nil {
		found = append(found, fields.Find(next, maxBusinesses)...)
	}
	for _, name := range fields.SortedKeys(state) {
		found = append(found, fields.Find(state[name], maxBusinesses)...)
	}
	if len(found) > 0 {
		candidate := fields.FromAPI(found[0])
		if primary == nil {
			primary = candidate
		} else {
			for k, v := range candidate {
				if _, ok := primary[k]; !ok {
					primary[k] = v
				}
			}
		}
	}
	if len(found) > 1 {
		var list []any
		for i, b := range found {
			if i >= maxBusinesses {
				break
			}
			list = append(list, fields.FromAPI(b))
		}
		out["businesses"] = list
	}

	for k, v := range primary {
		out[k] = v
	}
	return out, nil
}
