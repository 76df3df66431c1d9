// Package sites holds extractors tuned to the markup of specific site
// families, plus an official-website extractor for everything else.
package sites

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/pkg/models"
)

// Section keys shared by every site extractor
const (
	SectionOverview  = "overview"
	SectionContact   = "contact"
	SectionLocation  = "location"
	SectionHours     = "hours"
	SectionPricing   = "pricing"
	SectionAmenities = "amenities"
	SectionMedia     = "media"
	SectionRatings   = "ratings"
	SectionQA        = "qa"
	SectionMenu      = "menu"
)

// Extractor reads one site family's detail pages
type Extractor interface {
	Name() string
	Matches(u *url.URL) bool
	Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any
}

type familyMatcher struct{ family *frontier.Family }

func (m familyMatcher) Matches(u *url.URL) bool {
	return frontier.FamilyFor(u) == m.family
}

// Registry lists extractors in priority order. The last entry matches
// any URL.
var Registry = []Extractor{
	&OpenTable{familyMatcher{frontier.OpenTable}},
	&Yelp{familyMatcher{frontier.Yelp}},
	&TripAdvisor{familyMatcher{frontier.TripAdvisor}},
	&GoogleMaps{familyMatcher{frontier.GoogleMaps}},
	&Official{},
}

// For picks the extractor for a URL. A non-empty hint naming a registered
// extractor takes precedence over URL matching.
func For(rawURL, hint string) Extractor {
	if hint != "" {
		for _, e := range Registry {
			if strings.EqualFold(e.Name(), hint) {
				return e
			}
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Registry[len(Registry)-1]
	}
	for _, e := range Registry {
		if e.Matches(u) {
			return e
		}
	}
	return Registry[len(Registry)-1]
}

// Extract runs the matching extractor over a capture. The record carries
// a "source" naming the extractor; sections without data are absent.
func Extract(capture *models.PageCapture, hint string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.HTML))
	if err != nil {
		return nil, err
	}
	e := For(capture.Identity(), hint)
	out := e.Extract(doc, capture)
	prune(out)
	if len(out) == 0 {
		return out, nil
	}
	out["source"] = e.Name()
	return out, nil
}

// prune drops empty values and sections left empty by it
func prune(m map[string]any) {
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			prune(sub)
		}
		if models.IsZeroValue(m[k]) {
			delete(m, k)
		}
	}
}
