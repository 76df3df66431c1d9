package frontier

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/pkg/models"
)

var (
	cardMatcher = cascadia.MustCompile(strings.Join([]string{
		"article",
		"[itemtype*='Restaurant']",
		"[itemtype*='LocalBusiness']",
		"[itemtype*='FoodEstablishment']",
		"[class*='card']",
		"[class*='Card']",
		"[class*='result']",
		"[class*='Result']",
		"[class*='listing-item']",
		"[data-testid*='card']",
		"[data-test*='restaurant']",
	}, ", "))

	chromeMatcher = cascadia.MustCompile("nav, header, footer, [role='navigation'], [role='banner'], [role='contentinfo']")

	linkMatcher = cascadia.MustCompile("a[href], [data-href], [data-url]")

	quotedPath = regexp.MustCompile(`"((?:https?:)?(?:\\?/){1,2}[^"\s<>]{2,300})"`)

	linkKeys = map[string]bool{
		"url": true, "@id": true, "href": true, "link": true,
		"canonicalUrl": true, "profileUrl": true, "businessUrl": true,
	}
)

// ExpandListing returns up to max detail-page URLs found on a listing
// capture, in document order: anchors first, then URLs embedded in
// JSON-LD, __NEXT_DATA__ and inline state scripts. The result is
// deduplicated by Key and never contains the listing itself. An empty
// result is reported as a DiscoveryError.
func ExpandListing(capture *models.PageCapture, max int) ([]string, error) {
	base := capture.Identity()
	baseURL, err := parseHTTP(base)
	if err != nil {
		return nil, engine.DiscoveryError("listing URL is not valid", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.HTML))
	if err != nil {
		return nil, engine.DiscoveryError("failed to parse listing markup", err)
	}

	family := FamilyFor(baseURL)
	c := newCollector(base, max)

	doc.FindMatcher(linkMatcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := hrefOf(s)
		abs, ok := Resolve(base, href)
		if !ok {
			return true
		}
		u, err := url.Parse(abs)
		if err != nil {
			return true
		}
		if !family.Known() && s.ClosestMatcher(chromeMatcher).Length() > 0 {
			return true
		}
		inCard := s.ClosestMatcher(cardMatcher).Length() > 0
		if family.Accepts(u, baseURL, inCard) {
			c.add(abs)
		}
		return !c.full()
	})

	if !c.full() {
		for _, raw := range embeddedCandidates(doc, base) {
			abs, ok := Resolve(base, raw)
			if !ok {
				continue
			}
			u, err := url.Parse(abs)
			if err != nil {
				continue
			}
			// JSON-LD items are trusted on generic sites as long as
			// they stay on the listing's host
			if family.Accepts(u, baseURL, true) {
				c.add(abs)
			}
			if c.full() {
				break
			}
		}
	}

	if len(c.urls) == 0 {
		return nil, engine.DiscoveryError("listing page yielded no detail URLs", engine.ErrNoCandidates).
			WithDetail("url", base).
			WithDetail("family", family.Name)
	}

	log.Debug().
		Str("url", base).
		Str("family", family.Name).
		Int("candidates", len(c.urls)).
		Msg("Expanded listing page")

	return c.urls, nil
}

// Links returns every page link of a capture, resolved, normalized and
// deduplicated by Key, in document order
func Links(capture *models.PageCapture) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.HTML))
	if err != nil {
		return nil
	}
	base := capture.Identity()
	c := newCollector(base, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if abs, ok := Resolve(base, href); ok {
			c.add(abs)
		}
	})
	return c.urls
}

type collector struct {
	max  int
	self string
	seen map[string]bool
	urls []string
}

func newCollector(self string, max int) *collector {
	return &collector{
		max:  max,
		self: Key(self),
		seen: make(map[string]bool),
	}
}

func (c *collector) add(u string) {
	k := Key(u)
	if k == c.self || c.seen[k] || c.full() {
		return
	}
	c.seen[k] = true
	c.urls = append(c.urls, u)
}

func (c *collector) full() bool {
	return c.max > 0 && len(c.urls) >= c.max
}

func hrefOf(s *goquery.Selection) string {
	for _, attr := range []string{"href", "data-href", "data-url"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// embeddedCandidates collects URLs from structured script blocks in
// document order
func embeddedCandidates(doc *goquery.Document, base string) []string {
	var out []string
	family := FamilyOf(base)

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		id, _ := s.Attr("id")
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}

		switch {
		case strings.Contains(typ, "ld+json"), id == "__NEXT_DATA__":
			var v any
			if err := json.Unmarshal([]byte(body), &v); err != nil {
				return
			}
			walkLinks(v, 0, &out)
		case family.Known() && (typ == "" || strings.Contains(typ, "javascript") || strings.Contains(typ, "json")):
			for _, m := range quotedPath.FindAllStringSubmatch(body, -1) {
				out = append(out, strings.ReplaceAll(m[1], `\/`, "/"))
			}
		}
	})
	return out
}

func walkLinks(v any, depth int, out *[]string) {
	if depth > 12 {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := t[k].(string); ok && linkKeys[k] {
				*out = append(*out, s)
				continue
			}
			walkLinks(t[k], depth+1, out)
		}
	case []any:
		for _, item := range t {
			walkLinks(item, depth+1, out)
		}
	}
}
