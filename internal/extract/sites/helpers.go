package sites

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	textutil "github.com/law-makers/harvest/internal/utils/text"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
)

// firstText returns the normalized text of the first selector that
// matches a non-empty element
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		found := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = textutil.Normalize(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute value across selectors
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		found := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			found = strings.TrimSpace(v)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func allTexts(doc *goquery.Document, selector string, limit int) []any {
	var out []any
	seen := map[string]bool{}
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := textutil.Normalize(s.Text())
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// telephone reads a phone number from a tel: link or its text
func telephone(doc *goquery.Document, selectors ...string) string {
	if tel := firstAttr(doc, "href", "a[href^='tel:']"); tel != "" {
		return strings.TrimSpace(strings.TrimPrefix(tel, "tel:"))
	}
	return firstText(doc, selectors...)
}

func rating(s string) any {
	if v, ok := textutil.ParseRating(s); ok && v <= 10 {
		return v
	}
	return nil
}

func count(s string) any {
	if v, ok := textutil.ParseCount(s); ok {
		return v
	}
	return nil
}

func priceTier(s string) string {
	return textutil.PriceTier(s)
}

func bodyText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return textutil.Normalize(clone.Find("body").Text())
}

func images(doc *goquery.Document, base string, selector string, limit int) []any {
	var out []any
	seen := map[string]bool{}
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := textutil.FirstNonEmpty(attrOf(s, "src"), attrOf(s, "data-src"))
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		src = urlutil.ResolveURL(base, src)
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
		return len(out) < limit
	})
	return out
}

func attrOf(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

var coordsInURL = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)

// qaPairs reads question and answer blocks
func qaPairs(doc *goquery.Document, container, question, answer string, limit int) []any {
	var out []any
	doc.Find(container).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		q := textutil.Normalize(s.Find(question).First().Text())
		a := textutil.Normalize(s.Find(answer).First().Text())
		if q != "" {
			pair := map[string]any{"question": q}
			if a != "" {
				pair["answer"] = a
			}
			out = append(out, pair)
		}
		return len(out) < limit
	})
	return out
}

// keywordFlags reports which keyword groups occur in text
func keywordFlags(text string, groups []keywordGroup) []any {
	lower := strings.ToLower(text)
	var out []any
	for _, g := range groups {
		for _, kw := range g.keywords {
			if kw.MatchString(lower) {
				out = append(out, g.name)
				break
			}
		}
	}
	return out
}

type keywordGroup struct {
	name     string
	keywords []*regexp.Regexp
}

func group(name string, words ...string) keywordGroup {
	g := keywordGroup{name: name}
	for _, w := range words {
		g.keywords = append(g.keywords, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return g
}

// flag keeps true and drops false so absent facts stay absent
func flag(b bool) any {
	if b {
		return true
	}
	return nil
}
