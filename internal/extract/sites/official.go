package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	textutil "github.com/law-makers/harvest/internal/utils/text"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// Official reads a business's own website. It matches every URL and is
// the fallback when no site family claims the page.
type Official struct{}

func (*Official) Name() string { return "official" }

func (*Official) Matches(*url.URL) bool { return true }

var (
	streetAddress = regexp.MustCompile(`\d{1,6}\s+[A-Za-z0-9.'\s]{2,40}\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Place|Pl|Court|Ct)\.?(?:,\s*[A-Za-z .'-]{2,30})?(?:,\s*[A-Z]{2}\s*\d{5})?`)
	chefName      = regexp.MustCompile(`(?:[Ee]xecutive\s+)?[Cc]hef\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})`)
	paymentWords  = regexp.MustCompile(`(?i)\b(visa|mastercard|american express|amex|discover|apple pay|google pay|cash only|cash)\b`)
)

var amenityGroups = []keywordGroup{
	group("wifi", "wifi", "wi-fi", "wireless", "internet"),
	group("parking", "parking", "valet", "garage", "lot"),
	group("outdoor_seating", "outdoor", "patio", "terrace", "al fresco"),
	group("wheelchair_accessible", "wheelchair", "accessible", "ada"),
	group("pet_friendly", "pet", "dog", "pet friendly"),
	group("live_music", "live music", "entertainment", "band"),
	group("tv", "tv", "television", "sports"),
	group("private_dining", "private", "event", "party room"),
}

// menuKinds classifies menu links by keyword; the first match wins
var menuKinds = []struct {
	kind  string
	words []string
}{
	{"lunch_menu", []string{"lunch"}},
	{"dinner_menu", []string{"dinner"}},
	{"brunch_menu", []string{"brunch"}},
	{"drinks_menu", []string{"drink", "bar", "wine", "cocktail"}},
	{"dessert_menu", []string{"dessert"}},
	{"online_ordering", []string{"order", "delivery"}},
}

func (*Official) Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any {
	base := capture.Identity()
	body := bodyText(doc)
	emails := textutil.Emails(body)
	if mail := strings.TrimPrefix(firstAttr(doc, "href", "a[href^='mailto:']"), "mailto:"); mail != "" {
		emails = append([]string{strings.SplitN(mail, "?", 2)[0]}, emails...)
	}
	phone := telephone(doc)
	if phone == "" {
		if phones := textutil.Phones(body); len(phones) > 0 {
			phone = phones[0]
		}
	}
	address := firstText(doc, "address", "[itemprop='address']", "[class*='address']")
	if address == "" {
		address = streetAddress.FindString(body)
	}
	name := textutil.FirstNonEmpty(
		firstAttr(doc, "content", "meta[property='og:site_name']"),
		firstAttr(doc, "content", "meta[property='og:title']"),
		firstText(doc, "h1"),
		capture.Title,
	)

	out := map[string]any{
		"name":    name,
		"address": address,
		"phone":   phone,
	}
	if len(emails) > 0 {
		out["email"] = emails[0]
	}

	overview := map[string]any{
		"name":        name,
		"description": firstAttr(doc, "content", "meta[name='description']", "meta[property='og:description']"),
		"about":       firstText(doc, "section#about p", "div[class*='about'] p", "[id*='about'] p"),
	}
	if m := chefName.FindStringSubmatch(body); m != nil {
		overview["executive_chef"] = m[1]
		overview["chef_bio"] = firstText(doc, "[class*='chef'] p", "[id*='chef'] p")
	}
	out[SectionOverview] = overview

	contact := map[string]any{
		"phone":   phone,
		"emails":  anyStrings(dedupe(emails)),
		"website": siteRoot(base),
		"social":  socialLinks(doc),
	}
	out[SectionContact] = contact
	out[SectionLocation] = map[string]any{
		"address":    address,
		"directions": firstAttr(doc, "href", "a[href*='maps.google']", "a[href*='goo.gl/maps']", "a[href*='maps.apple']"),
		"parking":    parkingKind(body),
	}
	out[SectionHours] = map[string]any{
		"text": firstText(doc, "[class*='hours']", "[id*='hours']", "[itemprop='openingHours']"),
	}
	out[SectionPricing] = map[string]any{
		"prices":          anyStrings(textutil.Prices(body)),
		"payment_methods": paymentMethods(body),
	}
	out[SectionAmenities] = keywordFlags(body, amenityGroups)
	out[SectionMedia] = map[string]any{
		"featured_image": resolve(base, firstAttr(doc, "content", "meta[property='og:image']")),
		"images":         images(doc, base, "main img, section img, img", 20),
		"video_url":      firstAttr(doc, "src", "iframe[src*='youtube']", "iframe[src*='vimeo']", "video source", "video"),
	}
	out[SectionMenu] = menuLinks(doc, base)
	out["gift_card_url"] = linkContaining(doc, base, "gift")
	out["reservation_url"] = linkContaining(doc, base, "reserv", "booking", "book a table")
	if pd := privateDining(doc, body); len(pd) > 0 {
		out["private_dining"] = pd
	}
	return out
}

func menuLinks(doc *goquery.Document, base string) map[string]any {
	out := map[string]any{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := attrOf(s, "href")
		label := strings.ToLower(textutil.Normalize(s.Text()) + " " + href)
		if !strings.Contains(label, "menu") && !strings.Contains(label, "order") {
			return
		}
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		kind := "main_menu"
	classify:
		for _, mk := range menuKinds {
			for _, w := range mk.words {
				if strings.Contains(label, w) {
					kind = mk.kind
					break classify
				}
			}
		}
		if _, taken := out[kind]; !taken {
			out[kind] = urlutil.ResolveURL(base, href)
		}
	})
	return out
}

func linkContaining(doc *goquery.Document, base string, words ...string) string {
	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := attrOf(s, "href")
		label := strings.ToLower(s.Text() + " " + href)
		for _, w := range words {
			if strings.Contains(label, w) && !strings.HasPrefix(href, "#") {
				found = urlutil.ResolveURL(base, href)
				return false
			}
		}
		return true
	})
	return found
}

func socialLinks(doc *goquery.Document) map[string]any {
	networks := []string{"facebook", "instagram", "twitter", "x.com", "tiktok", "youtube", "linkedin"}
	out := map[string]any{}
	doc.Find("a[href^='http']").Each(func(_ int, s *goquery.Selection) {
		href := attrOf(s, "href")
		host := urlutil.Host(href)
		for _, n := range networks {
			if strings.Contains(host, n) {
				key := strings.TrimSuffix(n, ".com")
				if key == "x" {
					key = "twitter"
				}
				if _, ok := out[key]; !ok {
					out[key] = href
				}
			}
		}
	})
	return out
}

func parkingKind(body string) string {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "valet"):
		return "Valet"
	case strings.Contains(lower, "street parking"):
		return "Street"
	case strings.Contains(lower, "parking"):
		return "Yes"
	}
	return ""
}

func paymentMethods(body string) []any {
	var out []any
	seen := map[string]bool{}
	for _, m := range paymentWords.FindAllString(body, -1) {
		m = strings.ToLower(m)
		if m == "amex" {
			m = "american express"
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// privateDining reads contact details from a private events block
func privateDining(doc *goquery.Document, body string) map[string]any {
	block := doc.Find("[id*='private'], [class*='private-dining'], [class*='events']").First()
	if block.Length() == 0 {
		if !strings.Contains(strings.ToLower(body), "private dining") {
			return nil
		}
		return map[string]any{"available": true}
	}
	text := textutil.Normalize(block.Text())
	out := map[string]any{"available": true}
	if e := textutil.Emails(text); len(e) > 0 {
		out["email"] = e[0]
	}
	if p := textutil.Phones(text); len(p) > 0 {
		out["phone"] = p[0]
	}
	return out
}

func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	return urlutil.ResolveURL(base, href)
}

func siteRoot(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.ToLower(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func anyStrings(in []string) []any {
	if len(in) == 0 {
		return nil
	}
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
