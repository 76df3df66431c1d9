package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/pkg/models"
)

// OpenTable reads restaurant profile pages
type OpenTable struct{ familyMatcher }

func (*OpenTable) Name() string { return "opentable" }

func (*OpenTable) Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any {
	base := capture.Identity()
	name := firstText(doc, "h1[data-test='restaurant-name']", "h1[class*='restaurant-name']", "h1")
	address := firstText(doc, "[data-test='restaurant-address']", "a[href*='maps.google'] span", "div[class*='address']", "address")
	phone := telephone(doc, "[data-test='restaurant-phone']")
	ratingText := firstText(doc, "[data-test='rating-value']", "div[class*='ratingValue']", "div[class*='rating'] span", "div[class*='rating']")
	reviews := firstText(doc, "[data-test='review-count']", "a[href*='#reviews']", "span[class*='reviewCount']")
	price := firstText(doc, "[data-test='price-band']", "span[class*='price']")
	cuisine := firstText(doc, "[data-test='cuisine']", "span[class*='cuisine']")
	body := bodyText(doc)

	out := map[string]any{
		"name":         name,
		"address":      address,
		"phone":        phone,
		"rating":       rating(ratingText),
		"review_count": count(reviews),
		"price_range":  priceTier(price),
		"cuisine":      cuisine,
	}

	out[SectionOverview] = map[string]any{
		"name":          name,
		"description":   firstText(doc, "[data-test='restaurant-description']", "div[class*='description'] p", "section#overview p"),
		"cuisine":       cuisine,
		"dining_style":  labelled(doc, "Dining style"),
		"dress_code":    labelled(doc, "Dress code"),
		"chef":          labelled(doc, "Executive chef"),
		"diners_choice": flag(strings.Contains(body, "Diners' Choice") || strings.Contains(body, "Diners’ Choice") || strings.Contains(body, "Diners Choice")),
	}
	out[SectionContact] = map[string]any{
		"phone":   phone,
		"website": firstAttr(doc, "href", "a[data-test='restaurant-website']", "a[class*='website']"),
	}
	out[SectionLocation] = map[string]any{
		"address":        address,
		"neighborhood":   labelled(doc, "Neighborhood"),
		"cross_street":   labelled(doc, "Cross street"),
		"parking":        labelled(doc, "Parking details"),
		"public_transit": labelled(doc, "Public transit"),
	}
	out[SectionHours] = map[string]any{"text": labelled(doc, "Hours of operation")}
	out[SectionPricing] = map[string]any{"price_range": priceTier(price), "text": price}
	out[SectionAmenities] = labelledList(doc, "Additional")
	out[SectionRatings] = map[string]any{
		"overall":      rating(ratingText),
		"review_count": count(reviews),
		"breakdown":    ratingBreakdown(doc, "[data-test='rating-breakdown'] li, li[class*='ratingCategory']"),
	}
	out[SectionMedia] = map[string]any{
		"images": images(doc, base, "[data-test='photo-gallery'] img, section#photos img", 20),
	}
	out[SectionMenu] = menuSections(doc, "[data-test='menu'] section, section#menu section, div[class*='menu-section']")
	return out
}

// labelled reads the value printed next to a label such as "Dress code"
// in the details sidebar
func labelled(doc *goquery.Document, label string) string {
	value := ""
	doc.Find("h3, h4, dt, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || !strings.EqualFold(strings.TrimSpace(s.Text()), label) {
			return true
		}
		next := s.Next()
		if next.Length() == 0 {
			next = s.Parent().Next()
		}
		value = strings.Join(strings.Fields(next.Text()), " ")
		return value == ""
	})
	return value
}

func labelledList(doc *goquery.Document, label string) []any {
	v := labelled(doc, label)
	if v == "" {
		return nil
	}
	var out []any
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ratingBreakdown(doc *goquery.Document, selector string) map[string]any {
	out := map[string]any{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		idx := strings.IndexAny(text, "0123456789")
		if idx <= 0 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(text[:idx]))
		if v := rating(text[idx:]); v != nil && label != "" {
			out[label] = v
		}
	})
	return out
}

// menuSections reads a menu as sections of items with optional prices
func menuSections(doc *goquery.Document, selector string) []any {
	var out []any
	doc.Find(selector).Each(func(_ int, sec *goquery.Selection) {
		title := strings.TrimSpace(sec.Find("h2, h3, h4").First().Text())
		var items []any
		sec.Find("li, [class*='menu-item'], [data-test='menu-item']").Each(func(_ int, it *goquery.Selection) {
			itemName := strings.TrimSpace(it.Find("h4, h5, [class*='name'], [class*='title']").First().Text())
			if itemName == "" {
				itemName = strings.Join(strings.Fields(it.Text()), " ")
			}
			if itemName == "" {
				return
			}
			item := map[string]any{"name": itemName}
			if p := strings.TrimSpace(it.Find("[class*='price']").First().Text()); p != "" {
				item["price"] = p
			}
			if d := strings.TrimSpace(it.Find("p, [class*='description']").First().Text()); d != "" && d != itemName {
				item["description"] = strings.Join(strings.Fields(d), " ")
			}
			items = append(items, item)
		})
		if title != "" || len(items) > 0 {
			out = append(out, map[string]any{"section": title, "items": items})
		}
	})
	return out
}
