package sites

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/pkg/models"
)

// Yelp reads /biz/ pages
type Yelp struct{ familyMatcher }

func (*Yelp) Name() string { return "yelp" }

var noiseLevel = regexp.MustCompile(`(?i)noise level[:\s]+(\w+)`)

func (*Yelp) Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any {
	base := capture.Identity()
	name := firstText(doc, "h1[class*='heading']", "h1")
	address := firstText(doc, "address", "p[class*='address']", "[data-testid='address']")
	phone := telephone(doc, "p[class*='phone']", "[data-testid='phone']")
	website := firstAttr(doc, "href", "a[href*='biz_redir']", "a[class*='website']")
	ratingLabel := firstAttr(doc, "aria-label", "div[role='img'][aria-label*='star']", "span[aria-label*='star']")
	reviews := firstText(doc, "a[href='#reviews']", "span[class*='reviewCount']", "a[href*='#reviews']")
	price := firstText(doc, "span[class*='priceRange']", "span[class*='price-range']")
	categories := allTexts(doc, "span[class*='category'] a, a[href*='cflt=']", 10)
	amenities := allTexts(doc, "div[class*='amenit'] span, section[aria-label*='Amenities'] span[class*='font-weight']", 40)
	body := bodyText(doc)

	out := map[string]any{
		"name":         name,
		"address":      address,
		"phone":        phone,
		"rating":       rating(ratingLabel),
		"review_count": count(reviews),
		"price_range":  priceTier(price),
		"cuisine":      categories,
	}

	overview := map[string]any{
		"name":       name,
		"categories": categories,
		"claimed":    flag(strings.Contains(body, "Claimed") && !strings.Contains(body, "Unclaimed")),
	}
	if m := noiseLevel.FindStringSubmatch(body); m != nil {
		overview["noise_level"] = strings.ToLower(m[1])
	}
	out[SectionOverview] = overview
	out[SectionContact] = map[string]any{"phone": phone, "website": website}
	out[SectionLocation] = map[string]any{
		"address":    address,
		"directions": firstAttr(doc, "href", "a[href*='/map/']", "a[href*='maps.google']"),
	}
	out[SectionHours] = hoursTable(doc, "table[class*='hours'] tr, table[class*='hours-table'] tr")
	out[SectionPricing] = map[string]any{"price_range": priceTier(price)}
	out[SectionAmenities] = amenities
	out[SectionRatings] = map[string]any{
		"overall":      rating(ratingLabel),
		"review_count": count(reviews),
	}
	out[SectionMedia] = map[string]any{
		"images": images(doc, base, "a[href*='/biz_photos/'] img, div[class*='photo-header'] img", 20),
	}
	out[SectionQA] = qaPairs(doc, "div[class*='question']", "p[class*='question'], h4", "p[class*='answer'], span[class*='answer']", 20)
	out[SectionMenu] = popularDishes(doc)
	if strings.Contains(strings.ToLower(body), "outdoor seating") {
		out["outdoor_seating"] = true
	}
	return out
}

// hoursTable reads day/hours rows
func hoursTable(doc *goquery.Document, rowSelector string) []any {
	var out []any
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		day := strings.TrimSpace(tr.Find("th, td").First().Text())
		hours := strings.Join(strings.Fields(tr.Find("td").Last().Text()), " ")
		if day == "" || hours == "" || day == hours {
			return
		}
		out = append(out, map[string]any{"day": day, "hours": hours})
	})
	return out
}

func popularDishes(doc *goquery.Document) map[string]any {
	dishes := allTexts(doc, "section[aria-label*='Popular Dishes'] p[class*='dish'], div[class*='popular-dish'] p", 20)
	menuURL := firstAttr(doc, "href", "a[href*='/menu/']")
	if len(dishes) == 0 && menuURL == "" {
		return nil
	}
	return map[string]any{"popular_dishes": dishes, "url": menuURL}
}
