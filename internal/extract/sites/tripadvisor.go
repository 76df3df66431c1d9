package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	textutil "github.com/law-makers/harvest/internal/utils/text"
	"github.com/law-makers/harvest/pkg/models"
)

// TripAdvisor reads restaurant, attraction and hotel review pages
type TripAdvisor struct{ familyMatcher }

func (*TripAdvisor) Name() string { return "tripadvisor" }

func (*TripAdvisor) Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any {
	base := capture.Identity()
	name := firstText(doc, "h1[data-test-target='top-info-header']", "h1")
	address := firstText(doc, "a[href='#MAPVIEW']", "span[class*='address']", "button[aria-label*='address']")
	phone := telephone(doc, "span[class*='phone']")
	ratingText := firstText(doc, "span[data-test-target='review-rating'] span", "div[class*='rating'] span[class*='bubble']")
	if ratingText == "" {
		ratingText = firstAttr(doc, "aria-label", "svg[aria-label*='of 5 bubbles']", "span[aria-label*='of 5 bubbles']")
	}
	reviews := firstText(doc, "a[href='#REVIEWS'] span", "span[class*='reviewCount']")
	ranking := firstText(doc, "span[class*='ranking']", "a[href*='Restaurants-g'] span")

	var price string
	var cuisines []any
	doc.Find("a[href*='/Restaurants-g'], span[class*='cuisine'] a, div[class*='tags'] a").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		switch {
		case t == "":
		case textutil.IsPriceLevel(t) || strings.Contains(t, "$$ - $$$"):
			if price == "" {
				price = priceTier(t)
			}
		case len(cuisines) < 10 && !strings.Contains(t, "#"):
			cuisines = append(cuisines, t)
		}
	})

	out := map[string]any{
		"name":         name,
		"address":      address,
		"phone":        phone,
		"rating":       rating(ratingText),
		"review_count": count(reviews),
		"price_range":  price,
		"cuisine":      cuisines,
	}
	out[SectionOverview] = map[string]any{
		"name":    name,
		"ranking": ranking,
		"about":   firstText(doc, "div[data-test-target='restaurant-detail-info'] div[class*='about']", "div[class*='description']"),
		"cuisine": cuisines,
	}
	out[SectionContact] = map[string]any{
		"phone":   phone,
		"website": firstAttr(doc, "href", "a[data-encoded-url]", "a[class*='website']"),
		"email":   strings.TrimPrefix(firstAttr(doc, "href", "a[href^='mailto:']"), "mailto:"),
	}
	out[SectionLocation] = map[string]any{"address": address}
	out[SectionHours] = hoursTable(doc, "div[class*='hours'] div[class*='row'], table[class*='hours'] tr")
	out[SectionPricing] = map[string]any{"price_range": price}
	out[SectionAmenities] = allTexts(doc, "div[class*='features'] div[class*='item'], div[data-test-target='amenity_text']", 40)
	out[SectionRatings] = map[string]any{
		"overall":      rating(ratingText),
		"review_count": count(reviews),
		"breakdown":    ratingBreakdown(doc, "div[class*='ratingCategory'], div[class*='rating-category']"),
	}
	out[SectionMedia] = map[string]any{
		"images": images(doc, base, "div[class*='photo'] img, div[data-section-signature='photo_viewer'] img", 20),
	}
	out[SectionQA] = qaPairs(doc, "div[class*='questionAnswer'], div[data-test-target='qa-item']", "div[class*='question']", "div[class*='answer']", 20)
	return out
}
