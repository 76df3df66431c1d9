package sites

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/harvest/pkg/models"
)

// GoogleMaps reads /maps/place/ panels
type GoogleMaps struct{ familyMatcher }

func (*GoogleMaps) Name() string { return "googlemaps" }

func (*GoogleMaps) Extract(doc *goquery.Document, capture *models.PageCapture) map[string]any {
	base := capture.Identity()
	name := firstText(doc, "h1[data-attrid='title']", "h1.section-hero-header-title-title", "h1[class*='fontHeadline']", "h1")
	address := firstText(doc, "button[data-item-id='address']", "[data-item-id='address']", "span[aria-label*='Address']")
	phone := firstText(doc, "button[data-item-id^='phone']", "[data-tooltip='Copy phone number']")
	if phone == "" {
		phone = telephone(doc)
	}
	website := firstAttr(doc, "href", "a[data-item-id='authority']")
	ratingText := firstText(doc, "div.F7nice span[aria-hidden='true']", "div[class*='gm2-display-2'] span[aria-hidden='true']")
	if ratingText == "" {
		ratingText = firstAttr(doc, "aria-label", "span[role='img'][aria-label*='stars']", "div[aria-label*='stars']")
	}
	reviews := firstAttr(doc, "aria-label", "span[aria-label*='reviews']", "button[aria-label*='reviews']")
	price := priceTier(firstText(doc, "span[aria-label*='Price']", "span[aria-label*='price']"))
	category := firstText(doc, "button[jsaction*='category']", "span[class*='category']")

	out := map[string]any{
		"name":         name,
		"address":      address,
		"phone":        phone,
		"website":      website,
		"rating":       rating(ratingText),
		"review_count": count(reviews),
		"price_range":  price,
		"cuisine":      category,
	}

	location := map[string]any{"address": address, "plus_code": firstText(doc, "button[data-item-id='oloc']")}
	if m := coordsInURL.FindStringSubmatch(capture.Identity()); m != nil {
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lng, errLng := strconv.ParseFloat(m[2], 64)
		if errLat == nil && errLng == nil {
			location["latitude"], location["longitude"] = lat, lng
			out["latitude"], out["longitude"] = lat, lng
		}
	}

	out[SectionOverview] = map[string]any{
		"name":        name,
		"category":    category,
		"description": firstText(doc, "[data-section-id='si_g']", "div[class*='PYvSYb']", ".section-info-text"),
	}
	out[SectionContact] = map[string]any{"phone": phone, "website": website}
	out[SectionLocation] = location
	out[SectionHours] = hoursTable(doc, "table[class*='eK4R0e'] tr, div[aria-label*='Hours'] table tr")
	out[SectionPricing] = map[string]any{"price_range": price}
	var amenities []any
	doc.Find("[aria-label^='Has '], [aria-label^='Serves ']").Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("aria-label")
		if label = strings.TrimSpace(label); label != "" && len(amenities) < 40 {
			amenities = append(amenities, label)
		}
	})
	out[SectionAmenities] = amenities
	out[SectionRatings] = map[string]any{"overall": rating(ratingText), "review_count": count(reviews)}
	out[SectionMedia] = map[string]any{
		"images":         images(doc, base, "button[jsaction*='heroHeaderImage'] img, img[decoding='async']", 10),
		"featured_image": firstAttr(doc, "content", "meta[property='og:image']"),
	}
	return out
}
