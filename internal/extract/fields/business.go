// Package fields maps schema.org objects and site API payloads onto the
// flat business fields every record shares.
package fields

import (
	"sort"
	"strconv"
	"strings"

	textutil "github.com/law-makers/harvest/internal/utils/text"
)

// Business field names promoted to the top level of a record
const (
	Name         = "name"
	Description  = "description"
	Phone        = "phone"
	Email        = "email"
	Website      = "website"
	Address      = "address"
	AddressParts = "address_parts"
	Latitude     = "latitude"
	Longitude    = "longitude"
	Rating       = "rating"
	ReviewCount  = "review_count"
	Cuisine      = "cuisine"
	PriceRange   = "price_range"
	Hours        = "hours"
	MenuURL      = "menu_url"
	Image        = "image"
	BusinessType = "business_type"
)

var businessTypes = map[string]bool{
	"Restaurant":         true,
	"LocalBusiness":      true,
	"FoodEstablishment":  true,
	"CafeOrCoffeeShop":   true,
	"BarOrPub":           true,
	"Bakery":             true,
	"FastFoodRestaurant": true,
	"Winery":             true,
	"Brewery":            true,
	"Hotel":              true,
	"LodgingBusiness":    true,
	"TouristAttraction":  true,
	"Store":              true,
	"Organization":       true,
}

// IsBusinessType reports whether a schema.org @type (string, list or
// full URL) names a place or business
func IsBusinessType(t any) bool {
	switch v := t.(type) {
	case string:
		name := v[strings.LastIndexAny(v, "/#")+1:]
		return businessTypes[name]
	case []any:
		for _, item := range v {
			if IsBusinessType(item) {
				return true
			}
		}
	}
	return false
}

// LooksLikeBusiness reports whether an arbitrary object describes a place:
// it has a name and some locating or rating attribute
func LooksLikeBusiness(m map[string]any) bool {
	if String(m["name"]) == "" {
		return false
	}
	for _, k := range []string{"address", "location", "rating", "aggregateRating", "telephone", "phone", "display_phone", "coordinates", "geo"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// FromSchema maps a schema.org business object onto business fields
func FromSchema(item map[string]any) map[string]any {
	out := map[string]any{}
	set(out, Name, String(item["name"]))
	set(out, Description, String(item["description"]))
	set(out, Phone, String(item["telephone"]))
	set(out, Email, strings.TrimPrefix(String(item["email"]), "mailto:"))
	set(out, Website, first(String(item["url"]), String(item["sameAs"])))
	set(out, Image, imageOf(item["image"]))
	set(out, BusinessType, String(item["@type"]))
	set(out, PriceRange, String(item["priceRange"]))
	set(out, Cuisine, stringList(item["servesCuisine"]))

	if formatted, parts := addressOf(item["address"]); formatted != "" {
		out[Address] = formatted
		if len(parts) > 0 {
			out[AddressParts] = parts
		}
	}

	if geo, ok := item["geo"].(map[string]any); ok {
		setFloat(out, Latitude, geo["latitude"])
		setFloat(out, Longitude, geo["longitude"])
	}

	if agg, ok := item["aggregateRating"].(map[string]any); ok {
		setRating(out, agg["ratingValue"])
		setCount(out, ReviewCount, first(String(agg["reviewCount"]), String(agg["ratingCount"])))
	}

	switch menu := item["hasMenu"].(type) {
	case string:
		set(out, MenuURL, menu)
	case map[string]any:
		set(out, MenuURL, String(menu["url"]))
	}
	if _, ok := out[MenuURL]; !ok {
		set(out, MenuURL, String(item["menu"]))
	}

	set(out, Hours, hoursOf(item))
	return out
}

// FromAPI maps a site API business object (Yelp-style search or detail
// payloads, or any object with name/location/rating keys) onto business fields
func FromAPI(item map[string]any) map[string]any {
	if _, ok := item["@type"]; ok {
		return FromSchema(item)
	}

	out := map[string]any{}
	set(out, Name, String(item["name"]))
	set(out, Description, String(item["description"]))
	set(out, Phone, first(String(item["display_phone"]), String(item["phone"]), String(item["phoneNumber"]), String(item["telephone"])))
	set(out, Email, String(item["email"]))
	set(out, Website, first(String(item["website"]), String(item["url"])))
	set(out, Image, first(String(item["image_url"]), imageOf(item["image"]), imageOf(item["photos"])))
	set(out, PriceRange, first(String(item["price"]), String(item["priceRange"]), String(item["price_range"])))
	set(out, Cuisine, categoriesOf(first(item["categories"], item["cuisine"], item["cuisines"])))

	if loc, ok := item["location"].(map[string]any); ok {
		if lines := stringList(loc["display_address"]); len(lines) > 0 {
			out[Address] = strings.Join(toStrings(lines), ", ")
		}
		parts := map[string]any{}
		set(parts, "street_address", first(String(loc["address1"]), String(loc["street"]), String(loc["streetAddress"])))
		set(parts, "city", String(loc["city"]))
		set(parts, "state", String(loc["state"]))
		set(parts, "postal_code", first(String(loc["zip_code"]), String(loc["postalCode"])))
		set(parts, "country", String(loc["country"]))
		if len(parts) > 0 {
			out[AddressParts] = parts
			if _, ok := out[Address]; !ok {
				out[Address] = joinParts(parts)
			}
		}
		setFloat(out, Latitude, first(loc["latitude"], loc["lat"]))
		setFloat(out, Longitude, first(loc["longitude"], loc["lng"]))
	} else if formatted, parts := addressOf(item["address"]); formatted != "" {
		out[Address] = formatted
		if len(parts) > 0 {
			out[AddressParts] = parts
		}
	}

	for _, key := range []string{"coordinates", "geo", "latLng"} {
		if c, ok := item[key].(map[string]any); ok {
			setFloat(out, Latitude, first(c["latitude"], c["lat"]))
			setFloat(out, Longitude, first(c["longitude"], c["lng"]))
		}
	}

	if agg, ok := item["aggregateRating"].(map[string]any); ok {
		setRating(out, agg["ratingValue"])
		setCount(out, ReviewCount, String(agg["reviewCount"]))
	}
	setRating(out, first(item["rating"], item["avgRating"], item["overallRating"]))
	setCount(out, ReviewCount, first(String(item["review_count"]), String(item["reviewCount"]), String(item["reviews"])))

	if h, ok := item["hours"]; ok && !empty(h) {
		out[Hours] = h
	}
	set(out, MenuURL, first(String(item["menu_url"]), String(item["menuUrl"])))
	return out
}

// Find walks a decoded JSON value and returns the business-like objects it
// contains, in a deterministic order, at most limit of them
func Find(v any, limit int) []map[string]any {
	var out []map[string]any
	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > 8 || (limit > 0 && len(out) >= limit) {
			return
		}
		switch t := v.(type) {
		case map[string]any:
			if IsBusinessType(t["@type"]) || LooksLikeBusiness(t) {
				out = append(out, t)
				return
			}
			for _, k := range SortedKeys(t) {
				walk(t[k], depth+1)
			}
		case []any:
			for _, item := range t {
				walk(item, depth+1)
			}
		}
	}
	walk(v, 0)
	return out
}

// SortedKeys returns the keys of m in lexical order
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders scalar JSON values as trimmed text
func String(v any) string {
	switch t := v.(type) {
	case string:
		return textutil.Normalize(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		return first(String(t["name"]), String(t["@id"]))
	}
	return ""
}

func addressOf(v any) (string, map[string]any) {
	switch a := v.(type) {
	case string:
		return textutil.Normalize(a), nil
	case []any:
		if len(a) > 0 {
			return addressOf(a[0])
		}
	case map[string]any:
		parts := map[string]any{}
		set(parts, "street_address", String(a["streetAddress"]))
		set(parts, "city", String(a["addressLocality"]))
		set(parts, "state", String(a["addressRegion"]))
		set(parts, "postal_code", String(a["postalCode"]))
		set(parts, "country", String(a["addressCountry"]))
		return joinParts(parts), parts
	}
	return "", nil
}

func joinParts(parts map[string]any) string {
	var lines []string
	for _, k := range []string{"street_address", "city", "state", "postal_code"} {
		if s, _ := parts[k].(string); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, ", ")
}

func hoursOf(item map[string]any) any {
	var hours []any
	specs, ok := item["openingHoursSpecification"].([]any)
	if !ok {
		if single, isMap := item["openingHoursSpecification"].(map[string]any); isMap {
			specs = []any{single}
		}
	}
	for _, s := range specs {
		spec, ok := s.(map[string]any)
		if !ok {
			continue
		}
		day := String(spec["dayOfWeek"])
		if days := stringList(spec["dayOfWeek"]); len(days) > 1 {
			day = strings.Join(toStrings(days), ", ")
		}
		entry := map[string]any{}
		set(entry, "day", day[strings.LastIndex(day, "/")+1:])
		set(entry, "opens", String(spec["opens"]))
		set(entry, "closes", String(spec["closes"]))
		if len(entry) > 0 {
			hours = append(hours, entry)
		}
	}
	if len(hours) > 0 {
		return hours
	}
	if text := stringList(item["openingHours"]); len(text) > 0 {
		return text
	}
	return nil
}

func imageOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := imageOf(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return first(String(t["url"]), String(t["contentUrl"]), String(t["src"]))
	}
	return ""
}

func categoriesOf(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return stringList(v)
	}
	var out []any
	for _, item := range list {
		switch c := item.(type) {
		case map[string]any:
			if s := first(String(c["title"]), String(c["name"])); s != "" {
				out = append(out, s)
			}
		default:
			if s := String(c); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringList(v any) []any {
	switch t := v.(type) {
	case string:
		if s := textutil.Normalize(t); s != "" {
			return []any{s}
		}
	case []any:
		var out []any
		for _, item := range t {
			if s := String(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toStrings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func setRating(out map[string]any, v any) {
	if _, ok := out[Rating]; ok {
		return
	}
	switch t := v.(type) {
	case float64:
		out[Rating] = t
	case string:
		if r, ok := textutil.ParseRating(t); ok {
			out[Rating] = r
		}
	case map[string]any:
		setRating(out, first(t["value"], t["ratingValue"]))
	}
}

func setCount(out map[string]any, key, s string) {
	if _, ok := out[key]; ok || s == "" {
		return
	}
	if n, ok := textutil.ParseCount(s); ok {
		out[key] = n
	}
}

func setFloat(out map[string]any, key string, v any) {
	if _, ok := out[key]; ok {
		return
	}
	switch t := v.(type) {
	case float64:
		out[key] = t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			out[key] = f
		}
	}
}

func set(out map[string]any, key string, v any) {
	if !empty(v) {
		out[key] = v
	}
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func first[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
