package frontier

import (
	"net/url"
	"regexp"
	"strings"
)

var locationSplit = regexp.MustCompile(`(?i)\s+(?:in|near|around)\s+`)

// SplitQuery separates "sushi in san francisco" into what and where
func SplitQuery(query string) (what, where string) {
	query = strings.Join(strings.Fields(query), " ")
	parts := locationSplit.Split(query, 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return query, ""
}

// SearchSeeds returns directory search pages for a free-text query. Each
// is a listing page of its family.
func SearchSeeds(query string) []string {
	what, where := SplitQuery(query)
	if what == "" {
		return nil
	}
	full := strings.TrimSpace(what + " " + where)

	ot := url.Values{"term": {full}}
	yelp := url.Values{"find_desc": {what}}
	if where != "" {
		yelp.Set("find_loc", where)
	}
	ta := url.Values{"q": {full}}
	yp := url.Values{"search_terms": {what}}
	if where != "" {
		yp.Set("geo_location_terms", where)
	}

	return []string{
		"https://www.opentable.com/s?" + ot.Encode(),
		"https://www.yelp.com/search?" + yelp.Encode(),
		"https://www.tripadvisor.com/Search?" + ta.Encode(),
		"https://www.yellowpages.com/search?" + yp.Encode(),
	}
}
