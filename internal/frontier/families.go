package frontier

import (
	"net/url"
	"regexp"
	"strings"
)

// Family describes the URL conventions of one site family: which paths
// are detail pages, which are listings, and which must never become targets.
type Family struct {
	Name string

	// KeepQuery marks families where the query string identifies a page
	KeepQuery bool

	// DefaultListing treats any non-detail, non-excluded page as a listing
	DefaultListing bool

	hosts        []string
	pathPrefix   string
	detail       []*regexp.Regexp
	listing      []*regexp.Regexp
	otherListing []*regexp.Regexp
	excluded     []*regexp.Regexp
}

func res(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var (
	OpenTable = &Family{
		Name:           "opentable",
		DefaultListing: true,
		hosts:          []string{"opentable.com", "opentable.co.uk", "opentable.ca", "opentable.de", "opentable.com.au"},
		detail:         res(`^/r/[^/?]+`, `^/restaurant/profile/\d+`, `^/restref/client`),
		listing:        res(`^/metro/`, `^/region/`, `^/neighborhood/`, `^/s\?`, `^/s/?$`, `^/landmark/`, `^/cuisine/`),
		otherListing:   res(`^/metro/`, `^/region/`, `^/neighborhood/`, `^/s(/|\?|$)`, `^/landmark/`, `^/cuisine/`, `^/c/`, `^/lists?/`, `^/start/`),
		excluded:       res(`^/restaurant/?$`, `^/profile/`, `^/about`, `^/help`, `^/contact`, `^/terms`, `^/privacy`, `^/gift-cards`, `^/my/`, `^/user/`),
	}

	Yelp = &Family{
		Name:         "yelp",
		hosts:        []string{"yelp.com", "yelp.ca", "yelp.co.uk", "yelp.com.au"},
		detail:       res(`^/biz/[^/?]+$`, `^/biz/[^/?]+\?`),
		listing:      res(`^/search`, `^/c/`, `^/nearme/`, `^/city/`),
		otherListing: res(`^/search`, `^/c/`, `^/nearme/`, `^/city/`, `^/biz_photos/`, `^/writeareview/`, `^/user_details`),
		excluded:     res(`^/login`, `^/signup`, `^/about`, `^/advertise`, `^/guidelines`, `^/static`),
	}

	TripAdvisor = &Family{
		Name:         "tripadvisor",
		hosts:        []string{"tripadvisor.com", "tripadvisor.co.uk", "tripadvisor.ca", "tripadvisor.in"},
		detail:       res(`^/(Restaurant|Attraction|Hotel)_Review-`),
		listing:      res(`^/Restaurants-g`, `^/Attractions-g`, `^/Hotels-g`, `^/Search`, `^/FindRestaurants`),
		otherListing: res(`^/Restaurants-g`, `^/Attractions-g`, `^/Hotels-g`, `^/Search`, `^/FindRestaurants`, `^/Tourism-g`, `^/ShowUserReviews-`),
		excluded:     res(`^/Profile/`, `^/Help`, `^/pages/`),
	}

	GoogleMaps = &Family{
		Name:         "googlemaps",
		hosts:        []string{"google.com", "maps.google.com"},
		pathPrefix:   "/maps",
		detail:       res(`^/maps/place/`),
		listing:      res(`^/maps/search/`),
		otherListing: res(`^/maps/search/`, `^/maps/dir/`, `^/maps/@`),
	}

	YellowPages = &Family{
		Name:         "yellowpages",
		hosts:        []string{"yellowpages.com"},
		detail:       res(`/mip/[^/?]+`),
		listing:      res(`^/search`, `^/[a-z-]+-[a-z]{2}/[a-z-]+$`),
		otherListing: res(`^/search`, `^/[a-z-]+-[a-z]{2}/[a-z-]+$`, `^/categories`),
	}

	// Generic covers every other host. Listing shape is guessed from the
	// path and query; there is no detail convention.
	Generic = &Family{
		Name:      "generic",
		KeepQuery: true,
		listing: res(
			`(?i)/search.*(restaurant|food|dining)`,
			`(?i)[?&](q|query|search|find_desc|keyword)=`,
			`(?i)/(directory|listings?|restaurants|places|locations|stores)/?(\?|$)`,
			`(?i)/(category|categories)/`,
		),
		otherListing: res(
			`(?i)/search`,
			`(?i)/(category|categories|tag|tags|author)/`,
			`(?i)/page/\d+`,
			`(?i)[?&](page|p|offset|start)=\d+`,
			`(?i)/(directory|listings?|restaurants|places|locations|stores)/?(\?|$)`,
		),
		excluded: res(
			`(?i)^/(login|signin|signup|register|account|cart|checkout)`,
			`(?i)^/(about|contact|help|faq|terms|privacy|careers|press|blog)(/|$)`,
			`^/$`,
		),
	}

	families = []*Family{OpenTable, Yelp, TripAdvisor, GoogleMaps, YellowPages}
)

// FamilyFor returns the site family of u, or Generic
func FamilyFor(u *url.URL) *Family {
	host := bareHost(u.Hostname())
	for _, f := range families {
		if f.matchesHost(host) && strings.HasPrefix(u.Path, f.pathPrefix) {
			return f
		}
	}
	return Generic
}

// FamilyOf parses raw and returns its family
func FamilyOf(raw string) *Family {
	u, err := url.Parse(raw)
	if err != nil {
		return Generic
	}
	return FamilyFor(u)
}

func (f *Family) matchesHost(host string) bool {
	for _, h := range f.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Known reports whether the family has a detail-page convention
func (f *Family) Known() bool {
	return len(f.detail) > 0
}

// IsDetail reports whether u is a detail page of this family
func (f *Family) IsDetail(u *url.URL) bool {
	return matchAny(f.detail, pathAndQuery(u))
}

// IsListing reports whether u is a listing page of this family
func (f *Family) IsListing(u *url.URL) bool {
	target := pathAndQuery(u)
	if f.IsDetail(u) || matchAny(f.excluded, target) {
		return false
	}
	if matchAny(f.listing, target) {
		return true
	}
	return f.DefaultListing
}

// Accepts reports whether u may become a detail target discovered on a
// listing of this family. inCard tells whether the link sat inside a
// result card; for families without a detail convention only card links
// and same-host links are eligible.
func (f *Family) Accepts(u *url.URL, listing *url.URL, inCard bool) bool {
	target := pathAndQuery(u)
	if matchAny(f.otherListing, target) || matchAny(f.excluded, target) {
		return false
	}
	if f.Known() {
		return f.IsDetail(u)
	}
	if listing != nil && bareHost(u.Hostname()) != bareHost(listing.Hostname()) {
		return false
	}
	return inCard || detailKeyword.MatchString(u.Path)
}

var detailKeyword = regexp.MustCompile(`(?i)/(restaurant|restaurants|biz|business|place|places|listing|venue|store|stores|location|locations|hotel|property|menu)/[^/]+`)

func pathAndQuery(u *url.URL) string {
	p := u.EscapedPath()
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
