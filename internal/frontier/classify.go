package frontier

// IsDetailURL reports whether raw is a detail page of a site family with a
// known detail convention
func IsDetailURL(raw string) bool {
	u, err := parseHTTP(raw)
	if err != nil {
		return false
	}
	f := FamilyFor(u)
	return f.Known() && f.IsDetail(u)
}

// IsListingURL reports whether raw looks like a page that lists many
// entities (search results, directory or category pages)
func IsListingURL(raw string) bool {
	u, err := parseHTTP(raw)
	if err != nil {
		return false
	}
	return FamilyFor(u).IsListing(u)
}
