package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///", "mailto:a@b.com"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	cases := map[string]string{
		"/biz/joes-pizza":         "https://www.yelp.com/biz/joes-pizza",
		"next":                    "https://www.yelp.com/search/next",
		"https://other.com/x":     "https://other.com/x",
		"//cdn.example.com/a.png": "https://cdn.example.com/a.png",
	}
	for href, want := range cases {
		if got := ResolveURL("https://www.yelp.com/search/", href); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("https://www.opentable.com/r/the-grill-new-york/"); got != "the-grill-new-york" {
		t.Errorf("unexpected slug %q", got)
	}
	if got := Slug("https://example.com/"); got != "" {
		t.Errorf("expected empty slug, got %q", got)
	}
}
