package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/pkg/models"
)

func TestExtractKeepsPageResponses(t *testing.T) {
	capture := &models.PageCapture{
		URL:   "https://www.yelp.com/biz/golden-gate-bakery-san-francisco",
		Title: "Golden Gate Bakery - San Francisco | Yelp",
		Network: []models.NetworkCapture{
			{URL: "https://www.yelp.com/api/ads", Status: 200, MIMEType: "application/json", Body: []byte(`{"ads":[]}`)},
			{URL: "https://www.yelp.com/api/biz", Status: 200, MIMEType: "application/json", Body: []byte(`{
				"also_viewed":[{"alias":"other-bakery","name":"Other Bakery","rating":3.0,"location":{"city":"Oakland"}}],
				"business":{"alias":"golden-gate-bakery-san-francisco","name":"Golden Gate Bakery","rating":4.5,
					"review_count":1890,"display_phone":"(415) 781-2555","price":"$",
					"categories":[{"title":"Bakeries"}],"location":{"address1":"1029 Grant Ave","city":"San Francisco","state":"CA","zip_code":"94133"},
					"coordinates":{"latitude":37.796,"longitude":-122.406}}}`)},
			{URL: "https://www.yelp.com/api/broken", Status: 200, MIMEType: "application/json", Body: []byte(`golden-gate-bakery-san-francisco {`)},
		},
	}

	got, err := Extract(capture)
	require.NoError(t, err)

	kept := got["network_data"].([]any)
	require.Len(t, kept, 1, "unrelated and undecodable bodies are dropped")
	assert.Equal(t, "https://www.yelp.com/api/biz", kept[0].(map[string]any)["url"])

	assert.Equal(t, "Golden Gate Bakery", got["name"], "entity matching the page wins over earlier ones")
	assert.Equal(t, 4.5, got["rating"])
	assert.Equal(t, 1890, got["review_count"])
	assert.Equal(t, "(415) 781-2555", got["phone"])
	assert.Equal(t, []any{"Bakeries"}, got["cuisine"])
	assert.Equal(t, 37.796, got["latitude"])
	assert.Equal(t, "1029 Grant Ave, San Francisco, CA, 94133", got["address"])
}

func TestExtractNoCaptures(t *testing.T) {
	got, err := Extract(&models.PageCapture{URL: "https://x.example/"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIdentityTokens(t *testing.T) {
	tokens := identityTokens(&models.PageCapture{
		URL:      "https://www.opentable.com/r/cafe-uno",
		FinalURL: "https://www.opentable.com/r/cafe-uno?ref=1",
		Title:    "Cafe Uno | OpenTable",
	})
	assert.Equal(t, []string{"cafe-uno", "/r/cafe-uno", "cafe uno"}, tokens)
}
