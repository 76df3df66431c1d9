package embedded

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/pkg/models"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestJSONLDFlattensGraph(t *testing.T) {
	doc := parse(t, `<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"Page"},
  {"@type":"Restaurant","name":"Cafe Uno"}
]}</script>
<script type="application/ld+json">[{"@type":"BreadcrumbList"}]</script>
<script type="application/ld+json">{not json</script>`)

	got := JSONLD(doc)
	require.Len(t, got, 3)
	assert.Equal(t, "WebPage", got[0].(map[string]any)["@type"])
	assert.Equal(t, "Cafe Uno", got[1].(map[string]any)["name"])
	assert.Equal(t, "BreadcrumbList", got[2].(map[string]any)["@type"])
}

func TestMicrodata(t *testing.T) {
	doc := parse(t, `<div itemscope itemtype="https://schema.org/Restaurant">
  <h1 itemprop="name">Cafe Uno</h1>
  <a itemprop="url" href="https://cafeuno.example/">site</a>
  <div itemprop="address" itemscope itemtype="https://schema.org/PostalAddress">
    <span itemprop="streetAddress">1 Via Roma</span>
  </div>
  <span itemprop="servesCuisine">Italian</span>
  <span itemprop="servesCuisine">Pizza</span>
</div>`)

	got := Microdata(doc)
	require.Len(t, got, 1)
	item := got[0].(map[string]any)
	assert.Equal(t, "Restaurant", item["@type"])
	assert.Equal(t, "Cafe Uno", item["name"])
	assert.Equal(t, "https://cafeuno.example/", item["url"])
	assert.Equal(t, []any{"Italian", "Pizza"}, item["servesCuisine"])
	address := item["address"].(map[string]any)
	assert.Equal(t, "1 Via Roma", address["streetAddress"])
}

func TestStateEvaluatesInlineScripts(t *testing.T) {
	doc := parse(t, `<script>
window.__INITIAL_STATE__ = {"place": {"name": "Cafe Uno", "rating": 4.4, "address": "1 Via Roma"}};
document.querySelector("#app").dataset.ready = true;
</script>
<script src="/bundle.js">window.__NUXT__ = 1</script>
<script>window.__PRELOADED_STATE__ = (function(){ return {items: [1, 2]}; })();</script>
<script>window.pageData = {}; while (true) {}</script>`)

	got := State(doc, "https://cafeuno.example/")
	require.Contains(t, got, "__INITIAL_STATE__", "assignments before a failing statement survive")
	place := got["__INITIAL_STATE__"].(map[string]any)["place"].(map[string]any)
	assert.Equal(t, "Cafe Uno", place["name"])
	assert.Equal(t, 4.4, place["rating"])

	assert.Equal(t, map[string]any{"items": []any{1.0, 2.0}}, got["__PRELOADED_STATE__"])
	assert.NotContains(t, got, "__NUXT__", "external scripts are not evaluated")
	assert.Equal(t, map[string]any{}, got["pageData"], "runaway scripts are interrupted")
}

func TestExtractPromotesBusiness(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"@type":"Restaurant","name":"Cafe Uno","telephone":"+39 06 555 0101",
"url":"https://cafeuno.example/","geo":{"latitude":41.9,"longitude":12.5}}</script>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"business":{"name":"Cafe Uno","rating":4.5,"review_count":212,"location":{"city":"Rome"}}}}}</script>
</head><body></body></html>`

	got, err := Extract(&models.PageCapture{URL: "https://www.yelp.com/biz/cafe-uno-rome", HTML: page})
	require.NoError(t, err)

	assert.Equal(t, "Cafe Uno", got["name"])
	assert.Equal(t, "+39 06 555 0101", got["phone"])
	assert.Equal(t, "https://cafeuno.example/", got["website"])
	assert.Equal(t, 41.9, got["latitude"])
	assert.Equal(t, 4.5, got["rating"], "app payload fills what schema.org left open")
	assert.Equal(t, 212, got["review_count"])

	blobs := got["structured_data"].(map[string]any)
	assert.Contains(t, blobs, "json_ld")
	assert.Contains(t, blobs, "next_data")
	assert.NotContains(t, got, "businesses")
}

func TestExtractNothingEmbedded(t *testing.T) {
	got, err := Extract(&models.PageCapture{URL: "https://x.example/", HTML: "<p>plain</p>"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
