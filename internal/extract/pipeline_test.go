package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/extract/freetext"
	"github.com/law-makers/harvest/pkg/models"
)

func TestMergeSpecificWins(t *testing.T) {
	dst := map[string]any{
		"name":    "Generic Title",
		"phone":   "555",
		"contact": map[string]any{"phone": "555", "email": "a@b.example"},
	}
	src := map[string]any{
		"name":    "Joe's",
		"phone":   "",
		"contact": map[string]any{"phone": "777"},
		"tags":    []any{},
	}
	got := Merge(dst, src)
	assert.Equal(t, "Joe's", got["name"])
	assert.Equal(t, "555", got["phone"], "empty values never override")
	assert.Equal(t, map[string]any{"phone": "777", "email": "a@b.example"}, got["contact"])
	assert.NotContains(t, got, "tags")
}

func TestFillOnlyAddsMissing(t *testing.T) {
	dst := map[string]any{"email": "site@x.example", "contact": map[string]any{"phone": "1"}}
	src := map[string]any{
		"email":   "other@x.example",
		"phones":  []any{"2"},
		"contact": map[string]any{"phone": "3", "fax": "4"},
	}
	got := Fill(dst, src)
	assert.Equal(t, "site@x.example", got["email"])
	assert.Equal(t, []any{"2"}, got["phones"])
	assert.Equal(t, map[string]any{"phone": "1", "fax": "4"}, got["contact"])
}

func fixed(name string, out map[string]any) Strategy {
	return Strategy{Name: name, Run: func(context.Context, *models.PageCapture, Options) (map[string]any, error) {
		return out, nil
	}}
}

func TestPipelineIsolatesFailures(t *testing.T) {
	failing := Strategy{Name: "broken", Run: func(context.Context, *models.PageCapture, Options) (map[string]any, error) {
		return nil, errors.New("bad markup")
	}}
	panicking := Strategy{Name: "panicky", Run: func(context.Context, *models.PageCapture, Options) (map[string]any, error) {
		var m map[string]any
		m["boom"] = 1
		return m, nil
	}}
	p := NewWithStrategies(nil,
		fixed("first", map[string]any{"name": "A", "rating": 4.0}),
		failing,
		panicking,
		fixed("last", map[string]any{"name": "B"}),
	)

	rec, errs := p.Extract(context.Background(), &models.PageCapture{URL: "https://x.example/p"}, Options{})
	assert.Equal(t, "B", rec["name"])
	assert.Equal(t, 4.0, rec["rating"])
	assert.Equal(t, "https://x.example/p", rec.URL())

	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.Equal(t, engine.KindExtraction, engine.KindOf(err))
		assert.False(t, engine.IsRetryable(err))
	}
}

func TestPipelineEmptyRecord(t *testing.T) {
	p := NewWithStrategies(nil, fixed("nothing", map[string]any{"title": ""}))
	rec, errs := p.Extract(context.Background(), &models.PageCapture{URL: "https://x.example/"}, Options{})
	assert.Empty(t, errs)
	assert.Equal(t, models.EmptyRecord("https://x.example/"), rec)
}

func TestPipelineGoalFillsLast(t *testing.T) {
	c := freetext.CapabilityFunc(func(_ context.Context, text, goal string) (map[string]any, error) {
		return map[string]any{"name": "From model", "chef": "Ana"}, nil
	})
	p := NewWithStrategies(c, fixed("page", map[string]any{"name": "From page", "full_text": "Chef Ana cooks."}))

	rec, _ := p.Extract(context.Background(), &models.PageCapture{URL: "https://x.example/"}, Options{Goal: "who is the chef"})
	assert.Equal(t, "From page", rec["name"])
	assert.Equal(t, "Ana", rec["chef"])

	rec, _ = p.Extract(context.Background(), &models.PageCapture{URL: "https://x.example/"}, Options{})
	assert.NotContains(t, rec, "chef", "no goal, no free-text pass")
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewWithStrategies(nil, fixed("page", map[string]any{"name": "A"}))
	rec, errs := p.Extract(ctx, &models.PageCapture{URL: "https://x.example/"}, Options{})
	assert.Equal(t, models.NoDataExtracted, rec[models.FieldExtractionStatus])
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

const restaurantPage = `<html lang="en"><head>
<title>Joe's Bistro - Chicago | OpenTable</title>
<meta name="description" content="French bistro in River North">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Restaurant","name":"Joe's Bistro",
 "telephone":"+1 312-555-0100","servesCuisine":"French","priceRange":"$$$",
 "address":{"@type":"PostalAddress","streetAddress":"12 Main St","addressLocality":"Chicago","addressRegion":"IL","postalCode":"60601"},
 "aggregateRating":{"ratingValue":"4.6","reviewCount":"980"}}
</script>
</head><body>
<h1 data-test="restaurant-name">Joe's Bistro</h1>
<div data-test="rating-value">4.7</div>
<article><p>Classic French cooking since 1998.</p></article>
</body></html>`

func TestPipelineDefaultStrategies(t *testing.T) {
	p := New(nil)
	rec, errs := p.Extract(context.Background(), &models.PageCapture{
		URL:  "https://www.opentable.com/r/joes-bistro-chicago",
		HTML: restaurantPage,
	}, Options{})
	assert.Empty(t, errs)

	assert.Equal(t, "https://www.opentable.com/r/joes-bistro-chicago", rec.URL())
	assert.Equal(t, "Joe's Bistro", rec["name"])
	assert.Equal(t, 4.7, rec["rating"], "site extractor overrides structured data")
	assert.Equal(t, 980, rec["review_count"])
	assert.Equal(t, "12 Main St, Chicago, IL, 60601", rec["address"])
	assert.Equal(t, "opentable", rec["source"])
	assert.Equal(t, "en", rec["language"])
	assert.Contains(t, rec, "structured_data")
	assert.Contains(t, rec["full_text"], "Classic French cooking")
}

const contactPage = `<html lang="en"><head>
<title>Joe's Bistro - Chicago | OpenTable</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Restaurant","name":"Joe's Bistro",
 "telephone":"+1 312-555-0100","priceRange":"$$$"}
</script>
</head><body>
<h1 data-test="restaurant-name">Joe's Bistro</h1>
<div data-test="rating-value">4.7</div>
<article>
<p>Private events: events@joesbistro.example or call (312) 555-0199.</p>
<p>Tasting menu $85 per person.</p>
</article>
</body></html>`

func TestPipelineGoalFallsBackToPatterns(t *testing.T) {
	capture := &models.PageCapture{URL: "https://www.opentable.com/r/joes-bistro-chicago", HTML: contactPage}
	unavailable := freetext.CapabilityFunc(func(context.Context, string, string) (map[string]any, error) {
		return nil, freetext.ErrUnavailable
	})

	for name, p := range map[string]*Pipeline{"no capability": New(nil), "unavailable": New(unavailable)} {
		t.Run(name, func(t *testing.T) {
			rec, errs := p.Extract(context.Background(), capture, Options{Goal: "contact details and prices"})
			assert.Empty(t, errs)

			assert.Equal(t, []any{"events@joesbistro.example"}, rec["emails"])
			assert.Contains(t, rec["phones"], "(312) 555-0199")
			assert.Contains(t, rec["prices"], "$85")

			assert.Equal(t, "Joe's Bistro", rec["name"])
			assert.Equal(t, "+1 312-555-0100", rec["phone"], "structured phone is kept")
			assert.Equal(t, 4.7, rec["rating"])
		})
	}

	rec, _ := New(nil).Extract(context.Background(), capture, Options{})
	assert.NotContains(t, rec, "emails", "no goal, no pattern scan")
}

func TestPipelinePatternsRankBelowStrategies(t *testing.T) {
	p := NewWithStrategies(nil, fixed("page", map[string]any{
		"emails":    []any{"owner@x.example"},
		"full_text": "Write to info@x.example or call 415-555-0123. Mains from $24.",
	}))

	rec, _ := p.Extract(context.Background(), &models.PageCapture{URL: "https://x.example/"}, Options{Goal: "contacts"})
	assert.Equal(t, []any{"owner@x.example"}, rec["emails"])
	assert.Equal(t, []any{"415-555-0123"}, rec["phones"])
	assert.Equal(t, []any{"$24"}, rec["prices"])
}
