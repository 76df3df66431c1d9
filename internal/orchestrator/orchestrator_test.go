package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/store"
	"github.com/law-makers/harvest/pkg/models"
)

const listingURL = "https://www.opentable.com/metro/boston"

// page is a canned response. The first failures fetches return err.
type page struct {
	html     string
	err      error
	failures int
	slow     bool
}

type fakeFetcher struct {
	name string

	mu       sync.Mutex
	pages    map[string]*page
	calls    map[string]int
	inflight int
	peak     int
	delay    time.Duration
}

func newFakeFetcher(name string) *fakeFetcher {
	return &fakeFetcher{name: name, pages: map[string]*page{}, calls: map[string]int{}}
}

func (f *fakeFetcher) set(url string, p *page) {
	f.mu.Lock()
	f.pages[frontier.Key(url)] = p
	f.mu.Unlock()
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[frontier.Key(url)]
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*models.PageCapture, error) {
	key := frontier.Key(url)
	f.mu.Lock()
	f.calls[key]++
	n := f.calls[key]
	p := f.pages[key]
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	switch {
	case p == nil:
		return nil, engine.FetchError(engine.ErrCodeHTTPStatus, "HTTP 404 from "+url, nil).WithStatus(http.StatusNotFound)
	case p.slow:
		<-ctx.Done()
		return nil, ctx.Err()
	case n <= p.failures:
		return nil, p.err
	case p.failures == 0 && p.err != nil:
		return nil, p.err
	}
	return &models.PageCapture{URL: url, StatusCode: http.StatusOK, HTML: p.html, Rendered: f.name == "browser"}, nil
}

type fakeSession struct {
	*fakeFetcher
	browser  *fakeBrowser
	released int32
}

func (s *fakeSession) Release() error {
	if atomic.CompareAndSwapInt32(&s.released, 0, 1) {
		atomic.AddInt32(&s.browser.open, -1)
	}
	return nil
}

type fakeBrowser struct {
	fetcher    *fakeFetcher
	acquireErr error
	open       int32
	acquired   int32
}

func (b *fakeBrowser) Acquire(ctx context.Context) (engine.Session, error) {
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	atomic.AddInt32(&b.acquired, 1)
	atomic.AddInt32(&b.open, 1)
	return &fakeSession{fakeFetcher: b.fetcher, browser: b}, nil
}

type fakeSource struct {
	records []models.Record
	err     error
}

func (s *fakeSource) Search(context.Context, string) ([]models.Record, error) {
	return s.records, s.err
}

type countingObserver struct {
	mu       sync.Mutex
	added    int
	finished map[string]int
}

func (o *countingObserver) TargetsAdded(_ *models.Job, n int) {
	o.mu.Lock()
	o.added += n
	o.mu.Unlock()
}

func (o *countingObserver) TargetFinished(_ *models.Job, t models.TargetURL) {
	o.mu.Lock()
	if o.finished == nil {
		o.finished = map[string]int{}
	}
	o.finished[t.URL]++
	o.mu.Unlock()
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:          3,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           time.Millisecond,
		Multiplier:           1,
		RetryableStatusCodes: retry.DefaultConfig().RetryableStatusCodes,
	}
}

type harness struct {
	o       *Orchestrator
	store   store.Store
	http    *fakeFetcher
	browser *fakeBrowser
	obs     *countingObserver
}

func newHarness(t *testing.T, cfg Config, withBrowser bool) *harness {
	t.Helper()
	h := &harness{
		store: store.NewMemoryStore(),
		http:  newFakeFetcher("static"),
		obs:   &countingObserver{},
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastRetry()
	}
	deps := Deps{Store: h.store, HTTP: h.http, Observer: h.obs}
	if withBrowser {
		h.browser = &fakeBrowser{fetcher: newFakeFetcher("browser")}
		deps.Browser = h.browser
	}
	h.o = New(cfg, deps)
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context, spec models.JobSpec) *models.JobOutcome {
	t.Helper()
	job, err := h.o.Submit(ctx, spec)
	require.NoError(t, err)
	out, err := h.o.Run(ctx, job.ID)
	require.NoError(t, err)
	return out
}

func detail(name string) string {
	return "https://www.opentable.com/r/" + name
}

func detailHTML(name string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body><h1>%s</h1><p>Neighborhood restaurant serving %s classics every night.</p></body></html>`, name, name, name)
}

func listingHTML(names ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Boston restaurants</title></head><body><div class="results">`)
	for _, n := range names {
		fmt.Fprintf(&b, `<article class="card"><a href="/r/%s">%s</a></article>`, n, n)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func spec(url string) models.JobSpec {
	s := models.DefaultJobSpec()
	s.URL = url
	return s
}

func statuses(out *models.JobOutcome) map[string]models.TargetStatus {
	m := map[string]models.TargetStatus{}
	for _, t := range out.Targets {
		m[t.URL] = t.Status
	}
	return m
}

func TestSingleDetailPage(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(detail("cafe-uno"), &page{html: detailHTML("Cafe Uno")})

	out := h.run(t, context.Background(), spec(detail("cafe-uno")))

	assert.Equal(t, models.KindSingle, out.Job.Kind)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 1)
	target := out.Targets[0]
	assert.Equal(t, models.TargetDone, target.Status)
	assert.Equal(t, 1, target.Attempts)
	assert.Equal(t, detail("cafe-uno"), target.Record.URL())
	assert.Contains(t, fmt.Sprint(target.Record["full_text"]), "Cafe Uno")
	assert.NotNil(t, out.Job.FinishedAt)
	assert.Equal(t, 1, out.Progress.Done)
}

func TestListingExpandsWithPartialFailure(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(listingURL, &page{html: listingHTML("cafe-uno", "bar-due", "gone", "cafe-uno")})
	h.http.set(detail("cafe-uno"), &page{html: detailHTML("Cafe Uno")})
	h.http.set(detail("bar-due"), &page{
		html:     detailHTML("Bar Due"),
		failures: 2,
		err:      engine.FetchError(engine.ErrCodeHTTPStatus, "HTTP 503", nil).WithStatus(http.StatusServiceUnavailable),
	})

	out := h.run(t, context.Background(), spec(listingURL))

	assert.Equal(t, models.KindListing, out.Job.Kind)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 3, "duplicate links collapse into one target")

	got := statuses(out)
	assert.Equal(t, models.TargetDone, got[detail("cafe-uno")])
	assert.Equal(t, models.TargetDone, got[detail("bar-due")])
	assert.Equal(t, models.TargetFailed, got[detail("gone")])

	for _, target := range out.Targets {
		switch target.URL {
		case detail("bar-due"):
			assert.Equal(t, 3, target.Attempts)
		case detail("gone"):
			assert.Equal(t, 1, target.Attempts, "404 is not retried")
			assert.Equal(t, string(engine.KindFetch), target.ErrorKind)
			assert.Nil(t, target.Record)
		}
	}
	assert.Equal(t, 1, h.http.count(detail("gone")))
	assert.Equal(t, 3, h.obs.added)
	assert.Len(t, h.obs.finished, 3)
}

func TestListingWithoutCandidatesWarns(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(listingURL, &page{html: `<html><body><p>No restaurants match.</p></body></html>`})

	out := h.run(t, context.Background(), spec(listingURL))

	assert.Equal(t, models.JobCompleted, out.Job.Status)
	assert.Empty(t, out.Targets)
	require.Len(t, out.Job.Warnings, 1)
	assert.Contains(t, out.Job.Warnings[0], "no detail URLs")
}

func TestListingSeedFailureBecomesTarget(t *testing.T) {
	h := newHarness(t, Config{}, false)

	out := h.run(t, context.Background(), spec(listingURL))

	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 1)
	assert.Equal(t, models.TargetFailed, out.Targets[0].Status)
	assert.NotEmpty(t, out.Job.Warnings)
}

func TestRenderJobSetupFailure(t *testing.T) {
	h := newHarness(t, Config{}, true)
	h.browser.acquireErr = engine.SetupError(engine.ErrCodeBrowserCrash, "no chrome", engine.ErrBrowserNotFound)

	s := spec(detail("cafe-uno"))
	s.Render = true
	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.JobFailed, out.Job.Status)
	assert.Contains(t, out.Job.Error, "no chrome")
	assert.Empty(t, out.Targets)
	assert.Zero(t, h.http.count(detail("cafe-uno")))
}

func TestRenderJobUsesBrowser(t *testing.T) {
	h := newHarness(t, Config{}, true)
	h.browser.fetcher.set(detail("cafe-uno"), &page{html: detailHTML("Cafe Uno")})

	s := spec(detail("cafe-uno"))
	s.Render = true
	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.JobCompleted, out.Job.Status)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
	assert.Zero(t, h.http.count(detail("cafe-uno")))
	assert.EqualValues(t, 1, h.browser.acquired)
	assert.EqualValues(t, 0, h.browser.open, "session released")
}

func TestEscalatesScriptShell(t *testing.T) {
	shell := `<html><body><div id="root"></div><script src="/static/js/main.js"></script></body></html>`

	h := newHarness(t, Config{AutoRender: true}, true)
	h.http.set(detail("cafe-uno"), &page{html: shell})
	h.browser.fetcher.set(detail("cafe-uno"), &page{html: detailHTML("Cafe Uno")})

	out := h.run(t, context.Background(), spec(detail("cafe-uno")))
	require.Len(t, out.Targets, 1)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
	assert.Contains(t, fmt.Sprint(out.Targets[0].Record["full_text"]), "Cafe Uno")
	assert.Equal(t, 1, h.browser.fetcher.count(detail("cafe-uno")))
	assert.EqualValues(t, 0, h.browser.open)

	off := newHarness(t, Config{AutoRender: false}, true)
	off.http.set(detail("cafe-uno"), &page{html: shell})
	out = off.run(t, context.Background(), spec(detail("cafe-uno")))
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
	assert.EqualValues(t, 0, off.browser.acquired)
}

func TestEscalationFailureKeepsStaticCapture(t *testing.T) {
	shell := `<html><body><div id="root"></div><script src="/static/js/main.js"></script></body></html>`

	h := newHarness(t, Config{AutoRender: true}, true)
	h.browser.acquireErr = engine.SetupError(engine.ErrCodeBrowserCrash, "no chrome", engine.ErrBrowserNotFound)
	h.http.set(detail("cafe-uno"), &page{html: shell})

	out := h.run(t, context.Background(), spec(detail("cafe-uno")))
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
}

func TestJobTimeoutFailsRemainingTargets(t *testing.T) {
	h := newHarness(t, Config{JobTimeout: 100 * time.Millisecond}, true)
	h.http.set(listingURL, &page{html: listingHTML("a", "b", "c")})
	h.http.set(detail("a"), &page{html: detailHTML("A")})
	h.http.set(detail("b"), &page{slow: true})
	h.http.set(detail("c"), &page{html: detailHTML("C")})

	s := spec(listingURL)
	s.Concurrency = 1
	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.JobTimedOut, out.Job.Status)
	require.Len(t, out.Targets, 3)
	got := statuses(out)
	assert.Equal(t, models.TargetDone, got[detail("a")])
	assert.Equal(t, models.TargetFailed, got[detail("b")])
	assert.Equal(t, models.TargetFailed, got[detail("c")])
	for _, target := range out.Targets {
		assert.True(t, target.Status.Terminal(), "%s left %s", target.URL, target.Status)
	}
	assert.EqualValues(t, 0, h.browser.open)
}

func TestCancelledJob(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(listingURL, &page{html: listingHTML("a", "b")})
	h.http.set(detail("a"), &page{slow: true})
	h.http.set(detail("b"), &page{html: detailHTML("B")})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	s := spec(listingURL)
	s.Concurrency = 1
	out := h.run(t, ctx, s)

	assert.Equal(t, models.JobFailed, out.Job.Status)
	assert.Equal(t, "job cancelled", out.Job.Error)
	for _, target := range out.Targets {
		assert.Equal(t, models.TargetFailed, target.Status)
	}
}

func TestConcurrentTargets(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	h := newHarness(t, Config{MaxConcurrency: 4}, false)
	h.http.delay = 20 * time.Millisecond
	h.http.set(listingURL, &page{html: listingHTML(names...)})
	for _, n := range names {
		h.http.set(detail(n), &page{html: detailHTML(n)})
	}

	s := spec(listingURL)
	s.Concurrency = 8
	s.MaxTargets = 8
	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.JobCompleted, out.Job.Status)
	assert.Equal(t, 8, out.Progress.Done)
	assert.Greater(t, h.http.peak, 1)
	assert.LessOrEqual(t, h.http.peak, 4)
}

func TestMaxTargetsBound(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(listingURL, &page{html: listingHTML("a", "b", "c", "d")})
	for _, n := range []string{"a", "b", "c", "d"} {
		h.http.set(detail(n), &page{html: detailHTML(n)})
	}

	s := spec(listingURL)
	s.MaxTargets = 2
	out := h.run(t, context.Background(), s)

	require.Len(t, out.Targets, 2)
	assert.Equal(t, detail("a"), out.Targets[0].URL)
	assert.Equal(t, detail("b"), out.Targets[1].URL)
}

func TestMarkupJob(t *testing.T) {
	h := newHarness(t, Config{}, false)
	s := models.DefaultJobSpec()
	s.Markup = detailHTML("Cafe Uno")

	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.KindMarkup, out.Job.Kind)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 1)
	assert.Equal(t, "markup:"+out.Job.ID, out.Targets[0].URL)
	assert.Contains(t, fmt.Sprint(out.Targets[0].Record["full_text"]), "Cafe Uno")
}

func TestMarkupListingExpands(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.http.set(detail("a"), &page{html: detailHTML("A")})

	s := models.DefaultJobSpec()
	s.Markup = listingHTML("a")
	s.SourceURL = listingURL
	out := h.run(t, context.Background(), s)

	require.Len(t, out.Targets, 1)
	assert.Equal(t, detail("a"), out.Targets[0].URL)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
}

func TestCrawlJob(t *testing.T) {
	h := newHarness(t, Config{}, false)
	root := "https://example.com/"
	h.http.set(root, &page{html: `<html><body><a href="/menu">Menu</a><a href="/hours">Hours</a><a href="https://other.example.org/">x</a></body></html>`})
	h.http.set("https://example.com/menu", &page{html: `<html><body><p>Menu</p><a href="/deep">deep</a></body></html>`})
	h.http.set("https://example.com/hours", &page{html: `<html><body><p>Hours</p></body></html>`})

	s := spec(root)
	s.Mode = models.ModeCrawl
	s.MaxDepth = 1
	out := h.run(t, context.Background(), s)

	assert.Equal(t, models.KindCrawl, out.Job.Kind)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	got := statuses(out)
	assert.Len(t, got, 3)
	assert.Equal(t, models.TargetDone, got["https://example.com/menu"])
	assert.Zero(t, h.http.count("https://example.com/deep"))
	assert.Zero(t, h.http.count("https://other.example.org/"))
}

func TestExternalJob(t *testing.T) {
	h := newHarness(t, Config{}, false)
	s := models.DefaultJobSpec()
	s.Query = "sushi in boston"
	s.Mode = models.ModeExternal

	out := h.run(t, context.Background(), s)
	assert.Equal(t, models.JobFailed, out.Job.Status)
	assert.Contains(t, out.Job.Error, "external source")

	h.o.deps.External = &fakeSource{records: []models.Record{
		{"url": "https://maps.example/p/1", "name": "Sushi Ten"},
		{"name": "No Link Sushi"},
	}}
	out = h.run(t, context.Background(), s)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 2)
	assert.Equal(t, "Sushi Ten", out.Targets[0].Record["name"])
	assert.True(t, strings.HasPrefix(out.Targets[1].URL, "external:"))
	assert.Equal(t, out.Targets[1].URL, out.Targets[1].Record.URL())
}

func TestResubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, false)
	h.http.set(listingURL, &page{html: listingHTML("a", "b")})
	h.http.set(detail("a"), &page{html: detailHTML("A")})

	out := h.run(t, ctx, spec(listingURL))
	require.Equal(t, models.TargetFailed, statuses(out)[detail("b")])
	jobID := out.Job.ID

	_, err := h.o.Resubmit(ctx, jobID, []string{detail("nope")})
	assert.ErrorIs(t, err, ErrUnknownTarget)

	h.http.set(detail("b"), &page{html: detailHTML("B")})
	out, err = h.o.Resubmit(ctx, jobID, []string{detail("b")})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	assert.Equal(t, models.TargetDone, statuses(out)[detail("b")])
	assert.Len(t, out.Targets, 2)
	assert.Equal(t, 1, h.http.count(detail("a")), "untouched targets are not refetched")
	assert.Equal(t, 1, h.http.count(listingURL), "nothing is rediscovered")

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	job.Status = models.JobRunning
	require.NoError(t, h.store.SaveJob(ctx, job))
	_, err = h.o.Resubmit(ctx, jobID, []string{detail("b")})
	assert.ErrorIs(t, err, ErrJobRunning)
	_, err = h.o.Run(ctx, jobID)
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestResubmitMarkupKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, false)
	s := models.DefaultJobSpec()
	s.Markup = detailHTML("Cafe Uno")
	out := h.run(t, ctx, s)
	require.Equal(t, models.JobCompleted, out.Job.Status)
	source := "markup:" + out.Job.ID

	out, err := h.o.Resubmit(ctx, out.Job.ID, []string{source})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 1)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
	assert.Contains(t, fmt.Sprint(out.Targets[0].Record["full_text"]), "Cafe Uno")
	assert.Zero(t, h.http.count(source), "markup is never fetched")
}

func TestResubmitMarkupWithSourceURL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, false)
	s := models.DefaultJobSpec()
	s.Markup = detailHTML("Cafe Uno")
	s.SourceURL = detail("cafe-uno")
	s.Mode = models.ModeSingle
	out := h.run(t, ctx, s)
	require.Equal(t, models.JobCompleted, out.Job.Status)

	out, err := h.o.Resubmit(ctx, out.Job.ID, []string{detail("cafe-uno")})
	require.NoError(t, err)
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
	assert.Zero(t, h.http.count(detail("cafe-uno")))
}

func TestResubmitExternalRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, false)
	h.o.deps.External = &fakeSource{records: []models.Record{
		{"url": "https://maps.example/p/1", "name": "Sushi Ten"},
		{"name": "No Link Sushi"},
	}}
	s := models.DefaultJobSpec()
	s.Query = "sushi in boston"
	s.Mode = models.ModeExternal
	out := h.run(t, ctx, s)
	require.Len(t, out.Targets, 2)

	for _, target := range out.Targets {
		_, err := h.o.Resubmit(ctx, out.Job.ID, []string{target.URL})
		assert.ErrorIs(t, err, ErrNotRefetchable, target.URL)
	}

	after, err := h.o.Status(ctx, out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, after.Job.Status)
	for _, target := range after.Targets {
		assert.Equal(t, models.TargetDone, target.Status)
		assert.NotNil(t, target.Record)
	}
	assert.Zero(t, h.http.count("https://maps.example/p/1"))
}

type blockList map[string]bool

func (b blockList) Check(_ context.Context, url string) error {
	if b[frontier.Key(url)] {
		return engine.NewEngineError(engine.KindFetch, engine.ErrCodeBlocked, "blocked by robots.txt: "+url, engine.ErrRobotsDisallow)
	}
	return nil
}

func TestRobotsBlockedTargetFails(t *testing.T) {
	h := newHarness(t, Config{}, false)
	h.o.deps.Robots = blockList{frontier.Key(detail("b")): true}
	h.http.set(listingURL, &page{html: listingHTML("a", "b")})
	h.http.set(detail("a"), &page{html: detailHTML("A")})
	h.http.set(detail("b"), &page{html: detailHTML("B")})

	out := h.run(t, context.Background(), spec(listingURL))

	assert.Equal(t, models.JobCompleted, out.Job.Status)
	require.Len(t, out.Targets, 2)
	blocked := out.Targets[1]
	assert.Equal(t, detail("b"), blocked.URL)
	assert.Equal(t, models.TargetFailed, blocked.Status)
	assert.Equal(t, string(engine.KindFetch), blocked.ErrorKind)
	assert.Contains(t, blocked.Error, "robots.txt")
	assert.Equal(t, 1, blocked.Attempts, "a robots block is not retried")
	assert.Zero(t, h.http.count(detail("b")))
	assert.Equal(t, models.TargetDone, out.Targets[0].Status)
}

func TestRunTerminalJobReturnsOutcome(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, false)
	h.http.set(detail("a"), &page{html: detailHTML("A")})

	out := h.run(t, ctx, spec(detail("a")))
	again, err := h.o.Run(ctx, out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, again.Job.Status)
	assert.Equal(t, 1, h.http.count(detail("a")))
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, Config{}, false)
	ctx := context.Background()

	both := spec(detail("a"))
	both.Query = "pizza"
	external := models.DefaultJobSpec()
	external.URL = detail("a")
	external.Mode = models.ModeExternal
	tooMany := spec(detail("a"))
	tooMany.MaxTargets = 5000
	badMode := spec(detail("a"))
	badMode.Mode = "everything"

	cases := map[string]models.JobSpec{
		"no seed":   models.DefaultJobSpec(),
		"two seeds": both,
		"external":  external,
		"max":       tooMany,
		"mode":      badMode,
		"bad url":   spec("not a url"),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.o.Submit(ctx, s)
			require.Error(t, err)
			assert.True(t, engine.IsSetup(err))
		})
	}

	jobs, err := h.o.Jobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestClassify(t *testing.T) {
	with := func(url string, mutate func(*models.JobSpec)) models.JobSpec {
		s := spec(url)
		if mutate != nil {
			mutate(&s)
		}
		return s
	}

	cases := []struct {
		name string
		spec models.JobSpec
		want models.JobKind
	}{
		{"detail", with(detail("a"), nil), models.KindSingle},
		{"listing", with(listingURL, nil), models.KindListing},
		{"yelp search", with("https://www.yelp.com/search?find_desc=pizza", nil), models.KindListing},
		{"no expansion", with(listingURL, func(s *models.JobSpec) { s.ExpandDetails = false }), models.KindSingle},
		{"explicit single", with(listingURL, func(s *models.JobSpec) { s.Mode = models.ModeSingle }), models.KindSingle},
		{"explicit crawl", with("https://example.com/", func(s *models.JobSpec) { s.Mode = models.ModeCrawl }), models.KindCrawl},
		{"plain page", with("https://example.com/about-us", nil), models.KindSingle},
		{"query", models.JobSpec{Query: "tacos"}, models.KindSearch},
		{"external", models.JobSpec{Query: "tacos", Mode: models.ModeExternal}, models.KindExternal},
		{"markup", models.JobSpec{Markup: "<p>x</p>"}, models.KindMarkup},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.spec), tc.name)
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, workers(0, 4))
	assert.Equal(t, 1, workers(1, 4))
	assert.Equal(t, 3, workers(3, 4))
	assert.Equal(t, 4, workers(16, 4))
}

func TestStoreErrorFailsRun(t *testing.T) {
	h := newHarness(t, Config{}, false)
	broken := &failingStore{Store: h.store, err: errors.New("disk full")}
	h.o.deps.Store = broken
	h.http.set(detail("a"), &page{html: detailHTML("A")})

	job, err := h.o.Submit(context.Background(), spec(detail("a")))
	require.NoError(t, err)
	broken.failPut = true
	out, err := h.o.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, out.Job.Status)
	assert.Contains(t, out.Job.Error, "disk full")
}

type failingStore struct {
	store.Store
	err     error
	failPut bool
}

func (s *failingStore) Put(ctx context.Context, t *models.TargetURL) error {
	if s.failPut {
		return s.err
	}
	return s.Store.Put(ctx, t)
}
