package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/engine/hybrid"
	"github.com/law-makers/harvest/internal/extract"
	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/store"
	"github.com/law-makers/harvest/pkg/models"
)

// visitFunc produces the record for one target attempt
type visitFunc func(ctx context.Context, t models.TargetURL, attempt int) (models.Record, error)

// run is the state of one execution of a job
type run struct {
	o      *Orchestrator
	job    *models.Job
	ctx    context.Context
	cancel context.CancelFunc
	rec    *store.Recorder

	mu      sync.Mutex
	sess    engine.Session
	sessErr error
}

func newRun(parent context.Context, o *Orchestrator, job *models.Job) *run {
	ctx := reqctx.WithJob(parent, job.ID)
	var cancel context.CancelFunc
	if o.cfg.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	return &run{
		o:      o,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
		rec:    store.NewRecorder(o.deps.Store, o.cfg.Retry),
	}
}

func (r *run) execute() error {
	spec := r.job.Spec
	switch r.job.Kind {
	case models.KindExternal:
		return r.external()
	case models.KindMarkup:
		return r.markup()
	}

	if spec.Render {
		if _, err := r.session(r.ctx); err != nil {
			return err
		}
	}
	switch r.job.Kind {
	case models.KindListing:
		return r.listing(spec.URL)
	case models.KindCrawl:
		return r.crawl()
	case models.KindSearch:
		return r.search()
	}
	return r.single(spec.URL)
}

// session starts the job's browser on first use. A failed launch is
// remembered so later pages do not retry it.
func (r *run) session(ctx context.Context) (engine.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess != nil {
		return r.sess, nil
	}
	if r.sessErr != nil {
		return nil, r.sessErr
	}
	if r.o.deps.Browser == nil {
		r.sessErr = engine.SetupError(engine.ErrCodeBrowserCrash, "no browser available", engine.ErrBrowserNotFound)
		return nil, r.sessErr
	}
	s, err := r.o.deps.Browser.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if !engine.IsSetup(err) {
			err = engine.SetupError(engine.ErrCodeBrowserCrash, "failed to start browser", err)
		}
		r.sessErr = err
		return nil, err
	}
	r.sess = s
	return s, nil
}

// release closes the browser session if one was started
func (r *run) release() {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.Release(); err != nil {
		reqctx.Logger(r.ctx).Warn().Err(err).Msg("Failed to release browser session")
	}
}

func (r *run) warn(msg string) {
	r.mu.Lock()
	r.job.Warnings = append(r.job.Warnings, msg)
	r.mu.Unlock()
	reqctx.Logger(r.ctx).Warn().Msg(msg)
}

func (r *run) notify(t models.TargetURL) {
	if obs := r.o.deps.Observer; obs != nil {
		obs.TargetFinished(r.job, t)
	}
}

// addTargets stores urls as new targets, dropping ones the job already has
func (r *run) addTargets(urls []string, depth int) ([]models.TargetURL, error) {
	in := make([]models.TargetURL, len(urls))
	for i, u := range urls {
		in[i] = models.TargetURL{URL: u, Depth: depth}
	}
	added, err := r.o.deps.Store.CreateTargets(context.WithoutCancel(r.ctx), r.job.ID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to store targets: %w", err)
	}
	if obs := r.o.deps.Observer; obs != nil && len(added) > 0 {
		obs.TargetsAdded(r.job, len(added))
	}
	return added, nil
}

// process runs visit over targets, each one persisted before the next is
// started in sequential mode
func (r *run) process(targets []models.TargetURL, visit visitFunc) error {
	var (
		mu       sync.Mutex
		storeErr error
	)
	n := workers(r.job.Spec.Concurrency, r.o.cfg.MaxConcurrency)
	dispatch(r.ctx, n, targets, func(t models.TargetURL) {
		final, err := r.rec.Process(r.ctx, t, func(ctx context.Context, attempt int) (models.Record, error) {
			return visit(ctx, t, attempt)
		})
		if err != nil {
			mu.Lock()
			if storeErr == nil {
				storeErr = err
			}
			mu.Unlock()
			return
		}
		r.notify(final)
	})
	return storeErr
}

// failPending gives every target that never ran the error that stopped
// the job, so no target is left without an outcome
func (r *run) failPending(cause error) {
	if cause == nil {
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	targets, err := r.o.deps.Store.List(ctx, r.job.ID)
	if err != nil {
		reqctx.Logger(ctx).Error().Err(err).Msg("Failed to list targets")
		return
	}
	for _, t := range targets {
		if t.Status.Terminal() {
			continue
		}
		if err := r.rec.Complete(ctx, &t, nil, cause); err != nil {
			reqctx.Logger(ctx).Error().Err(err).Str("url", t.URL).Msg("Failed to record target")
			continue
		}
		r.notify(t)
	}
}

func (r *run) visitTarget(ctx context.Context, t models.TargetURL, _ int) (models.Record, error) {
	capture, err := r.fetch(ctx, t.URL)
	if err != nil {
		return nil, err
	}
	return r.extract(ctx, capture), nil
}

// extract runs the pipeline. Strategy failures only thin the record out;
// their messages are kept on it.
func (r *run) extract(ctx context.Context, capture *models.PageCapture) models.Record {
	rec, errs := r.o.deps.Pipeline.Extract(ctx, capture, extract.Options{Goal: r.job.Spec.Goal})
	if len(errs) > 0 {
		msgs := make([]any, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		rec["extraction_errors"] = msgs
		reqctx.Logger(ctx).Debug().Int("errors", len(errs)).Msg("Extraction partially failed")
	}
	return rec
}

// fetch gets url over HTTP, or through the browser when the job renders.
// URLs robots.txt disallows are refused before either. A static capture
// that turns out to be a script shell or a bot wall is re-fetched in the
// browser when auto-render is on; if that fails the static result stands.
func (r *run) fetch(ctx context.Context, url string) (*models.PageCapture, error) {
	if robots := r.o.deps.Robots; robots != nil {
		if err := robots.Check(ctx, url); err != nil {
			return nil, err
		}
	}
	if r.job.Spec.Render || r.o.deps.HTTP == nil {
		s, err := r.session(ctx)
		if err != nil {
			return nil, err
		}
		return s.Fetch(ctx, url)
	}

	capture, err := r.o.deps.HTTP.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, engine.ErrBotChallenge) && r.canEscalate() {
			if rendered, rerr := r.render(ctx, url); rerr == nil {
				return rendered, nil
			}
		}
		return nil, err
	}
	if r.canEscalate() && hybrid.DetermineStrategy(capture.HTML) == hybrid.StrategyDynamic {
		rendered, rerr := r.render(ctx, url)
		if rerr == nil {
			return rendered, nil
		}
		reqctx.Logger(ctx).Debug().Err(rerr).Msg("Render escalation failed, keeping static capture")
	}
	return capture, nil
}

func (r *run) canEscalate() bool {
	if !r.o.cfg.AutoRender || r.o.deps.Browser == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessErr == nil
}

func (r *run) render(ctx context.Context, url string) (*models.PageCapture, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	reqctx.Logger(ctx).Debug().Msg("Escalating to browser")
	return s.Fetch(ctx, url)
}

// fetchSeed fetches a discovery page under the retry policy and reports
// how many attempts it took
func (r *run) fetchSeed(url string) (*models.PageCapture, int, error) {
	var capture *models.PageCapture
	attempts, err := retry.Do(r.ctx, r.o.cfg.Retry, func(ctx context.Context, attempt int) error {
		var ferr error
		capture, ferr = r.fetch(reqctx.WithTarget(ctx, url, attempt), url)
		return ferr
	})
	return capture, attempts, err
}

func (r *run) single(url string) error {
	targets, err := r.addTargets([]string{url}, 0)
	if err != nil {
		return err
	}
	return r.process(targets, r.visitTarget)
}

// listing fetches the seed, expands it into detail pages and visits them.
// A seed that cannot be fetched is recorded as a failed target.
func (r *run) listing(seed string) error {
	capture, attempts, err := r.fetchSeed(seed)
	if err != nil {
		if engine.IsSetup(err) || r.ctx.Err() != nil {
			return err
		}
		r.warn(fmt.Sprintf("listing page could not be fetched: %v", err))
		targets, aerr := r.addTargets([]string{seed}, 0)
		if aerr != nil {
			return aerr
		}
		for _, t := range targets {
			t.Attempts = attempts
			if cerr := r.rec.Complete(r.ctx, &t, nil, err); cerr != nil {
				return cerr
			}
			r.notify(t)
		}
		return nil
	}
	return r.expand(capture)
}

// expand turns a listing capture into targets and visits them. Finding
// nothing is a warning, not a failure.
func (r *run) expand(capture *models.PageCapture) error {
	urls, err := frontier.ExpandListing(capture, r.job.Spec.MaxTargets)
	if err != nil {
		r.warn(err.Error())
		return nil
	}
	targets, err := r.addTargets(urls, 1)
	if err != nil {
		return err
	}
	return r.process(targets, r.visitTarget)
}

// markupSource is the name a markup job's own page is stored under
func markupSource(job *models.Job) string {
	if job.Spec.SourceURL != "" {
		return job.Spec.SourceURL
	}
	return "markup:" + job.ID
}

func markupCapture(job *models.Job) *models.PageCapture {
	return &models.PageCapture{
		URL:        markupSource(job),
		StatusCode: 200,
		HTML:       job.Spec.Markup,
		FetchedAt:  time.Now(),
	}
}

func (r *run) markup() error {
	spec := r.job.Spec
	source := markupSource(r.job)
	capture := markupCapture(r.job)

	listing := spec.Mode == models.ModeListing ||
		(spec.Mode == models.ModeAuto && spec.ExpandDetails && frontier.IsListingURL(spec.SourceURL))
	if spec.SourceURL != "" && listing {
		if spec.Render {
			if _, err := r.session(r.ctx); err != nil {
				return err
			}
		}
		return r.expand(capture)
	}

	targets, err := r.addTargets([]string{source}, 0)
	if err != nil {
		return err
	}
	return r.process(targets, func(ctx context.Context, _ models.TargetURL, _ int) (models.Record, error) {
		return r.extract(ctx, capture), nil
	})
}

// revisit is the visit used when targets are resubmitted. A markup job's
// own page is extracted again from the stored markup; every other target
// is fetched.
func (r *run) revisit(ctx context.Context, t models.TargetURL, attempt int) (models.Record, error) {
	if r.job.Kind == models.KindMarkup && t.Key == frontier.Key(markupSource(r.job)) {
		return r.extract(ctx, markupCapture(r.job)), nil
	}
	return r.visitTarget(ctx, t, attempt)
}

// crawl walks outward from the seed. Every visited page is a target.
func (r *run) crawl() error {
	spec := r.job.Spec
	crawler := frontier.Crawler{
		MaxDepth:   spec.MaxDepth,
		MaxPages:   spec.MaxTargets,
		SameOrigin: spec.SameOrigin,
		Delay:      r.o.cfg.PolitenessDelay,
	}

	var storeErr error
	_, err := crawler.Run(r.ctx, []string{spec.URL}, func(ctx context.Context, url string, depth int) ([]string, error) {
		added, err := r.addTargets([]string{url}, depth)
		if err != nil {
			storeErr = err
			return nil, err
		}
		if len(added) == 0 {
			return nil, nil
		}

		var links []string
		final, err := r.rec.Process(ctx, added[0], func(ctx context.Context, attempt int) (models.Record, error) {
			capture, err := r.fetch(ctx, url)
			if err != nil {
				return nil, err
			}
			links = frontier.Links(capture)
			return r.extract(ctx, capture), nil
		})
		if err != nil {
			storeErr = err
			return nil, err
		}
		r.notify(final)
		if final.Status == models.TargetFailed {
			return nil, errors.New(final.Error)
		}
		return links, nil
	})
	if storeErr != nil {
		return storeErr
	}
	if err != nil && r.ctx.Err() == nil {
		return err
	}
	return nil
}

// search expands directory search pages for the query until MaxTargets
// detail pages are known, then visits them
func (r *run) search() error {
	seeds := frontier.SearchSeeds(r.job.Spec.Query)
	if len(seeds) == 0 {
		r.warn("query produced no search pages")
		return nil
	}

	remaining := r.job.Spec.MaxTargets
	var all []models.TargetURL
	for _, seed := range seeds {
		if remaining <= 0 || r.ctx.Err() != nil {
			break
		}
		capture, _, err := r.fetchSeed(seed)
		if err != nil {
			if engine.IsSetup(err) {
				return err
			}
			r.warn(fmt.Sprintf("search page %s: %v", seed, err))
			continue
		}
		urls, err := frontier.ExpandListing(capture, remaining)
		if err != nil {
			r.warn(fmt.Sprintf("search page %s: %v", seed, err))
			continue
		}
		added, err := r.addTargets(urls, 1)
		if err != nil {
			return err
		}
		remaining -= len(added)
		all = append(all, added...)
	}
	if len(all) == 0 && r.ctx.Err() == nil {
		r.warn(engine.DiscoveryError("no detail pages found for query", engine.ErrNoCandidates).Error())
	}
	return r.process(all, r.visitTarget)
}

// external asks the external source for records and stores them as
// finished targets
func (r *run) external() error {
	src := r.o.deps.External
	if src == nil {
		return engine.SetupError(engine.ErrCodeValidation, "external-data-only job needs an external source", engine.ErrNoSource)
	}
	records, err := src.Search(r.ctx, r.job.Spec.Query)
	if err != nil {
		if r.ctx.Err() != nil {
			return nil
		}
		return engine.SetupError(engine.ErrCodeNetworkError, "external source failed", err)
	}
	if max := r.job.Spec.MaxTargets; max > 0 && len(records) > max {
		records = records[:max]
	}

	urls := make([]string, len(records))
	byKey := make(map[string]models.Record, len(records))
	for i, rec := range records {
		u := rec.URL()
		if u == "" {
			u = fmt.Sprintf("external:%s#%d", r.job.ID, i+1)
		}
		urls[i] = u
		if _, dup := byKey[frontier.Key(u)]; !dup {
			byKey[frontier.Key(u)] = rec
		}
	}

	targets, err := r.addTargets(urls, 0)
	if err != nil {
		return err
	}
	for _, t := range targets {
		rec := byKey[t.Key]
		if rec == nil {
			rec = models.NewRecord(t.URL)
		} else if rec.URL() == "" {
			rec[models.FieldURL] = t.URL
		}
		t.Attempts = 1
		if err := r.rec.Complete(r.ctx, &t, rec, nil); err != nil {
			return err
		}
		r.notify(t)
	}
	return nil
}
