// Package orchestrator runs scrape jobs: it classifies the seed, discovers
// targets, drives fetching and extraction for each one and owns the job's
// status. Records are persisted through the store's Recorder one target
// at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/extract"
	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/store"
	"github.com/law-makers/harvest/pkg/models"
)

var (
	// ErrJobRunning is returned when a running job is run or resubmitted
	ErrJobRunning = errors.New("job is already running")
	// ErrUnknownTarget is returned when resubmitting a URL the job never had
	ErrUnknownTarget = errors.New("URL is not a target of this job")
	// ErrNotRefetchable is returned when resubmitting a target that has no
	// page behind it, such as an external-source record
	ErrNotRefetchable = errors.New("target cannot be fetched again")
)

// ExternalSource answers external-data-only jobs, such as a place-search
// API. It is optional.
type ExternalSource interface {
	Search(ctx context.Context, query string) ([]models.Record, error)
}

// RobotsPolicy refuses URLs the site's robots.txt disallows
type RobotsPolicy interface {
	Check(ctx context.Context, url string) error
}

// Observer is told about job progress as it happens
type Observer interface {
	// TargetsAdded reports newly discovered targets
	TargetsAdded(job *models.Job, added int)
	// TargetFinished reports a target reaching done or failed
	TargetFinished(job *models.Job, target models.TargetURL)
}

// Config holds the job-wide budgets and policies
type Config struct {
	JobTimeout      time.Duration
	Retry           retry.Config
	AutoRender      bool
	MaxConcurrency  int
	PolitenessDelay time.Duration
}

// Deps are the collaborators a job needs. Browser, External and Robots
// may be nil.
type Deps struct {
	Store    store.Store
	HTTP     engine.Fetcher
	Browser  engine.Browser
	Pipeline *extract.Pipeline
	External ExternalSource
	Robots   RobotsPolicy
	Observer Observer
}

// Orchestrator owns job lifecycles
type Orchestrator struct {
	cfg      Config
	deps     Deps
	validate *validator.Validate
}

// New creates an Orchestrator
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = extract.New(nil)
	}
	return &Orchestrator{cfg: cfg, deps: deps, validate: validator.New()}
}

// Submit validates spec and stores a pending job for it
func (o *Orchestrator) Submit(ctx context.Context, spec models.JobSpec) (*models.Job, error) {
	if spec.Mode == "" {
		spec.Mode = models.ModeAuto
	}
	if spec.MaxTargets == 0 {
		spec.MaxTargets = models.DefaultJobSpec().MaxTargets
	}
	spec.URL = strings.TrimSpace(spec.URL)
	spec.Query = strings.TrimSpace(spec.Query)

	if err := o.checkSpec(spec); err != nil {
		return nil, engine.NewEngineError(engine.KindSetup, engine.ErrCodeValidation, "invalid job", err)
	}
	if spec.URL != "" {
		if n, err := frontier.Normalize(spec.URL); err == nil {
			spec.URL = n
		}
	}

	now := time.Now()
	job := &models.Job{
		ID:        uuid.NewString(),
		Spec:      spec,
		Kind:      Classify(spec),
		Status:    models.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.deps.Store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("Job submitted")
	return job, nil
}

func (o *Orchestrator) checkSpec(spec models.JobSpec) error {
	if err := o.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	seeds := 0
	for _, s := range []string{spec.URL, spec.Query, spec.Markup} {
		if s != "" {
			seeds++
		}
	}
	switch {
	case seeds == 0:
		return errors.New("a URL, query or markup seed is required")
	case seeds > 1:
		return errors.New("only one of URL, query or markup may be given")
	case spec.Mode == models.ModeExternal && spec.Query == "":
		return errors.New("external mode needs a query")
	}
	return nil
}

// Classify picks the strategy for a job. It looks only at the spec and
// the URL's shape, never the network.
func Classify(spec models.JobSpec) models.JobKind {
	switch {
	case spec.Markup != "":
		return models.KindMarkup
	case spec.Query != "":
		if spec.Mode == models.ModeExternal {
			return models.KindExternal
		}
		return models.KindSearch
	}

	switch spec.Mode {
	case models.ModeSingle:
		return models.KindSingle
	case models.ModeListing:
		return models.KindListing
	case models.ModeCrawl:
		return models.KindCrawl
	}

	switch {
	case !spec.ExpandDetails:
		return models.KindSingle
	case frontier.IsDetailURL(spec.URL):
		return models.KindSingle
	case frontier.IsListingURL(spec.URL):
		return models.KindListing
	}
	return models.KindSingle
}

// Status returns the job with its targets in discovery order
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*models.JobOutcome, error) {
	job, err := o.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	targets, err := o.deps.Store.List(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := &models.JobOutcome{Job: job, Targets: targets}
	for _, t := range targets {
		out.Progress.Add(t.Status)
	}
	return out, nil
}

// Jobs lists stored jobs, newest first
func (o *Orchestrator) Jobs(ctx context.Context) ([]*models.Job, error) {
	return o.deps.Store.ListJobs(ctx)
}

// Run executes a pending job to a terminal status. The returned error is
// reserved for problems with the job itself (unknown, already running,
// store failure); fetch and extraction failures are recorded on targets
// and a failed or timed-out job still returns its outcome.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (*models.JobOutcome, error) {
	job, err := o.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status == models.JobRunning:
		return nil, ErrJobRunning
	case job.Status.Terminal():
		return o.Status(ctx, jobID)
	}

	err = o.execute(ctx, job, func(r *run) error { return r.execute() })
	if err != nil {
		return nil, err
	}
	return o.Status(context.WithoutCancel(ctx), jobID)
}

// Resubmit re-fetches the given targets of a finished job without
// rediscovering anything. Every URL must already be a target of the job.
// The job status is recomputed afterwards.
func (o *Orchestrator) Resubmit(ctx context.Context, jobID string, urls []string) (*models.JobOutcome, error) {
	job, err := o.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobRunning {
		return nil, ErrJobRunning
	}

	var targets []models.TargetURL
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		t, err := o.deps.Store.Get(ctx, jobID, u)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, u)
		}
		if err != nil {
			return nil, err
		}
		if err := refetchable(job, t); err != nil {
			return nil, err
		}
		if !seen[t.Key] {
			seen[t.Key] = true
			targets = append(targets, *t)
		}
	}
	if len(targets) == 0 {
		return o.Status(ctx, jobID)
	}

	job.Error = ""
	err = o.execute(ctx, job, func(r *run) error {
		if job.Spec.Render {
			if _, err := r.session(r.ctx); err != nil {
				return err
			}
		}
		for i := range targets {
			targets[i].Status = models.TargetPending
			targets[i].Error = ""
			targets[i].ErrorKind = ""
			if err := o.deps.Store.Put(r.ctx, &targets[i]); err != nil {
				return err
			}
		}
		return r.process(targets, r.revisit)
	})
	if err != nil {
		return nil, err
	}
	return o.Status(context.WithoutCancel(ctx), jobID)
}

// refetchable rejects targets whose record did not come from fetching
// their URL. A markup job's own page is re-extracted instead.
func refetchable(job *models.Job, t *models.TargetURL) error {
	switch {
	case job.Kind == models.KindExternal:
		return fmt.Errorf("%w: %s came from the external source", ErrNotRefetchable, t.URL)
	case job.Kind == models.KindMarkup && t.Key == frontier.Key(markupSource(job)):
		return nil
	}
	u, err := url.Parse(t.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s", ErrNotRefetchable, t.URL)
	}
	return nil
}

// execute moves job to running, runs body under the job budget and
// settles the terminal status. The browser session, if one was started,
// is released on every path.
func (o *Orchestrator) execute(ctx context.Context, job *models.Job, body func(r *run) error) error {
	start := time.Now()
	job.Status = models.JobRunning
	job.StartedAt = &start
	job.FinishedAt = nil
	if err := o.saveJob(ctx, job); err != nil {
		return err
	}

	r := newRun(ctx, o, job)
	runErr := func() error {
		defer r.release()
		defer r.cancel()
		return body(r)
	}()

	o.settle(ctx, r, runErr)
	logger := log.Info()
	if job.Status != models.JobCompleted {
		logger = log.Warn()
	}
	logger.
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Job finished")
	return o.saveJob(ctx, job)
}

// settle decides the terminal status once body has returned
func (o *Orchestrator) settle(ctx context.Context, r *run, runErr error) {
	job := r.job
	var pendingErr error
	switch {
	case engine.IsSetup(runErr):
		job.Status = models.JobFailed
		job.Error = runErr.Error()
		pendingErr = runErr
	case ctx.Err() != nil:
		job.Status = models.JobFailed
		job.Error = "job cancelled"
		pendingErr = engine.NewEngineError(engine.KindFetch, engine.ErrCodeCancelled, "job cancelled before this target ran", ctx.Err())
	case errors.Is(r.ctx.Err(), context.DeadlineExceeded):
		job.Status = models.JobTimedOut
		job.Error = fmt.Sprintf("job exceeded its %s budget", o.cfg.JobTimeout)
		pendingErr = engine.TimeoutError("job budget ran out before this target ran", r.ctx.Err())
	case runErr != nil:
		job.Status = models.JobFailed
		job.Error = runErr.Error()
		pendingErr = runErr
	default:
		job.Status = models.JobCompleted
	}
	r.failPending(pendingErr)
}

func (o *Orchestrator) saveJob(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now()
	if job.Status.Terminal() {
		finished := job.UpdatedAt
		job.FinishedAt = &finished
	}
	if err := o.deps.Store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}
