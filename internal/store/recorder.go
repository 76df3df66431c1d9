package store

import (
	"context"
	"time"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/pkg/models"
)

// Attempt fetches and extracts one target. attempt starts at 1.
type Attempt func(ctx context.Context, attempt int) (models.Record, error)

// Recorder runs targets under the retry policy and persists each outcome
// before returning, so a crash loses at most the page in flight
type Recorder struct {
	store  ResultStore
	policy retry.Config
}

// NewRecorder creates a Recorder writing to s
func NewRecorder(s ResultStore, policy retry.Config) *Recorder {
	return &Recorder{store: s, policy: policy}
}

// Process marks target in progress, runs fn until it succeeds or the
// policy gives up, and stores the terminal outcome. The returned error is
// non-nil only when the store write failed.
func (r *Recorder) Process(ctx context.Context, target models.TargetURL, fn Attempt) (models.TargetURL, error) {
	now := time.Now()
	target.Status = models.TargetInProgress
	target.StartedAt = &now
	target.FinishedAt = nil
	if err := r.store.Put(context.WithoutCancel(ctx), &target); err != nil {
		return target, err
	}

	var rec models.Record
	attempts, err := retry.Do(ctx, r.policy, func(ctx context.Context, attempt int) error {
		var ferr error
		rec, ferr = fn(reqctx.WithTarget(ctx, target.URL, target.Attempts+attempt), attempt)
		return ferr
	})
	target.Attempts += attempts

	return target, r.Complete(ctx, &target, rec, err)
}

// Complete stores a terminal outcome: a record when err is nil, otherwise
// the error. A target never keeps both.
func (r *Recorder) Complete(ctx context.Context, target *models.TargetURL, rec models.Record, err error) error {
	now := time.Now()
	target.FinishedAt = &now
	if err != nil {
		target.Status = models.TargetFailed
		target.Record = nil
		target.Error = err.Error()
		target.ErrorKind = string(engine.KindOf(err))
		reqctx.Logger(ctx).Warn().
			Str("url", target.URL).
			Str("kind", target.ErrorKind).
			Int("attempts", target.Attempts).
			Err(err).
			Msg("Target failed")
	} else {
		target.Status = models.TargetDone
		target.Record = rec
		target.Error = ""
		target.ErrorKind = ""
	}
	return r.store.Put(context.WithoutCancel(ctx), target)
}
