// Package reqctx carries the job and target a goroutine is working on, so
// log lines and errors deep in the fetch path can name them.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const scopeKey key = 0

// Scope identifies the unit of work running under a context
type Scope struct {
	JobID     string
	URL       string
	Attempt   int
	StartTime time.Time
}

// WithJob starts a job scope
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, scopeKey, &Scope{JobID: jobID, StartTime: time.Now()})
}

// WithTarget narrows the job scope to one target URL attempt
func WithTarget(ctx context.Context, url string, attempt int) context.Context {
	parent := From(ctx)
	return context.WithValue(ctx, scopeKey, &Scope{
		JobID:     parent.JobID,
		URL:       url,
		Attempt:   attempt,
		StartTime: time.Now(),
	})
}

// From returns the scope of ctx, or an empty scope
func From(ctx context.Context) *Scope {
	if s, ok := ctx.Value(scopeKey).(*Scope); ok {
		return s
	}
	return &Scope{StartTime: time.Now()}
}

// Logger returns the global logger annotated with the scope's fields
func Logger(ctx context.Context) *zerolog.Logger {
	s := From(ctx)
	lc := log.Logger.With()
	if s.JobID != "" {
		lc = lc.Str("job_id", s.JobID)
	}
	if s.URL != "" {
		lc = lc.Str("url", s.URL)
	}
	if s.Attempt > 0 {
		lc = lc.Int("attempt", s.Attempt)
	}
	l := lc.Logger()
	return &l
}

// ScopedError tags an error with the job it happened in
type ScopedError struct {
	JobID string
	Err   error
}

func (e *ScopedError) Error() string {
	return fmt.Sprintf("[job %s] %v", e.JobID, e.Err)
}

func (e *ScopedError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the job of ctx; nil stays nil
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &ScopedError{JobID: From(ctx).JobID, Err: err}
}
