// Package store persists jobs and their targets. Every target write is an
// upsert keyed by (job id, target key), so a retried URL overwrites its
// earlier outcome instead of adding a second entry.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/pkg/models"
)

// ErrNotFound is returned for unknown jobs and targets
var ErrNotFound = errors.New("not found")

// ResultStore holds the targets of every job
type ResultStore interface {
	// CreateTargets adds targets not already present under jobID and
	// returns the ones added. The first occurrence of a key wins.
	CreateTargets(ctx context.Context, jobID string, targets []models.TargetURL) ([]models.TargetURL, error)

	// Put upserts one target by (JobID, Key)
	Put(ctx context.Context, target *models.TargetURL) error

	Get(ctx context.Context, jobID, url string) (*models.TargetURL, error)

	// List returns a job's targets in discovery order
	List(ctx context.Context, jobID string) ([]models.TargetURL, error)

	Progress(ctx context.Context, jobID string) (models.Progress, error)
}

// JobStore holds job descriptors and status
type JobStore interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// ListJobs returns jobs newest first
	ListJobs(ctx context.Context) ([]*models.Job, error)
}

// Store is a combined job and result store
type Store interface {
	ResultStore
	JobStore
	Close() error
}

// Open returns the store for backend, "memory" or "badger"
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadger(path)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

// prepareTargets fills keys, sequence numbers and timestamps and drops
// targets whose key is in seen or repeats within the batch. seen is
// updated.
func prepareTargets(jobID string, targets []models.TargetURL, seen map[string]bool, nextSeq int) []models.TargetURL {
	now := time.Now()
	var out []models.TargetURL
	for _, t := range targets {
		if t.Key == "" {
			t.Key = frontier.Key(t.URL)
		}
		if seen[t.Key] {
			continue
		}
		seen[t.Key] = true
		t.JobID = jobID
		t.Seq = nextSeq
		nextSeq++
		if t.Status == "" {
			t.Status = models.TargetPending
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		out = append(out, t)
	}
	return out
}

func progressOf(targets []models.TargetURL) models.Progress {
	var p models.Progress
	for _, t := range targets {
		p.Add(t.Status)
	}
	return p
}

func sortTargets(targets []models.TargetURL) {
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Seq < targets[j].Seq })
}

func sortJobs(jobs []*models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
}

func validTarget(t *models.TargetURL) error {
	if t == nil || t.JobID == "" {
		return fmt.Errorf("target must belong to a job")
	}
	if t.Key == "" {
		t.Key = frontier.Key(t.URL)
	}
	return nil
}
