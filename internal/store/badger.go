package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
	"github.com/timshannon/badgerhold/v4"

	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/pkg/models"
)

// BadgerStore persists jobs and targets in a badger database through
// badgerhold. Values are JSON so records keep their nested shape.
type BadgerStore struct {
	db   *badgerhold.Store
	path string
}

// OpenBadger opens or creates the database at path
func OpenBadger(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("badger store needs a path")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(path).WithLogger(nil)
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Badger store opened")
	return &BadgerStore{db: db, path: path}, nil
}

func targetKey(jobID, key string) string {
	return jobID + "|" + key
}

// CreateTargets implements ResultStore
func (b *BadgerStore) CreateTargets(ctx context.Context, jobID string, targets []models.TargetURL) ([]models.TargetURL, error) {
	existing, err := b.List(ctx, jobID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.Key] = true
	}
	added := prepareTargets(jobID, targets, seen, len(existing))
	for i := range added {
		if err := b.db.Insert(targetKey(jobID, added[i].Key), &added[i]); err != nil {
			return nil, fmt.Errorf("failed to create target %s: %w", added[i].URL, err)
		}
	}
	return added, nil
}

// Put implements ResultStore
func (b *BadgerStore) Put(_ context.Context, target *models.TargetURL) error {
	if err := validTarget(target); err != nil {
		return err
	}
	target.UpdatedAt = time.Now()
	if err := b.db.Upsert(targetKey(target.JobID, target.Key), target); err != nil {
		return fmt.Errorf("failed to save target %s: %w", target.URL, err)
	}
	return nil
}

// Get implements ResultStore
func (b *BadgerStore) Get(_ context.Context, jobID, url string) (*models.TargetURL, error) {
	var t models.TargetURL
	if err := b.db.Get(targetKey(jobID, frontier.Key(url)), &t); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("target %s of job %s: %w", url, jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &t, nil
}

// List implements ResultStore
func (b *BadgerStore) List(_ context.Context, jobID string) ([]models.TargetURL, error) {
	var targets []models.TargetURL
	if err := b.db.Find(&targets, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	sortTargets(targets)
	return targets, nil
}

// Progress implements ResultStore
func (b *BadgerStore) Progress(ctx context.Context, jobID string) (models.Progress, error) {
	targets, err := b.List(ctx, jobID)
	if err != nil {
		return models.Progress{}, err
	}
	return progressOf(targets), nil
}

// SaveJob implements JobStore
func (b *BadgerStore) SaveJob(_ context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := b.db.Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob implements JobStore
func (b *BadgerStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := b.db.Get(id, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs implements JobStore
func (b *BadgerStore) ListJobs(_ context.Context) ([]*models.Job, error) {
	var jobs []models.Job
	if err := b.db.Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	out := make([]*models.Job, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	sortJobs(out)
	return out, nil
}

// Close compacts the value log when it has garbage, then closes the
// database
func (b *BadgerStore) Close() error {
	err := b.db.Badger().RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		log.Debug().Err(err).Str("path", b.path).Msg("Value log GC failed")
	}
	return b.db.Close()
}
