package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/pkg/models"
)

// MemoryStore keeps everything in process memory. Values are copied in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]models.Job
	targets map[string]map[string]models.TargetURL
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]models.Job),
		targets: make(map[string]map[string]models.TargetURL),
	}
}

// CreateTargets implements ResultStore
func (m *MemoryStore) CreateTargets(_ context.Context, jobID string, targets []models.TargetURL) ([]models.TargetURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.targets[jobID]
	if existing == nil {
		existing = make(map[string]models.TargetURL)
		m.targets[jobID] = existing
	}
	seen := make(map[string]bool, len(existing))
	for k := range existing {
		seen[k] = true
	}
	added := prepareTargets(jobID, targets, seen, len(existing))
	for _, t := range added {
		existing[t.Key] = cloneTarget(t)
	}
	return added, nil
}

// Put implements ResultStore
func (m *MemoryStore) Put(_ context.Context, target *models.TargetURL) error {
	if err := validTarget(target); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey := m.targets[target.JobID]
	if byKey == nil {
		byKey = make(map[string]models.TargetURL)
		m.targets[target.JobID] = byKey
	}
	target.UpdatedAt = time.Now()
	byKey[target.Key] = cloneTarget(*target)
	return nil
}

// Get implements ResultStore
func (m *MemoryStore) Get(_ context.Context, jobID, url string) (*models.TargetURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[jobID][frontier.Key(url)]
	if !ok {
		return nil, fmt.Errorf("target %s of job %s: %w", url, jobID, ErrNotFound)
	}
	c := cloneTarget(t)
	return &c, nil
}

// List implements ResultStore
func (m *MemoryStore) List(_ context.Context, jobID string) ([]models.TargetURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.TargetURL, 0, len(m.targets[jobID]))
	for _, t := range m.targets[jobID] {
		out = append(out, cloneTarget(t))
	}
	sortTargets(out)
	return out, nil
}

// Progress implements ResultStore
func (m *MemoryStore) Progress(ctx context.Context, jobID string) (models.Progress, error) {
	targets, err := m.List(ctx, jobID)
	if err != nil {
		return models.Progress{}, err
	}
	return progressOf(targets), nil
}

// SaveJob implements JobStore
func (m *MemoryStore) SaveJob(_ context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

// GetJob implements JobStore
func (m *MemoryStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return &j, nil
}

// ListJobs implements JobStore
func (m *MemoryStore) ListJobs(_ context.Context) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		j := j
		out = append(out, &j)
	}
	sortJobs(out)
	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}

// cloneTarget copies the record map so stored targets are not aliased
func cloneTarget(t models.TargetURL) models.TargetURL {
	if t.Record != nil {
		r := make(models.Record, len(t.Record))
		for k, v := range t.Record {
			r[k] = v
		}
		t.Record = r
	}
	return t
}
