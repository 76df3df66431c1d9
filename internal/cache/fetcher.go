package cache

import (
	"context"
	"time"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/frontier"
	"github.com/law-makers/harvest/pkg/models"
)

// Fetcher serves captures from a cache before falling through to the
// wrapped fetcher. Only successful fetches are stored.
type Fetcher struct {
	next  engine.Fetcher
	cache Cache
	ttl   time.Duration
}

// Cached wraps next with c. Keys combine the fetcher name with the URL's
// dedup key, so a static capture never answers for a rendered one.
func Cached(next engine.Fetcher, c Cache, ttl time.Duration) *Fetcher {
	return &Fetcher{next: next, cache: c, ttl: ttl}
}

// Name returns the wrapped fetcher's name
func (f *Fetcher) Name() string {
	return f.next.Name()
}

// Fetch returns a cached capture for url or fetches and stores it
func (f *Fetcher) Fetch(ctx context.Context, url string) (*models.PageCapture, error) {
	key := f.next.Name() + "|" + frontier.Key(url)
	if capture, ok := f.cache.Get(key); ok {
		return capture, nil
	}
	capture, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	f.cache.Set(key, capture, f.ttl)
	return capture, nil
}
