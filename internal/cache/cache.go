// Package cache keeps recent page captures in memory so a page fetched
// once in a job (a listing seed that is also a target, a retried URL) is
// not fetched again.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/pkg/models"
)

// Cache stores captures by key
type Cache interface {
	Get(key string) (*models.PageCapture, bool)
	Set(key string, capture *models.PageCapture, ttl time.Duration)
	Delete(key string)
	Clear()
	Close()
}

type entry struct {
	key       string
	capture   *models.PageCapture
	size      int64
	expiresAt time.Time
}

// MemoryCache is an LRU cache bounded by the estimated bytes it holds
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int64
	size    int64
	ttl     time.Duration
	hits    uint64
	misses  uint64
	cancel  context.CancelFunc
}

// NewMemoryCache creates a cache holding at most maxSizeBytes of captures.
// defaultTTL applies to Set calls with a non-positive ttl.
func NewMemoryCache(maxSizeBytes int64, defaultTTL time.Duration) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 64 << 20
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSizeBytes,
		ttl:     defaultTTL,
		cancel:  cancel,
	}
	go c.sweep(ctx, time.Minute)
	return c
}

// Get returns a live capture and marks it most recently used
func (c *MemoryCache) Get(key string) (*models.PageCapture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	log.Debug().Str("key", key).Msg("Capture cache hit")
	return e.capture, true
}

// Set stores a capture, evicting least recently used entries to stay
// within the size bound. A capture larger than the whole cache is not
// stored.
func (c *MemoryCache) Set(key string, capture *models.PageCapture, ttl time.Duration) {
	if capture == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	size := capture.Size() + 512
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	for c.size+size > c.maxSize && c.order.Len() > 0 {
		c.removeElement(c.order.Back())
	}
	c.items[key] = c.order.PushFront(&entry{
		key:       key,
		capture:   capture,
		size:      size,
		expiresAt: time.Now().Add(ttl),
	})
	c.size += size
}

// Delete drops a key
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops every entry
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

// Close stops the expiry sweeper
func (c *MemoryCache) Close() {
	c.cancel()
}

// Stats reports entries, bytes held and hit counts
func (c *MemoryCache) Stats() (entries int, bytes int64, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.size, c.hits, c.misses
}

// removeElement must be called with the lock held
func (c *MemoryCache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
	c.size -= e.size
}

func (c *MemoryCache) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for el := c.order.Back(); el != nil; {
				prev := el.Prev()
				if now.After(el.Value.(*entry).expiresAt) {
					c.removeElement(el)
				}
				el = prev
			}
			c.mu.Unlock()
		}
	}
}
