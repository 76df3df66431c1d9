// Package ratelimit paces requests per host so a job never hammers one site.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter blocks until a request to a URL may proceed
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
	Allow(rawURL string) bool
}

// DomainLimiter keeps one token bucket per host. www. and the bare host
// share a bucket.
type DomainLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	perHost rate.Limit
	burst   int
}

// NewDomainLimiter creates a limiter allowing rps requests per second per
// host with the given burst. Non-positive values fall back to 2 rps and a
// burst of 1.
func NewDomainLimiter(rps float64, burst int) *DomainLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &DomainLimiter{
		buckets: make(map[string]*rate.Limiter),
		perHost: rate.Limit(rps),
		burst:   burst,
	}
}

// Wait blocks until the host of rawURL has a token or ctx is done.
// Unparseable URLs pass through; the fetch itself reports them.
func (l *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}
	return l.bucket(host).Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so
func (l *DomainLimiter) Allow(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return true
	}
	return l.bucket(host).Allow()
}

// SetLimit overrides the rate for one host
func (l *DomainLimiter) SetLimit(host string, rps float64, burst int) {
	b := l.bucket(strings.TrimPrefix(strings.ToLower(host), "www."))
	b.SetLimit(rate.Limit(rps))
	b.SetBurst(burst)
}

// Hosts returns how many hosts currently have a bucket
func (l *DomainLimiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *DomainLimiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = rate.NewLimiter(l.perHost, l.burst)
		l.buckets[host] = b
	}
	return b
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
