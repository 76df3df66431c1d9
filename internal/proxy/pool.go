// Package proxy rotates outbound proxies for the HTTP fetcher and hands
// the browser one proxy per session.
package proxy

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCooldown is how long a failed proxy is skipped
const DefaultCooldown = 5 * time.Minute

// Pool hands out proxies round-robin, skipping ones that failed recently
type Pool struct {
	mu       sync.Mutex
	proxies  []string
	next     int
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewPool creates a pool over the given proxy URLs. An empty pool hands
// out "" and means a direct connection.
func NewPool(proxies []string) *Pool {
	return &Pool{
		proxies:  append([]string(nil), proxies...),
		failed:   make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// Len returns the number of configured proxies
func (p *Pool) Len() int {
	return len(p.proxies)
}

// Next returns the next healthy proxy. When every proxy is cooling down
// the least recently failed one is returned rather than none.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}
	var oldest string
	var oldestAt time.Time
	for range p.proxies {
		candidate := p.proxies[p.next]
		p.next = (p.next + 1) % len(p.proxies)

		failedAt, down := p.failed[candidate]
		if !down || p.now().Sub(failedAt) >= p.cooldown {
			delete(p.failed, candidate)
			return candidate
		}
		if oldest == "" || failedAt.Before(oldestAt) {
			oldest, oldestAt = candidate, failedAt
		}
	}
	return oldest
}

// MarkFailed puts a proxy on cooldown
func (p *Pool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
	log.Debug().Str("proxy", proxy).Msg("Proxy marked failed")
}

// MarkHealthy clears a proxy's cooldown
func (p *Pool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}

type ctxKey struct{}

// WithProxy pins the proxy a request made under ctx goes through, so the
// caller can report it failed. "" pins a direct connection.
func WithProxy(ctx context.Context, proxy string) context.Context {
	return context.WithValue(ctx, ctxKey{}, proxy)
}

// ProxyFunc adapts the pool for http.Transport.Proxy. A proxy pinned on
// the request context wins; otherwise the pool rotates per request.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		raw, pinned := req.Context().Value(ctxKey{}).(string)
		if !pinned {
			raw = p.Next()
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}
