// Package robots answers whether robots.txt lets the crawler fetch a URL.
// Each host's file is fetched once and cached for a TTL; a file that
// cannot be fetched allows everything.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"

	"github.com/law-makers/harvest/internal/engine"
)

const maxRobotsSize = 512 * 1024

// Checker tests URLs against their host's robots.txt
type Checker struct {
	client    *http.Client
	agent     string
	userAgent string
	ttl       time.Duration
	now       func() time.Time

	mu    sync.Mutex
	hosts map[string]entry
}

type entry struct {
	group   *robotstxt.Group
	fetched time.Time
}

// New creates a Checker. agent is the product token matched against
// User-agent lines; userAgent is sent with the robots.txt request.
func New(client *http.Client, agent, userAgent string, ttl time.Duration) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Checker{
		client:    client,
		agent:     agent,
		userAgent: userAgent,
		ttl:       ttl,
		now:       time.Now,
		hosts:     map[string]entry{},
	}
}

// Check returns a non-retryable FetchError when robots.txt disallows raw
func (c *Checker) Check(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}
	group := c.group(ctx, u)
	if group == nil {
		return nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if group.Test(path) {
		return nil
	}
	return engine.NewEngineError(engine.KindFetch, engine.ErrCodeBlocked,
		fmt.Sprintf("blocked by robots.txt: %s", raw), engine.ErrRobotsDisallow)
}

// group returns the rules for this agent on u's host, fetching them when
// the cache has none or they are older than the TTL
func (c *Checker) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	origin := u.Scheme + "://" + u.Host
	c.mu.Lock()
	e, ok := c.hosts[origin]
	c.mu.Unlock()
	if ok && c.ttl > 0 && c.now().Sub(e.fetched) < c.ttl {
		return e.group
	}

	group := c.fetch(ctx, origin)
	if ctx.Err() != nil {
		return group
	}
	c.mu.Lock()
	c.hosts[origin] = entry{group: group, fetched: c.now()}
	c.mu.Unlock()
	return group
}

func (c *Checker) fetch(ctx context.Context, origin string) *robotstxt.Group {
	logger := log.With().Str("origin", origin).Logger()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("robots.txt unreachable, allowing all")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug().Int("status", resp.StatusCode).Msg("No robots.txt, allowing all")
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		logger.Debug().Err(err).Msg("Unparseable robots.txt, allowing all")
		return nil
	}
	return data.FindGroup(c.agent)
}
