package frontier

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter paces requests per host
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// VisitFunc fetches and records one page and returns the links found on
// it. A visit error is the caller's to record; the crawl moves on.
type VisitFunc func(ctx context.Context, url string, depth int) ([]string, error)

// Crawler walks outward from seed URLs breadth-first
type Crawler struct {
	MaxDepth   int
	MaxPages   int
	SameOrigin bool
	Limiter    Limiter
	Delay      time.Duration
}

type queued struct {
	url    string
	origin string
	depth  int
}

// Run visits pages level by level until the queue is empty, MaxPages pages
// were visited, or ctx ends. It returns the number of pages visited.
func (c *Crawler) Run(ctx context.Context, seeds []string, visit VisitFunc) (int, error) {
	visited := make(map[string]bool)
	var queue []queued

	for _, s := range seeds {
		n, err := Normalize(s)
		if err != nil {
			log.Warn().Err(err).Str("url", s).Msg("Skipping invalid seed")
			continue
		}
		if k := Key(n); !visited[k] {
			visited[k] = true
			queue = append(queue, queued{url: n, origin: n})
		}
	}

	pages := 0
	for len(queue) > 0 {
		if c.MaxPages > 0 && pages >= c.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		item := queue[0]
		queue = queue[1:]

		if err := c.pace(ctx, item.url, pages); err != nil {
			return pages, err
		}

		links, err := visit(ctx, item.url, item.depth)
		pages++
		if err != nil {
			log.Debug().Err(err).Str("url", item.url).Int("depth", item.depth).Msg("Crawl visit failed")
			continue
		}
		if item.depth >= c.MaxDepth {
			continue
		}

		for _, link := range links {
			n, err := Normalize(link)
			if err != nil || !IsPageLink(n) {
				continue
			}
			if c.SameOrigin && !SameOrigin(item.origin, n) {
				continue
			}
			k := Key(n)
			if visited[k] {
				continue
			}
			visited[k] = true
			queue = append(queue, queued{url: n, origin: item.origin, depth: item.depth + 1})
		}
	}

	log.Debug().Int("pages", pages).Int("remaining", len(queue)).Msg("Crawl finished")
	return pages, nil
}

func (c *Crawler) pace(ctx context.Context, url string, pages int) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx, url); err != nil {
			return err
		}
	}
	if c.Delay <= 0 || pages == 0 {
		return nil
	}
	t := time.NewTimer(c.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
