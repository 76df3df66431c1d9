package orchestrator

import (
	"context"
	"sync"

	"github.com/law-makers/harvest/pkg/models"
)

// workers resolves how many targets run at once. 0 and 1 mean one at a
// time; larger requests are capped by the configured limit.
func workers(requested, limit int) int {
	if requested <= 1 {
		return 1
	}
	if limit > 0 && requested > limit {
		return limit
	}
	return requested
}

// dispatch calls fn for each target with at most n in flight. With n == 1
// targets run in order on the calling goroutine. Dispatch stops once ctx
// is done; targets never handed out are left alone. It returns how many
// were dispatched.
func dispatch(ctx context.Context, n int, targets []models.TargetURL, fn func(models.TargetURL)) int {
	if n <= 1 {
		for i, t := range targets {
			if ctx.Err() != nil {
				return i
			}
			fn(t)
		}
		return len(targets)
	}

	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	dispatched := 0
	for _, t := range targets {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}
		dispatched++
		wg.Add(1)
		go func(t models.TargetURL) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(t)
		}(t)
	}
	wg.Wait()
	return dispatched
}
