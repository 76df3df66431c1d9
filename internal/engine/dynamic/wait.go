package dynamic

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// WaitPolicy is how long a page is given to finish rendering after
// navigation. Scrolling triggers lazy-loaded content.
type WaitPolicy struct {
	InitialSettle time.Duration
	Scrolls       int
	ScrollSettle  time.Duration
	FinalSettle   time.Duration
	MaxWait       time.Duration
}

// DefaultWaitPolicy is the policy used when none is configured
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{
		InitialSettle: 500 * time.Millisecond,
		Scrolls:       2,
		ScrollSettle:  300 * time.Millisecond,
		FinalSettle:   300 * time.Millisecond,
		MaxWait:       5 * time.Second,
	}
}

// Action runs the policy. Running out of MaxWait ends the wait early and
// is not an error; only the caller's context ending is.
func (w WaitPolicy) Action() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx := ctx
		if w.MaxWait > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, w.MaxWait)
			defer cancel()
		}

		err := w.run(waitCtx)
		if err != nil && ctx.Err() == nil && waitCtx.Err() != nil {
			return nil
		}
		return err
	})
}

func (w WaitPolicy) run(ctx context.Context) error {
	if err := sleep(ctx, w.InitialSettle); err != nil {
		return err
	}
	var ok bool
	for i := 1; i <= w.Scrolls; i++ {
		js := fmt.Sprintf("(window.scrollTo(0, document.body ? document.body.scrollHeight * %d / %d : 0), true)", i, w.Scrolls)
		if err := chromedp.Evaluate(js, &ok).Do(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, w.ScrollSettle); err != nil {
			return err
		}
	}
	if w.Scrolls > 0 {
		if err := chromedp.Evaluate("(window.scrollTo(0, 0), true)", &ok).Do(ctx); err != nil {
			return err
		}
	}
	return sleep(ctx, w.FinalSettle)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
