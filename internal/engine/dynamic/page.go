package dynamic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/engine/hybrid"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/pkg/models"
)

// Page is one browser tab
type Page struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() {
	p.once.Do(func() {
		p.cancel()
		p.session.dropPage(p)
	})
}

// Navigate loads url, runs the wait policy and captures the rendered DOM
// plus any API responses seen while loading. The network listener lives
// only for this call.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) (*models.PageCapture, error) {
	logger := reqctx.Logger(ctx)
	opts := p.session.mgr.opts
	if timeout <= 0 {
		timeout = opts.PageTimeout
	}
	start := time.Now()

	navCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	rec := newRecorder(opts.MaxNetworkCaptures, opts.MaxNetworkBody)
	listenCtx, stopListening := context.WithCancel(navCtx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, rec.listen(listenCtx, navCtx))

	var html, title, location string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		opts.Wait.Action(),
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	stopListening()
	captures := rec.finish()
	if err != nil {
		return nil, p.classify(ctx, navCtx, err, url, timeout)
	}

	status, docURL, headers := rec.document()
	capture := &models.PageCapture{
		URL:        url,
		StatusCode: status,
		Headers:    headers,
		Title:      strings.TrimSpace(title),
		HTML:       html,
		Rendered:   true,
		Network:    captures,
		FetchedAt:  start,
		Duration:   time.Since(start),
	}
	final := location
	if final == "" || final == "about:blank" {
		final = docURL
	}
	if final != "" && final != url {
		capture.FinalURL = final
	}

	if vendor := hybrid.Challenge(html); vendor != "" {
		return nil, engine.FetchError(engine.ErrCodeBlocked,
			fmt.Sprintf("bot challenge (%s) at %s", vendor, url), engine.ErrBotChallenge).
			WithDetail("vendor", vendor).
			WithDetail("status", status)
	}
	if status >= 400 {
		return nil, engine.FetchError(engine.ErrCodeHTTPStatus,
			fmt.Sprintf("HTTP %d from %s", status, url), nil).
			WithStatus(status)
	}

	logger.Debug().
		Int("status", status).
		Int("bytes", len(html)).
		Int("api_captures", len(captures)).
		Int64("elapsed_ms", capture.Duration.Milliseconds()).
		Msg("Render completed")
	return capture, nil
}

// classify maps a navigation failure onto the engine taxonomy. The
// session survives every outcome except a dead browser.
func (p *Page) classify(ctx, navCtx context.Context, err error, url string, timeout time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case ctx.Err() != nil:
		return engine.TimeoutError("job deadline reached during navigation", ctx.Err())
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return engine.TimeoutError(fmt.Sprintf("navigation to %s timed out after %s", url, timeout), err)
	case p.session.browserCtx.Err() != nil:
		return engine.FetchError(engine.ErrCodeBrowserCrash, "browser exited during navigation", engine.ErrBrowserCrash)
	}
	if mgr := p.session.mgr; mgr.proxies != nil && strings.Contains(err.Error(), "net::ERR_PROXY") {
		mgr.proxies.MarkFailed(p.session.proxy)
	}
	return engine.FetchError(engine.ErrCodeNetworkError,
		fmt.Sprintf("failed to load %s", url), fmt.Errorf("%w: %v", engine.ErrNetworkError, err))
}
