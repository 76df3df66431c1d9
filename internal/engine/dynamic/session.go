package dynamic

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/pkg/models"
)

// hideWebdriver runs before any page script
const hideWebdriver = `Object.defineProperty(Navigator.prototype, 'webdriver', {get: () => undefined, configurable: true});`

// Session is one live browser owned by one job
type Session struct {
	mgr   *Manager
	proxy string

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu       sync.Mutex
	pages    map[*Page]struct{}
	released bool
}

// Name returns the name of this fetcher
func (s *Session) Name() string {
	return "browser"
}

// Pages returns the number of open tabs
func (s *Session) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// NewPage opens a tab with the fingerprint, stealth script and session
// cookies installed
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, engine.SetupError(engine.ErrCodeSessionError, "browser session already released", engine.ErrSessionReleased)
	}
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	p := &Page{session: s, ctx: tabCtx, cancel: tabCancel}
	s.pages[p] = struct{}{}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, s.setupActions()...)
	stop()
	if err != nil {
		p.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.browserCtx.Err() != nil {
			return nil, engine.FetchError(engine.ErrCodeBrowserCrash, "browser is gone", engine.ErrBrowserCrash)
		}
		return nil, engine.FetchError(engine.ErrCodeBrowserCrash, "failed to open tab", err)
	}
	return p, nil
}

func (s *Session) setupActions() []chromedp.Action {
	o := s.mgr.opts
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(o.ViewportWidth), int64(o.ViewportHeight), 1, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx); err != nil {
				return err
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		// Overrides the host may refuse are best effort
		chromedp.ActionFunc(func(ctx context.Context) error {
			if o.UserAgent != "" {
				ua := emulation.SetUserAgentOverride(o.UserAgent).WithAcceptLanguage(o.Locale)
				if err := ua.Do(ctx); err != nil {
					log.Debug().Err(err).Msg("User agent override failed")
				}
			}
			if err := emulation.SetLocaleOverride().WithLocale(o.Locale).Do(ctx); err != nil {
				log.Debug().Err(err).Msg("Locale override failed")
			}
			if o.Timezone != "" {
				if err := emulation.SetTimezoneOverride(o.Timezone).Do(ctx); err != nil {
					log.Debug().Err(err).Str("timezone", o.Timezone).Msg("Timezone override failed")
				}
			}
			return nil
		}),
	}
	if o.Session != nil {
		if len(o.Session.Headers) > 0 {
			headers := network.Headers{}
			for k, v := range o.Session.Headers {
				headers[k] = v
			}
			actions = append(actions, network.SetExtraHTTPHeaders(headers))
		}
		cookies := cookieParams(o.Session)
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				if err := c.Do(ctx); err != nil {
					log.Debug().Err(err).Str("cookie", c.Name).Msg("Failed to install cookie")
				}
			}
			return nil
		}))
	}
	return actions
}

// cookieParams converts saved cookies for network.SetCookie. Cookies with
// neither a domain nor a session URL cannot be placed and are skipped.
func cookieParams(s *auth.SessionData) []*network.SetCookieParams {
	var out []*network.SetCookieParams
	for _, c := range s.Cookies {
		p := network.SetCookie(c.Name, c.Value).
			WithPath(c.Path).
			WithSecure(c.Secure).
			WithHTTPOnly(c.HTTPOnly)
		switch {
		case c.Domain != "":
			p = p.WithDomain(c.Domain)
		case s.URL != "":
			p = p.WithURL(s.URL)
		default:
			continue
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p = p.WithExpires(&t)
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p = p.WithSameSite(network.CookieSameSiteStrict)
		case "lax":
			p = p.WithSameSite(network.CookieSameSiteLax)
		case "none":
			p = p.WithSameSite(network.CookieSameSiteNone)
		}
		out = append(out, p)
	}
	return out
}

// Fetch renders url in a fresh tab that is closed before returning
func (s *Session) Fetch(ctx context.Context, url string) (*models.PageCapture, error) {
	if s.mgr.limiter != nil {
		if err := s.mgr.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}
	p, err := s.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Navigate(ctx, url, s.mgr.opts.PageTimeout)
}

// Release closes every tab and the browser process. Calling it again is
// a no-op.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	pages := make([]*Page, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	s.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}
	if err := chromedp.Cancel(s.browserCtx); err != nil {
		log.Debug().Err(err).Msg("Graceful browser close failed")
	}
	s.browserCancel()
	s.allocCancel()
	s.mgr.forget(s)

	log.Debug().Int("open_sessions", s.mgr.Open()).Msg("Browser session released")
	return nil
}

func (s *Session) dropPage(p *Page) {
	s.mu.Lock()
	delete(s.pages, p)
	s.mu.Unlock()
}
