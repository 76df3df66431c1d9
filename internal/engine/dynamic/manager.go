// Package dynamic renders pages in headless Chrome. A Manager launches one
// browser per job session; each Fetch opens a tab, navigates with the wait
// policy, captures the DOM and matching API responses, then closes the tab.
package dynamic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/ratelimit"
)

// Options configures the browser and every page it opens
type Options struct {
	Headless       bool
	ChromePath     string
	UserAgent      string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
	PageTimeout    time.Duration
	LaunchTimeout  time.Duration
	Wait           WaitPolicy

	MaxNetworkCaptures int
	MaxNetworkBody     int

	// Session cookies are installed on every new page
	Session *auth.SessionData

	ExtraArgs []chromedp.ExecAllocatorOption
}

// Manager hands out browser sessions and tracks how many are alive
type Manager struct {
	opts    Options
	limiter ratelimit.Limiter
	proxies *proxy.Pool

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewManager creates a Manager. Nothing is launched until Acquire.
// lim and proxies may be nil.
func NewManager(opts Options, lim ratelimit.Limiter, proxies *proxy.Pool) *Manager {
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = 1920, 1080
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 45 * time.Second
	}
	if opts.Wait == (WaitPolicy{}) {
		opts.Wait = DefaultWaitPolicy()
	}
	return &Manager{
		opts:     opts,
		limiter:  lim,
		proxies:  proxies,
		sessions: make(map[*Session]struct{}),
	}
}

// Acquire launches a browser for one job. A browser that cannot start is
// a SetupError.
func (m *Manager) Acquire(ctx context.Context) (engine.Session, error) {
	return m.launch(ctx)
}

func (m *Manager) launch(ctx context.Context) (*Session, error) {
	start := time.Now()
	var via string
	if m.proxies != nil {
		via = m.proxies.Next()
	}

	chromePath := FindChrome(m.opts.ChromePath)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), m.allocatorOptions(chromePath, via)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	launchCtx, cancelLaunch := context.WithTimeout(ctx, m.opts.LaunchTimeout)
	defer cancelLaunch()
	stop := context.AfterFunc(launchCtx, browserCancel)
	err := chromedp.Run(browserCtx)
	stopped := stop()

	if err != nil || !stopped {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			err = launchCtx.Err()
		}
		cause := engine.ErrBrowserCrash
		if chromePath == "" {
			cause = engine.ErrBrowserNotFound
		}
		return nil, engine.SetupError(engine.ErrCodeBrowserCrash, "failed to start browser", fmt.Errorf("%w: %v", cause, err))
	}

	s := &Session{
		mgr:           m,
		proxy:         via,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		pages:         make(map[*Page]struct{}),
	}
	m.mu.Lock()
	m.sessions[s] = struct{}{}
	open := len(m.sessions)
	m.mu.Unlock()

	log.Debug().
		Str("chrome", chromePath).
		Str("version", ChromeVersion(chromePath)).
		Str("proxy", via).
		Int("open_sessions", open).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Browser session started")
	return s, nil
}

// Open returns the number of live sessions
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close releases every live session
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Release()
	}
	return nil
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
}

func (m *Manager) allocatorOptions(chromePath, via string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-features", "site-per-process,TranslateUI"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", m.opts.Locale),
		chromedp.WindowSize(m.opts.ViewportWidth, m.opts.ViewportHeight),
	}
	if m.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.opts.UserAgent))
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	if m.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"), chromedp.Flag("hide-scrollbars", true))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if via != "" {
		opts = append(opts, chromedp.ProxyServer(via))
	}
	return append(opts, m.opts.ExtraArgs...)
}
