package auth

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// LoginOptions configures an interactive login
type LoginOptions struct {
	SessionName string
	URL         string
	// ChromePath is the browser binary; empty lets chromedp search
	ChromePath string
	// WaitSelector marks a logged-in page. Without it the user confirms
	// with Enter.
	WaitSelector string
	Timeout      time.Duration
	// RemoteDebuggingPort exposes DevTools so a login can be completed
	// from another machine
	RemoteDebuggingPort int
}

// InteractiveLogin opens a visible browser at opts.URL, waits for the user
// to log in and returns the cookies the browser holds afterwards. The
// session is not saved.
func InteractiveLogin(ctx context.Context, opts LoginOptions) (*SessionData, error) {
	if opts.SessionName == "" {
		return nil, fmt.Errorf("session name is required")
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" && opts.RemoteDebuggingPort == 0 {
		return nil, fmt.Errorf("interactive login needs a display; use --remote-debug or import cookies with:\n" +
			"   harvest sessions import <name> --url=<url>")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1280, 720),
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.RemoteDebuggingPort > 0 {
		allocOpts = append(allocOpts,
			chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", opts.RemoteDebuggingPort)),
			chromedp.Flag("remote-debugging-address", "0.0.0.0"),
		)
		fmt.Printf("\n🔧 Remote debugging enabled on port %d\n", opts.RemoteDebuggingPort)
		fmt.Printf("   Open chrome://inspect locally and add target localhost:%d\n", opts.RemoteDebuggingPort)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Printf))
	defer browserCancel()

	log.Info().Str("session", opts.SessionName).Str("url", opts.URL).Msg("Starting interactive login")
	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(opts.URL)); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.URL, err)
	}
	fmt.Println("\n🌐 Browser opened. Please complete the login process manually.")

	if opts.WaitSelector != "" {
		fmt.Printf("   Waiting for element: %s\n", opts.WaitSelector)
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			return nil, fmt.Errorf("login timeout or failed: %w", err)
		}
	} else {
		fmt.Println("\n   Press Enter once you have completed login...")
		fmt.Scanln()
	}

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found, login may have failed")
	}
	log.Info().Int("cookie_count", len(cookies)).Msg("Cookies captured")

	session := &SessionData{
		Name:      opts.SessionName,
		URL:       opts.URL,
		Cookies:   FromNetwork(cookies),
		Headers:   map[string]string{},
		CreatedAt: time.Now(),
	}
	session.ExpiresAt = ExpiryOf(session.Cookies)
	return session, nil
}

// FromNetwork converts DevTools cookies to session cookies
func FromNetwork(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

// ExpiryOf is when the longest-lived cookie runs out, or zero when every
// cookie lasts for the browser session only
func ExpiryOf(cookies []Cookie) time.Time {
	var latest float64
	for _, c := range cookies {
		if c.Expires > latest {
			latest = c.Expires
		}
	}
	if latest <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(latest), 0)
}
