// Package static fetches pages over plain HTTP. It is the default fetch
// path; the orchestrator escalates to the browser when a capture turns out
// to be a script shell.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/engine/hybrid"
	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/internal/reqctx"
	"github.com/law-makers/harvest/internal/utils/headers"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// DefaultMaxBody caps how much of a response body is read
const DefaultMaxBody = 10 << 20

// Options configures a Fetcher
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	MaxBody   int64
	Session   *auth.SessionData
}

// Fetcher implements engine.Fetcher with net/http and goquery
type Fetcher struct {
	client  *http.Client
	limiter ratelimit.Limiter
	proxies *proxy.Pool
	opts    Options
}

// New creates a Fetcher. lim and proxies may be nil.
func New(opts Options, lim ratelimit.Limiter, proxies *proxy.Pool) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.Session != nil {
		loadSession(jar, opts.Session)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxies != nil && proxies.Len() > 0 {
		transport.Proxy = proxies.ProxyFunc()
	}

	return &Fetcher{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				return nil
			},
		},
		limiter: lim,
		proxies: proxies,
		opts:    opts,
	}, nil
}

// loadSession seeds the jar with saved cookies, keyed by the session URL
// or, when it has none, by each cookie's own domain
func loadSession(jar http.CookieJar, s *auth.SessionData) {
	cookies := s.HTTPCookies()
	if u, err := url.Parse(s.URL); err == nil && u.Host != "" {
		jar.SetCookies(u, cookies)
		return
	}
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: path}, []*http.Cookie{c})
	}
	log.Debug().Str("session", s.Name).Int("cookies", len(cookies)).Msg("Loaded session cookies")
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "static"
}

// Fetch retrieves rawURL and returns its capture
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.PageCapture, error) {
	logger := reqctx.Logger(ctx)
	start := time.Now()

	if err := urlutil.ValidateURL(rawURL); err != nil {
		return nil, engine.NewEngineError(engine.KindFetch, engine.ErrCodeValidation,
			fmt.Sprintf("invalid URL %q", rawURL), fmt.Errorf("%w: %v", engine.ErrInvalidURL, err))
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, f.classify(ctx, err, rawURL)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	var via string
	if f.proxies != nil && f.proxies.Len() > 0 {
		via = f.proxies.Next()
		ctx = proxy.WithProxy(ctx, via)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, engine.NewEngineError(engine.KindFetch, engine.ErrCodeValidation, "failed to build request", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Apply(req, f.opts.Headers)
	if f.opts.Session != nil {
		headers.Apply(req, f.opts.Session.Headers)
	}

	logger.Debug().Str("fetcher", f.Name()).Str("proxy", via).Msg("Starting fetch")

	resp, err := f.client.Do(req)
	if err != nil {
		if f.proxies != nil && ctx.Err() == nil {
			f.proxies.MarkFailed(via)
		}
		return nil, f.classify(ctx, err, rawURL)
	}
	defer resp.Body.Close()

	body, err := readBody(resp, f.opts.MaxBody)
	if err != nil {
		return nil, f.classify(ctx, err, rawURL)
	}

	capture := &models.PageCapture{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		HTML:       body,
		FetchedAt:  start,
		Duration:   time.Since(start),
	}
	if final := resp.Request.URL.String(); final != rawURL {
		capture.FinalURL = final
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		capture.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if vendor := hybrid.Challenge(body); vendor != "" {
		return nil, engine.FetchError(engine.ErrCodeBlocked,
			fmt.Sprintf("bot challenge (%s) at %s", vendor, rawURL), engine.ErrBotChallenge).
			WithDetail("vendor", vendor).
			WithDetail("status", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, engine.FetchError(engine.ErrCodeHTTPStatus,
			fmt.Sprintf("HTTP %d from %s", resp.StatusCode, rawURL), nil).
			WithStatus(resp.StatusCode)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Int64("elapsed_ms", capture.Duration.Milliseconds()).
		Msg("Fetch completed")
	return capture, nil
}

// readBody decodes the body to UTF-8 using the declared or sniffed charset
func readBody(resp *http.Response, max int64) (string, error) {
	r, err := charset.NewReader(io.LimitReader(resp.Body, max), resp.Header.Get("Content-Type"))
	if err != nil {
		r = io.LimitReader(resp.Body, max)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// classify maps a transport error onto the engine taxonomy
func (f *Fetcher) classify(ctx context.Context, err error, rawURL string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return engine.TimeoutError(fmt.Sprintf("fetch of %s timed out after %s", rawURL, f.opts.Timeout), err)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return engine.FetchError(engine.ErrCodeNetworkError,
		fmt.Sprintf("failed to fetch %s", rawURL), fmt.Errorf("%w: %v", engine.ErrNetworkError, err))
}
