// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/cache"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/engine/dynamic"
	"github.com/law-makers/harvest/internal/engine/static"
	"github.com/law-makers/harvest/internal/extract"
	"github.com/law-makers/harvest/internal/orchestrator"
	"github.com/law-makers/harvest/internal/proxy"
	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/internal/retry"
	"github.com/law-makers/harvest/internal/robots"
	"github.com/law-makers/harvest/internal/store"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// The result store and the browser manager are opened on first use so
// commands that need neither (sessions, help) start nothing.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	Cache         *cache.MemoryCache
	StaticLimiter *ratelimit.DomainLimiter
	BrowserLimit  *ratelimit.DomainLimiter
	Proxies       *proxy.Pool

	mu       sync.Mutex
	store    store.Store
	browsers []*dynamic.Manager
	checker  *robots.Checker

	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures the global logger from the config
//   - Creates the in-memory capture cache
//   - Creates the per-domain rate limiters for both fetch paths
//   - Creates the proxy pool
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogging(cfg)

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes, cfg.CacheTTL)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Dur("ttl", cfg.CacheTTL).
		Msg("Memory cache initialized")

	staticLimiter := ratelimit.NewDomainLimiter(cfg.StaticRateLimitRPS, cfg.StaticRateLimitBurst)
	browserLimiter := ratelimit.NewDomainLimiter(cfg.DynamicRateLimitRPS, cfg.DynamicRateLimitBurst)
	logger.Debug().
		Float64("static_rps", cfg.StaticRateLimitRPS).
		Float64("dynamic_rps", cfg.DynamicRateLimitRPS).
		Msg("Rate limiters initialized")

	pool := proxy.NewPool(cfg.Proxies)
	if pool.Len() > 0 {
		logger.Debug().Int("proxies", pool.Len()).Msg("Proxy pool initialized")
	}

	return &Application{
		Config:        cfg,
		Logger:        logger,
		Cache:         memCache,
		StaticLimiter: staticLimiter,
		BrowserLimit:  browserLimiter,
		Proxies:       pool,
		startTime:     time.Now(),
	}, nil
}

// SetupLogging points the global zerolog logger at stderr, as JSON or
// console output, at the configured level
func SetupLogging(cfg *config.Config) *zerolog.Logger {
	level := zerolog.WarnLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "error":
		level = zerolog.ErrorLevel
	case "info":
		// Info logs are only shown with -v; job summaries go to stdout
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stderr
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	log.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return &log.Logger
}

// Store opens the configured result store on first use
func (a *Application) Store() (store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.Config.StoreBackend, a.Config.StorePath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().
		Str("backend", a.Config.StoreBackend).
		Str("path", a.Config.StorePath).
		Msg("Result store opened")
	a.store = s
	return s, nil
}

// Orchestrator wires the fetchers, pipeline and store for jobs that use
// the given cookie session (nil for none). obs may be nil.
func (a *Application) Orchestrator(session *auth.SessionData, obs orchestrator.Observer) (*orchestrator.Orchestrator, error) {
	cfg := a.Config
	s, err := a.Store()
	if err != nil {
		return nil, err
	}

	httpFetcher, err := static.New(static.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
		Session:   session,
	}, a.StaticLimiter, a.Proxies)
	if err != nil {
		return nil, err
	}

	browser := dynamic.NewManager(dynamic.Options{
		Headless:       cfg.BrowserHeadless,
		ChromePath:     cfg.ChromePath,
		UserAgent:      cfg.UserAgent,
		Locale:         cfg.Locale,
		Timezone:       cfg.Timezone,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		PageTimeout:    cfg.PageTimeout,
		Wait: dynamic.WaitPolicy{
			InitialSettle: cfg.InitialSettle,
			Scrolls:       cfg.Scrolls,
			ScrollSettle:  cfg.ScrollSettle,
			FinalSettle:   cfg.FinalSettle,
			MaxWait:       cfg.MaxWait,
		},
		MaxNetworkCaptures: cfg.MaxNetworkCaptures,
		MaxNetworkBody:     cfg.MaxNetworkBody,
		Session:            session,
	}, a.BrowserLimit, a.Proxies)

	a.mu.Lock()
	a.browsers = append(a.browsers, browser)
	a.mu.Unlock()

	var robotsPolicy orchestrator.RobotsPolicy
	if cfg.RespectRobots {
		robotsPolicy = a.robotsChecker()
	}

	policy := retry.DefaultConfig()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.InitialBackoff = cfg.RetryInitial
	policy.MaxBackoff = cfg.RetryMax
	policy.Multiplier = cfg.RetryMultiplier

	return orchestrator.New(orchestrator.Config{
		JobTimeout:      cfg.JobTimeout,
		Retry:           policy,
		AutoRender:      cfg.AutoRender,
		MaxConcurrency:  cfg.MaxConcurrency,
		PolitenessDelay: cfg.PolitenessDelay,
	}, orchestrator.Deps{
		Store:    s,
		HTTP:     cache.Cached(httpFetcher, a.Cache, cfg.CacheTTL),
		Browser:  browser,
		Pipeline: extract.New(nil),
		Robots:   robotsPolicy,
		Observer: obs,
	}), nil
}

// robotsChecker returns the process-wide robots.txt checker so every job shares
// one cache
func (a *Application) robotsChecker() *robots.Checker {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checker == nil {
		a.checker = robots.New(&http.Client{Timeout: a.Config.HTTPTimeout}, a.Config.RobotsAgent, a.Config.UserAgent, a.Config.RobotsCacheTTL)
	}
	return a.checker
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Closes every browser still running
//   - Closes the result store
//   - Closes the cache
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.mu.Lock()
	browsers, s := a.browsers, a.store
	a.browsers, a.store = nil, nil
	a.mu.Unlock()

	var firstErr error
	for _, b := range browsers {
		if err := b.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if s != nil {
		if err := s.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing result store")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if a.Cache != nil {
		a.Cache.Close()
	}

	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return firstErr
}
