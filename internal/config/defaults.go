package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel    = "info"
	DefaultJSONLog     = false
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultHTTPTimeout = 30 * time.Second

	DefaultRespectRobots  = true
	DefaultRobotsAgent    = "harvest"
	DefaultRobotsCacheTTL = time.Hour

	DefaultStaticRateLimitRPS    = 5.0
	DefaultStaticRateLimitBurst  = 10
	DefaultDynamicRateLimitRPS   = 2.0
	DefaultDynamicRateLimitBurst = 2
	DefaultPolitenessDelay       = 500 * time.Millisecond

	DefaultBrowserHeadless = true
	DefaultLocale          = "en-US"
	DefaultTimezone        = "America/New_York"
	DefaultViewportWidth   = 1920
	DefaultViewportHeight  = 1080

	DefaultInitialSettle = 500 * time.Millisecond
	DefaultScrolls       = 2
	DefaultScrollSettle  = 300 * time.Millisecond
	DefaultFinalSettle   = 300 * time.Millisecond
	DefaultMaxWait       = 5 * time.Second

	DefaultPageTimeout = 30 * time.Second
	DefaultJobTimeout  = 30 * time.Minute

	DefaultRetryAttempts   = 3
	DefaultRetryInitial    = 1 * time.Second
	DefaultRetryMax        = 15 * time.Second
	DefaultRetryMultiplier = 2.0

	DefaultMaxConcurrency = 4
	MaxConcurrencyLimit   = 16

	DefaultStoreBackend = "badger"
	DefaultStorePath    = ".harvest/data"

	DefaultCacheTTL          = 5 * time.Minute
	DefaultCacheMaxSizeBytes = 100 * 1024 * 1024 // 100MB

	DefaultAutoRender         = true
	DefaultMaxNetworkCaptures = 25
	DefaultMaxNetworkBody     = 2 * 1024 * 1024
)
