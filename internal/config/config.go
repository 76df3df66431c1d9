package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP/Scraping
	HTTPTimeout time.Duration
	UserAgent   string
	Proxies     []string
	Headers     map[string]string

	// robots.txt
	RespectRobots  bool
	RobotsAgent    string
	RobotsCacheTTL time.Duration

	// Rate Limiting
	StaticRateLimitRPS    float64
	StaticRateLimitBurst  int
	DynamicRateLimitRPS   float64
	DynamicRateLimitBurst int
	PolitenessDelay       time.Duration

	// Browser
	BrowserHeadless bool
	ChromePath      string
	Locale          string
	Timezone        string
	ViewportWidth   int
	ViewportHeight  int
	AutoRender      bool

	// Per-page wait policy
	InitialSettle time.Duration
	Scrolls       int
	ScrollSettle  time.Duration
	FinalSettle   time.Duration
	MaxWait       time.Duration

	// Network capture
	MaxNetworkCaptures int
	MaxNetworkBody     int

	// Budgets
	PageTimeout time.Duration
	JobTimeout  time.Duration

	// Retry
	RetryAttempts   int
	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMultiplier float64

	// Concurrency cap for the optional page pool
	MaxConcurrency int

	// Result store
	StoreBackend string
	StorePath    string

	// Caching
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64
}

// fileConfig mirrors the subset of Config that can be set from a TOML file.
// Durations are strings ("1.5s") so files stay readable.
type fileConfig struct {
	LogLevel  string   `toml:"log_level"`
	JSONLog   *bool    `toml:"json_log"`
	UserAgent string   `toml:"user_agent"`
	Timeout   string   `toml:"timeout"`
	Proxies   []string `toml:"proxies"`

	Headers map[string]string `toml:"headers"`

	Robots struct {
		Respect  *bool  `toml:"respect"`
		Agent    string `toml:"agent"`
		CacheTTL string `toml:"cache_ttl"`
	} `toml:"robots"`

	RateLimit struct {
		StaticRPS    float64 `toml:"static_rps"`
		StaticBurst  int     `toml:"static_burst"`
		DynamicRPS   float64 `toml:"dynamic_rps"`
		DynamicBurst int     `toml:"dynamic_burst"`
		Politeness   string  `toml:"politeness"`
	} `toml:"rate_limit"`

	Browser struct {
		Headless   *bool  `toml:"headless"`
		ChromePath string `toml:"chrome_path"`
		Locale     string `toml:"locale"`
		Timezone   string `toml:"timezone"`
		AutoRender *bool  `toml:"auto_render"`
	} `toml:"browser"`

	Wait struct {
		InitialSettle string `toml:"initial_settle"`
		Scrolls       *int   `toml:"scrolls"`
		ScrollSettle  string `toml:"scroll_settle"`
		FinalSettle   string `toml:"final_settle"`
		MaxWait       string `toml:"max_wait"`
	} `toml:"wait"`

	Budget struct {
		Page string `toml:"page"`
		Job  string `toml:"job"`
	} `toml:"budget"`

	Retry struct {
		Attempts   int     `toml:"attempts"`
		Initial    string  `toml:"initial"`
		Max        string  `toml:"max"`
		Multiplier float64 `toml:"multiplier"`
	} `toml:"retry"`

	Store struct {
		Backend string `toml:"backend"`
		Path    string `toml:"path"`
	} `toml:"store"`

	MaxConcurrency int `toml:"max_concurrency"`
}

// Defaults returns a Config populated with the package defaults
func Defaults() *Config {
	return &Config{
		LogLevel:              DefaultLogLevel,
		JSONLog:               DefaultJSONLog,
		HTTPTimeout:           DefaultHTTPTimeout,
		UserAgent:             DefaultUserAgent,
		Headers:               map[string]string{},
		RespectRobots:         DefaultRespectRobots,
		RobotsAgent:           DefaultRobotsAgent,
		RobotsCacheTTL:        DefaultRobotsCacheTTL,
		StaticRateLimitRPS:    DefaultStaticRateLimitRPS,
		StaticRateLimitBurst:  DefaultStaticRateLimitBurst,
		DynamicRateLimitRPS:   DefaultDynamicRateLimitRPS,
		DynamicRateLimitBurst: DefaultDynamicRateLimitBurst,
		PolitenessDelay:       DefaultPolitenessDelay,
		BrowserHeadless:       DefaultBrowserHeadless,
		Locale:                DefaultLocale,
		Timezone:              DefaultTimezone,
		ViewportWidth:         DefaultViewportWidth,
		ViewportHeight:        DefaultViewportHeight,
		AutoRender:            DefaultAutoRender,
		InitialSettle:         DefaultInitialSettle,
		Scrolls:               DefaultScrolls,
		ScrollSettle:          DefaultScrollSettle,
		FinalSettle:           DefaultFinalSettle,
		MaxWait:               DefaultMaxWait,
		MaxNetworkCaptures:    DefaultMaxNetworkCaptures,
		MaxNetworkBody:        DefaultMaxNetworkBody,
		PageTimeout:           DefaultPageTimeout,
		JobTimeout:            DefaultJobTimeout,
		RetryAttempts:         DefaultRetryAttempts,
		RetryInitial:          DefaultRetryInitial,
		RetryMax:              DefaultRetryMax,
		RetryMultiplier:       DefaultRetryMultiplier,
		MaxConcurrency:        DefaultMaxConcurrency,
		StoreBackend:          DefaultStoreBackend,
		StorePath:             DefaultStorePath,
		CacheTTL:              DefaultCacheTTL,
		CacheMaxSizeBytes:     DefaultCacheMaxSizeBytes,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	path := os.Getenv("HARVEST_CONFIG")
	if cmd != nil {
		if f := lookup(cmd, "config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := applyFile(cfg, data); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cmd != nil {
		if err := applyFlags(cfg, cmd); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.JSONLog != nil {
		cfg.JSONLog = *fc.JSONLog
	}
	setString(&cfg.UserAgent, fc.UserAgent)
	if len(fc.Proxies) > 0 {
		cfg.Proxies = fc.Proxies
	}
	for k, v := range fc.Headers {
		cfg.Headers[k] = v
	}
	if fc.Robots.Respect != nil {
		cfg.RespectRobots = *fc.Robots.Respect
	}
	setString(&cfg.RobotsAgent, fc.Robots.Agent)

	if fc.RateLimit.StaticRPS > 0 {
		cfg.StaticRateLimitRPS = fc.RateLimit.StaticRPS
	}
	if fc.RateLimit.StaticBurst > 0 {
		cfg.StaticRateLimitBurst = fc.RateLimit.StaticBurst
	}
	if fc.RateLimit.DynamicRPS > 0 {
		cfg.DynamicRateLimitRPS = fc.RateLimit.DynamicRPS
	}
	if fc.RateLimit.DynamicBurst > 0 {
		cfg.DynamicRateLimitBurst = fc.RateLimit.DynamicBurst
	}

	if fc.Browser.Headless != nil {
		cfg.BrowserHeadless = *fc.Browser.Headless
	}
	if fc.Browser.AutoRender != nil {
		cfg.AutoRender = *fc.Browser.AutoRender
	}
	setString(&cfg.ChromePath, fc.Browser.ChromePath)
	setString(&cfg.Locale, fc.Browser.Locale)
	setString(&cfg.Timezone, fc.Browser.Timezone)

	if fc.Wait.Scrolls != nil {
		cfg.Scrolls = *fc.Wait.Scrolls
	}
	if fc.Retry.Attempts > 0 {
		cfg.RetryAttempts = fc.Retry.Attempts
	}
	if fc.Retry.Multiplier > 0 {
		cfg.RetryMultiplier = fc.Retry.Multiplier
	}
	if fc.MaxConcurrency > 0 {
		cfg.MaxConcurrency = fc.MaxConcurrency
	}
	setString(&cfg.StoreBackend, fc.Store.Backend)
	setString(&cfg.StorePath, fc.Store.Path)

	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.Timeout, &cfg.HTTPTimeout},
		{fc.Robots.CacheTTL, &cfg.RobotsCacheTTL},
		{fc.RateLimit.Politeness, &cfg.PolitenessDelay},
		{fc.Wait.InitialSettle, &cfg.InitialSettle},
		{fc.Wait.ScrollSettle, &cfg.ScrollSettle},
		{fc.Wait.FinalSettle, &cfg.FinalSettle},
		{fc.Wait.MaxWait, &cfg.MaxWait},
		{fc.Budget.Page, &cfg.PageTimeout},
		{fc.Budget.Job, &cfg.JobTimeout},
		{fc.Retry.Initial, &cfg.RetryInitial},
		{fc.Retry.Max, &cfg.RetryMax},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVEST_PROXY"); v != "" {
		cfg.Proxies = splitList(v)
	}
	if v := os.Getenv("HARVEST_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("HARVEST_STORE"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("HARVEST_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("HARVEST_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BrowserHeadless = b
		}
	}
	if v := os.Getenv("HARVEST_RESPECT_ROBOTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RespectRobots = b
		}
	}
	if v := os.Getenv("HARVEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

func applyFlags(cfg *Config, cmd *cobra.Command) error {
	if f := lookup(cmd, "user-agent"); f != nil && f.Changed {
		cfg.UserAgent = f.Value.String()
	}
	if f := lookup(cmd, "proxy"); f != nil && f.Changed {
		cfg.Proxies = splitList(f.Value.String())
	}
	if f := lookup(cmd, "chrome-path"); f != nil && f.Changed {
		cfg.ChromePath = f.Value.String()
	}
	if f := lookup(cmd, "store"); f != nil && f.Changed {
		cfg.StoreBackend = f.Value.String()
	}
	if f := lookup(cmd, "store-path"); f != nil && f.Changed {
		cfg.StorePath = f.Value.String()
	}
	if f := lookup(cmd, "headful"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := lookup(cmd, "ignore-robots"); f != nil && f.Value.String() == "true" {
		cfg.RespectRobots = false
	}
	if f := lookup(cmd, "json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := lookup(cmd, "quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
	if f := lookup(cmd, "verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := lookup(cmd, "retries"); f != nil && f.Changed {
		n, err := strconv.Atoi(f.Value.String())
		if err != nil {
			return fmt.Errorf("invalid --retries: %w", err)
		}
		cfg.RetryAttempts = n
	}

	for name, dst := range map[string]*time.Duration{
		"timeout":      &cfg.HTTPTimeout,
		"page-timeout": &cfg.PageTimeout,
		"job-timeout":  &cfg.JobTimeout,
	} {
		f := lookup(cmd, name)
		if f == nil || !f.Changed {
			continue
		}
		d, err := time.ParseDuration(f.Value.String())
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", name, err)
		}
		*dst = d
	}
	return nil
}

// lookup finds a flag on the command or among the persistent flags it inherits
func lookup(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f
	}
	return cmd.PersistentFlags().Lookup(name)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
