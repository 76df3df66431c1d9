package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be > 0")
	}
	if c.JobTimeout < c.PageTimeout {
		return fmt.Errorf("job timeout (%s) must be >= page timeout (%s)", c.JobTimeout, c.PageTimeout)
	}
	if c.RespectRobots && c.RobotsAgent == "" {
		return fmt.Errorf("robots agent must not be empty")
	}
	if c.RobotsCacheTTL < 0 {
		return fmt.Errorf("robots cache TTL must be >= 0")
	}
	if c.Scrolls < 0 {
		return fmt.Errorf("scroll count must be >= 0")
	}
	if c.InitialSettle < 0 || c.ScrollSettle < 0 || c.FinalSettle < 0 || c.MaxWait < 0 {
		return fmt.Errorf("wait durations must be >= 0")
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		return fmt.Errorf("retry attempts must be between 1 and 10")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1")
	}
	if c.MaxConcurrency <= 0 || c.MaxConcurrency > MaxConcurrencyLimit {
		return fmt.Errorf("max concurrency must be between 1 and %d", MaxConcurrencyLimit)
	}
	switch c.StoreBackend {
	case "memory":
	case "badger":
		if c.StorePath == "" {
			return fmt.Errorf("badger store requires a store path")
		}
	default:
		return fmt.Errorf("unknown store backend %q (memory or badger)", c.StoreBackend)
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	return nil
}
