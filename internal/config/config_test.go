package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func newRoot() *cobra.Command {
	cmd := &cobra.Command{Use: "harvest", Run: func(*cobra.Command, []string) {}}
	RegisterFlags(cmd)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newRoot())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PageTimeout != DefaultPageTimeout {
		t.Errorf("expected page timeout %s, got %s", DefaultPageTimeout, cfg.PageTimeout)
	}
	if cfg.StoreBackend != DefaultStoreBackend {
		t.Errorf("expected store %q, got %q", DefaultStoreBackend, cfg.StoreBackend)
	}
	if !cfg.BrowserHeadless {
		t.Error("expected headless by default")
	}
	if !cfg.RespectRobots || cfg.RobotsCacheTTL != time.Hour {
		t.Errorf("expected robots.txt honoured with a 1h cache, got %v / %s", cfg.RespectRobots, cfg.RobotsCacheTTL)
	}
}

func TestLoadRobots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.toml")
	content := `
[robots]
agent = "harvest-test"
cache_ttl = "10m"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRoot()
	if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RobotsAgent != "harvest-test" || cfg.RobotsCacheTTL != 10*time.Minute || !cfg.RespectRobots {
		t.Errorf("robots section not applied: %+v", cfg)
	}

	cmd = newRoot()
	if err := cmd.ParseFlags([]string{"--ignore-robots"}); err != nil {
		t.Fatal(err)
	}
	if cfg, err = Load(cmd); err != nil {
		t.Fatal(err)
	}
	if cfg.RespectRobots {
		t.Error("--ignore-robots should turn robots.txt checks off")
	}

	t.Setenv("HARVEST_RESPECT_ROBOTS", "false")
	if cfg, err = Load(newRoot()); err != nil {
		t.Fatal(err)
	}
	if cfg.RespectRobots {
		t.Error("HARVEST_RESPECT_ROBOTS=false should turn robots.txt checks off")
	}
}

func TestLoadFileThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.toml")
	content := `
user_agent = "FileAgent/1.0"
proxies = ["http://p1:8080", "http://p2:8080"]

[wait]
initial_settle = "1s"
scrolls = 4

[retry]
attempts = 5

[store]
backend = "memory"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRoot()
	if err := cmd.ParseFlags([]string{"--config", path, "--user-agent", "FlagAgent/2.0", "--page-timeout", "10s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserAgent != "FlagAgent/2.0" {
		t.Errorf("flag should override file, got %q", cfg.UserAgent)
	}
	if len(cfg.Proxies) != 2 {
		t.Errorf("expected 2 proxies from file, got %v", cfg.Proxies)
	}
	if cfg.InitialSettle != time.Second || cfg.Scrolls != 4 {
		t.Errorf("wait policy not applied: %s / %d", cfg.InitialSettle, cfg.Scrolls)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("expected 5 retry attempts, got %d", cfg.RetryAttempts)
	}
	if cfg.PageTimeout != 10*time.Second {
		t.Errorf("expected page timeout 10s, got %s", cfg.PageTimeout)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("expected memory store, got %q", cfg.StoreBackend)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("HARVEST_PROXY", "http://a:1, http://b:2")
	t.Setenv("HARVEST_HEADLESS", "false")

	cfg, err := Load(newRoot())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Proxies) != 2 || cfg.Proxies[1] != "http://b:2" {
		t.Errorf("unexpected proxies %v", cfg.Proxies)
	}
	if cfg.BrowserHeadless {
		t.Error("expected HARVEST_HEADLESS=false to disable headless")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero page timeout":   func(c *Config) { c.PageTimeout = 0 },
		"job below page":      func(c *Config) { c.JobTimeout = time.Second },
		"negative scrolls":    func(c *Config) { c.Scrolls = -1 },
		"no retries":          func(c *Config) { c.RetryAttempts = 0 },
		"too many workers":    func(c *Config) { c.MaxConcurrency = MaxConcurrencyLimit + 1 },
		"unknown store":       func(c *Config) { c.StoreBackend = "redis" },
		"badger without path": func(c *Config) { c.StorePath = "" },
		"negative robots ttl": func(c *Config) { c.RobotsCacheTTL = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	if err := validate(Defaults()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
