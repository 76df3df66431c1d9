package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxies, comma separated (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "30s", "Timeout for plain HTTP requests")
	cmd.PersistentFlags().String("page-timeout", "30s", "Timeout for one page navigation")
	cmd.PersistentFlags().String("job-timeout", "30m", "Wall-clock budget for a whole job")
	cmd.PersistentFlags().Int("retries", DefaultRetryAttempts, "Attempts per target URL before it is marked failed")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("chrome-path", "", "Path to the Chrome/Chromium binary")
	cmd.PersistentFlags().Bool("headful", false, "Show the browser window")
	cmd.PersistentFlags().Bool("ignore-robots", false, "Fetch pages robots.txt disallows")
	cmd.PersistentFlags().String("store", DefaultStoreBackend, "Result store backend: memory or badger")
	cmd.PersistentFlags().String("store-path", DefaultStorePath, "Directory of the badger result store")
	cmd.PersistentFlags().String("config", "", "Path to a TOML configuration file (optional)")
}
