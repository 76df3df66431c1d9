package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/engine/dynamic"
	"github.com/law-makers/harvest/internal/ui"
)

var loginOpts struct {
	url         string
	wait        string
	timeout     time.Duration
	remoteDebug int
}

var sessionsLoginCmd = &cobra.Command{
	Use:   "login <name>",
	Short: "Log in to a site in a visible browser and save the session",
	Long: `Opens a visible Chrome window at --url so you can log in by hand.
Once the page named by --wait appears, or you press Enter, the browser's
cookies are saved as a session for use with --session.

On a machine without a display, --remote-debug exposes the browser on a
DevTools port you can forward and drive from chrome://inspect.`,
	Example: `  # Log in to OpenTable and wait for the account menu
  harvest sessions login opentable --url https://www.opentable.com/signin --wait "#account-menu"

  # Log in from a dev container
  harvest sessions login yelp --url https://www.yelp.com/login --remote-debug 9222

  # Use the saved session
  harvest run https://www.opentable.com/user/favorites --session opentable`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	sessionsCmd.AddCommand(sessionsLoginCmd)

	f := sessionsLoginCmd.Flags()
	f.StringVar(&loginOpts.url, "url", "", "Login page to open (required)")
	f.StringVarP(&loginOpts.wait, "wait", "w", "", "CSS selector that appears once logged in")
	f.DurationVar(&loginOpts.timeout, "login-timeout", 5*time.Minute, "How long to wait for the login")
	f.IntVar(&loginOpts.remoteDebug, "remote-debug", 0, "Expose Chrome remote debugging on this port")
	sessionsLoginCmd.MarkFlagRequired("url")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	name := args[0]

	fmt.Printf("\n%s\n", ui.Bold("🔐 Interactive Login"))
	fmt.Printf("%s\n\n", ui.Rule(50))
	fmt.Printf("  %s %s\n", ui.Bold("Session:"), name)
	fmt.Printf("  %s %s\n", ui.Bold("URL:"), loginOpts.url)
	if loginOpts.wait != "" {
		fmt.Printf("  %s %s\n", ui.Bold("Waiting:"), loginOpts.wait)
	}
	fmt.Printf("  %s %s\n\n", ui.Bold("Timeout:"), loginOpts.timeout)

	session, err := auth.InteractiveLogin(cmd.Context(), auth.LoginOptions{
		SessionName:         name,
		URL:                 loginOpts.url,
		ChromePath:          dynamic.FindChrome(a.Config.ChromePath),
		WaitSelector:        loginOpts.wait,
		Timeout:             loginOpts.timeout,
		RemoteDebuggingPort: loginOpts.remoteDebug,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	log.Debug().Str("session", name).Msg("Saving session")
	if err := auth.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	printImported(session)
	return nil
}
