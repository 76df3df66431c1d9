package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/auth"
)

var (
	importURL    string
	importFormat string
	importFile   string
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Import cookies from your browser to create a session",
	Long: `Import cookies from your browser's developer tools to create a session
that jobs can replay with --session.

Steps:
1. Open the website in your regular browser
2. Login normally
3. Open DevTools (F12) → Application → Cookies
4. Copy or export the cookies
5. Use this command to import them`,
	Example: `  # Import cookies interactively
  harvest sessions import reservations --url=https://www.opentable.com

  # Import from Netscape/curl format
  harvest sessions import reviews --url=https://www.yelp.com --format=netscape < cookies.txt

  # Import a DevTools JSON export or a saved session file
  harvest sessions import mysite --file=cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importURL, "url", "", "Website URL for this session")
	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "interactive", "Import format: interactive, json, netscape")
	sessionsImportCmd.Flags().StringVar(&importFile, "file", "", "Read a JSON cookie array or session file instead of stdin")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	sessionName := args[0]

	if importFile != "" {
		session, err := auth.ImportFile(sessionName, importFile)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", importFile, err)
		}
		printImported(session)
		return nil
	}
	if importURL == "" {
		return fmt.Errorf("--url is required unless --file is given")
	}

	fmt.Printf("\n🔐 Import Session: %s\n", sessionName)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	var cookies []auth.Cookie
	var err error

	switch importFormat {
	case "interactive":
		cookies, err = importInteractive(os.Stdin, cookieDomain(importURL))
	case "json":
		cookies, err = parseJSONCookies(os.Stdin)
	case "netscape":
		cookies, err = parseNetscape(os.Stdin)
	default:
		return fmt.Errorf("unsupported format: %s (use: interactive, json, netscape)", importFormat)
	}

	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}

	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := &auth.SessionData{
		Name:      sessionName,
		URL:       importURL,
		Cookies:   cookies,
		Headers:   make(map[string]string),
		CreatedAt: time.Now(),
		ExpiresAt: auth.ExpiryOf(cookies),
	}

	if err := auth.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	printImported(session)
	return nil
}

func printImported(session *auth.SessionData) {
	fmt.Printf("\n✅ Session '%s' created successfully!\n", session.Name)
	fmt.Printf("   Cookies: %d\n", len(session.Cookies))
	if !session.ExpiresAt.IsZero() {
		fmt.Printf("   Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Printf("\nUse with:\n")
	fmt.Printf("  harvest run <url> --session=%s\n\n", session.Name)
}

// cookieDomain is the default cookie domain for a site URL
func cookieDomain(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "." + strings.TrimPrefix(u.Hostname(), "www.")
}

func importInteractive(in io.Reader, domain string) ([]auth.Cookie, error) {
	fmt.Println("📋 Cookie Import Guide:")
	fmt.Println()
	fmt.Println("1. Open the website in your browser and login")
	fmt.Println("2. Press F12 to open DevTools")
	fmt.Println("3. Go to: Application → Storage → Cookies")
	fmt.Println("4. For each important cookie, copy the Name and Value")
	fmt.Println()

	var cookies []auth.Cookie
	scanner := bufio.NewScanner(in)

	for {
		fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

		fmt.Print("\nCookie Name (or press Enter to finish): ")
		if !scanner.Scan() {
			break
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			break
		}

		fmt.Print("Cookie Value: ")
		if !scanner.Scan() {
			break
		}
		value := strings.TrimSpace(scanner.Text())
		if value == "" {
			fmt.Println("⚠️  Skipping cookie with empty value")
			continue
		}

		fmt.Printf("Domain [%s]: ", domain)
		if !scanner.Scan() {
			break
		}
		d := strings.TrimSpace(scanner.Text())
		if d == "" {
			d = domain
		}

		cookie := auth.Cookie{
			Name:     name,
			Value:    value,
			Domain:   d,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		}
		cookies = append(cookies, cookie)
		fmt.Printf("✅ Added: %s (domain: %s)\n", cookie.Name, cookie.Domain)
	}

	if len(cookies) == 0 {
		fmt.Println("\n⚠️  No cookies added")
	} else {
		fmt.Printf("\n✅ Total cookies added: %d\n", len(cookies))
	}
	return cookies, scanner.Err()
}

func parseJSONCookies(in io.Reader) ([]auth.Cookie, error) {
	var cookies []auth.Cookie
	if err := json.NewDecoder(in).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cookies, nil
}

// parseNetscape reads the cookies.txt format curl and browser extensions
// write: domain, subdomains flag, path, secure, expiry (unix), name, value
func parseNetscape(in io.Reader) ([]auth.Cookie, error) {
	var cookies []auth.Cookie
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}

		cookie := auth.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		}
		if expiry, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expiry > 0 {
			cookie.Expires = float64(expiry)
		}
		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
