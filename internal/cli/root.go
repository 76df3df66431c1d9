package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/law-makers/harvest/internal/app"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Discover, fetch and extract structured records from websites",
	Long: `Harvest turns a URL, a search query or pasted markup into structured
records. Listing pages are expanded into their detail pages, pages that
need JavaScript are rendered in headless Chrome, and every record is
persisted as soon as it is extracted so jobs can be inspected, retried
and exported later.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under ctx and exits non-zero on error.
// It is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	// PostRun hooks are skipped when a command fails
	closeApp(rootCmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Error("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		if cfg.JSONLog {
			ui.SetColor(false)
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		closeApp(cmd)
	}
}

func closeApp(cmd *cobra.Command) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Shutdown was not clean")
	}
	SetApp(cmd, nil)
}

func init() {
	// Register centralized flags
	config.RegisterFlags(rootCmd)

	// Customize help and version flag descriptions
	rootCmd.Flags().BoolP("help", "h", false, "Help for harvest")
	rootCmd.Flags().Bool("version", false, "Version for harvest")
}

// jsonOutput reports whether --json was given, in which case commands
// print machine-readable output instead of tables
func jsonOutput(cmd *cobra.Command) bool {
	a := GetAppFromCmd(cmd)
	return a != nil && a.Config.JSONLog
}

const (
	groupJobs     = "jobs"
	groupSessions = "sessions"

	helpWidth = 80
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddGroup(
		&cobra.Group{ID: groupJobs, Title: "Jobs"},
		&cobra.Group{ID: groupSessions, Title: "Sessions"},
	)

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		writeHelp(cmd.OutOrStdout(), cmd, true)
	})
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		writeHelp(cmd.ErrOrStderr(), cmd, false)
		return nil
	})
}

// writeHelp renders the help page for cmd. The short form printed after
// a usage error leaves out the description, examples and global flags.
func writeHelp(w io.Writer, cmd *cobra.Command, full bool) {
	if full {
		fmt.Fprintf(w, "\n%s  %s\n", ui.Paint(cmd.CommandPath(), ui.Strong, ui.Cyan), cmd.Short)
		if cmd.Long != "" && cmd.Long != cmd.Short {
			fmt.Fprintf(w, "\n%s\n", indent(wrap(cmd.Long, helpWidth-2), "  "))
		}
	}

	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Accent(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Accent(cmd.CommandPath()), ui.Paint("<command>", ui.Yellow), ui.Dim("[flags]"))
	}

	if full && cmd.HasExample() {
		section(w, "Examples")
		writeExamples(w, cmd.Example)
	}

	writeCommands(w, cmd)

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		writeFlags(w, cmd.LocalFlags())
	}
	if full && cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		writeFlags(w, cmd.InheritedFlags())
	}

	hint := cmd.CommandPath() + " --help"
	if cmd.HasAvailableSubCommands() {
		hint = cmd.CommandPath() + " <command> --help"
	}
	fmt.Fprintf(w, "\n%s\n\n", ui.Dim("Run '"+hint+"' for details."))
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", ui.Heading(title))
}

// writeExamples prints comment lines dimmed and commands behind a prompt,
// with a blank line between consecutive examples.
func writeExamples(w io.Writer, example string) {
	prev := ""
	for _, line := range strings.Split(example, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			if prev == "cmd" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", ui.Dim(line))
			prev = "comment"
		default:
			fmt.Fprintf(w, "  %s\n", ui.Success("$ "+line))
			prev = "cmd"
		}
	}
}

// writeCommands lists subcommands under their group title. Commands
// without a group are listed last.
func writeCommands(w io.Writer, cmd *cobra.Command) {
	var visible []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" {
			continue
		}
		visible = append(visible, c)
		width = max(width, len(c.Name()))
	}
	if len(visible) == 0 {
		return
	}

	list := func(title, group string) {
		printed := false
		for _, c := range visible {
			if c.GroupID != group {
				continue
			}
			if !printed {
				section(w, title)
				printed = true
			}
			fmt.Fprintf(w, "  %s  %s\n", ui.Accent(pad(c.Name(), width)), ui.Dim(c.Short))
		}
	}
	for _, g := range cmd.Groups() {
		list(g.Title, g.ID)
	}
	list("Commands", "")
}

// writeFlags renders a flag table from the flag set itself rather than
// from pflag's preformatted usage text.
func writeFlags(w io.Writer, fs *pflag.FlagSet) {
	type row struct{ name, usage string }
	var rows []row
	width := 0
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "    --" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", --" + f.Name
		}
		if typ := f.Value.Type(); typ != "bool" {
			name += " " + typ
		}
		usage := f.Usage
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			usage += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		rows = append(rows, row{name, usage})
		width = max(width, len(name))
	})

	descWidth := max(helpWidth-width-6, 30)
	for _, r := range rows {
		lines := strings.Split(wrap(r.usage, descWidth), "\n")
		fmt.Fprintf(w, "  %s  %s\n", ui.Success(pad(r.name, width)), ui.Dim(lines[0]))
		for _, cont := range lines[1:] {
			fmt.Fprintf(w, "  %s  %s\n", strings.Repeat(" ", width), ui.Dim(cont))
		}
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// wrap reflows each paragraph of text to width. Lines starting with a
// list marker keep their own line.
func wrap(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		var cur []string
		curLen := 0
		flush := func() {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, curLen = nil, 0
			}
		}
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
				flush()
				out = append(out, line)
				continue
			}
			for _, word := range strings.Fields(line) {
				if curLen > 0 && curLen+1+len(word) > width {
					flush()
				}
				if curLen > 0 {
					curLen++
				}
				cur = append(cur, word)
				curLen += len(word)
			}
		}
		flush()
		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
