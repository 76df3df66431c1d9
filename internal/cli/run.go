package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/internal/ui"
	"github.com/law-makers/harvest/pkg/models"
)

var runOpts struct {
	query       string
	markupFile  string
	sourceURL   string
	mode        string
	render      bool
	noExpand    bool
	maxTargets  int
	maxDepth    int
	crossOrigin bool
	concurrency int
	goal        string
	format      string
	output      string
	session     string
	failed      bool
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Run a scrape job from a URL, a query or pasted markup",
	Long: `Run classifies the seed, discovers target pages, fetches and extracts
each one and persists every record as soon as it is ready.

A detail page yields one record. A listing page (search results, a city
or category page) is expanded into up to --max-targets detail pages.
Pages that only render in a browser are re-fetched in headless Chrome
automatically; --render sends every page through the browser.`,
	Example: `  # One restaurant page
  harvest run https://www.opentable.com/r/cafe-uno-boston

  # Expand a listing into ten detail pages, four at a time
  harvest run https://www.yelp.com/search?find_desc=pizza --max-targets 10 --concurrency 4

  # Search directories for a query and export CSV
  harvest run --query "sushi in boston" --format csv -o sushi.csv

  # Extract from saved markup, resolving links against its source
  harvest run --markup-file page.html --source-url https://example.com/places/

  # Crawl a site two levels deep
  harvest run https://example.com --mode crawl --max-depth 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJob,
}

func init() {
	runCmd.GroupID = groupJobs
	rootCmd.AddCommand(runCmd)

	defaults := models.DefaultJobSpec()
	f := runCmd.Flags()
	f.StringVar(&runOpts.query, "query", "", "Free-text query to search directory sites for")
	f.StringVar(&runOpts.markupFile, "markup-file", "", "Read the page from an HTML file instead of fetching it (- for stdin)")
	f.StringVar(&runOpts.sourceURL, "source-url", "", "URL the markup was taken from")
	f.StringVarP(&runOpts.mode, "mode", "m", string(defaults.Mode), "Strategy: auto, single, listing, crawl or external")
	f.BoolVar(&runOpts.render, "render", false, "Fetch every page in headless Chrome")
	f.BoolVar(&runOpts.noExpand, "no-expand", false, "Do not expand listing pages into detail pages")
	f.IntVar(&runOpts.maxTargets, "max-targets", defaults.MaxTargets, "Maximum number of target pages")
	f.IntVar(&runOpts.maxDepth, "max-depth", defaults.MaxDepth, "Maximum link depth in crawl mode")
	f.BoolVar(&runOpts.crossOrigin, "cross-origin", false, "Let crawl mode follow links to other hosts")
	f.IntVarP(&runOpts.concurrency, "concurrency", "c", 0, "Targets fetched at once (0 or 1 for one at a time)")
	f.StringVar(&runOpts.goal, "goal", "", "Free-text extraction goal, e.g. \"contact emails and prices\"")
	f.StringVarP(&runOpts.format, "format", "f", defaults.ExportFormat, "Output format: json, csv or md")
	f.StringVarP(&runOpts.output, "output", "o", "", "Write records to a file instead of stdout")
	f.StringVar(&runOpts.session, "session", "", "Name of a saved cookie session to use")
	f.BoolVar(&runOpts.failed, "include-failed", true, "Keep a row with the error for every failed target")
}

func runJob(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	ctx := cmd.Context()

	spec, err := buildSpec(args)
	if err != nil {
		return err
	}
	if _, err := formatWriter(spec.ExportFormat); err != nil {
		return err
	}

	var session *auth.SessionData
	if spec.Session != "" {
		session, err = auth.LoadSession(spec.Session)
		if err != nil {
			return fmt.Errorf("failed to load session %q: %w", spec.Session, err)
		}
	}

	bar := newProgress(!jsonOutput(cmd) && a.Config.LogLevel != "error")
	o, err := a.Orchestrator(session, bar)
	if err != nil {
		return err
	}

	job, err := o.Submit(ctx, spec)
	if err != nil {
		return err
	}
	log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("Job started")
	if !jsonOutput(cmd) {
		fmt.Fprintf(os.Stderr, "%s %s (%s)\n", ui.Bold("Job"), job.ID, job.Kind)
	}

	out, err := o.Run(ctx, job.ID)
	bar.finish()
	if err != nil {
		return err
	}

	if err := export(out.Records(runOpts.failed), spec.ExportFormat, runOpts.output); err != nil {
		return err
	}
	printSummary(os.Stderr, out)

	if out.Job.Status != models.JobCompleted {
		return fmt.Errorf("job %s %s: %s", out.Job.ID, out.Job.Status, out.Job.Error)
	}
	return nil
}

func buildSpec(args []string) (models.JobSpec, error) {
	spec := models.DefaultJobSpec()
	if len(args) == 1 {
		spec.URL = args[0]
	}
	spec.Query = runOpts.query
	spec.SourceURL = runOpts.sourceURL
	spec.Mode = models.JobMode(strings.ToLower(runOpts.mode))
	spec.Render = runOpts.render
	spec.ExpandDetails = !runOpts.noExpand
	spec.MaxTargets = runOpts.maxTargets
	spec.MaxDepth = runOpts.maxDepth
	spec.SameOrigin = !runOpts.crossOrigin
	spec.Concurrency = runOpts.concurrency
	spec.Goal = runOpts.goal
	spec.ExportFormat = strings.ToLower(runOpts.format)
	spec.Session = runOpts.session

	if runOpts.markupFile != "" {
		markup, err := readMarkup(runOpts.markupFile)
		if err != nil {
			return spec, err
		}
		spec.Markup = markup
	}
	return spec, nil
}

func readMarkup(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read markup: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("markup file %s is empty", path)
	}
	return string(data), nil
}

// progress draws a bar on stderr whose length grows as targets are
// discovered. It implements orchestrator.Observer.
type progress struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	total  int
	failed int
}

func newProgress(visible bool) *progress {
	return &progress{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription("discovering"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)}
}

func (p *progress) TargetsAdded(_ *models.Job, added int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += added
	p.bar.ChangeMax(p.total)
	p.bar.Describe("fetching")
}

func (p *progress) TargetFinished(_ *models.Job, t models.TargetURL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.Status == models.TargetFailed {
		p.failed++
		p.bar.Describe(fmt.Sprintf("fetching (%d failed)", p.failed))
	}
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

func printSummary(w io.Writer, out *models.JobOutcome) {
	status := ui.Success(string(out.Job.Status))
	if out.Job.Status != models.JobCompleted {
		status = ui.Error(string(out.Job.Status))
	}
	fmt.Fprintf(w, "\n%s %s  %s\n", ui.Bold("Job"), out.Job.ID, status)
	fmt.Fprintf(w, "  Targets: %d  Done: %d  Failed: %d\n",
		out.Progress.Total, out.Progress.Done, out.Progress.Failed)
	for _, warning := range out.Job.Warnings {
		fmt.Fprintf(w, "  %s %s\n", ui.Info("warning:"), warning)
	}
	if out.Progress.Failed > 0 {
		fmt.Fprintf(w, "  Retry failed pages with: harvest retry %s --failed\n", out.Job.ID)
	}
}
