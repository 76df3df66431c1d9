package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/auth"
	"github.com/law-makers/harvest/pkg/models"
)

var retryFailed bool

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry <job-id> [url...]",
	Short: "Fetch chosen targets of a finished job again",
	Long: `Retry re-fetches targets a job already knows about, without running
discovery again. Name the URLs to retry, or pass --failed to retry every
failed target. The job's status is recomputed afterwards.`,
	Example: `  harvest retry 3f6c2a1e-... --failed
  harvest retry 3f6c2a1e-... https://www.opentable.com/r/cafe-uno-boston`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.GroupID = groupJobs
	rootCmd.AddCommand(retryCmd)
	retryCmd.Flags().BoolVar(&retryFailed, "failed", false, "Retry every failed target")
}

func runRetry(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	ctx := cmd.Context()
	jobID, urls := args[0], args[1:]

	o, err := a.Orchestrator(nil, nil)
	if err != nil {
		return err
	}
	before, err := o.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if retryFailed {
		for _, t := range before.Targets {
			if t.Status == models.TargetFailed {
				urls = append(urls, t.URL)
			}
		}
	}
	if len(urls) == 0 {
		if retryFailed {
			fmt.Println("Nothing to retry: the job has no failed targets.")
			return nil
		}
		return fmt.Errorf("name the URLs to retry or pass --failed")
	}

	// The retry runs with the job's own cookie session
	var session *auth.SessionData
	if name := before.Job.Spec.Session; name != "" {
		if session, err = auth.LoadSession(name); err != nil {
			return fmt.Errorf("failed to load session %q: %w", name, err)
		}
	}

	bar := newProgress(!jsonOutput(cmd) && a.Config.LogLevel != "error")
	bar.TargetsAdded(before.Job, len(urls))
	if o, err = a.Orchestrator(session, bar); err != nil {
		return err
	}

	out, err := o.Resubmit(ctx, jobID, urls)
	bar.finish()
	if err != nil {
		return err
	}
	printSummary(os.Stderr, out)
	if out.Job.Status != models.JobCompleted {
		return fmt.Errorf("job %s %s: %s", out.Job.ID, out.Job.Status, out.Job.Error)
	}
	return nil
}
