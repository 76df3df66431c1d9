package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/ui"
	"github.com/law-makers/harvest/internal/utils/output"
	"github.com/law-makers/harvest/pkg/models"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's status and the outcome of each target",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	statusCmd.GroupID = groupJobs
	rootCmd.AddCommand(statusCmd)
	jobsCmd.GroupID = groupJobs
	rootCmd.AddCommand(jobsCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	o, err := GetAppFromCmd(cmd).Orchestrator(nil, nil)
	if err != nil {
		return err
	}
	out, err := o.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", args[0], err)
	}
	if jsonOutput(cmd) {
		return output.WriteJSON(os.Stdout, out)
	}

	job := out.Job
	fmt.Printf("\n%s %s\n", ui.Bold("Job"), job.ID)
	fmt.Printf("Seed:     %s\n", seedOf(job))
	fmt.Printf("Kind:     %s\n", job.Kind)
	fmt.Printf("Status:   %s\n", ui.Status(string(job.Status)))
	fmt.Printf("Created:  %s\n", job.CreatedAt.Format(time.RFC1123))
	if job.StartedAt != nil && job.FinishedAt != nil {
		fmt.Printf("Elapsed:  %s\n", job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", ui.Error(job.Error))
	}
	for _, w := range job.Warnings {
		fmt.Printf("Warning:  %s\n", w)
	}
	fmt.Printf("Progress: %d/%d done, %d failed, %d pending\n",
		out.Progress.Done, out.Progress.Total, out.Progress.Failed, out.Progress.Pending+out.Progress.InProgress)

	if len(out.Targets) == 0 {
		fmt.Println()
		return nil
	}
	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tATTEMPTS\tURL\tERROR")
	for _, t := range out.Targets {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", t.Seq+1, t.Status, t.Attempts, t.URL, truncate(t.Error, 80))
	}
	tw.Flush()
	fmt.Println()
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	o, err := GetAppFromCmd(cmd).Orchestrator(nil, nil)
	if err != nil {
		return err
	}
	jobs, err := o.Jobs(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		if jobs == nil {
			jobs = []*models.Job{}
		}
		return output.WriteJSON(os.Stdout, jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("\nNo jobs found.")
		fmt.Println("\nStart one with:")
		fmt.Println("  harvest run <url>")
		fmt.Println()
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tKIND\tCREATED\tSEED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, j.Kind, j.CreatedAt.Format("2006-01-02 15:04"), truncate(seedOf(j), 70))
	}
	return tw.Flush()
}

func seedOf(job *models.Job) string {
	switch {
	case job.Spec.Query != "":
		return fmt.Sprintf("query %q", job.Spec.Query)
	case job.Spec.Markup != "":
		if job.Spec.SourceURL != "" {
			return "markup from " + job.Spec.SourceURL
		}
		return "markup"
	}
	return job.Spec.URL
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
