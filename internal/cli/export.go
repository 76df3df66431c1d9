package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/utils/output"
	"github.com/law-makers/harvest/pkg/models"
)

var exportOpts struct {
	format string
	output string
	failed bool
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Write the records of a job as JSON, CSV or Markdown",
	Long: `Export reads the records a job has persisted so far and writes them in
one of the supported formats. Nested fields are flattened to dotted
column names for CSV and Markdown.`,
	Example: `  harvest export 3f6c2a1e-... --format csv -o places.csv
  harvest export 3f6c2a1e-... --format md`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.GroupID = groupJobs
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOpts.format, "format", "f", "json", "Output format: json, csv or md")
	exportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "Write to a file instead of stdout")
	exportCmd.Flags().BoolVar(&exportOpts.failed, "include-failed", true, "Keep a row with the error for every failed target")
}

func runExport(cmd *cobra.Command, args []string) error {
	o, err := GetAppFromCmd(cmd).Orchestrator(nil, nil)
	if err != nil {
		return err
	}
	out, err := o.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", args[0], err)
	}

	return export(out.Records(exportOpts.failed), strings.ToLower(exportOpts.format), exportOpts.output)
}

type recordWriter func(io.Writer, []models.Record) error

func formatWriter(format string) (recordWriter, error) {
	switch format {
	case "json", "":
		return func(w io.Writer, records []models.Record) error {
			if records == nil {
				records = []models.Record{}
			}
			return output.WriteJSON(w, records)
		}, nil
	case "csv":
		return output.WriteCSV, nil
	case "md", "markdown":
		return output.WriteMarkdown, nil
	}
	return nil, fmt.Errorf("unsupported format %q (json, csv or md)", format)
}

// export writes records to path, or stdout when path is empty
func export(records []models.Record, format, path string) error {
	write, err := formatWriter(format)
	if err != nil {
		return err
	}
	if path == "" {
		return write(os.Stdout, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("file", path).Int("records", len(records)).Msg("Output saved")
	return nil
}
