package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordkart/bygglovscan/internal/config"
	"github.com/nordkart/bygglovscan/internal/database"
	"github.com/nordkart/bygglovscan/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the accumulated permit database to CSV",
		Long: `Export dumps the permits accumulated across all crawl runs from the
crawl database to a CSV file. With --runs it lists the recorded crawl
runs instead.

Examples:
  # Export every permit ever crawled
  bygglovscan export -o all_permits.csv

  # List recorded crawl runs
  bygglovscan export --runs`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "permits_export.csv",
		"CSV output path")
	cmd.Flags().Bool("runs", false,
		"List recorded crawl runs instead of exporting permits")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Crawl database directory")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	listRuns, err := cmd.Flags().GetBool("runs")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	// The database must already exist; export never creates one.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only access

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if listRuns {
		runs, err := db.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No crawl runs recorded")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "#%d  %s  %-10s  cells=%d failed=%d permits=%d types=%s window=%dm (%s)\n",
				r.ID,
				r.StartedAt.Format("2006-01-02 15:04"),
				r.Region,
				r.Cells,
				r.FailedCells,
				r.UniquePermits,
				typeCodesLabel(r.PermitTypeCodes),
				r.WindowMonths,
				r.Duration.Round(time.Second),
			)
		}
		return nil
	}

	permits, err := db.Permits(ctx)
	if err != nil {
		return err
	}

	rows, err := report.WriteCSVFile(outputPath, permits)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Exported %d permits to %s\n", rows, outputPath)
	return nil
}

// typeCodesLabel renders type codes compactly for the runs listing.
func typeCodesLabel(codes []int) string {
	if len(codes) == 0 {
		return "-"
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, ",")
}
