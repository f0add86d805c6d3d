package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nordkart/bygglovscan/internal/api"
	"github.com/nordkart/bygglovscan/internal/log"
)

// NewCountCmd creates the count command.
func NewCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Query the server-side permit count for a region",
		Long: `Count issues a single location query over the whole region and prints
the server-reported permit count next to the number of markers actually
returned.

The server clusters markers when a viewport holds too many, so for large
regions the marker count is far below the reported count. The gap is a
quick way to gauge how fine a crawl grid the region needs.

Examples:
  # How many permits does the API report for all of Sweden?
  bygglovscan count --region sweden

  # Building permits published in Stockholm in the last 12 months
  bygglovscan count --region stockholm --window 12 --types 0`,
		Args: cobra.NoArgs,
		RunE: runCountCmd,
	}

	addQueryFlags(cmd)

	return cmd
}

// runCountCmd executes the count command.
func runCountCmd(cmd *cobra.Command, _ []string) error {
	cfg, file, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	box, _, err := cfg.Area(file)
	if err != nil {
		return err
	}

	filter := api.QueryFilter{
		WindowMonths: cfg.WindowMonths,
		PermitTypes:  cfg.PermitTypes,
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	client := newAPIClient(cfg, logger)

	result, err := client.GetLocations(context.Background(), box, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Region:          %s (%s)\n", regionLabel(cfg), box.String())
	fmt.Fprintf(out, "Window:          %d months\n", cfg.WindowMonths)
	fmt.Fprintf(out, "Reported count:  %d\n", result.Count)
	fmt.Fprintf(out, "Markers:         %d\n", len(result.Features))
	if result.Truncated() {
		fmt.Fprintln(out, "\nThe server returned fewer markers than it counted (viewport clustering).")
		fmt.Fprintln(out, "A crawl over this region needs a grid; see 'bygglovscan crawl --cell-size'.")
	}

	return nil
}
