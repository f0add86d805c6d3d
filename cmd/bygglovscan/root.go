// Package main provides the entry point for the bygglovscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bygglovscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bygglovscan",
		Short: "Collect Swedish building permit announcements into a CSV dataset",
		Long: `Bygglovscan crawls the public Swedish building permit map API and
collects permit announcements (bygglov, rivningslov, marklov,
förhandsbesked) into a deduplicated CSV dataset.

The API only exposes permits through map-viewport queries, so the crawl
partitions the target region into a grid of cells and queries each cell
in turn. Requests are strictly sequential and rate limited to one per
second by default; a country-scale crawl takes hours by design.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCountCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
