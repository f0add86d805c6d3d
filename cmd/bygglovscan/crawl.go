package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordkart/bygglovscan/internal/api"
	"github.com/nordkart/bygglovscan/internal/config"
	"github.com/nordkart/bygglovscan/internal/crawler"
	"github.com/nordkart/bygglovscan/internal/database"
	"github.com/nordkart/bygglovscan/internal/geo"
	"github.com/nordkart/bygglovscan/internal/log"
	"github.com/nordkart/bygglovscan/internal/model"
	"github.com/nordkart/bygglovscan/internal/ratelimit"
	"github.com/nordkart/bygglovscan/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a region and collect permits into a CSV file",
		Long: `Crawl partitions the target region into a grid, queries each cell for
permit markers, fetches every marker's detail record, and writes the
deduplicated permits to a CSV file.

Requests are strictly sequential with a fixed interval between them
(default one per second), so the wall time is roughly
(#cells + #markers) × interval. A country-scale crawl takes hours;
an estimate is printed before the crawl starts.

Interrupting the crawl (Ctrl-C) stops between requests and writes
whatever was collected so far.

Examples:
  # Crawl all of Sweden with the default 2-degree grid
  bygglovscan crawl --region sweden

  # Crawl greater Stockholm with a fine grid and a 12-month window
  bygglovscan crawl --region stockholm --window 12

  # Crawl a custom box, building permits only
  bygglovscan crawl --bbox 55.3,56.5,12.5,14.6 --cell-size 0.5 --types 0

  # Write the CSV and a Markdown run summary to specific paths
  bygglovscan crawl --region stockholm -o permits.csv --summary run.md`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	addQueryFlags(cmd)
	cmd.Flags().Float64P("cell-size", "s", 0,
		"Grid cell edge in degrees (default: region preset)")
	cmd.Flags().StringP("output", "o", "",
		"CSV output path (default permits_<timestamp>.csv)")
	cmd.Flags().String("summary", "",
		"Write a Markdown run summary to this path")
	cmd.Flags().Bool("no-db", false,
		"Do not persist permits and run metadata to the crawl database")

	return cmd
}

// addQueryFlags registers the flags shared by crawl and count.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("region", "r", config.RegionSweden,
		fmt.Sprintf("Named region preset (%s, or a config-file region)", strings.Join(config.RegionNames(), ", ")))
	cmd.Flags().String("bbox", "",
		"Explicit bounding box as lat_min,lat_max,lon_min,lon_max (overrides --region)")
	cmd.Flags().IntP("window", "w", config.DefaultWindowMonths,
		"Publication window in months")
	cmd.Flags().String("types", "0,1,2,3",
		"Comma-separated permit type codes (0=Bygglov 1=Rivningslov 2=Marklov 3=Förhandsbesked)")
	cmd.Flags().Duration("rate-limit", config.DefaultRateLimit,
		"Minimum interval between API requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request HTTP timeout")
	cmd.Flags().String("base-url", "",
		"API endpoint override")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bygglovscan in current or home directory)")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, file, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	cfg.Output, err = cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	cfg.Summary, err = cmd.Flags().GetString("summary")
	if err != nil {
		return err
	}
	cfg.NoDB, err = cmd.Flags().GetBool("no-db")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cell-size") {
		cfg.CellSize, err = cmd.Flags().GetFloat64("cell-size")
		if err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Stop between requests on SIGINT/SIGTERM and keep partial results.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, finishing current request...")
		cancel()
	}()

	return runCrawl(ctx, cfg, file, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the shared query flags, folding in
// the config file first so flags the user actually set win.
func buildConfig(cmd *cobra.Command) (*config.Config, *config.File, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	// If the user explicitly specified a config file path, error if not
	// found. Otherwise a missing file just means defaults.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	var file *config.File
	if configPath != "" {
		file, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("region") || cfg.Region == "" {
		cfg.Region, err = cmd.Flags().GetString("region")
		if err != nil {
			return nil, nil, err
		}
	}
	cfg.BBox, err = cmd.Flags().GetString("bbox")
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("window") {
		cfg.WindowMonths, err = cmd.Flags().GetInt("window")
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("types") {
		types, err := cmd.Flags().GetString("types")
		if err != nil {
			return nil, nil, err
		}
		cfg.PermitTypes, err = config.ParsePermitTypes(types)
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.RateLimit, err = cmd.Flags().GetDuration("rate-limit")
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
		if err != nil {
			return nil, nil, err
		}
	}
	baseURL, err := cmd.Flags().GetString("base-url")
	if err != nil {
		return nil, nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return cfg, file, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newAPIClient builds the rate-limited API client from the config.
func newAPIClient(cfg *config.Config, logger *slog.Logger) *api.Client {
	return api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.Timeout),
		api.WithUserAgent(cfg.UserAgent),
		api.WithLimiter(ratelimit.New(cfg.RateLimit)),
		api.WithLogger(logger),
	)
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, file *config.File, logger *slog.Logger, out io.Writer) error {
	box, cellSize, err := cfg.Area(file)
	if err != nil {
		return err
	}

	cells, err := box.GridSize(cellSize)
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

	logger.Info("starting crawl",
		"region", regionLabel(cfg),
		"bbox", box.String(),
		"cellSize", cellSize,
		"cells", cells,
		"window", cfg.WindowMonths,
		"types", cfg.PermitTypes,
		"rateLimit", cfg.RateLimit,
	)

	// One whole-region count query up front buys a wall-time estimate:
	// every cell costs one location query, every marker one detail fetch.
	expectedMarkers := 0
	if probe, err := client.GetLocations(ctx, box, filter); err == nil {
		expectedMarkers = probe.Count
	} else {
		logger.Warn("count probe failed, estimating without markers", "error", err)
	}
	estimate := crawler.EstimateWallTime(cells, expectedMarkers, cfg.RateLimit)
	fmt.Fprintf(out, "Crawling %d cells (~%d permits reported); estimated wall time %s\n",
		cells, expectedMarkers, estimate.Round(time.Second))

	result, crawlErr := crawler.New(client, crawler.WithLogger(logger)).
		CrawlRegion(ctx, box, filter, cellSize)
	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		return crawlErr
	}
	if errors.Is(crawlErr, context.Canceled) {
		fmt.Fprintln(out, "Crawl interrupted; writing partial results")
	}

	permits := model.Dedupe(model.NormalizeAll(result.Features))
	summary := buildSummary(cfg, box, cellSize, result, permits)

	outputPath := cfg.Output
	if outputPath == "" {
		outputPath = fmt.Sprintf("permits_%s.csv", result.StartedAt.Format("20060102_150405"))
	}

	rows, err := report.WriteCSVFile(outputPath, permits)
	switch {
	case errors.Is(err, report.ErrNoData):
		fmt.Fprintln(out, "No permits collected; no CSV written")
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "Wrote %d permits to %s\n", rows, outputPath)
	}

	if cfg.Summary != "" {
		if err := writeSummaryFile(cfg.Summary, summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote run summary to %s\n", cfg.Summary)
	}

	if !cfg.NoDB {
		// Persist even after an interrupt: the crawl stopped, the save
		// of what it collected should not.
		added, err := saveToDatabase(context.WithoutCancel(ctx), cfg.DBDir, summary, permits)
		if err != nil {
			// The CSV is already on disk; a database failure should
			// not retroactively fail the crawl.
			logger.Error("failed to save crawl to database", "error", err)
		} else {
			fmt.Fprintf(out, "Database: %d new permits (%s)\n", added, cfg.DBDir)
		}
	}

	if summary.FailedCells > 0 {
		fmt.Fprintf(out, "Warning: %d of %d cells failed; coverage is incomplete\n",
			summary.FailedCells, summary.Cells)
	}

	return nil
}

// regionLabel names the crawled area for the summary and run record.
func regionLabel(cfg *config.Config) string {
	if cfg.BBox != "" {
		return "custom"
	}
	return cfg.Region
}

// buildSummary aggregates one finished crawl for reporting.
func buildSummary(cfg *config.Config, box geo.BoundingBox, cellSize float64, result *crawler.Result, permits []model.Permit) *model.CrawlSummary {
	return &model.CrawlSummary{
		Region:             regionLabel(cfg),
		BoundingBox:        box.String(),
		CellSize:           cellSize,
		WindowMonths:       cfg.WindowMonths,
		PermitTypeCodes:    cfg.PermitTypes,
		StartedAt:          result.StartedAt,
		Duration:           result.Duration,
		Cells:              len(result.Cells),
		FailedCells:        result.FailedCells(),
		ReportedCount:      result.ReportedCount(),
		Markers:            result.Markers(),
		Fetched:            len(result.Features),
		UniquePermits:      len(permits),
		TypeCounts:         model.CountByType(permits),
		MunicipalityCounts: model.CountByMunicipality(permits),
	}
}

// writeSummaryFile renders the Markdown run summary to path.
func writeSummaryFile(path string, summary *model.CrawlSummary) error {
	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	_, werr := report.NewMarkdownWriter(f).Write(summary)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// saveToDatabase persists the permits and the run record. It returns
// how many permits were new to the database.
func saveToDatabase(ctx context.Context, dbDir string, summary *model.CrawlSummary, permits []model.Permit) (int, error) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return 0, err
	}
	defer db.Close() //nolint:errcheck // Writes are committed before the deferred close

	added, err := db.UpsertPermits(ctx, permits)
	if err != nil {
		return 0, err
	}
	if _, err := db.SaveRun(ctx, summary); err != nil {
		return 0, err
	}
	return added, nil
}
