package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nordkart/bygglovscan/internal/api"
	"github.com/nordkart/bygglovscan/internal/geo"
	"github.com/nordkart/bygglovscan/internal/model"
)

// progressInterval is how many markers pass between progress log lines.
const progressInterval = 100

// Crawler drives the grid crawl. It owns no network state of its own;
// all requests go through the injected API client (and therefore
// through its rate limiter), strictly one at a time.
type Crawler struct {
	// client performs the rate-limited API calls.
	client *api.Client

	// logger receives structured progress and failure logs.
	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets a custom logger for the crawl.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler using the given API client.
func New(client *api.Client, opts ...Option) *Crawler {
	c := &Crawler{
		client: client,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// CellResult records what happened in one grid cell. Keeping the error
// alongside the counts preserves the difference between "this cell has
// no permits" and "the query for this cell failed", which the output
// file alone cannot express.
type CellResult struct {
	// Cell is the cell's bounding box.
	Cell geo.BoundingBox

	// ReportedCount is the server-side permit count for the cell.
	ReportedCount int

	// Markers is the number of location markers returned.
	Markers int

	// Fetched is the number of detail records successfully fetched.
	Fetched int

	// Truncated reports whether the server held back markers for
	// this cell. A truncated cell means the cell size is too large.
	Truncated bool

	// Err is the location query failure, if any. Individual detail
	// fetch failures are not recorded here; they only reduce Fetched.
	Err error
}

// Result accumulates a whole crawl run. It lives in memory only: a
// crash loses in-flight progress and the crawl is simply rerun, which
// is safe because the output deduplicates by permit id.
type Result struct {
	// Features are the raw permit records fetched, in crawl order.
	// Duplicates across adjacent cells are possible and expected.
	Features []model.Feature

	// Cells holds one entry per grid cell in crawl order.
	Cells []CellResult

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// Duration is the total crawl wall time.
	Duration time.Duration
}

// FailedCells counts cells whose location query failed.
func (r *Result) FailedCells() int {
	n := 0
	for _, c := range r.Cells {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// ReportedCount sums the server-side counts over all cells.
func (r *Result) ReportedCount() int {
	n := 0
	for _, c := range r.Cells {
		n += c.ReportedCount
	}
	return n
}

// Markers sums the returned markers over all cells.
func (r *Result) Markers() int {
	n := 0
	for _, c := range r.Cells {
		n += c.Markers
	}
	return n
}

// CrawlRegion crawls every grid cell of region in deterministic order,
// south to north and west to east, and returns all successfully fetched
// raw permit records.
//
// Failure policy: a failed location query skips the cell, a failed
// detail fetch skips the marker, and in both cases the crawl continues.
// This trades correctness signaling for coverage — the run always
// completes with whatever it got. The only early exit is context
// cancellation, which returns the partial result alongside ctx.Err().
func (c *Crawler) CrawlRegion(ctx context.Context, region geo.BoundingBox, filter api.QueryFilter, cellSize float64) (*Result, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	cells, err := region.Grid(cellSize)
	if err != nil {
		return nil, err
	}

	result := &Result{StartedAt: time.Now()}
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	c.logger.Info("starting grid crawl",
		"region", region,
		"cellSize", cellSize,
		"cells", len(cells),
		"window", filter.WindowMonths,
		"types", filter.PermitTypes,
	)

	for i, cell := range cells {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		cellResult := c.crawlCell(ctx, i, len(cells), cell, filter, result)
		result.Cells = append(result.Cells, cellResult)

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	c.logger.Info("grid crawl finished",
		"cells", len(result.Cells),
		"failedCells", result.FailedCells(),
		"markers", result.Markers(),
		"fetched", len(result.Features),
	)

	return result, nil
}

// crawlCell queries one cell and fetches details for its markers,
// appending fetched features to result.Features.
func (c *Crawler) crawlCell(ctx context.Context, index, total int, cell geo.BoundingBox, filter api.QueryFilter, result *Result) CellResult {
	cellResult := CellResult{Cell: cell}

	c.logger.Info("crawling cell",
		"cell", index+1,
		"of", total,
		"bbox", cell,
	)

	locations, err := c.client.GetLocations(ctx, cell, filter)
	if err != nil {
		// Skip-on-failure: the cell's permits are lost for this run.
		// That is an accepted data-loss tradeoff, recorded here so
		// callers can at least count how much was skipped.
		c.logger.Warn("location query failed, skipping cell",
			"bbox", cell,
			"error", err,
		)
		cellResult.Err = err
		return cellResult
	}

	cellResult.ReportedCount = locations.Count
	cellResult.Markers = len(locations.Features)
	cellResult.Truncated = locations.Truncated()

	if cellResult.Truncated {
		c.logger.Warn("cell is truncated, markers were held back",
			"bbox", cell,
			"count", locations.Count,
			"markers", len(locations.Features),
		)
	}

	for i, marker := range locations.Features {
		if ctx.Err() != nil {
			return cellResult
		}

		id := MarkerID(marker)
		if id == "" {
			continue
		}

		if (i+1)%progressInterval == 0 {
			c.logger.Info("detail fetch progress",
				"fetched", i+1,
				"of", len(locations.Features),
			)
		}

		feature, err := c.client.GetDetails(ctx, id)
		if err != nil {
			c.logger.Warn("detail fetch failed, skipping marker",
				"id", id,
				"error", err,
			)
			continue
		}

		result.Features = append(result.Features, feature)
		cellResult.Fetched++
	}

	return cellResult
}

// MarkerID extracts the permit id from a location marker. An empty
// string means the marker carries no usable id and must be skipped.
func MarkerID(f model.Feature) string {
	return model.Normalize(f).PermitID
}

// EstimateWallTime predicts the crawl duration for a cell count, an
// expected marker count, and a rate-limit interval: one location query
// per cell plus one detail fetch per marker, each spaced by the
// interval. With thousands of markers this is hours, which is why
// callers surface the estimate before starting.
func EstimateWallTime(cells, markers int, interval time.Duration) time.Duration {
	return time.Duration(cells+markers) * interval
}
