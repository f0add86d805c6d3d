package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nordkart/bygglovscan/internal/geo"
	"github.com/nordkart/bygglovscan/internal/model"
)

// Default configuration values.
// These match the behavior the permit API tolerates in practice.
const (
	// DefaultBaseURL is the permit API endpoint.
	DefaultBaseURL = "https://geoplan.se"

	// DefaultRateLimit is the minimum spacing between requests. One
	// request per second is the etiquette the API operator expects;
	// lowering it risks getting the crawl blocked halfway through.
	DefaultRateLimit = 1 * time.Second

	// DefaultTimeout is the per-request HTTP timeout. Detail responses
	// are small, so 30 seconds is generous; a stuck request counts as a
	// transport failure rather than stalling the whole crawl.
	DefaultTimeout = 30 * time.Second

	// DefaultWindowMonths is how far back the publication window
	// reaches. 30 months covers the API's full retention in practice.
	DefaultWindowMonths = 30

	// DefaultCellSize is the grid cell edge in degrees for country-scale
	// crawls. 2 degrees keeps each cell's marker count comfortably under
	// the server's clustering threshold outside the big cities.
	DefaultCellSize = 2.0

	// DefaultUserAgent identifies the crawler in HTTP requests.
	// A descriptive User-Agent lets the API operator attribute traffic.
	DefaultUserAgent = "bygglovscan (academic research; building permit study)"

	// AppName is the application name used for XDG directory paths.
	AppName = "bygglovscan"
)

// Config holds all configuration options for a crawl.
// This struct is designed to be populated from CLI flags (optionally
// pre-seeded from the config file) and passed through the application
// via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, OutputConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Region is the named region preset to crawl ("sweden", "stockholm",
	// or a region defined in the config file). Ignored when BBox is set.
	Region string

	// BBox is an explicit bounding box in "lat_min,lat_max,lon_min,lon_max"
	// form. When set, it overrides Region.
	BBox string

	// CellSize is the grid cell edge in degrees. Zero means "use the
	// region preset's cell size" (DefaultCellSize when the preset has none).
	CellSize float64

	// WindowMonths is how many months back the publication filter reaches.
	WindowMonths int

	// PermitTypes is the permit type code filter sent with every
	// location query.
	PermitTypes []int

	// RateLimit is the minimum interval between any two API requests.
	RateLimit time.Duration

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// BaseURL is the permit API endpoint.
	BaseURL string

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Output is the CSV output path. Empty means a timestamped default
	// in the current directory.
	Output string

	// Summary is the Markdown summary output path. Empty disables the
	// summary file.
	Summary string

	// DBDir is the directory holding the crawl database.
	// Defaults to the XDG data directory.
	DBDir string

	// NoDB disables persisting permits and run metadata to the database.
	NoDB bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .bygglovscan in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeout, window,
// base URL). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Region:       RegionSweden,
		WindowMonths: DefaultWindowMonths,
		PermitTypes:  model.KnownTypeCodes(),
		RateLimit:    DefaultRateLimit,
		Timeout:      DefaultTimeout,
		BaseURL:      DefaultBaseURL,
		UserAgent:    DefaultUserAgent,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for bygglovscan.
// On Linux: ~/.local/share/bygglovscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for bygglovscan.
// On Linux: ~/.config/bygglovscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.CellSize < 0 {
		return ErrInvalidCellSize
	}
	if c.WindowMonths <= 0 {
		return ErrInvalidWindow
	}
	if len(c.PermitTypes) == 0 {
		return ErrNoPermitTypes
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}

// Area resolves the bounding box and cell size to crawl, in priority
// order: explicit --bbox, then the named region (config-file regions
// shadow built-ins). An explicit CellSize always wins over the preset's.
func (c *Config) Area(file *File) (geo.BoundingBox, float64, error) {
	cell := c.CellSize

	if c.BBox != "" {
		box, err := geo.ParseBoundingBox(c.BBox)
		if err != nil {
			return geo.BoundingBox{}, 0, err
		}
		if cell == 0 {
			cell = DefaultCellSize
		}
		return box, cell, nil
	}

	region, ok := lookupRegion(c.Region, file)
	if !ok {
		return geo.BoundingBox{}, 0, ErrUnknownRegion
	}
	if cell == 0 {
		cell = region.CellSize
	}
	if cell == 0 {
		cell = DefaultCellSize
	}
	return region.Box, cell, nil
}

// ParsePermitTypes parses a comma-separated list of permit type codes,
// as given to the --types flag.
func ParsePermitTypes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	codes := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, ErrInvalidPermitTypes
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, ErrNoPermitTypes
	}
	return codes, nil
}
