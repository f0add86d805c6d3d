package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nordkart/bygglovscan/internal/geo"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".bygglovscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file schema. Everything is optional;
// CLI flags override anything set here.
type File struct {
	// Defaults pre-seed crawl options.
	Defaults Defaults `yaml:"defaults"`

	// Regions define additional named crawl areas. A region with the
	// same name as a built-in preset shadows it.
	Regions map[string]RegionConfig `yaml:"regions"`
}

// Defaults holds crawl option overrides from the config file.
type Defaults struct {
	// Region is the default region preset name.
	Region string `yaml:"region"`

	// WindowMonths is the default publication window.
	WindowMonths int `yaml:"window_months"`

	// PermitTypes is the default permit type code filter.
	PermitTypes []int `yaml:"permit_types"`

	// RateLimit is the default request interval as a Go duration
	// string, e.g. "1s". YAML has no duration type.
	RateLimit string `yaml:"rate_limit"`

	// Timeout is the default per-request timeout, e.g. "30s".
	Timeout string `yaml:"timeout"`

	// BaseURL overrides the permit API endpoint.
	BaseURL string `yaml:"base_url"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"user_agent"`

	// DBDir overrides the crawl database directory.
	DBDir string `yaml:"db_dir"`
}

// RegionConfig is a named region in the config file.
type RegionConfig struct {
	LatMin   float64 `yaml:"lat_min"`
	LatMax   float64 `yaml:"lat_max"`
	LonMin   float64 `yaml:"lon_min"`
	LonMax   float64 `yaml:"lon_max"`
	CellSize float64 `yaml:"cell_size"`
}

// region converts the YAML shape to a Region.
func (rc RegionConfig) region() Region {
	return Region{
		Box: geo.BoundingBox{
			LatMin: rc.LatMin,
			LatMax: rc.LatMax,
			LonMin: rc.LonMin,
			LonMax: rc.LonMax,
		},
		CellSize: rc.CellSize,
	}
}

// LoadConfigFile loads crawl defaults and region presets from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers should
// handle this error based on whether the path was explicitly specified.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Regions == nil {
		cf.Regions = make(map[string]RegionConfig)
	}

	return &cf, nil
}

// Apply folds the file's defaults into cfg. Only fields the file sets
// are touched, so flag values given by the user survive.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Defaults.Region != "" {
		cfg.Region = f.Defaults.Region
	}
	if f.Defaults.WindowMonths > 0 {
		cfg.WindowMonths = f.Defaults.WindowMonths
	}
	if len(f.Defaults.PermitTypes) > 0 {
		cfg.PermitTypes = f.Defaults.PermitTypes
	}
	if d, err := time.ParseDuration(f.Defaults.RateLimit); err == nil && d >= 0 {
		cfg.RateLimit = d
	}
	if d, err := time.ParseDuration(f.Defaults.Timeout); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if f.Defaults.BaseURL != "" {
		cfg.BaseURL = f.Defaults.BaseURL
	}
	if f.Defaults.UserAgent != "" {
		cfg.UserAgent = f.Defaults.UserAgent
	}
	if f.Defaults.DBDir != "" {
		cfg.DBDir = f.Defaults.DBDir
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .bygglovscan in the current directory
// 3. Look for .bygglovscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
