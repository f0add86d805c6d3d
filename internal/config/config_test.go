package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig tests the default configuration.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.Region != RegionSweden {
		t.Errorf("default region = %q", cfg.Region)
	}
	if cfg.WindowMonths != DefaultWindowMonths {
		t.Errorf("default window = %d", cfg.WindowMonths)
	}
	if cfg.RateLimit != DefaultRateLimit {
		t.Errorf("default rate limit = %v", cfg.RateLimit)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("default timeout = %v", cfg.Timeout)
	}
	if len(cfg.PermitTypes) != 4 {
		t.Errorf("default permit types = %v", cfg.PermitTypes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

// TestConfigValidate tests validation error cases.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"negative cell size", func(c *Config) { c.CellSize = -1 }, ErrInvalidCellSize},
		{"zero window", func(c *Config) { c.WindowMonths = 0 }, ErrInvalidWindow},
		{"no permit types", func(c *Config) { c.PermitTypes = nil }, ErrNoPermitTypes},
		{"negative rate limit", func(c *Config) { c.RateLimit = -time.Second }, ErrInvalidRateLimit},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"empty base URL", func(c *Config) { c.BaseURL = "" }, ErrNoBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestConfigArea tests bounding box and cell size resolution.
func TestConfigArea(t *testing.T) {
	t.Parallel()

	t.Run("sweden preset", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		box, cell, err := cfg.Area(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if box.LatMin != 55.0 || box.LatMax != 69.0 || box.LonMin != 10.5 || box.LonMax != 24.5 {
			t.Errorf("unexpected box: %+v", box)
		}
		if cell != 2.0 {
			t.Errorf("expected cell size 2.0, got %v", cell)
		}
	})

	t.Run("stockholm preset uses a fine grid", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Region = RegionStockholm
		_, cell, err := cfg.Area(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cell != 0.1 {
			t.Errorf("expected cell size 0.1, got %v", cell)
		}
	})

	t.Run("explicit bbox overrides the region", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.BBox = "59,60,15,16"
		box, cell, err := cfg.Area(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if box.LatMin != 59 || box.LonMax != 16 {
			t.Errorf("unexpected box: %+v", box)
		}
		if cell != DefaultCellSize {
			t.Errorf("expected default cell size, got %v", cell)
		}
	})

	t.Run("explicit cell size overrides the preset", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Region = RegionStockholm
		cfg.CellSize = 0.05
		_, cell, err := cfg.Area(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cell != 0.05 {
			t.Errorf("expected 0.05, got %v", cell)
		}
	})

	t.Run("config-file region shadows a built-in", func(t *testing.T) {
		t.Parallel()

		file := &File{Regions: map[string]RegionConfig{
			"stockholm": {LatMin: 59.0, LatMax: 59.6, LonMin: 17.5, LonMax: 18.5, CellSize: 0.2},
		}}

		cfg := NewConfig()
		cfg.Region = "stockholm"
		box, cell, err := cfg.Area(file)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if box.LatMin != 59.0 || cell != 0.2 {
			t.Errorf("expected the config-file region, got %+v cell %v", box, cell)
		}
	})

	t.Run("unknown region", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Region = "atlantis"
		if _, _, err := cfg.Area(nil); !errors.Is(err, ErrUnknownRegion) {
			t.Errorf("expected ErrUnknownRegion, got %v", err)
		}
	})

	t.Run("malformed bbox", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.BBox = "not,a,box"
		if _, _, err := cfg.Area(nil); err == nil {
			t.Error("expected an error for a malformed bbox")
		}
	})
}

// TestParsePermitTypes tests the --types flag parser.
func TestParsePermitTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr error
	}{
		{name: "all types", input: "0,1,2,3", want: []int{0, 1, 2, 3}},
		{name: "spaces tolerated", input: " 0 , 2 ", want: []int{0, 2}},
		{name: "empty", input: "", wantErr: ErrNoPermitTypes},
		{name: "garbage", input: "0,x", wantErr: ErrInvalidPermitTypes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePermitTypes(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

// TestLoadConfigFile tests YAML loading and default application.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads defaults and regions", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  region: skane
  window_months: 12
  permit_types: [0, 1]
  rate_limit: 2s
  timeout: 10s
  user_agent: "permit study (contact: gis@example.se)"
regions:
  skane:
    lat_min: 55.3
    lat_max: 56.5
    lon_min: 12.5
    lon_max: 14.6
    cell_size: 0.5
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		file, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		file.Apply(cfg)

		if cfg.Region != "skane" {
			t.Errorf("region = %q", cfg.Region)
		}
		if cfg.WindowMonths != 12 {
			t.Errorf("window = %d", cfg.WindowMonths)
		}
		if cfg.RateLimit != 2*time.Second {
			t.Errorf("rate limit = %v", cfg.RateLimit)
		}
		if cfg.Timeout != 10*time.Second {
			t.Errorf("timeout = %v", cfg.Timeout)
		}
		if len(cfg.PermitTypes) != 2 {
			t.Errorf("permit types = %v", cfg.PermitTypes)
		}

		box, cell, err := cfg.Area(file)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if box.LatMin != 55.3 || cell != 0.5 {
			t.Errorf("unexpected region: %+v cell %v", box, cell)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed YAML returns an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(":\n\t- not yaml"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for malformed YAML")
		}
	})

	t.Run("nil file applies nothing", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		var file *File
		file.Apply(cfg)
		if cfg.Region != RegionSweden {
			t.Errorf("region = %q", cfg.Region)
		}
	})
}
