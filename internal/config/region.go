package config

import (
	"strings"

	"github.com/nordkart/bygglovscan/internal/geo"
)

// Built-in region preset names.
const (
	// RegionSweden covers the whole country with a coarse grid.
	RegionSweden = "sweden"

	// RegionStockholm covers greater Stockholm with a fine grid. The
	// capital's permit density needs small cells to stay under the
	// server's marker clustering threshold.
	RegionStockholm = "stockholm"
)

// Region is a named crawl area with its recommended grid cell size.
type Region struct {
	// Box is the region's bounding box.
	Box geo.BoundingBox

	// CellSize is the recommended grid cell edge in degrees.
	// Zero falls back to DefaultCellSize.
	CellSize float64
}

// builtinRegions are the presets available without a config file.
// Coordinates are deliberately generous: the grid clips to the box, and
// cells with no permits cost one cheap location query each.
var builtinRegions = map[string]Region{
	RegionSweden: {
		Box:      geo.BoundingBox{LatMin: 55.0, LatMax: 69.0, LonMin: 10.5, LonMax: 24.5},
		CellSize: 2.0,
	},
	RegionStockholm: {
		Box:      geo.BoundingBox{LatMin: 59.2, LatMax: 59.5, LonMin: 17.8, LonMax: 18.2},
		CellSize: 0.1,
	},
}

// RegionNames returns the built-in preset names for help text.
func RegionNames() []string {
	return []string{RegionSweden, RegionStockholm}
}

// lookupRegion resolves a region name against the config file first,
// then the built-ins. Names are case-insensitive.
func lookupRegion(name string, file *File) (Region, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	if file != nil {
		if rc, ok := file.Regions[name]; ok {
			return rc.region(), true
		}
	}

	region, ok := builtinRegions[name]
	return region, ok
}
