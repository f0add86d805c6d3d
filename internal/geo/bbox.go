package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// BoundingBox is an immutable latitude/longitude rectangle in WGS84 degrees.
// Latitude grows northward, longitude eastward. A valid box has
// LatMin < LatMax and LonMin < LonMax.
type BoundingBox struct {
	// LatMin is the southern edge in degrees.
	LatMin float64

	// LatMax is the northern edge in degrees.
	LatMax float64

	// LonMin is the western edge in degrees.
	LonMin float64

	// LonMax is the eastern edge in degrees.
	LonMax float64
}

// NewBoundingBox creates a validated BoundingBox.
func NewBoundingBox(latMin, latMax, lonMin, lonMax float64) (BoundingBox, error) {
	b := BoundingBox{
		LatMin: latMin,
		LatMax: latMax,
		LonMin: lonMin,
		LonMax: lonMax,
	}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// ParseBoundingBox parses a box from "lat_min,lat_max,lon_min,lon_max".
// This is the format accepted by the --bbox CLI flag.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: expected 4 comma-separated values, got %d", ErrInvalidBoundingBox, len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBoundingBox, p)
		}
		vals[i] = v
	}

	return NewBoundingBox(vals[0], vals[1], vals[2], vals[3])
}

// Validate checks that the box spans a non-empty area.
func (b BoundingBox) Validate() error {
	if b.LatMin >= b.LatMax {
		return fmt.Errorf("%w: lat_min (%g) must be less than lat_max (%g)", ErrInvalidBoundingBox, b.LatMin, b.LatMax)
	}
	if b.LonMin >= b.LonMax {
		return fmt.Errorf("%w: lon_min (%g) must be less than lon_max (%g)", ErrInvalidBoundingBox, b.LonMin, b.LonMax)
	}
	return nil
}

// String returns the box in the same "lat_min,lat_max,lon_min,lon_max"
// format that ParseBoundingBox accepts.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.LatMin), formatCoord(b.LatMax),
		formatCoord(b.LonMin), formatCoord(b.LonMax))
}

// formatCoord renders a coordinate without exponent notation or
// trailing zeros.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
