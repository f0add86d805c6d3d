package geo

import "errors"

var (
	// ErrInvalidBoundingBox is returned when a bounding box does not span
	// a non-empty area or cannot be parsed.
	ErrInvalidBoundingBox = errors.New("invalid bounding box")

	// ErrInvalidCellSize is returned when a grid cell size is not positive.
	ErrInvalidCellSize = errors.New("invalid cell size: must be positive")
)
