package geo

// Grid partitions the box into cells of the given side length in degrees.
// Cells are returned in row-major order, south to north and west to east
// within each row. The last row and column are clipped to the box bounds,
// so edge cells may be smaller than cellSize. The union of the returned
// cells covers the box exactly, with no gaps and no overlap.
//
// This is a pure function: partition generation is decoupled from the
// fetch loop so coverage can be tested on its own.
//
// cellSize is a tunable tradeoff, not a derived constant. Smaller cells
// lower the risk of hitting the location endpoint's undocumented
// truncation limit, at the cost of proportionally more requests.
func (b BoundingBox) Grid(cellSize float64) ([]BoundingBox, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if cellSize <= 0 {
		return nil, ErrInvalidCellSize
	}

	var cells []BoundingBox

	// Cell edges are computed as origin + i*cellSize rather than by
	// accumulating additions, so adjacent cells share an exact edge.
	for i := 0; ; i++ {
		latLo := b.LatMin + float64(i)*cellSize
		if latLo >= b.LatMax {
			break
		}
		latHi := b.LatMin + float64(i+1)*cellSize
		if latHi > b.LatMax {
			latHi = b.LatMax
		}

		for j := 0; ; j++ {
			lonLo := b.LonMin + float64(j)*cellSize
			if lonLo >= b.LonMax {
				break
			}
			lonHi := b.LonMin + float64(j+1)*cellSize
			if lonHi > b.LonMax {
				lonHi = b.LonMax
			}

			cells = append(cells, BoundingBox{
				LatMin: latLo,
				LatMax: latHi,
				LonMin: lonLo,
				LonMax: lonHi,
			})
		}
	}

	return cells, nil
}

// GridSize returns the number of cells Grid would produce without
// allocating them. Callers use it to budget crawl wall time up front.
func (b BoundingBox) GridSize(cellSize float64) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if cellSize <= 0 {
		return 0, ErrInvalidCellSize
	}

	rows := 0
	for i := 0; b.LatMin+float64(i)*cellSize < b.LatMax; i++ {
		rows++
	}
	cols := 0
	for j := 0; b.LonMin+float64(j)*cellSize < b.LonMax; j++ {
		cols++
	}
	return rows * cols, nil
}
