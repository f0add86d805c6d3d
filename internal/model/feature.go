package model

import "encoding/json"

// Feature is a raw permit record as returned by the API, in GeoJSON
// Feature shape. Properties is kept as a loose map because the upstream
// schema is undocumented and fields come and go; the normalizer owns all
// interpretation of it.
type Feature struct {
	// Properties holds the permit attributes (id, fastighet, kun_id,
	// pubdate, subtext, typ_num, ...). Values are JSON scalars.
	Properties map[string]any `json:"properties"`

	// Geometry is the permit's location. May be nil or of an
	// unexpected type; the normalizer degrades to null coordinates.
	Geometry *Geometry `json:"geometry"`
}

// Geometry is a GeoJSON geometry with coordinates kept raw.
// Point and Polygon are the only types the API has been observed to
// return; Coordinates is decoded lazily per type.
type Geometry struct {
	// Type is the GeoJSON geometry type ("Point", "Polygon", ...).
	Type string `json:"type"`

	// Coordinates is the raw coordinate array. Its nesting depth
	// depends on Type.
	Coordinates json.RawMessage `json:"coordinates"`
}

// GeoJSON geometry type names handled by the normalizer.
const (
	GeometryPoint   = "Point"
	GeometryPolygon = "Polygon"
)

// Centroid returns the geometry's representative point as (lon, lat).
//
// For a Point the coordinates are used directly. For a Polygon the
// centroid is the arithmetic mean of the first ring's vertices. This is
// NOT the true area centroid: it is biased for concave polygons and for
// rings with unevenly spaced vertices, but it is good enough for
// point-in-area joins downstream and matches how the dataset has been
// produced historically.
//
// For any other or missing geometry, both results are nil. Centroid
// never fails: malformed coordinate arrays also degrade to nil.
func (g *Geometry) Centroid() (lon, lat *float64) {
	if g == nil {
		return nil, nil
	}

	switch g.Type {
	case GeometryPoint:
		var coords []float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil || len(coords) < 2 {
			return nil, nil
		}
		return &coords[0], &coords[1]

	case GeometryPolygon:
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil || len(rings) == 0 || len(rings[0]) == 0 {
			return nil, nil
		}
		var sumLon, sumLat float64
		n := 0
		for _, v := range rings[0] {
			if len(v) < 2 {
				return nil, nil
			}
			sumLon += v[0]
			sumLat += v[1]
			n++
		}
		meanLon := sumLon / float64(n)
		meanLat := sumLat / float64(n)
		return &meanLon, &meanLat

	default:
		return nil, nil
	}
}
