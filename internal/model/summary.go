package model

import (
	"sort"
	"time"
)

// CrawlSummary aggregates one crawl run for reporting. It is computed
// after normalization and deduplication, so UniquePermits is the number
// of rows that actually reach the output file.
type CrawlSummary struct {
	// Region is the name of the crawled region preset, or "custom".
	Region string `json:"region"`

	// BoundingBox is the crawled box in lat_min,lat_max,lon_min,lon_max form.
	BoundingBox string `json:"bounding_box"`

	// CellSize is the grid cell side in degrees.
	CellSize float64 `json:"cell_size"`

	// WindowMonths is the query time window in months.
	WindowMonths int `json:"window_months"`

	// PermitTypeCodes are the typ_num codes included in the crawl.
	PermitTypeCodes []int `json:"permit_type_codes"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total crawl wall time.
	Duration time.Duration `json:"duration"`

	// Cells is the number of grid cells queried.
	Cells int `json:"cells"`

	// FailedCells is the number of cells whose location query failed.
	// These cells contribute zero rows; a failed cell is not
	// distinguishable from an empty one in the output, only here.
	FailedCells int `json:"failed_cells"`

	// ReportedCount is the sum of the server-side counts over all
	// cells. This can exceed Markers because the endpoint truncates
	// and because boundary permits are counted by several cells.
	ReportedCount int `json:"reported_count"`

	// Markers is the number of location markers returned.
	Markers int `json:"markers"`

	// Fetched is the number of detail records successfully fetched.
	Fetched int `json:"fetched"`

	// UniquePermits is the number of rows after deduplication.
	UniquePermits int `json:"unique_permits"`

	// TypeCounts is the per-type breakdown, ascending by code.
	TypeCounts []TypeCount `json:"type_counts"`

	// MunicipalityCounts is the per-municipality breakdown. Left in
	// insertion-independent alphabetical order by name; the report
	// layer re-sorts for presentation (Swedish collation).
	MunicipalityCounts []MunicipalityCount `json:"municipality_counts"`
}

// TypeCount is the number of permits of one type.
type TypeCount struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MunicipalityCount is the number of permits in one municipality.
type MunicipalityCount struct {
	Municipality string `json:"municipality"`
	Count        int    `json:"count"`
}

// CountByType tallies permits per type code, ascending by code.
func CountByType(permits []Permit) []TypeCount {
	counts := make(map[int]int)
	for _, p := range permits {
		counts[p.PermitTypeNum]++
	}

	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	result := make([]TypeCount, 0, len(codes))
	for _, code := range codes {
		result = append(result, TypeCount{
			Code:  code,
			Label: TypeLabel(code),
			Count: counts[code],
		})
	}
	return result
}

// CountByMunicipality tallies permits per municipality label. Permits
// with an empty municipality are grouped under the empty string. The
// result is sorted by byte order of the name; presentation-grade
// ordering (å/ä/ö) is the report writer's concern.
func CountByMunicipality(permits []Permit) []MunicipalityCount {
	counts := make(map[string]int)
	for _, p := range permits {
		counts[p.Municipality]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]MunicipalityCount, 0, len(names))
	for _, name := range names {
		result = append(result, MunicipalityCount{Municipality: name, Count: counts[name]})
	}
	return result
}
