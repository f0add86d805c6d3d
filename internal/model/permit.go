package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Permit type codes used by the API's typ_num property.
const (
	TypeBygglov        = 0 // building permit
	TypeRivningslov    = 1 // demolition permit
	TypeMarklov        = 2 // land alteration permit
	TypeForhandsbesked = 3 // advance ruling

	// TypeUnknown is the sentinel code for a missing or unrecognized
	// typ_num value.
	TypeUnknown = -1
)

// UnknownTypeLabel is the label for permit type codes outside the
// known table.
const UnknownTypeLabel = "Unknown"

// permitTypeLabels maps typ_num codes to their Swedish labels.
// The table is fixed upstream; new codes map to UnknownTypeLabel until
// the table is extended.
var permitTypeLabels = map[int]string{
	TypeBygglov:        "Bygglov",
	TypeRivningslov:    "Rivningslov",
	TypeMarklov:        "Marklov",
	TypeForhandsbesked: "Förhandsbesked",
}

// TypeLabel returns the Swedish label for a permit type code, or
// UnknownTypeLabel for codes outside the table.
func TypeLabel(code int) string {
	if label, ok := permitTypeLabels[code]; ok {
		return label
	}
	return UnknownTypeLabel
}

// KnownTypeCodes returns the permit type codes of the fixed table in
// ascending order. Used as the default --types filter.
func KnownTypeCodes() []int {
	return []int{TypeBygglov, TypeRivningslov, TypeMarklov, TypeForhandsbesked}
}

// Permit is a normalized, flat permit row. This is the unit the CSV
// writer and the crawl database operate on.
type Permit struct {
	// PermitID is the API's permit identifier. It is the
	// deduplication key and is treated as opaque.
	PermitID string `json:"permit_id"`

	// PropertyName is the site designation (fastighetsbeteckning).
	PropertyName string `json:"property_name"`

	// MunicipalCaseID is the municipality's own case number.
	MunicipalCaseID string `json:"municipal_case_id"`

	// PublicationDate is the permit's publication date as reported by
	// the API. Kept verbatim; the upstream date format is not
	// guaranteed stable.
	PublicationDate string `json:"publication_date"`

	// Municipality is the municipality label (the marker subtext).
	Municipality string `json:"municipality"`

	// PermitTypeNum is the permit type code, or TypeUnknown when the
	// property is missing or not a number.
	PermitTypeNum int `json:"permit_type_num"`

	// PermitType is the label for PermitTypeNum.
	PermitType string `json:"permit_type"`

	// Longitude and Latitude are the permit's representative point.
	// Nil when the geometry is absent or malformed.
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

// Normalize maps a raw feature to a flat permit row.
//
// Normalize is pure and total: it never fails. Missing or mistyped
// properties degrade to the empty string (or TypeUnknown for the type
// code) and missing or malformed geometry degrades to nil coordinates.
// Coverage-over-correctness is deliberate here: a partially filled row
// is still useful to the downstream join, and the API's schema is not
// under our control.
func Normalize(f Feature) Permit {
	typeNum := intProperty(f.Properties, "typ_num", TypeUnknown)

	p := Permit{
		PermitID:        stringProperty(f.Properties, "id"),
		PropertyName:    stringProperty(f.Properties, "fastighet"),
		MunicipalCaseID: stringProperty(f.Properties, "kun_id"),
		PublicationDate: stringProperty(f.Properties, "pubdate"),
		Municipality:    stringProperty(f.Properties, "subtext"),
		PermitTypeNum:   typeNum,
		PermitType:      TypeLabel(typeNum),
	}

	p.Longitude, p.Latitude = f.Geometry.Centroid()
	return p
}

// NormalizeAll maps a slice of raw features to permit rows in order.
func NormalizeAll(features []Feature) []Permit {
	permits := make([]Permit, 0, len(features))
	for _, f := range features {
		permits = append(permits, Normalize(f))
	}
	return permits
}

// Dedupe removes duplicate permits by PermitID, keeping the first
// occurrence in input order. First-seen-wins matters because the same
// permit can be rediscovered from adjacent grid cells when its point
// lies on a cell boundary; the first fetch is as good as any later one.
func Dedupe(permits []Permit) []Permit {
	seen := make(map[string]bool, len(permits))
	unique := make([]Permit, 0, len(permits))
	for _, p := range permits {
		if seen[p.PermitID] {
			continue
		}
		seen[p.PermitID] = true
		unique = append(unique, p)
	}
	return unique
}

// stringProperty reads a property as a string. JSON numbers are
// rendered without exponent notation so numeric ids survive the
// map[string]any decoding intact.
func stringProperty(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// intProperty reads a property as an integer, returning fallback when
// the property is missing or not convertible.
func intProperty(props map[string]any, key string, fallback int) int {
	v, ok := props[key]
	if !ok || v == nil {
		return fallback
	}

	switch val := v.(type) {
	case float64:
		return int(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		return fallback
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
		return fallback
	case int:
		return val
	default:
		return fallback
	}
}
