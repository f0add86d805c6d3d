package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nordkart/bygglovscan/internal/model"
)

// Header is the fixed CSV column set, in output order. Downstream
// consumers (the geospatial join and the demographic merge) key on
// these exact names; do not reorder.
var Header = []string{
	"permit_id",
	"property_name",
	"municipal_case_id",
	"publication_date",
	"municipality",
	"permit_type_num",
	"permit_type",
	"longitude",
	"latitude",
}

// CSVWriter serializes deduplicated permits as CSV.
type CSVWriter struct {
	output io.Writer
}

// NewCSVWriter creates a CSVWriter that writes to output.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{output: output}
}

// Write deduplicates the permits by permit id (first seen wins) and
// writes one row per surviving permit under the fixed header. It
// returns the number of rows written, or ErrNoData when the input is
// empty.
func (w *CSVWriter) Write(permits []model.Permit) (int, error) {
	if len(permits) == 0 {
		return 0, ErrNoData
	}

	unique := model.Dedupe(permits)

	cw := csv.NewWriter(w.output)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, p := range unique {
		if err := cw.Write(record(p)); err != nil {
			return i, fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(unique), fmt.Errorf("failed to flush CSV: %w", err)
	}

	return len(unique), nil
}

// WriteCSVFile writes the deduplicated permits to a new file at path,
// creating parent directories as needed. When permits is empty it
// returns ErrNoData without creating the file.
func WriteCSVFile(path string, permits []model.Permit) (int, error) {
	if len(permits) == 0 {
		return 0, ErrNoData
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n, werr := NewCSVWriter(f).Write(permits)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return n, werr
}

// record renders one permit as a CSV row. Nil coordinates become empty
// fields so "unknown location" round-trips as null in dataframe tools.
func record(p model.Permit) []string {
	return []string{
		p.PermitID,
		p.PropertyName,
		p.MunicipalCaseID,
		p.PublicationDate,
		p.Municipality,
		strconv.Itoa(p.PermitTypeNum),
		p.PermitType,
		coordField(p.Longitude),
		coordField(p.Latitude),
	}
}

// coordField renders a nullable coordinate.
func coordField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
