package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nordkart/bygglovscan/internal/model"
)

// float64Ptr returns a pointer to v.
func float64Ptr(v float64) *float64 { return &v }

// samplePermits returns permits with one duplicated id.
func samplePermits() []model.Permit {
	return []model.Permit{
		{
			PermitID:        "100",
			PropertyName:    "KVARNEN 3",
			MunicipalCaseID: "BN 2024-001",
			PublicationDate: "2025-01-15",
			Municipality:    "Stockholms kommun",
			PermitTypeNum:   0,
			PermitType:      "Bygglov",
			Longitude:       float64Ptr(18.06),
			Latitude:        float64Ptr(59.33),
		},
		{
			PermitID:      "200",
			Municipality:  "Umeå kommun",
			PermitTypeNum: -1,
			PermitType:    "Unknown",
		},
		{
			// Duplicate of 100, rediscovered from an adjacent cell.
			PermitID:     "100",
			Municipality: "somewhere else",
		},
	}
}

// TestCSVWriter tests CSV serialization and deduplication.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and deduplicated rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewCSVWriter(&buf).Write(samplePermits())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows written, got %d", n)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
		}
		if lines[0] != strings.Join(Header, ",") {
			t.Errorf("header = %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "100,KVARNEN 3,BN 2024-001,2025-01-15,Stockholms kommun,0,Bygglov,18.06,59.33") {
			t.Errorf("row 1 = %q", lines[1])
		}
		// First occurrence of permit 100 wins.
		if strings.Contains(buf.String(), "somewhere else") {
			t.Error("expected the duplicate's fields to be discarded")
		}
	})

	t.Run("nil coordinates become empty fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write([]model.Permit{{PermitID: "1", PermitTypeNum: -1, PermitType: "Unknown"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if lines[1] != "1,,,,,-1,Unknown,," {
			t.Errorf("row = %q", lines[1])
		}
	})

	t.Run("empty input returns ErrNoData", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewCSVWriter(&buf).Write(nil)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

// TestWriteCSVFile tests file creation semantics.
func TestWriteCSVFile(t *testing.T) {
	t.Parallel()

	t.Run("creates the file and parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "permits.csv")
		n, err := WriteCSVFile(path, samplePermits())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows, got %d", n)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if !strings.HasPrefix(string(data), strings.Join(Header, ",")) {
			t.Errorf("output does not start with header: %q", string(data)[:50])
		}
	})

	t.Run("empty input creates no file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "permits.csv")
		_, err := WriteCSVFile(path, nil)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected no file at %s", path)
		}
	})
}

// sampleSummary returns a summary with Swedish municipality names.
func sampleSummary() *model.CrawlSummary {
	permits := []model.Permit{
		{PermitTypeNum: 0, PermitType: "Bygglov", Municipality: "Örebro kommun"},
		{PermitTypeNum: 0, PermitType: "Bygglov", Municipality: "Arboga kommun"},
		{PermitTypeNum: 1, PermitType: "Rivningslov", Municipality: "Örebro kommun"},
	}
	return &model.CrawlSummary{
		Region:             "custom",
		BoundingBox:        "59,60,15,16",
		CellSize:           0.5,
		WindowMonths:       30,
		PermitTypeCodes:    []int{0, 1, 2, 3},
		StartedAt:          time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
		Duration:           95 * time.Second,
		Cells:              4,
		FailedCells:        1,
		ReportedCount:      5,
		Markers:            3,
		Fetched:            3,
		UniquePermits:      3,
		TypeCounts:         model.CountByType(permits),
		MunicipalityCounts: model.CountByMunicipality(permits),
	}
}

// TestMarkdownWriter tests the human-readable crawl summary.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders metadata, coverage and breakdowns", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"Bygglovscan Crawl Summary",
			"Coverage",
			"Permits by Type",
			"Bygglov",
			"Rivningslov",
			"Busiest Municipalities",
			"Örebro kommun",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("warns about failed cells", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "1 of 4 cells failed") {
			t.Errorf("expected failed-cell warning, got:\n%s", buf.String())
		}
	})

	t.Run("sorts municipalities with Swedish collation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		all := out[strings.Index(out, "All Municipalities"):]
		arboga := strings.Index(all, "Arboga kommun")
		orebro := strings.Index(all, "Örebro kommun")
		if arboga == -1 || orebro == -1 {
			t.Fatalf("missing municipalities in:\n%s", all)
		}
		// Ö sorts after all A-Z letters in Swedish, so Arboga comes first.
		if arboga > orebro {
			t.Error("expected Arboga before Örebro in Swedish collation")
		}
	})
}
