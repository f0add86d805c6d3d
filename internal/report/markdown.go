package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nordkart/bygglovscan/internal/model"
)

// topMunicipalities is how many municipalities the busiest-first table
// shows before cutting off.
const topMunicipalities = 15

// MarkdownWriter renders a crawl run summary as GitHub-flavored
// Markdown. The summary is a companion to the CSV, not a replacement:
// it exists so a researcher can sanity-check a multi-hour crawl at a
// glance (truncated cells, failed cells, per-type balance).
type MarkdownWriter struct {
	output io.Writer

	// collator orders municipality names the Swedish way, with
	// å/ä/ö after z rather than interleaved by byte value.
	collator *collate.Collator
}

// NewMarkdownWriter creates a MarkdownWriter that writes to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		output:   output,
		collator: collate.New(language.Swedish),
	}
}

// Write renders the summary. Returns the number of bytes rendered.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCoverage(md, summary)
	w.writeTypeBreakdown(md, summary)
	w.writeMunicipalities(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the run metadata table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H1("Bygglovscan Crawl Summary")
	md.PlainText("")

	types := make([]string, len(s.PermitTypeCodes))
	for i, c := range s.PermitTypeCodes {
		types[i] = strconv.Itoa(c) + " (" + model.TypeLabel(c) + ")"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Region", s.Region},
			{"Bounding box", "`" + s.BoundingBox + "`"},
			{"Cell size", strconv.FormatFloat(s.CellSize, 'f', -1, 64) + "°"},
			{"Window", strconv.Itoa(s.WindowMonths) + " months"},
			{"Permit types", strings.Join(types, ", ")},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(time.Second).String()},
		},
	})
	md.PlainText("")
}

// writeCoverage writes the crawl coverage section with caveats about
// failed and truncated cells.
func (w *MarkdownWriter) writeCoverage(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Coverage")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Grid cells", strconv.Itoa(s.Cells)},
			{"Failed cells", strconv.Itoa(s.FailedCells)},
			{"Server-reported permits (with overlap)", strconv.Itoa(s.ReportedCount)},
			{"Markers retrieved", strconv.Itoa(s.Markers)},
			{"Details fetched", strconv.Itoa(s.Fetched)},
			{"**Unique permits**", "**" + strconv.Itoa(s.UniquePermits) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case s.FailedCells > 0:
		md.Warningf(
			"%d of %d cells failed and were skipped. Permits in those cells are missing from this run; rerun to fill the gaps.",
			s.FailedCells, s.Cells,
		)
	case s.Markers < s.ReportedCount:
		md.Note(fmt.Sprintf(
			"The server reported %d permits but returned %d markers. Some of the gap is cross-cell overlap; if it persists, reduce the cell size.",
			s.ReportedCount, s.Markers,
		))
	default:
		md.Tip("All cells were retrieved without failures.")
	}
	md.PlainText("")
}

// writeTypeBreakdown writes the per-type table.
func (w *MarkdownWriter) writeTypeBreakdown(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Permits by Type")
	md.PlainText("")

	if len(s.TypeCounts) == 0 {
		md.PlainText("No permits collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(s.TypeCounts))
	for _, tc := range s.TypeCounts {
		rows = append(rows, []string{strconv.Itoa(tc.Code), tc.Label, strconv.Itoa(tc.Count)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Code", "Type", "Permits"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeMunicipalities writes the busiest municipalities, then the full
// alphabetical list (Swedish collation).
func (w *MarkdownWriter) writeMunicipalities(md *markdown.Markdown, s *model.CrawlSummary) {
	if len(s.MunicipalityCounts) == 0 {
		return
	}

	counts := make([]model.MunicipalityCount, len(s.MunicipalityCounts))
	copy(counts, s.MunicipalityCounts)

	md.H2("Busiest Municipalities")
	md.PlainText("")

	byCount := make([]model.MunicipalityCount, len(counts))
	copy(byCount, counts)
	sort.SliceStable(byCount, func(i, j int) bool { return byCount[i].Count > byCount[j].Count })
	if len(byCount) > topMunicipalities {
		byCount = byCount[:topMunicipalities]
	}

	rows := make([][]string, 0, len(byCount))
	for _, mc := range byCount {
		rows = append(rows, []string{displayName(mc.Municipality), strconv.Itoa(mc.Count)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Municipality", "Permits"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("All Municipalities")
	md.PlainText("")

	sort.SliceStable(counts, func(i, j int) bool {
		return w.collator.CompareString(counts[i].Municipality, counts[j].Municipality) < 0
	})

	rows = rows[:0]
	for _, mc := range counts {
		rows = append(rows, []string{displayName(mc.Municipality), strconv.Itoa(mc.Count)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Municipality", "Permits"},
		Rows:   rows,
	})
	md.PlainText("")
}

// displayName renders an empty municipality label readably.
func displayName(name string) string {
	if name == "" {
		return "(unknown)"
	}
	return name
}
