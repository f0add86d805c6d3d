package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nordkart/bygglovscan/internal/api"
	"github.com/nordkart/bygglovscan/internal/geo"
	"github.com/nordkart/bygglovscan/internal/model"
	"github.com/nordkart/bygglovscan/internal/ratelimit"
)

// permitAPIStub mimics the two-endpoint permit API for tests.
// locations maps a lat_min query value to the response for that cell.
type permitAPIStub struct {
	// locations maps the lat_min parameter to a canned response body.
	locations map[string]string

	// details maps permit ids to detail response bodies. Ids not in
	// the map get a 404.
	details map[string]string

	// detailCalls counts detail fetches.
	detailCalls atomic.Int64
}

func (s *permitAPIStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_locations", func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.locations[r.URL.Query().Get("lat_min")]
		if !ok {
			w.Write([]byte(`{"count": 0, "data": {"features": []}}`))
			return
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/get_details/", func(w http.ResponseWriter, r *http.Request) {
		s.detailCalls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/get_details/")
		body, ok := s.details[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	})
	return mux
}

// locationsBody builds a get_locations response with the given server
// count and marker ids.
func locationsBody(t *testing.T, count int, ids []int) string {
	t.Helper()

	features := make([]map[string]any, len(ids))
	for i, id := range ids {
		features[i] = map[string]any{"properties": map[string]any{"id": id}}
	}
	body, err := json.Marshal(map[string]any{
		"count": count,
		"data":  map[string]any{"features": features},
	})
	if err != nil {
		t.Fatalf("marshal locations body: %v", err)
	}
	return string(body)
}

// detailBody builds a get_details response for one permit.
func detailBody(id int, municipality string) string {
	return fmt.Sprintf(`{
		"properties": {"id": %d, "subtext": %q, "typ_num": 0},
		"geometry": {"type": "Point", "coordinates": [18.0, 59.3]}
	}`, id, municipality)
}

// newTestCrawler wires a Crawler to the stub with rate limiting disabled.
func newTestCrawler(srv *httptest.Server) *Crawler {
	client := api.NewClient(srv.URL, api.WithLimiter(ratelimit.New(0)))
	return New(client)
}

// TestCrawlRegion tests the grid traversal and its failure policy.
func TestCrawlRegion(t *testing.T) {
	t.Parallel()

	t.Run("fetches details for every marker in every cell", func(t *testing.T) {
		t.Parallel()

		stub := &permitAPIStub{
			locations: map[string]string{
				"0": locationsBody(t, 2, []int{1, 2}),
				"1": locationsBody(t, 1, []int{3}),
			},
			details: map[string]string{
				"1": detailBody(1, "Lund"),
				"2": detailBody(2, "Lund"),
				"3": detailBody(3, "Malmö"),
			},
		}
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		// Two rows, one column.
		region := geo.BoundingBox{LatMin: 0, LatMax: 2, LonMin: 0, LonMax: 1}
		result, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.DefaultFilter(), 1.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Features) != 3 {
			t.Errorf("expected 3 features, got %d", len(result.Features))
		}
		if len(result.Cells) != 2 {
			t.Fatalf("expected 2 cell results, got %d", len(result.Cells))
		}
		if result.Cells[0].Markers != 2 || result.Cells[0].Fetched != 2 {
			t.Errorf("cell 0: %+v", result.Cells[0])
		}
		if result.Cells[1].Markers != 1 || result.Cells[1].Fetched != 1 {
			t.Errorf("cell 1: %+v", result.Cells[1])
		}
		if result.FailedCells() != 0 {
			t.Errorf("expected no failed cells, got %d", result.FailedCells())
		}
	})

	t.Run("failed location query skips the cell but not the crawl", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/get_locations", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("lat_min") == "0" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(locationsBody(t, 1, []int{7})))
		})
		mux.HandleFunc("/get_details/", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(detailBody(7, "Umeå")))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		region := geo.BoundingBox{LatMin: 0, LatMax: 2, LonMin: 0, LonMax: 1}
		result, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.DefaultFilter(), 1.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.FailedCells() != 1 {
			t.Errorf("expected 1 failed cell, got %d", result.FailedCells())
		}
		if result.Cells[0].Err == nil || !api.IsTransportError(result.Cells[0].Err) {
			t.Errorf("expected TransportError recorded on cell 0, got %v", result.Cells[0].Err)
		}
		if len(result.Features) != 1 {
			t.Errorf("expected crawl to continue past the failed cell, got %d features", len(result.Features))
		}
	})

	t.Run("failed detail fetch skips the marker but not the cell", func(t *testing.T) {
		t.Parallel()

		stub := &permitAPIStub{
			locations: map[string]string{
				"0": locationsBody(t, 3, []int{1, 2, 3}),
			},
			details: map[string]string{
				"1": detailBody(1, "Lund"),
				// 2 is missing: 404
				"3": detailBody(3, "Lund"),
			},
		}
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		region := geo.BoundingBox{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1}
		result, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.DefaultFilter(), 1.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Features) != 2 {
			t.Errorf("expected 2 features, got %d", len(result.Features))
		}
		if result.Cells[0].Markers != 3 || result.Cells[0].Fetched != 2 {
			t.Errorf("cell 0: %+v", result.Cells[0])
		}
		if result.Cells[0].Err != nil {
			t.Errorf("detail failures must not mark the cell failed: %v", result.Cells[0].Err)
		}
	})

	t.Run("markers without an id are skipped", func(t *testing.T) {
		t.Parallel()

		stub := &permitAPIStub{
			locations: map[string]string{
				"0": `{"count": 2, "data": {"features": [
					{"properties": {}},
					{"properties": {"id": 5}}
				]}}`,
			},
			details: map[string]string{"5": detailBody(5, "Lund")},
		}
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		region := geo.BoundingBox{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1}
		result, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.DefaultFilter(), 1.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stub.detailCalls.Load() != 1 {
			t.Errorf("expected 1 detail call, got %d", stub.detailCalls.Load())
		}
		if len(result.Features) != 1 {
			t.Errorf("expected 1 feature, got %d", len(result.Features))
		}
	})

	t.Run("cancellation returns partial results", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		stub := &permitAPIStub{
			locations: map[string]string{
				"0": locationsBody(t, 1, []int{1}),
				"1": locationsBody(t, 1, []int{2}),
			},
			details: map[string]string{
				"1": detailBody(1, "Lund"),
				"2": detailBody(2, "Lund"),
			},
		}
		mux := stub.handler()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Cancel while the first cell is in flight.
			if strings.HasPrefix(r.URL.Path, "/get_details/") {
				cancel()
			}
			mux.ServeHTTP(w, r)
		}))
		defer srv.Close()

		region := geo.BoundingBox{LatMin: 0, LatMax: 2, LonMin: 0, LonMax: 1}
		result, err := newTestCrawler(srv).CrawlRegion(ctx, region, api.DefaultFilter(), 1.0)
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(result.Cells) > 1 {
			t.Errorf("expected at most 1 cell before cancellation, got %d", len(result.Cells))
		}
	})

	t.Run("rejects an invalid filter", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		region := geo.BoundingBox{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1}
		_, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.QueryFilter{}, 1.0)
		if err == nil {
			t.Fatal("expected error for empty filter")
		}
	})
}

// TestCrawlTruncationAndCrossCellDedup reproduces the known API
// behavior end to end: one cell reports count=150 but returns only 80
// markers, and the adjacent cell returns a single marker whose id
// duplicates one from the first cell. After normalization and
// deduplication exactly 80 unique rows remain.
func TestCrawlTruncationAndCrossCellDedup(t *testing.T) {
	t.Parallel()

	ids := make([]int, 80)
	details := make(map[string]string, 80)
	for i := range ids {
		ids[i] = 1000 + i
		details[fmt.Sprintf("%d", ids[i])] = detailBody(ids[i], "Stockholms kommun")
	}

	stub := &permitAPIStub{
		locations: map[string]string{
			"0": locationsBody(t, 150, ids),
			// Adjacent cell re-reports a boundary permit.
			"1": locationsBody(t, 1, []int{1000}),
		},
		details: details,
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	region := geo.BoundingBox{LatMin: 0, LatMax: 2, LonMin: 0, LonMax: 1}
	result, err := newTestCrawler(srv).CrawlRegion(context.Background(), region, api.DefaultFilter(), 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Cells[0].Truncated {
		t.Error("expected cell 0 to report truncation")
	}
	if result.Cells[0].ReportedCount != 150 || result.Cells[0].Markers != 80 {
		t.Errorf("cell 0: %+v", result.Cells[0])
	}

	// 81 raw fetches: 80 from the first cell, 1 duplicate from the second.
	if len(result.Features) != 81 {
		t.Fatalf("expected 81 raw features, got %d", len(result.Features))
	}

	unique := model.Dedupe(model.NormalizeAll(result.Features))
	if len(unique) != 80 {
		t.Errorf("expected 80 unique permits after dedup, got %d", len(unique))
	}
}

// TestEstimateWallTime tests the crawl duration budget arithmetic.
func TestEstimateWallTime(t *testing.T) {
	t.Parallel()

	got := EstimateWallTime(10, 3000, time.Second)
	if got != 3010*time.Second {
		t.Errorf("EstimateWallTime = %v, want 3010s", got)
	}
}
