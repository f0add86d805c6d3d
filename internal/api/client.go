package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nordkart/bygglovscan/internal/geo"
	"github.com/nordkart/bygglovscan/internal/model"
	"github.com/nordkart/bygglovscan/internal/ratelimit"
)

// Default client settings.
const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://geoplan.se"

	// DefaultTimeout is the per-request budget. The API is usually
	// fast; anything past 30 seconds is treated like any other
	// transport failure and the request is abandoned, not retried.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client honestly. Operators of
	// the remote service should be able to spot and contact us.
	DefaultUserAgent = "bygglovscan (academic research; building permit study)"
)

// DefaultWindowMonths is the default query time window.
const DefaultWindowMonths = 30

// QueryFilter restricts a location query. The same filter is used
// unchanged through an entire crawl run.
type QueryFilter struct {
	// WindowMonths is how many months back the query reaches.
	WindowMonths int

	// PermitTypes are the typ_num codes to include.
	PermitTypes []int
}

// DefaultFilter returns the filter used when the caller specifies
// nothing: a 30-month window over every known permit type.
func DefaultFilter() QueryFilter {
	return QueryFilter{
		WindowMonths: DefaultWindowMonths,
		PermitTypes:  model.KnownTypeCodes(),
	}
}

// Validate checks the filter is usable in a query.
func (f QueryFilter) Validate() error {
	if f.WindowMonths <= 0 {
		return ErrInvalidWindow
	}
	if len(f.PermitTypes) == 0 {
		return ErrNoPermitTypes
	}
	for _, c := range f.PermitTypes {
		if c < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidPermitType, c)
		}
	}
	return nil
}

// typesParam renders the permit types as the comma-joined codes the
// API expects.
func (f QueryFilter) typesParam() string {
	codes := make([]string, len(f.PermitTypes))
	for i, c := range f.PermitTypes {
		codes[i] = strconv.Itoa(c)
	}
	return strings.Join(codes, ",")
}

// LocationResult is the outcome of one location query.
type LocationResult struct {
	// Count is the server-side number of permits in the box. It may
	// exceed len(Features): the endpoint clusters/truncates results
	// for large boxes. Never assume Count == len(Features) — that
	// mismatch is the reason grid partitioning exists.
	Count int

	// Features are the returned location markers. Each carries at
	// least an id in its properties.
	Features []model.Feature
}

// Truncated reports whether the server knows of more permits than it
// returned markers for.
func (r LocationResult) Truncated() bool {
	return r.Count > len(r.Features)
}

// Client calls the permit map API. All requests share one fixed header
// set, one timeout, and one rate limiter; the crawl issues exactly one
// request at a time.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.http.SetHeader("User-Agent", ua)
	}
}

// WithLimiter injects the rate limiter the client must pass before
// every request. Sharing one limiter across clients serializes their
// combined request rate.
func WithLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API at baseURL. An empty baseURL
// selects the production host.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("User-Agent", DefaultUserAgent).
		SetHeader("Accept", "application/json").
		// Retrying is the caller's decision, and the current policy
		// is to not retry at all: a failed request loses that unit
		// of work for the run.
		SetRetryCount(0)

	c := &Client{
		http: hc,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = ratelimit.New(ratelimit.DefaultInterval)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// locationsResponse is the wire shape of GET /get_locations.
type locationsResponse struct {
	Count int `json:"count"`
	Data  struct {
		Features []model.Feature `json:"features"`
	} `json:"data"`
}

// GetLocations fetches the permit markers inside bbox matching filter.
//
// bbox is passed as the four lat/lon query parameters; the filter adds
// the window and the comma-joined type codes. The call waits on the
// rate limiter first. Errors are returned, not swallowed: the crawler
// decides that a failed cell degrades to zero results, and keeping the
// error lets it record failed-vs-empty per cell.
func (c *Client) GetLocations(ctx context.Context, bbox geo.BoundingBox, filter QueryFilter) (LocationResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return LocationResult{}, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat_min": formatCoord(bbox.LatMin),
			"lat_max": formatCoord(bbox.LatMax),
			"lon_min": formatCoord(bbox.LonMin),
			"lon_max": formatCoord(bbox.LonMax),
			"window":  strconv.Itoa(filter.WindowMonths),
			"types":   filter.typesParam(),
		}).
		Get("/get_locations")
	if err != nil {
		return LocationResult{}, &TransportError{URL: requestURL(resp, c.http.BaseURL+"/get_locations"), Err: err}
	}
	if resp.IsError() {
		return LocationResult{}, &TransportError{URL: resp.Request.URL, StatusCode: resp.StatusCode()}
	}

	var decoded locationsResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return LocationResult{}, &DecodeError{URL: resp.Request.URL, Err: err}
	}

	result := LocationResult{
		Count:    decoded.Count,
		Features: decoded.Data.Features,
	}

	c.logger.Debug("location query",
		"bbox", bbox,
		"count", result.Count,
		"markers", len(result.Features),
		"truncated", result.Truncated(),
	)

	return result, nil
}

// GetDetails fetches the full permit feature for one marker id.
// This is the crawl's dominant cost center: one rate-limited round trip
// per marker, so total wall time scales with the marker count.
func (c *Client) GetDetails(ctx context.Context, id string) (model.Feature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Feature{}, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/get_details/" + url.PathEscape(id))
	if err != nil {
		return model.Feature{}, &TransportError{URL: requestURL(resp, c.http.BaseURL+"/get_details/"+id), Err: err}
	}
	if resp.IsError() {
		return model.Feature{}, &TransportError{URL: resp.Request.URL, StatusCode: resp.StatusCode()}
	}

	var feature model.Feature
	if err := json.Unmarshal(resp.Body(), &feature); err != nil {
		return model.Feature{}, &DecodeError{URL: resp.Request.URL, Err: err}
	}

	return feature, nil
}

// requestURL extracts the request URL from a resty response, falling
// back to the given URL when the response is nil.
func requestURL(resp *resty.Response, fallback string) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != "" {
		return resp.Request.URL
	}
	return fallback
}

// formatCoord renders a coordinate without exponent notation.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
