// Package hsp implements the client for the Historical Service Performance
// API, the upstream source of service metrics and per-service details.
//
// Responses are read through the cache when one is configured: metrics are
// keyed by route and date range, details by RID. The HSP API authenticates
// with HTTP basic auth using National Rail data portal credentials.
package hsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trelay/railstream/cache"
	"github.com/trelay/railstream/iox"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/types"
)

// DefaultBaseURL is the production HSP API endpoint.
const DefaultBaseURL = "https://hsp-prod.rockshore.net/api/v1"

// DefaultTimeout is the default per-request timeout. Detail queries for
// long date ranges can be slow upstream.
const DefaultTimeout = 180 * time.Second

// Config configures the HSP client.
type Config struct {
	// BaseURL is the API root (default: production HSP).
	BaseURL string
	// Email and Password are the data portal credentials (required).
	Email    string
	Password string
	// Timeout is the per-request timeout (default 180s).
	Timeout time.Duration
	// Client overrides the HTTP client. The timeout above is ignored when
	// a client is supplied.
	Client *http.Client
	// Cache is the read-through cache. May be nil.
	Cache *cache.Store
	// Collector receives upstream call metrics. May be nil.
	Collector *metrics.Collector
	// Logger receives cache and retry logs. May be nil.
	Logger *log.Logger
}

// Client calls the HSP API.
type Client struct {
	config Config
	client *http.Client
	logger *log.Logger
}

// StatusError is returned for non-2xx HSP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hsp: unexpected status %d", e.Code)
}

// New creates an HSP client from the given config.
// Returns an error if credentials are missing.
func New(cfg Config) (*Client, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("hsp client requires credentials")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}

	return &Client{
		config: cfg,
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// metricsRequest is the serviceMetrics wire body.
type metricsRequest struct {
	FromLoc   string   `json:"from_loc"`
	ToLoc     string   `json:"to_loc"`
	FromTime  string   `json:"from_time"`
	ToTime    string   `json:"to_time"`
	FromDate  string   `json:"from_date"`
	ToDate    string   `json:"to_date"`
	Days      string   `json:"days"`
	TOCFilter []string `json:"toc_filter,omitempty"`
	Tolerance []string `json:"tolerance,omitempty"`
}

// MetricsResponse is the serviceMetrics reply: one entry per scheduled
// service pattern, each carrying the RIDs of its individual runs.
type MetricsResponse struct {
	Services []Service `json:"Services"`
}

// Service is a scheduled service pattern.
type Service struct {
	Attributes ServiceMetricsAttributes `json:"serviceAttributesMetrics"`
}

// ServiceMetricsAttributes describes one service pattern.
type ServiceMetricsAttributes struct {
	OriginLocation      string   `json:"origin_location"`
	DestinationLocation string   `json:"destination_location"`
	GBTTPTD             string   `json:"gbtt_ptd"`
	GBTTPTA             string   `json:"gbtt_pta"`
	TOCCode             string   `json:"toc_code"`
	RIDs                []string `json:"rids"`
}

// detailsRequest is the serviceDetails wire body.
type detailsRequest struct {
	RID string `json:"rid"`
}

// DetailsResponse is the serviceDetails reply for a single RID.
type DetailsResponse struct {
	Attributes ServiceDetailsAttributes `json:"serviceAttributesDetails"`
}

// ServiceDetailsAttributes describes one actual service run.
type ServiceDetailsAttributes struct {
	DateOfService string     `json:"date_of_service"`
	TOCCode       string     `json:"toc_code"`
	RID           string     `json:"rid"`
	Locations     []Location `json:"locations"`
}

// Location is one calling point of a service run. Times are HHMM strings;
// actual times are empty when not recorded (for example after cancellation).
type Location struct {
	Name           string `json:"location"`
	GBTTPTD        string `json:"gbtt_ptd"`
	GBTTPTA        string `json:"gbtt_pta"`
	ActualTD       string `json:"actual_td"`
	ActualTA       string `json:"actual_ta"`
	LateCancReason string `json:"late_canc_reason"`
}

// ServiceMetrics fetches the service patterns for a route and date range,
// read through the cache when configured.
func (c *Client) ServiceMetrics(ctx context.Context, req *types.AnalysisRequest) (*MetricsResponse, error) {
	key := cache.MetricsKey(req.FromLoc, req.ToLoc, req.FromDate, req.ToDate)

	var cached MetricsResponse
	if err := c.config.Cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("cache read failed, fetching upstream", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}

	body := metricsRequest{
		FromLoc:   req.FromLoc,
		ToLoc:     req.ToLoc,
		FromTime:  req.FromTime,
		ToTime:    req.ToTime,
		FromDate:  req.FromDate,
		ToDate:    req.ToDate,
		Days:      req.Days,
		TOCFilter: req.TOCFilter,
		Tolerance: req.Tolerance,
	}

	var resp MetricsResponse
	if err := c.post(ctx, "/serviceMetrics", body, &resp); err != nil {
		return nil, err
	}

	if err := c.config.Cache.Set(ctx, key, resp); err != nil {
		c.logger.Warn("cache write failed", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
	return &resp, nil
}

// ServiceDetails fetches the calling points for one RID, read through the
// cache when configured.
func (c *Client) ServiceDetails(ctx context.Context, rid string) (*DetailsResponse, error) {
	key := cache.DetailsKey(rid)

	var cached DetailsResponse
	if err := c.config.Cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("cache read failed, fetching upstream", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}

	var resp DetailsResponse
	if err := c.post(ctx, "/serviceDetails", detailsRequest{RID: rid}, &resp); err != nil {
		return nil, err
	}

	if err := c.config.Cache.Set(ctx, key, resp); err != nil {
		c.logger.Warn("cache write failed", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
	return &resp, nil
}

// RIDs flattens every run identifier out of a metrics response, preserving
// order and dropping duplicates.
func (r *MetricsResponse) RIDs() []string {
	seen := make(map[string]struct{})
	var rids []string
	for _, svc := range r.Services {
		for _, rid := range svc.Attributes.RIDs {
			if _, dup := seen[rid]; dup {
				continue
			}
			seen[rid] = struct{}{}
			rids = append(rids, rid)
		}
	}
	return rids
}

// CallRecord is the per-call metrics record written to the cache after
// every upstream request, keyed by a generated RID.
type CallRecord struct {
	RID           string    `json:"rid"`
	Path          string    `json:"path"`
	Status        int       `json:"status,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	RequestBytes  int       `json:"request_bytes"`
	ResponseBytes int       `json:"response_bytes"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// post performs a single authenticated JSON POST, decodes the reply, and
// caches a CallRecord describing the call.
func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hsp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("hsp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.Email, c.config.Password)

	started := time.Now()
	record := CallRecord{
		RID:          uuid.NewString(),
		Path:         path,
		RequestBytes: len(payload),
		At:           started.UTC(),
	}

	c.config.Collector.IncUpstreamCall()
	resp, err := c.client.Do(req)
	if err != nil {
		c.config.Collector.IncUpstreamFailure()
		record.DurationMS = time.Since(started).Milliseconds()
		record.Error = err.Error()
		c.recordCall(record)
		return fmt.Errorf("hsp: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	record.DurationMS = time.Since(started).Milliseconds()
	record.Status = resp.StatusCode
	record.ResponseBytes = len(raw)
	if err != nil {
		c.config.Collector.IncUpstreamFailure()
		record.Error = err.Error()
		c.recordCall(record)
		return fmt.Errorf("hsp: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.config.Collector.IncUpstreamFailure()
		record.Error = fmt.Sprintf("status %d", resp.StatusCode)
		c.recordCall(record)
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.config.Collector.IncUpstreamFailure()
		record.Error = err.Error()
		c.recordCall(record)
		return fmt.Errorf("hsp: decode response: %w", err)
	}
	c.recordCall(record)
	return nil
}

// recordCall caches one CallRecord. Write failures are logged and
// otherwise ignored.
func (c *Client) recordCall(record CallRecord) {
	// The request context may already be done; the record should still
	// land.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.config.Cache.Set(ctx, cache.CallKey(record.RID), record); err != nil {
		c.logger.Warn("call record write failed", map[string]any{
			"rid":   record.RID,
			"error": err.Error(),
		})
	}
}
