// Package client is the Go-side consumer of the railstream API.
//
// Analyze opens a streaming session against the analysis server; the
// remaining methods are plain request/response calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trelay/railstream/iox"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/stations"
	"github.com/trelay/railstream/stream"
	"github.com/trelay/railstream/types"
)

// DefaultTimeout bounds the non-streaming API calls. Streaming sessions
// are bounded by their context instead.
const DefaultTimeout = 30 * time.Second

// Config configures a client.
type Config struct {
	// BaseURL is the server's base URL, e.g. "http://localhost:8080"
	// (required).
	BaseURL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout for non-streaming calls
	// (default 30s).
	Timeout time.Duration
	// Logger receives session logs. May be nil.
	Logger *log.Logger
	// Collector receives stream metrics. May be nil.
	Collector *metrics.Collector
}

// Client talks to a railstream server.
type Client struct {
	config Config
	source *stream.Source
	client *http.Client
}

// New creates a client from the given config.
// Returns an error if the base URL is empty.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client requires a base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	source, err := stream.NewSource(stream.SourceConfig{
		URL:     cfg.BaseURL + "/api/v1/journey-analysis-stream",
		Headers: cfg.Headers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		source: source,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Analyze opens a streaming analysis session and starts consuming it.
// Callers subscribe for progress and wait for the outcome; the context
// cancels the session.
func (c *Client) Analyze(ctx context.Context, req *types.AnalysisRequest, sub stream.Subscriber) (*stream.Session, error) {
	session, err := stream.NewSession(stream.SessionConfig{
		Source:    c.source,
		Request:   req,
		Logger:    c.config.Logger,
		Collector: c.config.Collector,
	})
	if err != nil {
		return nil, err
	}
	if sub != nil {
		session.Subscribe(sub)
	}
	session.Start(ctx)
	return session, nil
}

// AnalyzeAndWait runs a full analysis without progress reporting and
// blocks for the outcome.
func (c *Client) AnalyzeAndWait(ctx context.Context, req *types.AnalysisRequest) (types.Outcome, error) {
	session, err := c.Analyze(ctx, req, nil)
	if err != nil {
		return types.Outcome{}, err
	}
	return session.Wait(ctx)
}

// Autocomplete searches the server's station directory.
func (c *Client) Autocomplete(ctx context.Context, query string, limit int) ([]stations.Match, error) {
	params := url.Values{"query": []string{query}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var body struct {
		Matches []stations.Match `json:"matches"`
	}
	if err := c.get(ctx, "/api/v1/stations/autocomplete?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Matches, nil
}

// Health reports the server's health payload.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var body map[string]string
	if err := c.get(ctx, "/health", &body); err != nil {
		return nil, err
	}
	return body, nil
}

// CacheStats fetches the server's cache counters.
func (c *Client) CacheStats(ctx context.Context) (map[string]int64, error) {
	var body map[string]int64
	if err := c.get(ctx, "/api/v1/cache/stats", &body); err != nil {
		return nil, err
	}
	return body, nil
}

// ClearCache removes the server's cached upstream entries and returns the
// number of removed keys.
func (c *Client) ClearCache(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/v1/cache/clear", nil)
	if err != nil {
		return 0, fmt.Errorf("client: build request: %w", err)
	}
	var body struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(req, &body); err != nil {
		return 0, err
	}
	return body.Removed, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, dst)
}

// do performs the request and decodes a JSON response. The body is drained
// on every path so connections can be reused.
func (c *Client) do(req *http.Request, dst any) error {
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("client: %s %s: %s: %w", req.Method, req.URL.Path, apiErr.Error, &stream.StatusError{Code: resp.StatusCode})
		}
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, &stream.StatusError{Code: resp.StatusCode})
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("client: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
