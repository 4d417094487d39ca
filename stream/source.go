package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/trelay/railstream/iox"
	"github.com/trelay/railstream/types"
)

// maxErrorBodyBytes bounds how much of a refusal body is captured for the
// error message.
const maxErrorBodyBytes = 4 << 10

// SourceConfig configures an HTTP chunk source.
type SourceConfig struct {
	// URL is the analysis stream endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Client is the HTTP client to use. Defaults to http.DefaultClient.
	// Streaming requests must not carry a client-level timeout; use the
	// request context for deadlines instead.
	Client *http.Client
}

// Source opens analysis streams over HTTP. The returned body delivers
// chunks of arbitrary size and must be closed by the consumer.
type Source struct {
	config SourceConfig
}

// NewSource creates a Source from the given config.
// Returns an error if the URL is empty.
func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.URL == "" {
		return nil, &Error{Kind: ErrorTransport, Msg: "chunk source requires a URL"}
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Source{config: cfg}, nil
}

// Open submits the analysis request and returns the response body as the
// chunk stream. A refused connection or non-2xx response is a transport
// error; nothing has streamed yet, so there is no partial state to recover.
func (s *Source) Open(ctx context.Context, req *types.AnalysisRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Msg: "marshal analysis request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Msg: "create request", Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range s.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.config.Client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Msg: "connect to stream", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		iox.DrainClose(resp.Body)
		return nil, &Error{
			Kind: ErrorTransport,
			Msg:  fmt.Sprintf("stream refused for %s", s.config.URL),
			Err:  &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))},
		}
	}

	return resp.Body, nil
}
