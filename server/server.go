// Package server exposes the journey-analysis HTTP API.
//
// The streaming endpoint produces the same line protocol the stream
// package consumes: one "data: {json}" record per event, progress frames
// followed by exactly one terminal complete or error frame.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trelay/railstream/analysis"
	"github.com/trelay/railstream/cache"
	"github.com/trelay/railstream/history"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/stations"
	"github.com/trelay/railstream/types"
)

// Config wires a server's collaborators. Engine is required; everything
// else degrades gracefully when absent.
type Config struct {
	// Engine runs the analyses.
	Engine *analysis.Engine
	// Stations backs the autocomplete endpoint. Nil falls back to the
	// built-in directory.
	Stations *stations.Directory
	// Cache, when set, enables the cache admin endpoints.
	Cache *cache.Store
	// History, when set, records every settled analysis.
	History *history.Sink
	// Logger receives request logs. May be nil.
	Logger *log.Logger
	// Collector receives server metrics. May be nil.
	Collector *metrics.Collector
}

// Server handles the analysis API routes.
type Server struct {
	engine    *analysis.Engine
	stations  *stations.Directory
	cache     *cache.Store
	history   *history.Sink
	logger    *log.Logger
	collector *metrics.Collector
	router    chi.Router
}

// New creates a server and mounts its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if cfg.Stations == nil {
		cfg.Stations = stations.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	s := &Server{
		engine:    cfg.Engine,
		stations:  cfg.Stations,
		cache:     cfg.Cache,
		history:   cfg.History,
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/journey-analysis", s.journeyAnalysis)
		api.Post("/journey-analysis-stream", s.journeyAnalysisStream)
		api.Get("/stations/autocomplete", s.autocomplete)
		api.Get("/cache/stats", s.cacheStats)
		api.Post("/cache/clear", s.cacheClear)
	})
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": types.Version,
	})
}

// journeyAnalysis runs a full analysis and returns the result in one JSON
// response. Progress events are dropped.
func (s *Server) journeyAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	started := time.Now()
	result, err := s.engine.Run(r.Context(), req, nil)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Warn("analysis failed", map[string]any{
			"route": req.Route(),
			"error": err.Error(),
		})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.logger.Info("analysis completed", map[string]any{
		"route":    req.Route(),
		"duration": time.Since(started).String(),
	})
	writeJSON(w, http.StatusOK, result)
}

// journeyAnalysisStream runs an analysis while streaming progress events
// to the client, ending with a single terminal frame. Once the stream has
// started, failures are reported in-band as error events rather than as
// HTTP status codes.
func (s *Server) journeyAnalysisStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sessionID := uuid.NewString()
	logger := s.logger.With(map[string]any{
		"session_id": sessionID,
		"route":      req.Route(),
	})
	logger.Info("stream started", nil)
	s.collector.IncSessionStarted()

	emit := func(event types.StreamEvent) {
		s.writeFrame(w, flusher, event)
	}
	result, err := s.engine.Run(r.Context(), req, emit)

	var outcome types.Outcome
	switch {
	case err != nil && r.Context().Err() != nil:
		// Client went away; nothing left to write.
		outcome = types.Outcome{Status: types.OutcomeCancelled}
		s.collector.IncSessionCancelled()
		logger.Info("stream abandoned by client", nil)
	case err != nil:
		outcome = types.Outcome{Status: types.OutcomeFailure, Message: err.Error()}
		s.collector.IncSessionFailed()
		s.writeFrame(w, flusher, types.StreamEvent{
			Type:    types.EventError,
			Message: err.Error(),
		})
		logger.Warn("stream settled with error", map[string]any{"error": err.Error()})
	default:
		data, convErr := resultData(result)
		if convErr != nil {
			outcome = types.Outcome{Status: types.OutcomeFailure, Message: convErr.Error()}
			s.writeFrame(w, flusher, types.StreamEvent{
				Type:    types.EventError,
				Message: "failed to encode analysis result",
			})
			logger.Error("result encoding failed", map[string]any{"error": convErr.Error()})
			break
		}
		outcome = types.Outcome{Status: types.OutcomeSuccess, Result: data}
		s.collector.IncSessionSucceeded()
		s.writeFrame(w, flusher, types.StreamEvent{
			Type: types.EventComplete,
			Data: data,
		})
		logger.Info("stream settled", nil)
	}

	// The request context may already be done when the client left, so the
	// history write gets its own.
	if appendErr := s.history.Append(context.Background(), sessionID, req, outcome); appendErr != nil {
		logger.Warn("history append failed", map[string]any{"error": appendErr.Error()})
	}
}

// autocomplete serves station search. Query parameter "query" is the
// search term; "limit" optionally caps the result count.
func (s *Server) autocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	limit := stations.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit %q is not a positive integer", raw))
			return
		}
		limit = parsed
	}
	matches := s.stations.Search(query, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"matches": matches,
		"count":   len(matches),
	})
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is not configured")
		return
	}
	stats := s.cache.Stats(r.Context())
	s.collector.AbsorbCacheStats(stats.Hits, stats.Misses)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) cacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is not configured")
		return
	}
	removed, err := s.cache.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("cache cleared", map[string]any{"removed": removed})
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*types.AnalysisRequest, bool) {
	var req types.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return nil, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

// writeFrame writes one protocol record and flushes it so consumers see
// events as they happen rather than in one buffered burst.
func (s *Server) writeFrame(w http.ResponseWriter, flusher http.Flusher, event types.StreamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("event encoding failed", map[string]any{"error": err.Error()})
		return
	}
	fmt.Fprintf(w, "%s %s\n\n", types.EventPrefix, payload)
	flusher.Flush()
}

// resultData converts the result into the opaque payload carried by a
// complete event.
func resultData(result *types.AnalysisResult) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encode errors after the header is written are unrecoverable.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
