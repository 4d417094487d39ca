// Package history persists settled analysis sessions to partitioned
// storage.
//
// Every settlement, whatever its status, is appended as one JSONL record
// under a Hive layout keyed by route, day, and session id, so past analyses
// can be listed and compared per route without a database.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/types"
)

// DefaultDataset is the dataset name for analysis history.
const DefaultDataset = "railstream"

// Config configures the history sink.
type Config struct {
	// Dataset is the lode dataset name (default "railstream").
	Dataset string
	// Logger receives write logs. May be nil.
	Logger *log.Logger
	// Collector receives write metrics. May be nil.
	Collector *metrics.Collector
}

// Sink appends settled sessions to partitioned storage.
type Sink struct {
	dataset   lode.Dataset
	config    Config
	logger    *log.Logger
	collector *metrics.Collector
}

// NewFSSink creates a sink backed by filesystem storage rooted at root.
func NewFSSink(cfg Config, root string) (*Sink, error) {
	return NewSinkWithFactory(cfg, lode.NewFSFactory(root))
}

// NewSinkWithFactory creates a sink with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewSinkWithFactory(cfg Config, factory lode.StoreFactory) (*Sink, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}

	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("route", "day", "session_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, err
	}

	return &Sink{
		dataset:   ds,
		config:    cfg,
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}, nil
}

// Append records one settled session. The record carries the request, the
// terminal status, and the result payload when the analysis succeeded.
func (s *Sink) Append(ctx context.Context, sessionID string, req *types.AnalysisRequest, outcome types.Outcome) error {
	if s == nil {
		return nil
	}

	record := map[string]any{
		"route":      routeKey(req),
		"day":        time.Now().UTC().Format("2006-01-02"),
		"session_id": sessionID,
		"from_loc":   req.FromLoc,
		"to_loc":     req.ToLoc,
		"from_date":  req.FromDate,
		"to_date":    req.ToDate,
		"from_time":  req.FromTime,
		"to_time":    req.ToTime,
		"days":       req.Days,
		"status":     string(outcome.Status),
		"settled_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if outcome.Message != "" {
		record["message"] = outcome.Message
	}
	if outcome.Result != nil {
		record["result"] = outcome.Result
	}

	if _, err := s.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		s.collector.IncHistoryWriteFailure()
		s.logger.Error("history write failed", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("history: append session %s: %w", sessionID, err)
	}

	s.collector.IncHistoryWriteSuccess()
	s.logger.Debug("history record written", map[string]any{
		"session_id": sessionID,
		"route":      record["route"],
		"status":     record["status"],
	})
	return nil
}

// Close releases sink resources.
func (s *Sink) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// routeKey forms a partition-safe route label.
func routeKey(req *types.AnalysisRequest) string {
	return strings.ToUpper(req.FromLoc) + "-" + strings.ToUpper(req.ToLoc)
}
