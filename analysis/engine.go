package analysis

import (
	"context"
	"fmt"

	"github.com/trelay/railstream/hsp"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/stations"
	"github.com/trelay/railstream/types"
)

// EmitFunc receives progress events as the run advances. It is called from
// the run's goroutine; implementations decide how to fan the events out.
type EmitFunc func(event types.StreamEvent)

// Engine runs journey analyses against the HSP API.
type Engine struct {
	hsp      *hsp.Client
	stations *stations.Directory
	logger   *log.Logger
}

// NewEngine creates an analysis engine. A nil directory falls back to the
// built-in station list.
func NewEngine(client *hsp.Client, directory *stations.Directory, logger *log.Logger) *Engine {
	if directory == nil {
		directory = stations.Default()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		hsp:      client,
		stations: directory,
		logger:   logger,
	}
}

func progressEvent(step, message string) types.StreamEvent {
	return types.StreamEvent{
		Type:    types.EventProgress,
		Step:    step,
		Message: message,
	}
}

// Run executes a full journey analysis, emitting progress along the way.
// Progress during journey processing is emitted roughly every five percent
// and always for the final journey.
func (e *Engine) Run(ctx context.Context, req *types.AnalysisRequest, emit EmitFunc) (*types.AnalysisResult, error) {
	if emit == nil {
		emit = func(types.StreamEvent) {}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	emit(progressEvent("initializing", "Starting journey analysis..."))
	emit(progressEvent("fetching_metrics", "Fetching service metrics..."))

	metricsResp, err := e.hsp.ServiceMetrics(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch service metrics: %w", err)
	}
	if len(metricsResp.Services) == 0 {
		return nil, fmt.Errorf("no service data found for the specified route and date range")
	}

	emit(progressEvent("extracting_rids",
		fmt.Sprintf("Found %d service patterns to analyze", len(metricsResp.Services))))

	rids := metricsResp.RIDs()
	total := len(rids)
	emit(types.StreamEvent{
		Type:    types.EventProgress,
		Step:    "processing_journeys",
		Message: fmt.Sprintf("Processing %d individual journeys...", total),
		Current: 0,
		Total:   total,
	})

	var (
		departureDelays []int
		arrivalDelays   []int
		depCancelled    int
		arrCancelled    int
		depReasons      []string
		arrReasons      []string
		processed       int
	)

	interval := total / 20
	if interval < 1 {
		interval = 1
	}

	for idx, rid := range rids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		details, err := e.hsp.ServiceDetails(ctx, rid)
		if err != nil {
			e.logger.Warn("skipping journey", map[string]any{
				"rid":   rid,
				"error": err.Error(),
			})
		} else if len(details.Attributes.Locations) > 0 {
			processed++
			jd := StationDelays(details.Attributes.Locations, req.FromLoc, req.ToLoc)

			if jd.Departure != nil {
				departureDelays = append(departureDelays, *jd.Departure)
			} else {
				depCancelled++
				depReasons = append(depReasons, reasonOrDefault(jd.DepartureCancel))
			}
			if jd.Arrival != nil {
				arrivalDelays = append(arrivalDelays, *jd.Arrival)
			} else {
				arrCancelled++
				arrReasons = append(arrReasons, reasonOrDefault(jd.ArrivalCancel))
			}
		}

		done := idx + 1
		if done%interval == 0 || done == total {
			pct := float64(done) / float64(total) * 100
			emit(types.StreamEvent{
				Type:       types.EventProgress,
				Step:       "processing_journeys",
				Message:    fmt.Sprintf("Processed %d/%d journeys (%.0f%%)", done, total, pct),
				Current:    done,
				Total:      total,
				Percentage: pct,
			})
		}
	}

	emit(progressEvent("generating_analysis", "Generating analysis results..."))

	departure := BuildHistogram(departureDelays, depCancelled)
	arrival := BuildHistogram(arrivalDelays, arrCancelled)

	result := &types.AnalysisResult{
		Route: fmt.Sprintf("%s → %s",
			e.stations.Name(req.FromLoc), e.stations.Name(req.ToLoc)),
		RouteCodes:       fmt.Sprintf("%s → %s", req.FromLoc, req.ToLoc),
		DateRange:        fmt.Sprintf("%s to %s", req.FromDate, req.ToDate),
		TimeRange:        fmt.Sprintf("%s to %s", req.FromTime, req.ToTime),
		Days:             req.Days,
		TotalServices:    len(metricsResp.Services),
		AnalyzedServices: processed,
		RIDsProcessed:    total,
		DepartureDelays: types.DelaySummary{
			Histogram:     departure.Histogram,
			AvgDelay:      departure.Stats.AvgDelay,
			OnTimeCount:   departure.Stats.OnTimeCount,
			ExtremeDelays: departure.Stats.ExtremeDelays,
		},
		ArrivalDelays: types.DelaySummary{
			Histogram:     arrival.Histogram,
			AvgDelay:      arrival.Stats.AvgDelay,
			OnTimeCount:   arrival.Stats.OnTimeCount,
			ExtremeDelays: arrival.Stats.ExtremeDelays,
		},
		DeparturePerformance: types.DirectionPerformance{
			DelayHistogram:      departure,
			CancelledCount:      depCancelled,
			CancellationReasons: depReasons,
			Reliability:         reliability(len(departureDelays), depCancelled),
		},
		ArrivalPerformance: types.DirectionPerformance{
			DelayHistogram:      arrival,
			CancelledCount:      arrCancelled,
			CancellationReasons: arrReasons,
			Reliability:         reliability(len(arrivalDelays), arrCancelled),
		},
	}

	e.logger.Info("analysis completed", map[string]any{
		"route":             result.RouteCodes,
		"total_services":    result.TotalServices,
		"analyzed_services": result.AnalyzedServices,
		"rids_processed":    result.RIDsProcessed,
		"avg_dep_delay":     departure.Stats.AvgDelay,
		"avg_arr_delay":     arrival.Stats.AvgDelay,
	})
	return result, nil
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "No data available"
	}
	return reason
}

// reliability is the share of services that actually ran.
func reliability(ran, cancelled int) float64 {
	return percentage(ran, ran+cancelled)
}
