package types

// DelayStats summarizes one direction (departure or arrival) of a route's
// delay distribution. "On time" is within one minute of schedule.
type DelayStats struct {
	// AvgDelay is the mean delay in minutes, one decimal place.
	AvgDelay float64 `json:"avg_delay"`
	// EarlyCount counts services more than one minute early.
	EarlyCount int `json:"early_count"`
	// OnTimeCount counts services within one minute of schedule.
	OnTimeCount int `json:"on_time_count"`
	// LateCount counts services more than one minute late.
	LateCount int `json:"late_count"`
	// ExtremeDelays counts services more than 30 minutes late.
	ExtremeDelays int `json:"extreme_delays"`
	// CancelledCount counts services with no recorded actual time.
	CancelledCount int `json:"cancelled_count"`
	// TotalCount is delays plus cancellations.
	TotalCount int `json:"total_count"`

	OnTimePercentage    float64 `json:"on_time_percentage"`
	EarlyPercentage     float64 `json:"early_percentage"`
	LatePercentage      float64 `json:"late_percentage"`
	CancelledPercentage float64 `json:"cancelled_percentage"`
}

// DelayHistogram is the named-bucket distribution for one direction.
// Histogram values are percentages of TotalCount; RawCounts are the
// underlying tallies.
type DelayHistogram struct {
	Histogram map[string]float64 `json:"histogram"`
	Stats     DelayStats         `json:"stats"`
	RawCounts map[string]int     `json:"raw_counts"`
}

// DirectionPerformance extends a histogram with cancellation detail and a
// reliability percentage (share of services that actually ran).
type DirectionPerformance struct {
	DelayHistogram

	CancelledCount      int      `json:"cancelled_count"`
	CancellationReasons []string `json:"cancellation_reasons"`
	Reliability         float64  `json:"reliability"`
}

// DelaySummary is the compact per-direction view kept for chart rendering.
type DelaySummary struct {
	Histogram     map[string]float64 `json:"histogram"`
	AvgDelay      float64            `json:"avg_delay"`
	OnTimeCount   int                `json:"on_time_count"`
	ExtremeDelays int                `json:"extreme_delays"`
}

// AnalysisResult is the complete journey-analysis payload carried by a
// terminal complete event.
type AnalysisResult struct {
	// Route is the human-readable "Name -> Name" label; RouteCodes keeps the
	// CRS codes.
	Route      string `json:"route"`
	RouteCodes string `json:"route_codes"`
	DateRange  string `json:"date_range"`
	TimeRange  string `json:"time_range"`
	Days       string `json:"days"`

	// TotalServices counts upstream service patterns; AnalyzedServices the
	// journeys with usable detail; RIDsProcessed the RIDs walked.
	TotalServices    int `json:"total_services"`
	AnalyzedServices int `json:"analyzed_services"`
	RIDsProcessed    int `json:"rids_processed"`

	DepartureDelays DelaySummary `json:"departure_delays"`
	ArrivalDelays   DelaySummary `json:"arrival_delays"`

	DeparturePerformance DirectionPerformance `json:"departure_performance"`
	ArrivalPerformance   DirectionPerformance `json:"arrival_performance"`
}
