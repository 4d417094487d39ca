package types

import (
	"fmt"
	"regexp"
	"time"
)

// Day-pattern constants accepted by the upstream HSP API.
const (
	DaysWeekday  = "WEEKDAY"
	DaysSaturday = "SATURDAY"
	DaysSunday   = "SUNDAY"
)

var (
	hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3])[0-5][0-9]$`)
	crsPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// AnalysisRequest describes one journey-analysis query: a station pair, a
// time-of-day window, a date range, and a day pattern. Field names match the
// upstream serviceMetrics payload.
type AnalysisRequest struct {
	// FromLoc and ToLoc are three-letter CRS station codes.
	FromLoc string `json:"from_loc"`
	ToLoc   string `json:"to_loc"`
	// FromTime and ToTime bound the departure window, HHMM.
	FromTime string `json:"from_time"`
	ToTime   string `json:"to_time"`
	// FromDate and ToDate bound the date range, YYYY-MM-DD.
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	// Days is the day pattern: WEEKDAY, SATURDAY, or SUNDAY.
	Days string `json:"days"`
	// TOCFilter optionally restricts results to specific operators.
	TOCFilter []string `json:"toc_filter,omitempty"`
	// Tolerance optionally widens the upstream delay tolerance bands.
	Tolerance []string `json:"tolerance,omitempty"`
}

// Validate checks the request fields against the upstream API's formats.
func (r *AnalysisRequest) Validate() error {
	if !crsPattern.MatchString(r.FromLoc) {
		return fmt.Errorf("from_loc %q is not a three-letter CRS code", r.FromLoc)
	}
	if !crsPattern.MatchString(r.ToLoc) {
		return fmt.Errorf("to_loc %q is not a three-letter CRS code", r.ToLoc)
	}
	if r.FromLoc == r.ToLoc {
		return fmt.Errorf("from_loc and to_loc are both %q", r.FromLoc)
	}
	if !hhmmPattern.MatchString(r.FromTime) {
		return fmt.Errorf("from_time %q is not HHMM", r.FromTime)
	}
	if !hhmmPattern.MatchString(r.ToTime) {
		return fmt.Errorf("to_time %q is not HHMM", r.ToTime)
	}
	fromDate, err := time.Parse("2006-01-02", r.FromDate)
	if err != nil {
		return fmt.Errorf("from_date %q is not YYYY-MM-DD", r.FromDate)
	}
	toDate, err := time.Parse("2006-01-02", r.ToDate)
	if err != nil {
		return fmt.Errorf("to_date %q is not YYYY-MM-DD", r.ToDate)
	}
	if toDate.Before(fromDate) {
		return fmt.Errorf("to_date %s precedes from_date %s", r.ToDate, r.FromDate)
	}
	switch r.Days {
	case DaysWeekday, DaysSaturday, DaysSunday:
	default:
		return fmt.Errorf("days %q must be %s, %s, or %s", r.Days, DaysWeekday, DaysSaturday, DaysSunday)
	}
	return nil
}

// Route returns the "FROM->TO" route label used for cache and history keys.
func (r *AnalysisRequest) Route() string {
	return r.FromLoc + "->" + r.ToLoc
}
