package types

import (
	"strings"
	"testing"
)

func validRequest() AnalysisRequest {
	return AnalysisRequest{
		FromLoc:  "BTN",
		ToLoc:    "VIC",
		FromTime: "0700",
		ToTime:   "0800",
		FromDate: "2024-01-01",
		ToDate:   "2024-01-31",
		Days:     DaysWeekday,
	}
}

func TestAnalysisRequest_Validate(t *testing.T) {
	valid := validRequest()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*AnalysisRequest)
		wantErr string
	}{
		{"bad from_loc", func(r *AnalysisRequest) { r.FromLoc = "bt" }, "CRS"},
		{"lowercase to_loc", func(r *AnalysisRequest) { r.ToLoc = "vic" }, "CRS"},
		{"same stations", func(r *AnalysisRequest) { r.ToLoc = "BTN" }, "both"},
		{"bad from_time", func(r *AnalysisRequest) { r.FromTime = "7am" }, "HHMM"},
		{"hour out of range", func(r *AnalysisRequest) { r.ToTime = "2500" }, "HHMM"},
		{"bad from_date", func(r *AnalysisRequest) { r.FromDate = "01/01/2024" }, "YYYY-MM-DD"},
		{"inverted dates", func(r *AnalysisRequest) { r.ToDate = "2023-01-01" }, "precedes"},
		{"bad days", func(r *AnalysisRequest) { r.Days = "MONDAY" }, "days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestAnalysisRequest_Route(t *testing.T) {
	r := validRequest()
	if got := r.Route(); got != "BTN->VIC" {
		t.Errorf("Route() = %q, want BTN->VIC", got)
	}
}
