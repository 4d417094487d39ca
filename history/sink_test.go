package history

import (
	"context"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/types"
)

func historyRequest() *types.AnalysisRequest {
	return &types.AnalysisRequest{
		FromLoc:  "BTN",
		ToLoc:    "VIC",
		FromTime: "0700",
		ToTime:   "0900",
		FromDate: "2025-01-01",
		ToDate:   "2025-01-31",
		Days:     "WEEKDAY",
	}
}

func TestSink_AppendSuccess(t *testing.T) {
	collector := metrics.NewCollector("BTN->VIC", "sess-001")
	sink, err := NewSinkWithFactory(Config{Collector: collector}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewSinkWithFactory failed: %v", err)
	}

	outcome := types.Outcome{
		Status: types.OutcomeSuccess,
		Result: map[string]any{"route": "Brighton → London Victoria", "total_services": float64(87)},
	}
	if err := sink.Append(context.Background(), "sess-001", historyRequest(), outcome); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if s := collector.Snapshot(); s.HistoryWriteSuccess != 1 || s.HistoryWriteFailure != 0 {
		t.Errorf("write counters = %d/%d, want 1/0", s.HistoryWriteSuccess, s.HistoryWriteFailure)
	}
}

func TestSink_AppendFailureOutcome(t *testing.T) {
	sink, err := NewSinkWithFactory(Config{}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewSinkWithFactory failed: %v", err)
	}

	outcome := types.Outcome{
		Status:  types.OutcomeFailure,
		Message: "stream ended without a result",
	}
	if err := sink.Append(context.Background(), "sess-002", historyRequest(), outcome); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestSink_AppendCancelledOutcome(t *testing.T) {
	sink, err := NewSinkWithFactory(Config{}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewSinkWithFactory failed: %v", err)
	}

	outcome := types.Outcome{
		Status:  types.OutcomeCancelled,
		Message: "analysis cancelled",
	}
	if err := sink.Append(context.Background(), "sess-003", historyRequest(), outcome); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestSink_NilReceiverSafety(t *testing.T) {
	var sink *Sink
	if err := sink.Append(context.Background(), "sess-004", historyRequest(), types.Outcome{}); err != nil {
		t.Errorf("nil Append = %v, want nil", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path       string
		wantBucket string
		wantPrefix string
	}{
		{"my-bucket", "my-bucket", ""},
		{"my-bucket/analyses", "my-bucket", "analyses"},
		{"my-bucket/a/b/c", "my-bucket", "a/b/c"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.wantBucket || prefix != tt.wantPrefix {
			t.Errorf("ParseS3Path(%q) = %q, %q, want %q, %q",
				tt.path, bucket, prefix, tt.wantBucket, tt.wantPrefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	cfg := &S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should require a bucket")
	}
	cfg.Bucket = "my-bucket"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestRouteKey(t *testing.T) {
	req := historyRequest()
	req.FromLoc = "btn"
	if got := routeKey(req); got != "BTN-VIC" {
		t.Errorf("routeKey = %q, want BTN-VIC", got)
	}
}
