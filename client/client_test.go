package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/trelay/railstream/analysis"
	"github.com/trelay/railstream/cache"
	"github.com/trelay/railstream/hsp"
	"github.com/trelay/railstream/server"
	"github.com/trelay/railstream/stream"
	"github.com/trelay/railstream/types"
)

func analysisRequest() *types.AnalysisRequest {
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

// newTestStack stands up an upstream fake, the API server, and a client
// pointed at it.
func newTestStack(t *testing.T, cfg server.Config) *Client {
	t.Helper()

	if cfg.Engine == nil {
		mux := http.NewServeMux()
		mux.HandleFunc("/serviceMetrics", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(hsp.MetricsResponse{
				Services: []hsp.Service{
					{Attributes: hsp.ServiceMetricsAttributes{RIDs: []string{"RID1"}}},
				},
			})
		})
		mux.HandleFunc("/serviceDetails", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(hsp.DetailsResponse{
				Attributes: hsp.ServiceDetailsAttributes{RID: "RID1", Locations: []hsp.Location{
					{Name: "BTN", GBTTPTD: "0712", ActualTD: "0715"},
					{Name: "VIC", GBTTPTA: "0823", ActualTA: "0823"},
				}},
			})
		})
		upstream := httptest.NewServer(mux)
		t.Cleanup(upstream.Close)

		hspClient, err := hsp.New(hsp.Config{BaseURL: upstream.URL, Email: "a@example.com", Password: "p"})
		if err != nil {
			t.Fatalf("hsp.New error = %v", err)
		}
		cfg.Engine = analysis.NewEngine(hspClient, nil, nil)
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New error = %v", err)
	}
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)

	c, err := New(Config{BaseURL: httpSrv.URL})
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New should reject an empty base URL")
	}
}

func TestClient_Health(t *testing.T) {
	c := newTestStack(t, server.Config{})

	body, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health error = %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestClient_AnalyzeAndWait(t *testing.T) {
	c := newTestStack(t, server.Config{})

	outcome, err := c.AnalyzeAndWait(context.Background(), analysisRequest())
	if err != nil {
		t.Fatalf("AnalyzeAndWait error = %v", err)
	}
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if outcome.Result["route"] != "Brighton → London Victoria" {
		t.Errorf("route = %v", outcome.Result["route"])
	}
}

func TestClient_AnalyzeDeliversProgress(t *testing.T) {
	c := newTestStack(t, server.Config{})

	var mu sync.Mutex
	var progress []types.ProgressSnapshot
	sub := stream.SubscriberFuncs{
		Progress: func(p types.ProgressSnapshot) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	}

	session, err := c.Analyze(context.Background(), analysisRequest(), sub)
	if err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	outcome, err := session.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait error = %v", err)
	}
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("outcome = %+v, want success", outcome)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 {
		t.Fatal("no progress delivered")
	}
	last := progress[len(progress)-1]
	if last.Step != "generating_analysis" {
		t.Errorf("last step = %q, want generating_analysis", last.Step)
	}
}

func TestClient_AnalyzeInvalidRequest(t *testing.T) {
	c := newTestStack(t, server.Config{})

	req := analysisRequest()
	req.Days = "EVERYDAY"
	if _, err := c.Analyze(context.Background(), req, nil); err == nil {
		t.Fatal("Analyze should reject an invalid request")
	}
}

func TestClient_Autocomplete(t *testing.T) {
	c := newTestStack(t, server.Config{})

	matches, err := c.Autocomplete(context.Background(), "VIC", 5)
	if err != nil {
		t.Fatalf("Autocomplete error = %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if matches[0].CRS != "VIC" {
		t.Errorf("first match = %+v, want VIC", matches[0])
	}
}

func TestClient_CacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.New(cache.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("cache.New error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Set(context.Background(), cache.DetailsKey("RID9"), "cached"); err != nil {
		t.Fatalf("Set error = %v", err)
	}

	c := newTestStack(t, server.Config{Cache: store})

	stats, err := c.CacheStats(context.Background())
	if err != nil {
		t.Fatalf("CacheStats error = %v", err)
	}
	if stats["entries"] != 1 {
		t.Errorf("entries = %d, want 1", stats["entries"])
	}

	removed, err := c.ClearCache(context.Background())
	if err != nil {
		t.Fatalf("ClearCache error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestClient_CacheStatsWithoutCache(t *testing.T) {
	c := newTestStack(t, server.Config{})

	_, err := c.CacheStats(context.Background())
	if err == nil {
		t.Fatal("CacheStats should fail when the server has no cache")
	}
	var statusErr *stream.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 404 {
		t.Errorf("error = %v, want status 404", err)
	}
}
