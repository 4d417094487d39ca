package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/types"
)

// scriptedSource replays a fixed sequence of chunks, then EOF or a scripted
// read error.
type scriptedSource struct {
	chunks  [][]byte
	readErr error
	openErr error
}

func (s *scriptedSource) Open(ctx context.Context, req *types.AnalysisRequest) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &scriptedBody{chunks: s.chunks, readErr: s.readErr}, nil
}

type scriptedBody struct {
	chunks  [][]byte
	i       int
	readErr error
}

func (b *scriptedBody) Read(p []byte) (int, error) {
	if b.i >= len(b.chunks) {
		if b.readErr != nil {
			return 0, b.readErr
		}
		return 0, io.EOF
	}
	c := b.chunks[b.i]
	b.i++
	return copy(p, c), nil
}

func (b *scriptedBody) Close() error { return nil }

// blockingSource produces a body whose Read parks until the request context
// is cancelled, mimicking a stalled HTTP response body.
type blockingSource struct {
	opened chan struct{}
}

func (s *blockingSource) Open(ctx context.Context, req *types.AnalysisRequest) (io.ReadCloser, error) {
	close(s.opened)
	return &blockingBody{ctx: ctx}, nil
}

type blockingBody struct {
	ctx context.Context
}

func (b *blockingBody) Read(p []byte) (int, error) {
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *blockingBody) Close() error { return nil }

// recorder captures subscriber notifications in arrival order.
type recorder struct {
	mu       sync.Mutex
	progress []types.ProgressSnapshot
	outcomes []types.Outcome
}

func (r *recorder) OnProgress(snapshot types.ProgressSnapshot) {
	r.mu.Lock()
	r.progress = append(r.progress, snapshot)
	r.mu.Unlock()
}

func (r *recorder) OnSettled(outcome types.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]types.ProgressSnapshot, []types.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	progress := make([]types.ProgressSnapshot, len(r.progress))
	copy(progress, r.progress)
	outcomes := make([]types.Outcome, len(r.outcomes))
	copy(outcomes, r.outcomes)
	return progress, outcomes
}

func testRequest() *types.AnalysisRequest {
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

func progressLine(step string, current, total int) string {
	return fmt.Sprintf(`data: {"type":"progress","step":%q,"message":"step","current":%d,"total":%d}`+"\n", step, current, total)
}

// runSession consumes src to settlement and returns the recorded
// notifications plus the final outcome.
func runSession(t *testing.T, src ChunkSource, collector *metrics.Collector) ([]types.ProgressSnapshot, types.Outcome) {
	t.Helper()

	session, err := NewSession(SessionConfig{
		Source:    src,
		Request:   testRequest(),
		Collector: collector,
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}

	rec := &recorder{}
	session.Subscribe(rec)
	session.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := session.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	progress, outcomes := rec.snapshot()
	if len(outcomes) != 1 {
		t.Fatalf("got %d settlement notifications, want exactly 1", len(outcomes))
	}
	if !reflect.DeepEqual(outcomes[0], outcome) {
		t.Errorf("notified outcome %+v != waited outcome %+v", outcomes[0], outcome)
	}
	return progress, outcome
}

func TestSession_HappyPath(t *testing.T) {
	payload := progressLine("initializing", 0, 0) +
		progressLine("fetching_metrics", 0, 0) +
		progressLine("processing_journeys", 50, 100) +
		progressLine("processing_journeys", 100, 100) +
		`data: {"type":"complete","data":{"route":"BTN->VIC","total_services":87}}` + "\n"

	collector := metrics.NewCollector("BTN->VIC", "")
	progress, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, collector)

	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("Status = %q, want success", outcome.Status)
	}
	if outcome.Result["route"] != "BTN->VIC" {
		t.Errorf("Result[route] = %v, want BTN->VIC", outcome.Result["route"])
	}
	if len(progress) != 4 {
		t.Fatalf("got %d progress snapshots, want 4", len(progress))
	}
	wantSteps := []string{"initializing", "fetching_metrics", "processing_journeys", "processing_journeys"}
	for i, want := range wantSteps {
		if progress[i].Step != want {
			t.Errorf("progress[%d].Step = %q, want %q", i, progress[i].Step, want)
		}
	}
	if got := progress[2].Percent(); got != 50 {
		t.Errorf("progress[2].Percent() = %v, want 50", got)
	}

	s := collector.Snapshot()
	if s.SessionsSucceeded != 1 {
		t.Errorf("SessionsSucceeded = %d, want 1", s.SessionsSucceeded)
	}
	if s.EventsByType["progress"] != 4 {
		t.Errorf("EventsByType[progress] = %d, want 4", s.EventsByType["progress"])
	}
}

func TestSession_ChunkBoundaryInvariance(t *testing.T) {
	// The payload includes a multi-byte character so splits can land inside
	// a character as well as inside a record.
	payload := []byte(`data: {"type":"progress","step":"processing_journeys","message":"voie dégagée ✓","current":1,"total":2}` + "\n" +
		"data: {\"type\":\"progress\",\"step\":\"processing_journeys\",\"message\":\"café\",\"current\":2,\"total\":2}\n" +
		`data: {"type":"complete","data":{"ok":true}}` + "\n")

	baseProgress, baseOutcome := runSession(t, &scriptedSource{chunks: [][]byte{payload}}, nil)

	for cut := 1; cut < len(payload); cut++ {
		src := &scriptedSource{chunks: [][]byte{payload[:cut], payload[cut:]}}
		progress, outcome := runSession(t, src, nil)
		if !reflect.DeepEqual(progress, baseProgress) {
			t.Fatalf("cut at %d: progress %+v, want %+v", cut, progress, baseProgress)
		}
		if !reflect.DeepEqual(outcome, baseOutcome) {
			t.Fatalf("cut at %d: outcome %+v, want %+v", cut, outcome, baseOutcome)
		}
	}
}

func TestSession_OneBytePerChunk(t *testing.T) {
	payload := []byte(progressLine("fetching_metrics", 1, 3) +
		`data: {"type":"complete","data":{"ok":true}}` + "\n")
	chunks := make([][]byte, len(payload))
	for i, b := range payload {
		chunks[i] = []byte{b}
	}

	progress, outcome := runSession(t, &scriptedSource{chunks: chunks}, nil)
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("Status = %q, want success", outcome.Status)
	}
	if len(progress) != 1 || progress[0].Step != "fetching_metrics" {
		t.Errorf("progress = %+v, want one fetching_metrics snapshot", progress)
	}
}

func TestSession_ErrorEventSettlesFailure(t *testing.T) {
	payload := progressLine("fetching_metrics", 0, 0) +
		`data: {"type":"error","message":"no services found for route"}` + "\n"

	collector := metrics.NewCollector("", "")
	_, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, collector)

	if outcome.Status != types.OutcomeFailure {
		t.Fatalf("Status = %q, want failure", outcome.Status)
	}
	if outcome.Message != "no services found for route" {
		t.Errorf("Message = %q", outcome.Message)
	}
	if s := collector.Snapshot(); s.SessionsFailed != 1 {
		t.Errorf("SessionsFailed = %d, want 1", s.SessionsFailed)
	}
}

func TestSession_StreamEndsWithoutTerminal(t *testing.T) {
	payload := progressLine("processing_journeys", 10, 100)
	_, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, nil)

	if outcome.Status != types.OutcomeFailure {
		t.Fatalf("Status = %q, want failure", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "ended without a result") {
		t.Errorf("Message = %q, want an incomplete-stream failure", outcome.Message)
	}
}

func TestSession_MalformedFramesSkipped(t *testing.T) {
	payload := "data: {broken\n" +
		progressLine("processing_journeys", 1, 2) +
		"data: also broken\n" +
		`data: {"type":"complete","data":{"ok":true}}` + "\n"

	collector := metrics.NewCollector("", "")
	progress, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, collector)

	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("Status = %q, want success despite malformed frames", outcome.Status)
	}
	if len(progress) != 1 {
		t.Errorf("got %d progress snapshots, want 1", len(progress))
	}
	if s := collector.Snapshot(); s.MalformedFrames != 2 {
		t.Errorf("MalformedFrames = %d, want 2", s.MalformedFrames)
	}
}

func TestSession_EventsAfterTerminalIgnored(t *testing.T) {
	payload := `data: {"type":"complete","data":{"ok":true}}` + "\n" +
		progressLine("processing_journeys", 99, 100) +
		`data: {"type":"error","message":"too late"}` + "\n"

	progress, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, nil)
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("Status = %q, want success from the first terminal", outcome.Status)
	}
	if len(progress) != 0 {
		t.Errorf("got %d progress snapshots after settlement, want 0", len(progress))
	}
}

func TestSession_UnterminatedFinalTerminal(t *testing.T) {
	// Terminal event arrives without a trailing newline before EOF.
	payload := progressLine("generating_analysis", 0, 0) +
		`data: {"type":"complete","data":{"ok":true}}`

	_, outcome := runSession(t, &scriptedSource{chunks: [][]byte{[]byte(payload)}}, nil)
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("Status = %q, want success from unterminated final record", outcome.Status)
	}
}

func TestSession_EncodingErrorAtEOF(t *testing.T) {
	payload := append([]byte(progressLine("initializing", 0, 0)), 0xE2, 0x9C)
	_, outcome := runSession(t, &scriptedSource{chunks: [][]byte{payload}}, nil)

	if outcome.Status != types.OutcomeFailure {
		t.Fatalf("Status = %q, want failure", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "mid-character") {
		t.Errorf("Message = %q, want an encoding failure", outcome.Message)
	}
}

func TestSession_TransportErrorMidStream(t *testing.T) {
	src := &scriptedSource{
		chunks:  [][]byte{[]byte(progressLine("fetching_metrics", 0, 0))},
		readErr: errors.New("connection reset by peer"),
	}
	progress, outcome := runSession(t, src, nil)

	if outcome.Status != types.OutcomeFailure {
		t.Fatalf("Status = %q, want failure", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "stream interrupted") {
		t.Errorf("Message = %q, want a transport failure", outcome.Message)
	}
	if len(progress) != 1 {
		t.Errorf("progress before the failure should still be delivered, got %d", len(progress))
	}
}

func TestSession_OpenFailure(t *testing.T) {
	src := &scriptedSource{openErr: &Error{Kind: ErrorTransport, Msg: "connect to stream", Err: errors.New("refused")}}
	_, outcome := runSession(t, src, nil)

	if outcome.Status != types.OutcomeFailure {
		t.Fatalf("Status = %q, want failure", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "connection failed") {
		t.Errorf("Message = %q, want a connection failure", outcome.Message)
	}
}

func TestSession_Cancel(t *testing.T) {
	src := &blockingSource{opened: make(chan struct{})}
	collector := metrics.NewCollector("", "")

	session, err := NewSession(SessionConfig{
		Source:    src,
		Request:   testRequest(),
		Collector: collector,
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}

	rec := &recorder{}
	session.Subscribe(rec)
	session.Start(context.Background())

	<-src.opened
	session.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := session.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	if outcome.Status != types.OutcomeCancelled {
		t.Fatalf("Status = %q, want cancelled", outcome.Status)
	}
	if s := collector.Snapshot(); s.SessionsCancelled != 1 {
		t.Errorf("SessionsCancelled = %d, want 1", s.SessionsCancelled)
	}

	// Cancel after settlement is a no-op.
	session.Cancel()
	_, outcomes := rec.snapshot()
	if len(outcomes) != 1 {
		t.Errorf("got %d settlement notifications, want 1", len(outcomes))
	}
}

func TestSession_ParentContextCancelSettles(t *testing.T) {
	// Cancelling the context passed to Start, without calling Cancel, must
	// still settle the session as cancelled rather than leaving it
	// streaming forever.
	src := &blockingSource{opened: make(chan struct{})}
	collector := metrics.NewCollector("", "")

	session, err := NewSession(SessionConfig{
		Source:    src,
		Request:   testRequest(),
		Collector: collector,
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}

	rec := &recorder{}
	session.Subscribe(rec)

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	session.Start(parent)

	<-src.opened
	cancelParent()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := session.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	if outcome.Status != types.OutcomeCancelled {
		t.Fatalf("Status = %q, want cancelled", outcome.Status)
	}
	if snap := session.Snapshot(); snap.Phase != types.PhaseSettled {
		t.Errorf("Phase = %q, want settled", snap.Phase)
	}
	if s := collector.Snapshot(); s.SessionsCancelled != 1 {
		t.Errorf("SessionsCancelled = %d, want 1", s.SessionsCancelled)
	}
	_, outcomes := rec.snapshot()
	if len(outcomes) != 1 {
		t.Errorf("got %d settlement notifications, want 1", len(outcomes))
	}
}

func TestSession_CancelAfterSuccessIsNoOp(t *testing.T) {
	payload := `data: {"type":"complete","data":{"ok":true}}` + "\n"
	session, err := NewSession(SessionConfig{
		Source:  &scriptedSource{chunks: [][]byte{[]byte(payload)}},
		Request: testRequest(),
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}
	session.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := session.Wait(ctx); err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	session.Cancel()
	snap := session.Snapshot()
	if snap.Outcome == nil || snap.Outcome.Status != types.OutcomeSuccess {
		t.Errorf("Snapshot outcome = %+v, want the original success", snap.Outcome)
	}
}

func TestSession_PhaseTransitions(t *testing.T) {
	session, err := NewSession(SessionConfig{
		Source:  &scriptedSource{chunks: [][]byte{[]byte("data: {\"type\":\"complete\",\"data\":{}}\n")}},
		Request: testRequest(),
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}

	if snap := session.Snapshot(); snap.Phase != types.PhaseConnecting {
		t.Errorf("initial Phase = %q, want connecting", snap.Phase)
	}

	session.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := session.Wait(ctx); err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	snap := session.Snapshot()
	if snap.Phase != types.PhaseSettled {
		t.Errorf("final Phase = %q, want settled", snap.Phase)
	}
	if snap.SessionID != session.ID() {
		t.Errorf("SessionID = %q, want %q", snap.SessionID, session.ID())
	}
}

func TestSession_LateSubscriberGetsOutcome(t *testing.T) {
	session, err := NewSession(SessionConfig{
		Source:  &scriptedSource{chunks: [][]byte{[]byte("data: {\"type\":\"complete\",\"data\":{}}\n")}},
		Request: testRequest(),
	})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}
	session.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := session.Wait(ctx); err != nil {
		t.Fatalf("Wait error = %v", err)
	}

	rec := &recorder{}
	session.Subscribe(rec)
	_, outcomes := rec.snapshot()
	if len(outcomes) != 1 || outcomes[0].Status != types.OutcomeSuccess {
		t.Errorf("late subscriber outcomes = %+v, want the terminal outcome", outcomes)
	}
}

func TestSession_InvalidRequestRejected(t *testing.T) {
	req := testRequest()
	req.FromLoc = "bad"
	_, err := NewSession(SessionConfig{
		Source:  &scriptedSource{},
		Request: req,
	})
	if err == nil {
		t.Fatal("NewSession should reject an invalid request")
	}
}
