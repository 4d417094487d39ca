package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/trelay/railstream/iox"
	"github.com/trelay/railstream/log"
	"github.com/trelay/railstream/metrics"
	"github.com/trelay/railstream/types"
)

// DefaultChunkBufferSize is the read buffer size for the chunk loop.
const DefaultChunkBufferSize = 4 << 10

// ChunkSource opens the raw byte stream for an analysis request.
type ChunkSource interface {
	Open(ctx context.Context, req *types.AnalysisRequest) (io.ReadCloser, error)
}

// Subscriber receives ordered session notifications: zero or more progress
// updates followed by exactly one settlement.
type Subscriber interface {
	OnProgress(snapshot types.ProgressSnapshot)
	OnSettled(outcome types.Outcome)
}

// SubscriberFuncs adapts plain functions to the Subscriber interface.
// Either field may be nil.
type SubscriberFuncs struct {
	Progress func(types.ProgressSnapshot)
	Settled  func(types.Outcome)
}

func (s SubscriberFuncs) OnProgress(snapshot types.ProgressSnapshot) {
	if s.Progress != nil {
		s.Progress(snapshot)
	}
}

func (s SubscriberFuncs) OnSettled(outcome types.Outcome) {
	if s.Settled != nil {
		s.Settled(outcome)
	}
}

// SessionConfig configures an analysis session.
type SessionConfig struct {
	// Source opens the chunk stream (required).
	Source ChunkSource
	// Request is the analysis request to submit (required).
	Request *types.AnalysisRequest
	// Logger receives session lifecycle logs. May be nil.
	Logger *log.Logger
	// Collector receives session metrics. May be nil.
	Collector *metrics.Collector
	// ChunkBufferSize overrides the read buffer size. Zero means default.
	ChunkBufferSize int
}

// Session consumes one analysis stream. It moves from connecting to
// streaming on the first chunk and settles exactly once: with the terminal
// event's outcome, with a failure when the stream dies or ends without one,
// or with cancellation when the caller abandons it. Whichever settlement
// happens first wins; later settlement attempts are no-ops.
type Session struct {
	id        string
	source    ChunkSource
	request   *types.AnalysisRequest
	logger    *log.Logger
	collector *metrics.Collector
	bufSize   int

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	phase    types.Phase
	progress *types.ProgressSnapshot
	outcome  *types.Outcome
	subs     []Subscriber

	// notifyMu serializes subscriber callbacks so progress never trails the
	// settlement notification.
	notifyMu sync.Mutex
}

// NewSession creates a session in the connecting phase. The stream is not
// opened until Start.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Source == nil {
		return nil, errors.New("session requires a chunk source")
	}
	if cfg.Request == nil {
		return nil, errors.New("session requires a request")
	}
	if err := cfg.Request.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChunkBufferSize <= 0 {
		cfg.ChunkBufferSize = DefaultChunkBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}

	return &Session{
		id:        uuid.NewString(),
		source:    cfg.Source,
		request:   cfg.Request,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		bufSize:   cfg.ChunkBufferSize,
		done:      make(chan struct{}),
		phase:     types.PhaseConnecting,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers a subscriber. Subscribing after settlement delivers
// the terminal outcome immediately; intermediate progress is not replayed.
func (s *Session) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	if s.outcome != nil {
		outcome := *s.outcome
		s.mu.Unlock()
		s.notifyMu.Lock()
		sub.OnSettled(outcome)
		s.notifyMu.Unlock()
		return
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Start launches the consume loop. It returns immediately; callers observe
// completion through subscribers, Done, or Wait.
func (s *Session) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.collector.IncSessionStarted()
	go s.consume(runCtx)
}

// Cancel abandons the session. If a terminal event has already settled it,
// this is a no-op; otherwise the session settles as cancelled and the
// underlying stream is torn down.
func (s *Session) Cancel() {
	s.settle(types.Outcome{
		Status:  types.OutcomeCancelled,
		Message: "analysis cancelled",
	})
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done returns a channel closed when the session settles.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session settles or ctx expires.
func (s *Session) Wait(ctx context.Context) (types.Outcome, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		outcome := *s.outcome
		s.mu.Unlock()
		return outcome, nil
	case <-ctx.Done():
		return types.Outcome{}, ctx.Err()
	}
}

// Snapshot returns the current observable state of the session.
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := types.SessionSnapshot{
		SessionID: s.id,
		Phase:     s.phase,
	}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
	}
	if s.outcome != nil {
		o := *s.outcome
		snap.Outcome = &o
	}
	return snap
}

/// consume runs the chunk loop: read, decode, frame, dispatch. It owns the
// stream body and always releases it before returning.
func (s *Session) consume(ctx context.Context) {
	body, err := s.source.Open(ctx, s.request)
	if err != nil {
		if ctx.Err() != nil {
			s.settle(types.Outcome{
				Status:  types.OutcomeCancelled,
				Message: "analysis cancelled",
			})
			return
		}
		s.settle(types.Outcome{
			Status:  types.OutcomeFailure,
			Message: "connection failed: " + err.Error(),
		})
		return
	}
	defer iox.DrainClose(body)

	var (
		decoder Decoder
		framer  Framer
		buf     = make([]byte, s.bufSize)
	)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			s.collector.IncChunk(n)
			s.markStreaming()
			for _, record := range framer.Push(decoder.Decode(buf[:n])) {
				s.collector.IncRecordFramed()
				if s.dispatch(record) {
					return
				}
			}
		}

		if readErr == nil {
			continue
		}

		if readErr != io.EOF {
			if s.settled() {
				// Cancel tore down the body and already settled.
				return
			}
			if ctx.Err() != nil {
				// The caller's context ended without Cancel being
				// called. The session still owes its terminal outcome.
				s.settle(types.Outcome{
					Status:  types.OutcomeCancelled,
					Message: "analysis cancelled",
				})
				return
			}
			s.settle(types.Outcome{
				Status:  types.OutcomeFailure,
				Message: "stream interrupted: " + readErr.Error(),
			})
			return
		}

		// Clean end of stream. The final record may be unterminated.
		if rest, ok := framer.Flush(); ok {
			s.collector.IncRecordFramed()
			if s.dispatch(rest) {
				return
			}
		}
		if flushErr := decoder.Flush(); flushErr != nil {
			s.settle(types.Outcome{
				Status:  types.OutcomeFailure,
				Message: flushErr.Error(),
			})
			return
		}
		s.settle(types.Outcome{
			Status:  types.OutcomeFailure,
			Message: "stream ended without a result",
		})
		return
	}
}

// markStreaming moves the session out of the connecting phase on the first
// chunk.
func (s *Session) markStreaming() {
	s.mu.Lock()
	if s.phase == types.PhaseConnecting {
		s.phase = types.PhaseStreaming
	}
	s.mu.Unlock()
}

// dispatch handles one framed record and reports whether it settled the
// session. Malformed frames are logged, counted, and skipped.
func (s *Session) dispatch(record string) bool {
	event, ok, err := ParseRecord(record)
	if err != nil {
		s.collector.IncMalformedFrame()
		s.logger.Warn("skipping malformed frame", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	if !ok {
		return false
	}

	s.collector.IncEvent(string(event.Type))

	switch event.Type {
	case types.EventProgress:
		s.advance(event.Snapshot())
		return false
	case types.EventComplete:
		return s.settle(types.Outcome{
			Status: types.OutcomeSuccess,
			Result: event.Data,
		})
	case types.EventError:
		msg := event.Message
		if msg == "" {
			msg = "analysis failed"
		}
		return s.settle(types.Outcome{
			Status:  types.OutcomeFailure,
			Message: msg,
		})
	}
	return false
}

// advance publishes a progress snapshot. Progress arriving after settlement
// is dropped.
func (s *Session) advance(snapshot types.ProgressSnapshot) {
	s.mu.Lock()
	if s.outcome != nil {
		s.mu.Unlock()
		return
	}
	p := snapshot
	s.progress = &p
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.notifyMu.Lock()
	for _, sub := range subs {
		sub.OnProgress(snapshot)
	}
	s.notifyMu.Unlock()
}

// settle records the terminal outcome. The first settlement wins; any later
// attempt returns true without effect so callers can stop consuming.
func (s *Session) settle(outcome types.Outcome) bool {
	s.mu.Lock()
	if s.outcome != nil {
		s.mu.Unlock()
		s.logger.Debug("ignoring duplicate settlement", map[string]any{
			"status": string(outcome.Status),
		})
		return true
	}
	o := outcome
	s.outcome = &o
	s.phase = types.PhaseSettled
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	switch outcome.Status {
	case types.OutcomeSuccess:
		s.collector.IncSessionSucceeded()
	case types.OutcomeFailure:
		s.collector.IncSessionFailed()
	case types.OutcomeCancelled:
		s.collector.IncSessionCancelled()
	}
	s.logger.Info("session settled", map[string]any{
		"session_id": s.id,
		"status":     string(outcome.Status),
		"message":    outcome.Message,
	})

	s.notifyMu.Lock()
	for _, sub := range subs {
		sub.OnSettled(outcome)
	}
	s.notifyMu.Unlock()

	close(s.done)
	return true
}

// settled reports whether a terminal outcome has been recorded.
func (s *Session) settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome != nil
}
