// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single analysis session. It is
// a leaf package with no internal dependencies. Cache counters are absorbed
// from the cache layer's own stats at session completion rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream consumption
	ChunksReceived  int64
	BytesReceived   int64
	RecordsFramed   int64
	EventsParsed    int64
	EventsByType    map[string]int64
	MalformedFrames int64

	// Session lifecycle
	SessionsStarted   int64
	SessionsSucceeded int64
	SessionsFailed    int64
	SessionsCancelled int64

	// Upstream
	UpstreamCalls    int64
	UpstreamFailures int64

	// Cache (absorbed from cache stats at session completion)
	CacheHits   int64
	CacheMisses int64

	// History / Storage
	HistoryWriteSuccess int64
	HistoryWriteFailure int64

	// Dimensions (informational, set at construction)
	Route     string
	SessionID string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	chunksReceived  int64
	bytesReceived   int64
	recordsFramed   int64
	eventsParsed    int64
	eventsByType    map[string]int64
	malformedFrames int64

	sessionsStarted   int64
	sessionsSucceeded int64
	sessionsFailed    int64
	sessionsCancelled int64

	upstreamCalls    int64
	upstreamFailures int64

	cacheHits   int64
	cacheMisses int64

	historyWriteSuccess int64
	historyWriteFailure int64

	route     string
	sessionID string
}

// NewCollector creates a Collector with dimension labels. Both dimensions
// are optional.
func NewCollector(route, sessionID string) *Collector {
	return &Collector{
		eventsByType: make(map[string]int64),
		route:        route,
		sessionID:    sessionID,
	}
}

// --- Stream consumption ---

// IncChunk records a received chunk and its byte size.
func (c *Collector) IncChunk(bytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksReceived++
	c.bytesReceived += int64(bytes)
	c.mu.Unlock()
}

// IncRecordFramed records a completed line record.
func (c *Collector) IncRecordFramed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsFramed++
	c.mu.Unlock()
}

// IncEvent records a successfully parsed event of the given type.
// The type is string-typed to keep this package free of dependencies on the
// types package.
func (c *Collector) IncEvent(eventType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsParsed++
	c.eventsByType[eventType]++
	c.mu.Unlock()
}

// IncMalformedFrame records a skipped undecodable event record.
func (c *Collector) IncMalformedFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.malformedFrames++
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncSessionSucceeded records a session settled with success.
func (c *Collector) IncSessionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsSucceeded++
	c.mu.Unlock()
}

// IncSessionFailed records a session settled with failure.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// IncSessionCancelled records a session settled by cancellation.
func (c *Collector) IncSessionCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCancelled++
	c.mu.Unlock()
}

// --- Upstream ---

// IncUpstreamCall records an upstream HSP API call.
func (c *Collector) IncUpstreamCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.upstreamCalls++
	c.mu.Unlock()
}

// IncUpstreamFailure records a failed upstream HSP API call.
func (c *Collector) IncUpstreamFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.upstreamFailures++
	c.mu.Unlock()
}

// --- History / Storage ---
// History counters are per-call, not per-record. A single Append call with
// N records counts as 1 success.

// IncHistoryWriteSuccess records a successful history write operation.
func (c *Collector) IncHistoryWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.historyWriteSuccess++
	c.mu.Unlock()
}

// IncHistoryWriteFailure records a failed history write operation.
func (c *Collector) IncHistoryWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.historyWriteFailure++
	c.mu.Unlock()
}

// --- Cache (absorbed from cache stats) ---

// AbsorbCacheStats copies hit and miss counters from the cache layer into
// the collector. Called once when a session settles with the final counts.
func (c *Collector) AbsorbCacheStats(hits, misses int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits = hits
	c.cacheMisses = misses
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.eventsByType))
	for k, v := range c.eventsByType {
		byType[k] = v
	}

	return Snapshot{
		ChunksReceived:  c.chunksReceived,
		BytesReceived:   c.bytesReceived,
		RecordsFramed:   c.recordsFramed,
		EventsParsed:    c.eventsParsed,
		EventsByType:    byType,
		MalformedFrames: c.malformedFrames,

		SessionsStarted:   c.sessionsStarted,
		SessionsSucceeded: c.sessionsSucceeded,
		SessionsFailed:    c.sessionsFailed,
		SessionsCancelled: c.sessionsCancelled,

		UpstreamCalls:    c.upstreamCalls,
		UpstreamFailures: c.upstreamFailures,

		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,

		HistoryWriteSuccess: c.historyWriteSuccess,
		HistoryWriteFailure: c.historyWriteFailure,

		Route:     c.route,
		SessionID: c.sessionID,
	}
}
