package types

// EventPrefix is the reserved record prefix of the progress wire protocol.
// Records lacking the prefix (blank keep-alive lines, comments) are ignorable.
const EventPrefix = "data:"

// EventType discriminates parsed stream events.
type EventType string

// Event type constants of the progress wire protocol.
const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// IsTerminal returns true if this event type settles a session.
func (e EventType) IsTerminal() bool {
	return e == EventComplete || e == EventError
}

// Valid returns true for event types the protocol defines.
func (e EventType) Valid() bool {
	switch e {
	case EventProgress, EventComplete, EventError:
		return true
	}
	return false
}

// StreamEvent is one parsed frame of the analysis progress stream.
// Exactly one of the kind-specific field groups is meaningful,
// selected by Type.
type StreamEvent struct {
	// Type is the event type discriminator.
	Type EventType `json:"type"`

	// Progress fields (Type == progress).
	// Step is a machine-readable phase label (e.g. "processing_journeys").
	Step string `json:"step,omitempty"`
	// Message is a human-readable description; may be empty for sub-steps.
	Message string `json:"message,omitempty"`
	// Current is the count of processed units so far.
	Current int `json:"current,omitempty"`
	// Total is the number of units to process. Zero means the event is a
	// coarse phase label, not a countable tick.
	Total int `json:"total,omitempty"`
	// Percentage is the producer's own percentage. Advisory only; consumers
	// recompute from Current/Total.
	Percentage float64 `json:"percentage,omitempty"`

	// Data is the full result payload (Type == complete). Opaque to the
	// stream layer; passed through unmodified.
	Data map[string]any `json:"data,omitempty"`
}

// ProgressSnapshot is the latest known progress state of a session.
// Each progress event replaces the previous snapshot wholesale; deltas are
// never accumulated and ordering is not assumed monotonic.
type ProgressSnapshot struct {
	// Step is the machine-readable phase label.
	Step string `json:"step"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Current and Total count processed units. Total == 0 marks a phase
	// label with no countable progress.
	Current int `json:"current"`
	Total   int `json:"total"`
	// WirePercentage is the producer-reported percentage, kept for display
	// parity only.
	WirePercentage float64 `json:"wire_percentage"`
}

// Percent returns the progress percentage recomputed from Current/Total,
// clamped to [0, 100]. Returns -1 when Total is zero (indeterminate phase).
func (p ProgressSnapshot) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	pct := float64(p.Current) / float64(p.Total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Snapshot converts a progress event into a replacement snapshot.
func (e *StreamEvent) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Step:           e.Step,
		Message:        e.Message,
		Current:        e.Current,
		Total:          e.Total,
		WirePercentage: e.Percentage,
	}
}
