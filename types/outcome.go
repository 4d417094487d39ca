package types

// Phase is the lifecycle phase of a stream session.
type Phase string

// Session phases. Connecting ends the instant the first chunk or transport
// failure arrives; Settled is terminal.
const (
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseSettled    Phase = "settled"
)

// OutcomeStatus classifies a session's terminal outcome.
type OutcomeStatus string

// Outcome status constants. Cancelled is distinct from Failure so a UI does
// not render an error banner for a deliberate abort.
const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailure   OutcomeStatus = "failure"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Outcome is the single terminal result of a session, settled at most once.
type Outcome struct {
	// Status classifies the settlement.
	Status OutcomeStatus `json:"status"`
	// Message describes a failure. Empty on success and cancellation.
	Message string `json:"message,omitempty"`
	// Result is the complete event's payload. Nil unless Status is success.
	Result map[string]any `json:"result,omitempty"`
}

// SessionSnapshot is a point-in-time view of a session for polling UIs.
type SessionSnapshot struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`
	// Phase is the current lifecycle phase.
	Phase Phase `json:"phase"`
	// Progress is the most recent progress snapshot, nil if none arrived yet.
	Progress *ProgressSnapshot `json:"progress,omitempty"`
	// Outcome is the terminal outcome, nil until settled.
	Outcome *Outcome `json:"outcome,omitempty"`
}
