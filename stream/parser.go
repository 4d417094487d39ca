package stream

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/trelay/railstream/types"
)

// ParseRecord classifies a single framed record. It returns the decoded
// event when the record carries one, ok=false for records the protocol says
// to ignore (blank lines, comments, unrelated fields), and a malformed-frame
// error when the record looks like an event but its payload is unusable.
func ParseRecord(record string) (*types.StreamEvent, bool, error) {
	trimmed := strings.TrimSpace(record)
	if trimmed == "" || !strings.HasPrefix(trimmed, types.EventPrefix) {
		return nil, false, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, types.EventPrefix))
	if payload == "" {
		return nil, false, &Error{Kind: ErrorMalformedFrame, Msg: "event record with empty payload"}
	}

	var event types.StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, false, &Error{Kind: ErrorMalformedFrame, Msg: "undecodable event payload", Err: err}
	}
	if !event.Type.Valid() {
		return nil, false, &Error{
			Kind: ErrorMalformedFrame,
			Msg:  "unknown event type " + strconv.Quote(string(event.Type)),
		}
	}
	return &event, true, nil
}
