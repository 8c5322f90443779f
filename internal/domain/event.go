package domain

import (
	"encoding/json"
	"time"
)

// Event is one tagged occurrence flowing from the state machine (or a
// message-level producer) through the router into the delivery engine.
// It is not persisted beyond the delivery log it produces.
type Event struct {
	Event     string          `json:"event"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// WebhookPayload is the bit-exact wire body POSTed to endpoints. The
// timestamp is rendered as ISO-8601 once per dispatch so every endpoint
// for the same occurrence sees identical bytes.
type WebhookPayload struct {
	Event     string          `json:"event"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
