package domain

import (
	"time"
)

// DeliveryOutcome is the terminal record of one attempt sequence for one
// (webhook, event occurrence) pair. It is written once, after the loop
// ends in success, permanent failure, or an exhausted attempt budget, and
// never mutated afterward.
type DeliveryOutcome struct {
	ID              string    `json:"id"`
	WebhookID       string    `json:"webhook_id"`
	SessionID       string    `json:"session_id"`
	Event           string    `json:"event"`
	Timestamp       time.Time `json:"timestamp"`
	Attempts        int       `json:"attempts"`
	Success         bool      `json:"success"`
	StatusCode      *int      `json:"status_code,omitempty"`
	ResponseExcerpt string    `json:"response_excerpt,omitempty"`
	Error           string    `json:"error,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
}
