package domain

import (
	"time"
)

// BackoffStrategy controls how retry delays grow between delivery attempts.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

func (s BackoffStrategy) Valid() bool {
	switch s {
	case BackoffConstant, BackoffLinear, BackoffExponential:
		return true
	}
	return false
}

// MaxRetryAttempts bounds RetryPolicy.Attempts at registration time.
const MaxRetryAttempts = 15

// RetryPolicy describes the attempt budget for one webhook subscription.
type RetryPolicy struct {
	Attempts       int             `json:"attempts"`
	InitialDelayMs int             `json:"initial_delay_ms"`
	Strategy       BackoffStrategy `json:"strategy"`
}

// Header is one custom header sent on every delivery. Order is preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookSubscription is one registered HTTP endpoint for a session.
// Events always holds expanded canonical identifiers, never a wildcard.
type WebhookSubscription struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	URL           string      `json:"url"`
	IsActive      bool        `json:"is_active"`
	Events        []string    `json:"events"`
	Secret        string      `json:"secret,omitempty"`
	CustomHeaders []Header    `json:"custom_headers,omitempty"`
	RetryPolicy   RetryPolicy `json:"retry_policy"`
	TimeoutMs     int         `json:"timeout_ms"`
	// RateLimitPerSecond caps delivery attempts to this endpoint; zero
	// means unlimited.
	RateLimitPerSecond int       `json:"rate_limit_per_second,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SubscribesTo reports whether event is in the subscription's expanded set.
func (w *WebhookSubscription) SubscribesTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// CreateWebhookRequest is the registration payload accepted by the registry.
type CreateWebhookRequest struct {
	URL                string       `json:"url"`
	Events             []string     `json:"events"`
	Secret             string       `json:"secret,omitempty"`
	CustomHeaders      []Header     `json:"custom_headers,omitempty"`
	RetryPolicy        *RetryPolicy `json:"retry_policy,omitempty"`
	TimeoutMs          int          `json:"timeout_ms,omitempty"`
	RateLimitPerSecond int          `json:"rate_limit_per_second,omitempty"`
}

// UpdateWebhookRequest carries partial updates; nil fields are untouched.
type UpdateWebhookRequest struct {
	URL                *string      `json:"url,omitempty"`
	Events             []string     `json:"events,omitempty"`
	IsActive           *bool        `json:"is_active,omitempty"`
	Secret             *string      `json:"secret,omitempty"`
	CustomHeaders      []Header     `json:"custom_headers,omitempty"`
	RetryPolicy        *RetryPolicy `json:"retry_policy,omitempty"`
	TimeoutMs          *int         `json:"timeout_ms,omitempty"`
	RateLimitPerSecond *int         `json:"rate_limit_per_second,omitempty"`
}
