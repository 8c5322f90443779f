// Package webhook manages per-session webhook subscriptions: validation,
// wildcard expansion, and CRUD against a pluggable persistence backend.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/events"
	"github.com/google/uuid"
)

var ErrWebhookNotFound = errors.New("webhook not found")

// ConfigError is a synchronous registration rejection: bad URL, retry
// bounds out of range, unknown event name. It maps to a 400.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid webhook config: %s %s", e.Field, e.Reason)
}

const (
	defaultTimeoutMs = 10000
	maxTimeoutMs     = 120000
	defaultDelayMs   = 1000
)

// Store is the persistence backend for subscriptions. PostgresStore is
// the production implementation; MemoryStore serves tests and single-node
// deployments without a database.
type Store interface {
	InsertWebhook(ctx context.Context, w domain.WebhookSubscription) error
	GetWebhook(ctx context.Context, id string) (*domain.WebhookSubscription, error)
	ListWebhooks(ctx context.Context, sessionID string) ([]domain.WebhookSubscription, error)
	UpdateWebhook(ctx context.Context, w domain.WebhookSubscription) error
	DeleteWebhook(ctx context.Context, id string) error
	ListActiveWebhooksForEvent(ctx context.Context, sessionID, event string) ([]domain.WebhookSubscription, error)
}

// Registry validates and normalizes subscriptions before they reach the
// store. Wildcards are expanded here, at write time, so match-time lookup
// is a plain set-membership test.
type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Create validates the request, expands the event filter, applies retry
// and timeout defaults, and persists the subscription as active.
func (r *Registry) Create(ctx context.Context, sessionID string, req domain.CreateWebhookRequest) (*domain.WebhookSubscription, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	expanded, err := expandEvents(req.Events)
	if err != nil {
		return nil, err
	}

	policy := defaultRetryPolicy()
	if req.RetryPolicy != nil {
		policy = *req.RetryPolicy
		if err := validateRetryPolicy(&policy); err != nil {
			return nil, err
		}
	}

	timeoutMs := req.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = defaultTimeoutMs
	}
	if timeoutMs < 0 || timeoutMs > maxTimeoutMs {
		return nil, &ConfigError{Field: "timeout_ms", Reason: fmt.Sprintf("must be 1..%d", maxTimeoutMs)}
	}

	if req.RateLimitPerSecond < 0 {
		return nil, &ConfigError{Field: "rate_limit_per_second", Reason: "must be >= 0"}
	}

	now := r.now()
	w := domain.WebhookSubscription{
		ID:                 uuid.NewString(),
		SessionID:          sessionID,
		URL:                req.URL,
		IsActive:           true,
		Events:             expanded,
		Secret:             req.Secret,
		CustomHeaders:      req.CustomHeaders,
		RetryPolicy:        policy,
		TimeoutMs:          timeoutMs,
		RateLimitPerSecond: req.RateLimitPerSecond,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := r.store.InsertWebhook(ctx, w); err != nil {
		return nil, fmt.Errorf("inserting webhook: %w", err)
	}
	return &w, nil
}

// Get returns one subscription by id.
func (r *Registry) Get(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	return r.store.GetWebhook(ctx, id)
}

// List returns all subscriptions for a session.
func (r *Registry) List(ctx context.Context, sessionID string) ([]domain.WebhookSubscription, error) {
	return r.store.ListWebhooks(ctx, sessionID)
}

// Update applies the non-nil fields of req, re-validating anything that
// changes. Event filters are re-expanded the same way Create expands them.
func (r *Registry) Update(ctx context.Context, id string, req domain.UpdateWebhookRequest) (*domain.WebhookSubscription, error) {
	w, err := r.store.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWebhookNotFound
	}

	if req.URL != nil {
		if err := validateURL(*req.URL); err != nil {
			return nil, err
		}
		w.URL = *req.URL
	}
	if req.Events != nil {
		expanded, err := expandEvents(req.Events)
		if err != nil {
			return nil, err
		}
		w.Events = expanded
	}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	if req.Secret != nil {
		w.Secret = *req.Secret
	}
	if req.CustomHeaders != nil {
		w.CustomHeaders = req.CustomHeaders
	}
	if req.RetryPolicy != nil {
		policy := *req.RetryPolicy
		if err := validateRetryPolicy(&policy); err != nil {
			return nil, err
		}
		w.RetryPolicy = policy
	}
	if req.TimeoutMs != nil {
		if *req.TimeoutMs <= 0 || *req.TimeoutMs > maxTimeoutMs {
			return nil, &ConfigError{Field: "timeout_ms", Reason: fmt.Sprintf("must be 1..%d", maxTimeoutMs)}
		}
		w.TimeoutMs = *req.TimeoutMs
	}
	if req.RateLimitPerSecond != nil {
		if *req.RateLimitPerSecond < 0 {
			return nil, &ConfigError{Field: "rate_limit_per_second", Reason: "must be >= 0"}
		}
		w.RateLimitPerSecond = *req.RateLimitPerSecond
	}
	w.UpdatedAt = r.now()

	if err := r.store.UpdateWebhook(ctx, *w); err != nil {
		return nil, fmt.Errorf("updating webhook: %w", err)
	}
	return w, nil
}

// Delete removes a subscription.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.DeleteWebhook(ctx, id)
}

// ActiveForEvent returns the active subscriptions for a session whose
// expanded event set contains event. This is the delivery engine's read
// path; the slice it gets is a point-in-time copy, so registry edits
// during an in-flight dispatch do not affect started deliveries.
func (r *Registry) ActiveForEvent(ctx context.Context, sessionID, event string) ([]domain.WebhookSubscription, error) {
	return r.store.ListActiveWebhooksForEvent(ctx, sessionID, event)
}

func validateURL(raw string) error {
	if raw == "" {
		return &ConfigError{Field: "url", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Field: "url", Reason: "must be a valid http(s) URL"}
	}
	return nil
}

func validateRetryPolicy(p *domain.RetryPolicy) error {
	if p.Attempts < 0 || p.Attempts > domain.MaxRetryAttempts {
		return &ConfigError{
			Field:  "retry_policy.attempts",
			Reason: fmt.Sprintf("must be 0..%d", domain.MaxRetryAttempts),
		}
	}
	if p.InitialDelayMs < 0 {
		return &ConfigError{Field: "retry_policy.initial_delay_ms", Reason: "must be >= 0"}
	}
	if p.Strategy == "" {
		p.Strategy = domain.BackoffExponential
	}
	if !p.Strategy.Valid() {
		return &ConfigError{
			Field:  "retry_policy.strategy",
			Reason: "must be constant, linear, or exponential",
		}
	}
	return nil
}

func defaultRetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		Attempts:       3,
		InitialDelayMs: defaultDelayMs,
		Strategy:       domain.BackoffExponential,
	}
}

// expandEvents normalizes the caller's filter: empty, "*", or "ALL" means
// the full canonical set. Explicit names are validated against the set and
// deduplicated. The result never contains a wildcard token and is never
// empty.
func expandEvents(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return events.All(), nil
	}
	for _, name := range requested {
		if events.IsWildcard(name) {
			return events.All(), nil
		}
	}

	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		if !events.IsCanonical(name) {
			return nil, &ConfigError{Field: "events", Reason: fmt.Sprintf("unknown event %q", name)}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
