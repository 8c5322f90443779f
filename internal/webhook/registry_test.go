package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/events"
)

func newTestRegistry() *Registry {
	return NewRegistry(NewMemoryStore())
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestRegistry_Create_Defaults(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	w, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.ID == "" {
		t.Error("webhook should get a generated id")
	}
	if !w.IsActive {
		t.Error("new webhooks should be active")
	}
	if w.TimeoutMs != 10000 {
		t.Errorf("timeout = %d, want default 10000", w.TimeoutMs)
	}
	if w.RetryPolicy.Attempts != 3 || w.RetryPolicy.Strategy != domain.BackoffExponential {
		t.Errorf("retry policy = %+v, want 3 exponential", w.RetryPolicy)
	}
	if len(w.Events) != len(events.All()) {
		t.Errorf("empty filter should expand to all %d events, got %d", len(events.All()), len(w.Events))
	}
}

func TestRegistry_Create_WildcardExpansion(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	for _, filter := range [][]string{{"*"}, {"ALL"}, {"session.qr", "*"}} {
		w, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{
			URL:    "https://example.com/hook",
			Events: filter,
		})
		if err != nil {
			t.Fatalf("create with %v: %v", filter, err)
		}
		if len(w.Events) != len(events.All()) {
			t.Errorf("filter %v should expand to full set, got %v", filter, w.Events)
		}
		for _, name := range w.Events {
			if events.IsWildcard(name) {
				t.Errorf("stored events must never contain a wildcard, got %v", w.Events)
			}
		}
	}
}

func TestRegistry_Create_ExplicitEventsDeduplicated(t *testing.T) {
	r := newTestRegistry()

	w, err := r.Create(context.Background(), "s1", domain.CreateWebhookRequest{
		URL:    "https://example.com/hook",
		Events: []string{"session.qr", "qr", "session.qr"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The dotted and legacy spellings are distinct subscription targets.
	want := []string{"session.qr", "qr"}
	if len(w.Events) != len(want) {
		t.Fatalf("events = %v, want %v", w.Events, want)
	}
	for i := range want {
		if w.Events[i] != want[i] {
			t.Errorf("events = %v, want %v", w.Events, want)
		}
	}
}

func TestRegistry_Create_Validation(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.CreateWebhookRequest
		wantField string
	}{
		{"missing url", domain.CreateWebhookRequest{}, "url"},
		{"bad scheme", domain.CreateWebhookRequest{URL: "ftp://example.com"}, "url"},
		{"no host", domain.CreateWebhookRequest{URL: "https://"}, "url"},
		{
			"unknown event",
			domain.CreateWebhookRequest{URL: "https://example.com", Events: []string{"session.birthday"}},
			"events",
		},
		{
			"attempts over cap",
			domain.CreateWebhookRequest{
				URL:         "https://example.com",
				RetryPolicy: &domain.RetryPolicy{Attempts: 16, InitialDelayMs: 100, Strategy: domain.BackoffConstant},
			},
			"retry_policy.attempts",
		},
		{
			"negative delay",
			domain.CreateWebhookRequest{
				URL:         "https://example.com",
				RetryPolicy: &domain.RetryPolicy{Attempts: 3, InitialDelayMs: -1, Strategy: domain.BackoffConstant},
			},
			"retry_policy.initial_delay_ms",
		},
		{
			"unknown strategy",
			domain.CreateWebhookRequest{
				URL:         "https://example.com",
				RetryPolicy: &domain.RetryPolicy{Attempts: 3, InitialDelayMs: 100, Strategy: "fibonacci"},
			},
			"retry_policy.strategy",
		},
		{
			"timeout over cap",
			domain.CreateWebhookRequest{URL: "https://example.com", TimeoutMs: 500000},
			"timeout_ms",
		},
		{
			"negative rate limit",
			domain.CreateWebhookRequest{URL: "https://example.com", RateLimitPerSecond: -1},
			"rate_limit_per_second",
		},
	}

	r := newTestRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), "s1", tt.req)

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestRegistry_Create_ZeroAttemptsAllowed(t *testing.T) {
	r := newTestRegistry()

	w, err := r.Create(context.Background(), "s1", domain.CreateWebhookRequest{
		URL:         "https://example.com/hook",
		RetryPolicy: &domain.RetryPolicy{Attempts: 0, InitialDelayMs: 100, Strategy: domain.BackoffConstant},
	})
	if err != nil {
		t.Fatalf("zero attempts should be accepted: %v", err)
	}
	if w.RetryPolicy.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", w.RetryPolicy.Attempts)
	}
}

func TestRegistry_Update_Partial(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	w, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{
		URL:    "https://example.com/hook",
		Events: []string{"session.qr"},
		Secret: "original",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := r.Update(ctx, w.ID, domain.UpdateWebhookRequest{
		URL:      strPtr("https://example.com/v2"),
		IsActive: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.URL != "https://example.com/v2" {
		t.Errorf("url = %q", updated.URL)
	}
	if updated.IsActive {
		t.Error("webhook should be deactivated")
	}
	if updated.Secret != "original" {
		t.Errorf("untouched fields must survive, secret = %q", updated.Secret)
	}
	if len(updated.Events) != 1 || updated.Events[0] != "session.qr" {
		t.Errorf("untouched events must survive, got %v", updated.Events)
	}
}

func TestRegistry_Update_RevalidatesChanges(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	w, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var cfgErr *ConfigError
	if _, err := r.Update(ctx, w.ID, domain.UpdateWebhookRequest{URL: strPtr("nope")}); !errors.As(err, &cfgErr) {
		t.Errorf("bad url update should fail validation, got %v", err)
	}
	if _, err := r.Update(ctx, w.ID, domain.UpdateWebhookRequest{TimeoutMs: intPtr(-5)}); !errors.As(err, &cfgErr) {
		t.Errorf("negative timeout update should fail validation, got %v", err)
	}
}

func TestRegistry_Update_NotFound(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Update(context.Background(), "missing", domain.UpdateWebhookRequest{})
	if !errors.Is(err, ErrWebhookNotFound) {
		t.Errorf("err = %v, want ErrWebhookNotFound", err)
	}
}

func TestRegistry_ActiveForEvent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	qrOnly, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{
		URL:    "https://example.com/qr",
		Events: []string{"session.qr"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{
		URL:    "https://example.com/ready",
		Events: []string{"session.ready"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create(ctx, "other-session", domain.CreateWebhookRequest{
		URL:    "https://example.com/elsewhere",
		Events: []string{"session.qr"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	matches, err := r.ActiveForEvent(ctx, "s1", "session.qr")
	if err != nil {
		t.Fatalf("active for event: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != qrOnly.ID {
		t.Errorf("matches = %+v, want only the s1 qr webhook", matches)
	}

	// Deactivated webhooks drop out of the read path.
	if _, err := r.Update(ctx, qrOnly.ID, domain.UpdateWebhookRequest{IsActive: boolPtr(false)}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	matches, err = r.ActiveForEvent(ctx, "s1", "session.qr")
	if err != nil {
		t.Fatalf("active for event: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("deactivated webhook should not match, got %+v", matches)
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	w, err := r.Create(ctx, "s1", domain.CreateWebhookRequest{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.Delete(ctx, w.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := r.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("deleted webhook should be gone, got %+v", got)
	}
}
