package engine

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
)

const (
	userAgent         = "SessionGateway-Webhook/1.0"
	headerEvent       = "X-SessionGateway-Event"
	headerTimestamp   = "X-SessionGateway-Timestamp"
	headerSession     = "X-SessionGateway-Session"
	headerSignature   = "X-SessionGateway-Signature"
	responseBodyLimit = 1024
)

// DeliveryJob is one webhook's share of a dispatched event: the shared
// pre-serialized body plus the subscription's own delivery settings.
type DeliveryJob struct {
	Webhook   domain.WebhookSubscription
	Event     string
	SessionID string
	Timestamp string // ISO-8601, identical to the payload's timestamp field
	Body      []byte
}

// Deliverer runs the per-webhook attempt loop: sign, POST, classify,
// back off, and produce exactly one DeliveryOutcome per job. A client
// error (4xx) is permanent and stops immediately; network errors,
// timeouts, and 5xx are transient and retried up to the policy. 429 is
// treated as generic transient; Retry-After is not honored.
type Deliverer struct {
	httpClient *http.Client
	limiter    *RateLimiter    // optional
	breaker    *CircuitBreaker // optional
	logger     *slog.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

func NewDeliverer(limiter *RateLimiter, breaker *CircuitBreaker, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		// Per-attempt timeouts come from each subscription, via request
		// context, so the shared client carries none.
		httpClient: &http.Client{},
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Deliver executes the attempt loop for one job and returns the terminal
// outcome. It never returns an error: every ending, including exhaustion,
// is an outcome.
func (d *Deliverer) Deliver(ctx context.Context, job DeliveryJob) domain.DeliveryOutcome {
	start := d.now()
	w := job.Webhook

	outcome := domain.DeliveryOutcome{
		WebhookID: w.ID,
		SessionID: job.SessionID,
		Event:     job.Event,
		Timestamp: start,
	}

	if d.breaker != nil {
		if state, allowed := d.breaker.AllowRequest(ctx, w.ID); !allowed {
			outcome.Error = fmt.Sprintf("circuit breaker %s, delivery skipped", state)
			outcome.DurationMs = d.now().Sub(start).Milliseconds()
			d.logOutcome(outcome)
			return outcome
		}
	}

	maxAttempts := w.RetryPolicy.Attempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome.Attempts = attempt

		if d.limiter != nil {
			d.limiter.Wait(ctx, w.ID, w.RateLimitPerSecond)
		}

		statusCode, excerpt, err := d.attempt(ctx, job)

		switch {
		case err == nil && statusCode >= 200 && statusCode < 300:
			code := statusCode
			outcome.Success = true
			outcome.StatusCode = &code
			outcome.ResponseExcerpt = excerpt
			outcome.Error = ""
			if d.breaker != nil {
				d.breaker.RecordSuccess(ctx, w.ID)
			}
			outcome.DurationMs = d.now().Sub(start).Milliseconds()
			d.logOutcome(outcome)
			return outcome

		case err == nil && statusCode >= 400 && statusCode < 500:
			// The endpoint is rejecting the payload; retrying cannot help.
			code := statusCode
			outcome.StatusCode = &code
			outcome.ResponseExcerpt = excerpt
			outcome.Error = fmt.Sprintf("endpoint rejected delivery with status %d", statusCode)
			if d.breaker != nil {
				d.breaker.RecordFailure(ctx, w.ID)
			}
			outcome.DurationMs = d.now().Sub(start).Milliseconds()
			d.logOutcome(outcome)
			return outcome

		default:
			if err != nil {
				outcome.Error = err.Error()
				outcome.StatusCode = nil
				outcome.ResponseExcerpt = ""
			} else {
				code := statusCode
				outcome.StatusCode = &code
				outcome.ResponseExcerpt = excerpt
				outcome.Error = fmt.Sprintf("endpoint returned status %d", statusCode)
			}
			if attempt < maxAttempts {
				d.sleep(retryDelay(w.RetryPolicy.Strategy, attempt, w.RetryPolicy.InitialDelayMs))
			}
		}
	}

	// Retries exhausted. The breaker counts terminal failures, not the
	// individual attempts inside one sequence.
	if d.breaker != nil {
		d.breaker.RecordFailure(ctx, w.ID)
	}

	outcome.DurationMs = d.now().Sub(start).Milliseconds()
	d.logOutcome(outcome)
	return outcome
}

// attempt performs a single signed POST bounded by the webhook's timeout.
func (d *Deliverer) attempt(ctx context.Context, job DeliveryJob) (int, string, error) {
	w := job.Webhook

	timeout := time.Duration(w.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, w.URL, bytes.NewReader(job.Body))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerEvent, job.Event)
	req.Header.Set(headerTimestamp, job.Timestamp)
	req.Header.Set(headerSession, job.SessionID)
	for _, h := range w.CustomHeaders {
		req.Header.Set(h.Name, h.Value)
	}
	if w.Secret != "" {
		req.Header.Set(headerSignature, "sha256="+SignPayload(w.Secret, job.Body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	return resp.StatusCode, string(body), nil
}

func (d *Deliverer) logOutcome(o domain.DeliveryOutcome) {
	if o.Success {
		d.logger.Info("delivery successful",
			"webhook_id", o.WebhookID,
			"session_id", o.SessionID,
			"event", o.Event,
			"attempts", o.Attempts,
			"status_code", o.StatusCode,
			"duration_ms", o.DurationMs,
		)
		return
	}
	d.logger.Warn("delivery failed",
		"webhook_id", o.WebhookID,
		"session_id", o.SessionID,
		"event", o.Event,
		"attempts", o.Attempts,
		"status_code", o.StatusCode,
		"error", o.Error,
		"duration_ms", o.DurationMs,
	)
}

// SignPayload computes the lowercase hex HMAC-SHA256 of body under secret.
// Receivers recompute this over the raw request body to authenticate the
// delivery.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
