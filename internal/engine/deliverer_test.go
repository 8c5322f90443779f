package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestDeliverer() (*Deliverer, *[]time.Duration) {
	d := NewDeliverer(nil, nil, discardLogger())
	sleeps := &[]time.Duration{}
	d.sleep = func(dur time.Duration) { *sleeps = append(*sleeps, dur) }
	return d, sleeps
}

func testJob(url string) DeliveryJob {
	return DeliveryJob{
		Webhook: domain.WebhookSubscription{
			ID:        "wh-1",
			SessionID: "s1",
			URL:       url,
			IsActive:  true,
			Events:    []string{"session.qr"},
			RetryPolicy: domain.RetryPolicy{
				Attempts:       3,
				InitialDelayMs: 100,
				Strategy:       domain.BackoffExponential,
			},
			TimeoutMs: 5000,
		},
		Event:     "session.qr",
		SessionID: "s1",
		Timestamp: "2026-01-01T00:00:00Z",
		Body:      []byte(`{"event":"session.qr","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","data":{}}`),
	}
}

func TestDeliver_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"received"}`))
	}))
	defer srv.Close()

	d, sleeps := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if !outcome.Success {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if outcome.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.StatusCode == nil || *outcome.StatusCode != 200 {
		t.Errorf("status code = %v, want 200", outcome.StatusCode)
	}
	if outcome.ResponseExcerpt != `{"status":"received"}` {
		t.Errorf("excerpt = %q", outcome.ResponseExcerpt)
	}
	if len(*sleeps) != 0 {
		t.Errorf("no backoff expected on first-attempt success, slept %v", *sleeps)
	}
}

func TestDeliver_WireFormat(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := testJob(srv.URL)
	job.Webhook.Secret = "hunter2"
	job.Webhook.CustomHeaders = []domain.Header{{Name: "X-Team", Value: "platform"}}

	d, _ := newTestDeliverer()
	if outcome := d.Deliver(context.Background(), job); !outcome.Success {
		t.Fatalf("delivery failed: %+v", outcome)
	}

	if string(gotBody) != string(job.Body) {
		t.Errorf("body = %s, want the pre-serialized payload", gotBody)
	}

	want := map[string]string{
		"Content-Type":               "application/json",
		"User-Agent":                 "SessionGateway-Webhook/1.0",
		"X-SessionGateway-Event":     "session.qr",
		"X-SessionGateway-Timestamp": "2026-01-01T00:00:00Z",
		"X-SessionGateway-Session":   "s1",
		"X-Team":                     "platform",
		"X-SessionGateway-Signature": "sha256=" + SignPayload("hunter2", job.Body),
	}
	for name, value := range want {
		if got := gotHeader.Get(name); got != value {
			t.Errorf("header %s = %q, want %q", name, got, value)
		}
	}
}

func TestDeliver_NoSignatureWithoutSecret(t *testing.T) {
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, _ := newTestDeliverer()
	d.Deliver(context.Background(), testJob(srv.URL))

	if got := gotHeader.Get("X-SessionGateway-Signature"); got != "" {
		t.Errorf("signature header should be absent without a secret, got %q", got)
	}
}

func TestDeliver_TransientFailureThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, sleeps := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if !outcome.Success {
		t.Fatalf("outcome = %+v, want eventual success", outcome)
	}
	if outcome.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", outcome.Attempts)
	}
	// Exponential backoff from 100ms: 100ms after the first failure,
	// 200ms after the second.
	wantSleeps := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, wantSleeps)
	}
	for i := range wantSleeps {
		if (*sleeps)[i] != wantSleeps[i] {
			t.Errorf("sleeps = %v, want %v", *sleeps, wantSleeps)
		}
	}
}

func TestDeliver_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no such consumer"}`))
	}))
	defer srv.Close()

	d, sleeps := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if outcome.Success {
		t.Fatal("4xx must not produce a successful outcome")
	}
	if calls.Load() != 1 || outcome.Attempts != 1 {
		t.Errorf("4xx must stop retries: calls=%d attempts=%d", calls.Load(), outcome.Attempts)
	}
	if outcome.StatusCode == nil || *outcome.StatusCode != 404 {
		t.Errorf("status code = %v, want 404", outcome.StatusCode)
	}
	if !strings.Contains(outcome.Error, "404") {
		t.Errorf("error = %q, should name the status", outcome.Error)
	}
	if len(*sleeps) != 0 {
		t.Errorf("no backoff expected for permanent failure, slept %v", *sleeps)
	}
}

func TestDeliver_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, sleeps := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if outcome.Success {
		t.Fatal("exhausted delivery must not be successful")
	}
	if calls.Load() != 3 || outcome.Attempts != 3 {
		t.Errorf("calls=%d attempts=%d, want 3 each", calls.Load(), outcome.Attempts)
	}
	if outcome.StatusCode == nil || *outcome.StatusCode != 503 {
		t.Errorf("status code = %v, want last attempt's 503", outcome.StatusCode)
	}
	// Sleeps happen between attempts, not after the last one.
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
}

func TestDeliver_NetworkErrorIsTransient(t *testing.T) {
	// A closed server makes every attempt fail at the dial.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d, _ := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(url))

	if outcome.Success {
		t.Fatal("unreachable endpoint must not be successful")
	}
	if outcome.Attempts != 3 {
		t.Errorf("attempts = %d, want full retry budget", outcome.Attempts)
	}
	if outcome.StatusCode != nil {
		t.Errorf("network failure must leave status code unset, got %v", *outcome.StatusCode)
	}
	if outcome.Error == "" {
		t.Error("error text should be recorded")
	}
}

func TestDeliver_NetworkErrorClearsStaleExcerpt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	defer srv.Close()

	// First attempt gets the 500 body; the server goes away before the
	// retry, so later attempts fail at the dial.
	d, _ := newTestDeliverer()
	d.sleep = func(time.Duration) { srv.Close() }
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if outcome.Success {
		t.Fatalf("outcome = %+v, want failure", outcome)
	}
	if outcome.StatusCode != nil {
		t.Errorf("network failure must leave status code unset, got %v", *outcome.StatusCode)
	}
	if outcome.ResponseExcerpt != "" {
		t.Errorf("excerpt = %q, must not carry an earlier attempt's body", outcome.ResponseExcerpt)
	}
	if outcome.Error == "" {
		t.Error("error text should be recorded")
	}
}

func TestDeliver_BreakerCountsSequencesNotAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb, _ := setupTestCB(t)
	ctx := context.Background()

	d := NewDeliverer(nil, cb, discardLogger())
	d.sleep = func(time.Duration) {}
	if outcome := d.Deliver(ctx, testJob(srv.URL)); outcome.Success {
		t.Fatalf("outcome = %+v, want exhausted failure", outcome)
	}

	// Three transient attempts are one delivery sequence: one breaker
	// failure, circuit still closed.
	state := cb.GetState(ctx, "wh-1")
	if state.Failures != 1 {
		t.Errorf("breaker failures = %d, want 1 per terminal failure", state.Failures)
	}
	if state.State != StateClosed {
		t.Errorf("breaker state = %q, want closed", state.State)
	}
}

func TestDeliver_ZeroAttemptsStillTriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := testJob(srv.URL)
	job.Webhook.RetryPolicy.Attempts = 0

	d, _ := newTestDeliverer()
	outcome := d.Deliver(context.Background(), job)

	if !outcome.Success || calls.Load() != 1 {
		t.Errorf("zero-attempt policy should still deliver once: %+v", outcome)
	}
}

func TestDeliver_ResponseExcerptBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	d, _ := newTestDeliverer()
	outcome := d.Deliver(context.Background(), testJob(srv.URL))

	if len(outcome.ResponseExcerpt) != responseBodyLimit {
		t.Errorf("excerpt length = %d, want %d", len(outcome.ResponseExcerpt), responseBodyLimit)
	}
}

func TestDeliver_SkippedWhileBreakerOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cb, _ := setupTestCB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "wh-1")
	}

	d := NewDeliverer(nil, cb, discardLogger())
	d.sleep = func(time.Duration) {}
	outcome := d.Deliver(ctx, testJob(srv.URL))

	if outcome.Success {
		t.Fatal("delivery should be skipped while the breaker is open")
	}
	if calls.Load() != 0 {
		t.Errorf("no HTTP attempt should be made, got %d", calls.Load())
	}
	if !strings.Contains(outcome.Error, "circuit breaker open") {
		t.Errorf("error = %q, should report the open breaker", outcome.Error)
	}
}

func TestSignPayload(t *testing.T) {
	// HMAC-SHA256 reference value computed with an independent
	// implementation over these exact bytes.
	body := []byte(`{"event":"session.qr","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","data":{}}`)
	want := "1b204b371b8d63694085f05b4a1e5f0c021397afaca0a4e4e8996104ea3e8cce"

	if got := SignPayload("hunter2", body); got != want {
		t.Errorf("SignPayload = %q, want %q", got, want)
	}
	if sig := SignPayload("other", body); sig == want {
		t.Error("different secrets must produce different signatures")
	}
}
