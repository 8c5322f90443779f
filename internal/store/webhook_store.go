package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/jackc/pgx/v5"
)

const webhookColumns = `id, session_id, url, is_active, events, secret, custom_headers,
	retry_attempts, retry_initial_delay_ms, retry_strategy, timeout_ms,
	rate_limit_per_second, created_at, updated_at`

// InsertWebhook persists a subscription. Events arrive already expanded;
// the store never sees a wildcard token.
func (s *PostgresStore) InsertWebhook(ctx context.Context, w domain.WebhookSubscription) error {
	headers, err := json.Marshal(w.CustomHeaders)
	if err != nil {
		return fmt.Errorf("marshaling custom headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions
			(id, session_id, url, is_active, events, secret, custom_headers,
			 retry_attempts, retry_initial_delay_ms, retry_strategy, timeout_ms,
			 rate_limit_per_second, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, w.ID, w.SessionID, w.URL, w.IsActive, w.Events, w.Secret, headers,
		w.RetryPolicy.Attempts, w.RetryPolicy.InitialDelayMs, string(w.RetryPolicy.Strategy),
		w.TimeoutMs, w.RateLimitPerSecond, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting webhook: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWebhook(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE id = $1`, id)

	w, err := scanWebhook(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) ListWebhooks(ctx context.Context, sessionID string) ([]domain.WebhookSubscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE session_id = $1 ORDER BY created_at`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

// ListActiveWebhooksForEvent is the delivery engine's read path: active
// subscriptions for the session whose expanded set contains event.
func (s *PostgresStore) ListActiveWebhooksForEvent(ctx context.Context, sessionID, event string) ([]domain.WebhookSubscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+webhookColumns+` FROM webhook_subscriptions
		 WHERE session_id = $1 AND is_active AND $2 = ANY(events)
		 ORDER BY created_at`,
		sessionID, event)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks for event: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func (s *PostgresStore) UpdateWebhook(ctx context.Context, w domain.WebhookSubscription) error {
	headers, err := json.Marshal(w.CustomHeaders)
	if err != nil {
		return fmt.Errorf("marshaling custom headers: %w", err)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE webhook_subscriptions SET
			url = $2, is_active = $3, events = $4, secret = $5, custom_headers = $6,
			retry_attempts = $7, retry_initial_delay_ms = $8, retry_strategy = $9,
			timeout_ms = $10, rate_limit_per_second = $11, updated_at = $12
		WHERE id = $1
	`, w.ID, w.URL, w.IsActive, w.Events, w.Secret, headers,
		w.RetryPolicy.Attempts, w.RetryPolicy.InitialDelayMs, string(w.RetryPolicy.Strategy),
		w.TimeoutMs, w.RateLimitPerSecond, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook not found")
	}
	return nil
}

func (s *PostgresStore) DeleteWebhook(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook not found")
	}
	return nil
}

func scanWebhook(row pgx.Row) (*domain.WebhookSubscription, error) {
	var (
		w        domain.WebhookSubscription
		headers  []byte
		strategy string
	)
	err := row.Scan(
		&w.ID, &w.SessionID, &w.URL, &w.IsActive, &w.Events, &w.Secret, &headers,
		&w.RetryPolicy.Attempts, &w.RetryPolicy.InitialDelayMs, &strategy,
		&w.TimeoutMs, &w.RateLimitPerSecond, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.RetryPolicy.Strategy = domain.BackoffStrategy(strategy)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &w.CustomHeaders); err != nil {
			return nil, fmt.Errorf("unmarshaling custom headers: %w", err)
		}
	}
	return &w, nil
}

func collectWebhooks(rows pgx.Rows) ([]domain.WebhookSubscription, error) {
	webhooks := []domain.WebhookSubscription{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, *w)
	}
	return webhooks, rows.Err()
}
