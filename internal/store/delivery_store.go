package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordOutcome inserts one terminal delivery outcome. Outcomes are
// append-only; nothing updates a row after this insert.
func (s *PostgresStore) RecordOutcome(ctx context.Context, o domain.DeliveryOutcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	var excerpt *string
	if o.ResponseExcerpt != "" {
		excerpt = &o.ResponseExcerpt
	}
	var errMsg *string
	if o.Error != "" {
		errMsg = &o.Error
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_outcomes
			(id, webhook_id, session_id, event, occurred_at, attempts, success,
			 status_code, response_excerpt, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.WebhookID, o.SessionID, o.Event, o.Timestamp, o.Attempts, o.Success,
		o.StatusCode, excerpt, errMsg, o.DurationMs)
	if err != nil {
		return fmt.Errorf("inserting delivery outcome: %w", err)
	}
	return nil
}

// OutcomeFilter narrows ListOutcomes. Zero values mean no filtering.
type OutcomeFilter struct {
	SessionID string
	WebhookID string
	Event     string
	Limit     int
}

// ListOutcomes returns delivery outcomes, newest first.
func (s *PostgresStore) ListOutcomes(ctx context.Context, f OutcomeFilter) ([]domain.DeliveryOutcome, error) {
	query := `SELECT id, webhook_id, session_id, event, occurred_at, attempts, success,
		status_code, response_excerpt, error_message, duration_ms
		FROM delivery_outcomes`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if f.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", argIdx))
		args = append(args, f.SessionID)
		argIdx++
	}
	if f.WebhookID != "" {
		conditions = append(conditions, fmt.Sprintf("webhook_id = $%d", argIdx))
		args = append(args, f.WebhookID)
		argIdx++
	}
	if f.Event != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argIdx))
		args = append(args, f.Event)
		argIdx++
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY occurred_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []domain.DeliveryOutcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery outcome: %w", err)
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, rows.Err()
}

// GetOutcome returns a single delivery outcome by ID.
func (s *PostgresStore) GetOutcome(ctx context.Context, id string) (*domain.DeliveryOutcome, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, webhook_id, session_id, event, occurred_at, attempts, success,
			status_code, response_excerpt, error_message, duration_ms
		FROM delivery_outcomes WHERE id = $1
	`, id)

	o, err := scanOutcome(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery outcome: %w", err)
	}
	return o, nil
}

// PruneOutcomes deletes outcomes older than cutoff, keeping the delivery
// log bounded. Returns the number of rows removed.
func (s *PostgresStore) PruneOutcomes(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM delivery_outcomes WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning delivery outcomes: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanOutcome(row pgx.Row) (*domain.DeliveryOutcome, error) {
	var (
		o       domain.DeliveryOutcome
		excerpt *string
		errMsg  *string
	)
	err := row.Scan(
		&o.ID, &o.WebhookID, &o.SessionID, &o.Event, &o.Timestamp, &o.Attempts,
		&o.Success, &o.StatusCode, &excerpt, &errMsg, &o.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	if excerpt != nil {
		o.ResponseExcerpt = *excerpt
	}
	if errMsg != nil {
		o.Error = *errMsg
	}
	return &o, nil
}
