package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/session-gateway/internal/domain"
)

// UpsertSession projects an in-memory session record into Postgres. The
// row is written on every accepted transition and is only ever a mirror:
// the state machine never reads it back.
func (s *PostgresStore) UpsertSession(ctx context.Context, sess domain.Session) error {
	var qr *string
	if sess.QRCode != "" {
		qr = &sess.QRCode
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions
			(id, tenant_id, status, qr_code, phone_number, display_name,
			 connected_at, disconnected_at, last_qr_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			qr_code = EXCLUDED.qr_code,
			phone_number = EXCLUDED.phone_number,
			display_name = EXCLUDED.display_name,
			connected_at = EXCLUDED.connected_at,
			disconnected_at = EXCLUDED.disconnected_at,
			last_qr_at = EXCLUDED.last_qr_at,
			updated_at = EXCLUDED.updated_at
	`, sess.ID, sess.TenantID, string(sess.Status), qr, sess.PhoneNumber, sess.DisplayName,
		sess.ConnectedAt, sess.DisconnectedAt, sess.LastQRAt, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// DeleteSession removes the mirror row for a deleted session.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
