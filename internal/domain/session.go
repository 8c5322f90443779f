package domain

import (
	"time"
)

// SessionStatus is the externally visible connection state of a session.
type SessionStatus string

const (
	StatusInitializing   SessionStatus = "INITIALIZING"
	StatusScanQR         SessionStatus = "SCAN_QR"
	StatusAuthenticating SessionStatus = "AUTHENTICATING"
	StatusAuthenticated  SessionStatus = "AUTHENTICATED"
	StatusConnected      SessionStatus = "CONNECTED"
	StatusDisconnected   SessionStatus = "DISCONNECTED"
	StatusLoggedOut      SessionStatus = "LOGGED_OUT"
	StatusFailed         SessionStatus = "FAILED"
)

// Valid reports whether s is one of the declared session states.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusInitializing, StatusScanQR, StatusAuthenticating, StatusAuthenticated,
		StatusConnected, StatusDisconnected, StatusLoggedOut, StatusFailed:
		return true
	}
	return false
}

// QRPending reports whether a QR code may legitimately be present.
func (s SessionStatus) QRPending() bool {
	return s == StatusInitializing || s == StatusScanQR
}

// NeedsRestart reports whether the session can only recover via an
// explicit restart command.
func (s SessionStatus) NeedsRestart() bool {
	return s == StatusDisconnected || s == StatusLoggedOut || s == StatusFailed
}

// Session is one managed messaging account. The authoritative copy lives
// in the in-memory session store; the Postgres row is a projection.
type Session struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	Status         SessionStatus `json:"status"`
	QRCode         string        `json:"qr_code,omitempty"`
	PhoneNumber    string        `json:"phone_number,omitempty"`
	DisplayName    string        `json:"display_name,omitempty"`
	ConnectedAt    *time.Time    `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time    `json:"disconnected_at,omitempty"`
	LastQRAt       *time.Time    `json:"last_qr_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
