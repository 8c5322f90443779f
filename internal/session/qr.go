package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
)

// Sentinel results for WaitForQRCode's early exits. All are user-visible.
var (
	// ErrQRNotNeeded: the session is already connected.
	ErrQRNotNeeded = errors.New("session already connected, no QR code needed")
	// ErrQRAlreadyScanned: authentication is in progress.
	ErrQRAlreadyScanned = errors.New("QR code already scanned, authentication in progress")
	// ErrQRSessionFailed: the session is in a state only a restart can leave.
	ErrQRSessionFailed = errors.New("session failed or disconnected, restart the session to get a new QR code")
	// ErrQRTimeout: the deadline passed while the driver was still initializing.
	ErrQRTimeout = errors.New("QR code not ready yet, session still initializing; retry or restart the session")
)

// PairingStateError reports a pairing-code request made outside the
// awaiting-authentication subset, naming the blocking status.
type PairingStateError struct {
	Status string
}

func (e *PairingStateError) Error() string {
	return fmt.Sprintf("pairing code unavailable while session is %s; expected INITIALIZING or SCAN_QR", e.Status)
}

const (
	qrPollInterval = 500 * time.Millisecond
	qrMaxWait      = 10 * time.Second
)

// Coordinator turns the event-driven QR and pairing flows into bounded
// request/response calls. It only ever reads the session store; state
// mutation stays with the machine.
type Coordinator struct {
	store *Store

	// Injectable time primitives so tests run without real delays.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{
		store: store,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// WaitForQRCode polls the store until a QR code arrives or an early-exit
// condition fires, checked in priority order each iteration: QR present,
// already connected, auth in progress, failed/needs-restart. The timeout
// is clamped to 10s so callers don't outlive their own HTTP timeouts. No
// lock is held across the sleep.
func (c *Coordinator) WaitForQRCode(ctx context.Context, sessionID string, timeout time.Duration) (string, error) {
	if timeout <= 0 || timeout > qrMaxWait {
		timeout = qrMaxWait
	}
	deadline := c.now().Add(timeout)

	for {
		rec, ok := c.store.Get(sessionID)
		if !ok {
			return "", ErrSessionNotFound
		}
		s := rec.Snapshot()

		switch {
		case s.QRCode != "":
			return s.QRCode, nil
		case s.Status == domain.StatusConnected:
			return "", ErrQRNotNeeded
		case s.Status == domain.StatusAuthenticating || s.Status == domain.StatusAuthenticated:
			return "", ErrQRAlreadyScanned
		case s.Status.NeedsRestart():
			return "", ErrQRSessionFailed
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !c.now().Before(deadline) {
			return "", ErrQRTimeout
		}
		c.sleep(qrPollInterval)
	}
}

// RequestPairingCode asks the session's driver for a phone-number pairing
// code. Valid only while the session is awaiting authentication; the
// returned code is regrouped in 4-character blocks for display. Each call
// may issue a fresh code, which is driver behavior, not controlled here.
func (c *Coordinator) RequestPairingCode(ctx context.Context, sessionID, phoneNumber string) (string, error) {
	rec, ok := c.store.Get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}

	s := rec.Snapshot()
	if s.Status != domain.StatusInitializing && s.Status != domain.StatusScanQR {
		return "", &PairingStateError{Status: string(s.Status)}
	}

	code, err := rec.Driver().RequestPairingCode(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("requesting pairing code: %w", err)
	}

	return formatPairingCode(code), nil
}

// formatPairingCode groups a raw code into dash-separated 4-char blocks,
// e.g. "ABCDEFGH" -> "ABCD-EFGH". Codes already containing separators are
// regrouped from their raw characters.
func formatPairingCode(code string) string {
	raw := strings.NewReplacer("-", "", " ", "").Replace(code)
	if len(raw) <= 4 {
		return raw
	}

	var b strings.Builder
	for i, r := range raw {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
