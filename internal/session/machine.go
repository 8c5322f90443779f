package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/events"
)

// Publisher receives the typed internal events the machine emits after a
// transition commits. Implementations must not block for long; delivery
// fan-out happens downstream.
type Publisher interface {
	Publish(evt domain.Event)
}

// StatusMirror projects session state to the storage collaborator. Mirror
// writes are best-effort: a failure is logged and never rolls back the
// in-memory transition, because the driver is the single source of truth.
type StatusMirror interface {
	UpsertSession(ctx context.Context, s domain.Session) error
}

// Machine mirrors one driver's asynchronous lifecycle into the session
// store. Driver events for a single session arrive as one ordered stream;
// events invalid for the current state are logged and ignored without
// touching the store.
type Machine struct {
	store     *Store
	publisher Publisher
	mirror    StatusMirror
	logger    *slog.Logger

	now func() time.Time
}

func NewMachine(store *Store, publisher Publisher, mirror StatusMirror, logger *slog.Logger) *Machine {
	return &Machine{
		store:     store,
		publisher: publisher,
		mirror:    mirror,
		logger:    logger,
		now:       time.Now,
	}
}

// Handlers returns the callback set to subscribe on sessionID's driver.
func (m *Machine) Handlers(sessionID string) Handlers {
	return Handlers{
		QR:            func(raw string) { m.HandleQR(sessionID, raw) },
		Authenticated: func() { m.HandleAuthenticated(sessionID) },
		Ready:         func(info ConnectionInfo) { m.HandleReady(sessionID, info) },
		Disconnected:  func(reason string) { m.HandleDisconnected(sessionID, reason) },
		AuthFailure:   func(errMsg string) { m.HandleAuthFailure(sessionID, errMsg) },
		StateChange:   func(state string) { m.HandleStateChange(sessionID, state) },
		Passthrough:   func(event string, data json.RawMessage) { m.HandlePassthrough(sessionID, event, data) },
	}
}

// Each driver event names the states it is valid from. Anything else is an
// invalid transition: logged, store untouched.
var validFrom = map[string][]domain.SessionStatus{
	"qr":            {domain.StatusInitializing, domain.StatusScanQR},
	"authenticated": {domain.StatusInitializing, domain.StatusScanQR},
	"ready": {domain.StatusInitializing, domain.StatusScanQR,
		domain.StatusAuthenticating, domain.StatusAuthenticated},
	"disconnected": {domain.StatusAuthenticating, domain.StatusAuthenticated,
		domain.StatusConnected},
	"auth_failure": {domain.StatusInitializing, domain.StatusScanQR,
		domain.StatusAuthenticating},
}

// HandleQR stores a fresh raw QR code and moves the session to SCAN_QR.
func (m *Machine) HandleQR(sessionID, raw string) {
	m.apply(sessionID, "qr", func(s *domain.Session) {
		now := m.now()
		s.Status = domain.StatusScanQR
		s.QRCode = raw
		s.LastQRAt = &now
	}, events.SessionQR, map[string]any{"qr": raw})
}

// HandleAuthenticated clears the QR and moves to AUTHENTICATING.
func (m *Machine) HandleAuthenticated(sessionID string) {
	m.apply(sessionID, "authenticated", func(s *domain.Session) {
		s.Status = domain.StatusAuthenticating
		s.QRCode = ""
	}, events.SessionAuthenticated, map[string]any{})
}

// HandleReady records the connected identity and moves to CONNECTED.
func (m *Machine) HandleReady(sessionID string, info ConnectionInfo) {
	m.apply(sessionID, "ready", func(s *domain.Session) {
		now := m.now()
		s.Status = domain.StatusConnected
		s.QRCode = ""
		s.PhoneNumber = info.PhoneNumber
		s.DisplayName = info.DisplayName
		s.ConnectedAt = &now
	}, events.SessionReady, map[string]any{
		"phoneNumber": info.PhoneNumber,
		"displayName": info.DisplayName,
	})
}

// HandleDisconnected moves to DISCONNECTED. Recovery requires an explicit
// restart; the machine never reconnects on its own.
func (m *Machine) HandleDisconnected(sessionID, reason string) {
	m.apply(sessionID, "disconnected", func(s *domain.Session) {
		now := m.now()
		s.Status = domain.StatusDisconnected
		s.DisconnectedAt = &now
	}, events.SessionDisconnected, map[string]any{"reason": reason})
}

// HandleAuthFailure moves to FAILED. When the error text looks like a QR
// scan timeout, a secondary session.qr_timeout event is emitted so callers
// watching for it can prompt a restart.
func (m *Machine) HandleAuthFailure(sessionID, errMsg string) {
	applied := m.apply(sessionID, "auth_failure", func(s *domain.Session) {
		s.Status = domain.StatusFailed
		s.QRCode = ""
	}, events.SessionFailed, map[string]any{"error": errMsg})

	if applied && isQRTimeout(errMsg) {
		m.emit(sessionID, events.SessionQRTimeout, map[string]any{"error": errMsg})
	}
}

// driverStates maps raw driver connection states onto session statuses.
var driverStates = map[string]domain.SessionStatus{
	"OPENING":            domain.StatusInitializing,
	"PAIRING":            domain.StatusScanQR,
	"UNPAIRED":           domain.StatusLoggedOut,
	"UNPAIRED_IDLE":      domain.StatusLoggedOut,
	"CONNECTED":          domain.StatusConnected,
	"TIMEOUT":            domain.StatusDisconnected,
	"CONFLICT":           domain.StatusDisconnected,
	"DEPRECATED_VERSION": domain.StatusFailed,
}

// HandleStateChange re-derives the status from the driver-state lookup.
// It is a no-op when the mapped status equals the current one, when the
// driver state is unknown, or when the session is already in a state that
// only an explicit restart may leave.
func (m *Machine) HandleStateChange(sessionID, driverState string) {
	target, ok := driverStates[driverState]
	if !ok {
		m.logger.Debug("ignoring unknown driver state",
			"session_id", sessionID,
			"driver_state", driverState,
		)
		return
	}

	rec, found := m.store.Get(sessionID)
	if !found {
		m.logger.Warn("driver event for unknown session",
			"session_id", sessionID, "event", "change_state")
		return
	}

	var updated domain.Session
	changed := false
	rec.Update(func(s *domain.Session) {
		if s.Status == target || s.Status.NeedsRestart() {
			return
		}
		s.Status = target
		if !target.QRPending() {
			s.QRCode = ""
		}
		s.UpdatedAt = m.now()
		changed = true
		updated = *s
	})
	if !changed {
		return
	}

	m.logger.Info("session state re-derived",
		"session_id", sessionID,
		"driver_state", driverState,
		"status", updated.Status,
	)
	m.mirrorSession(updated)
}

// HandlePassthrough forwards message/group/call events into the pipeline
// without state-machine involvement.
func (m *Machine) HandlePassthrough(sessionID, event string, data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	m.publisher.Publish(domain.Event{
		Event:     event,
		SessionID: sessionID,
		Timestamp: m.now(),
		Data:      data,
	})
}

// apply runs one validated transition: check the table, mutate status and
// QR under the record lock, mirror, then emit. Returns false if the event
// was invalid for the current state or the session is unknown.
func (m *Machine) apply(sessionID, event string, mutate func(*domain.Session), emitName string, data map[string]any) bool {
	rec, ok := m.store.Get(sessionID)
	if !ok {
		m.logger.Warn("driver event for unknown session",
			"session_id", sessionID, "event", event)
		return false
	}

	var updated domain.Session
	accepted := false
	rec.Update(func(s *domain.Session) {
		if !transitionAllowed(event, s.Status) {
			updated = *s
			return
		}
		mutate(s)
		s.UpdatedAt = m.now()
		accepted = true
		updated = *s
	})

	if !accepted {
		m.logger.Warn("invalid session transition ignored",
			"session_id", sessionID,
			"event", event,
			"status", updated.Status,
		)
		return false
	}

	m.logger.Info("session transition",
		"session_id", sessionID,
		"event", event,
		"status", updated.Status,
	)

	m.mirrorSession(updated)
	m.emit(sessionID, emitName, data)
	return true
}

func (m *Machine) emit(sessionID, event string, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("failed to marshal event data",
			"session_id", sessionID, "event", event, "error", err)
		raw = json.RawMessage(`{}`)
	}
	m.publisher.Publish(domain.Event{
		Event:     event,
		SessionID: sessionID,
		Timestamp: m.now(),
		Data:      raw,
	})
}

func (m *Machine) mirrorSession(s domain.Session) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.mirror.UpsertSession(ctx, s); err != nil {
		m.logger.Error("failed to mirror session status",
			"session_id", s.ID, "status", s.Status, "error", err)
	}
}

func transitionAllowed(event string, from domain.SessionStatus) bool {
	for _, s := range validFrom[event] {
		if s == from {
			return true
		}
	}
	return false
}

// isQRTimeout classifies an auth failure as a QR scan timeout by substring.
// Deliberately crude: the driver reports these as free text, so this can
// under- or over-classify. The product treats the secondary event as
// best-effort.
func isQRTimeout(errMsg string) bool {
	msg := strings.ToLower(errMsg)
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "retry") ||
		strings.Contains(msg, "qr")
}
