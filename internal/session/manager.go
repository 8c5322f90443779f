package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/google/uuid"
)

// StatusMirrorRemover is implemented by mirrors that can drop the
// projected row once a session is removed.
type StatusMirrorRemover interface {
	DeleteSession(ctx context.Context, id string) error
}

// Manager owns session lifecycle commands: create, restart, logout,
// delete. It builds each session's driver through the factory, wires the
// machine's handlers, and is the only component that stops or replaces a
// driver instance.
type Manager struct {
	store   *Store
	machine *Machine
	factory DriverFactory
	mirror  StatusMirror
	logger  *slog.Logger

	now func() time.Time
}

func NewManager(store *Store, machine *Machine, factory DriverFactory, mirror StatusMirror, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		machine: machine,
		factory: factory,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
	}
}

// Create registers a fresh INITIALIZING session for tenantID and starts
// its driver.
func (mg *Manager) Create(ctx context.Context, tenantID string) (domain.Session, error) {
	now := mg.now()
	s := domain.Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Status:    domain.StatusInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	drv := mg.factory(s.ID)
	drv.Subscribe(mg.machine.Handlers(s.ID))

	rec := mg.store.Put(s, drv)
	mg.mirrorSession(ctx, s)

	if err := drv.Start(ctx); err != nil {
		mg.store.Delete(s.ID)
		return domain.Session{}, fmt.Errorf("starting driver: %w", err)
	}

	mg.logger.Info("session created", "session_id", s.ID, "tenant_id", tenantID)
	return rec.Snapshot(), nil
}

// Get returns a snapshot of the session.
func (mg *Manager) Get(id string) (domain.Session, error) {
	rec, ok := mg.store.Get(id)
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return rec.Snapshot(), nil
}

// List returns snapshots of all managed sessions.
func (mg *Manager) List() []domain.Session {
	return mg.store.List()
}

// Restart stops the old driver and rebuilds the session as a fresh
// INITIALIZING instance with a new driver. This is the only way out of
// DISCONNECTED, FAILED, and LOGGED_OUT.
func (mg *Manager) Restart(ctx context.Context, id string) (domain.Session, error) {
	rec, ok := mg.store.Get(id)
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	if old := rec.Driver(); old != nil {
		if err := old.Stop(ctx); err != nil {
			mg.logger.Warn("failed to stop driver during restart",
				"session_id", id, "error", err)
		}
	}

	drv := mg.factory(id)
	drv.Subscribe(mg.machine.Handlers(id))

	updated := rec.Update(func(s *domain.Session) {
		s.Status = domain.StatusInitializing
		s.QRCode = ""
		s.PhoneNumber = ""
		s.DisplayName = ""
		s.ConnectedAt = nil
		s.DisconnectedAt = nil
		s.LastQRAt = nil
		s.UpdatedAt = mg.now()
	})
	rec.SetDriver(drv)
	mg.mirrorSession(ctx, updated)

	if err := drv.Start(ctx); err != nil {
		return domain.Session{}, fmt.Errorf("starting driver: %w", err)
	}

	mg.logger.Info("session restarted", "session_id", id)
	return rec.Snapshot(), nil
}

// Logout stops the driver and parks the session in LOGGED_OUT, absorbing
// until an explicit restart.
func (mg *Manager) Logout(ctx context.Context, id string) (domain.Session, error) {
	rec, ok := mg.store.Get(id)
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	if drv := rec.Driver(); drv != nil {
		if err := drv.Stop(ctx); err != nil {
			mg.logger.Warn("failed to stop driver during logout",
				"session_id", id, "error", err)
		}
	}

	updated := rec.Update(func(s *domain.Session) {
		now := mg.now()
		s.Status = domain.StatusLoggedOut
		s.QRCode = ""
		s.DisconnectedAt = &now
		s.UpdatedAt = now
	})
	mg.mirrorSession(ctx, updated)

	mg.logger.Info("session logged out", "session_id", id)
	return updated, nil
}

// Delete stops the driver and removes the session from the store.
func (mg *Manager) Delete(ctx context.Context, id string) error {
	rec, ok := mg.store.Delete(id)
	if !ok {
		return ErrSessionNotFound
	}

	if drv := rec.Driver(); drv != nil {
		if err := drv.Stop(ctx); err != nil {
			mg.logger.Warn("failed to stop driver during delete",
				"session_id", id, "error", err)
		}
	}

	if remover, ok := mg.mirror.(StatusMirrorRemover); ok {
		if err := remover.DeleteSession(ctx, id); err != nil {
			mg.logger.Error("failed to remove session mirror row",
				"session_id", id, "error", err)
		}
	}

	mg.logger.Info("session deleted", "session_id", id)
	return nil
}

func (mg *Manager) mirrorSession(ctx context.Context, s domain.Session) {
	if mg.mirror == nil {
		return
	}
	if err := mg.mirror.UpsertSession(ctx, s); err != nil {
		mg.logger.Error("failed to mirror session status",
			"session_id", s.ID, "status", s.Status, "error", err)
	}
}
