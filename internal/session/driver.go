package session

import (
	"context"
	"encoding/json"
)

// ConnectionInfo is what a driver reports once the account is fully
// connected and usable.
type ConnectionInfo struct {
	PhoneNumber string
	DisplayName string
}

// Handlers are the listener callbacks the state machine registers on a
// driver. The driver fires at most one status-affecting callback at a
// time for a given session; no other ordering is assumed. Passthrough
// carries message/group/call events that bypass the state machine and go
// straight to the event pipeline.
type Handlers struct {
	QR            func(raw string)
	Authenticated func()
	Ready         func(info ConnectionInfo)
	Disconnected  func(reason string)
	AuthFailure   func(errMsg string)
	StateChange   func(driverState string)
	Passthrough   func(event string, data json.RawMessage)
}

// Driver is the external component that speaks the remote messaging
// protocol for exactly one session. Implementations are owned exclusively
// by their session record and never shared.
type Driver interface {
	// Subscribe registers the callbacks. Must be called before Start.
	Subscribe(h Handlers)

	// Start begins the driver's asynchronous lifecycle. Events arrive on
	// the subscribed handlers from this point on.
	Start(ctx context.Context) error

	// Stop tears the driver down. No callbacks fire after Stop returns.
	Stop(ctx context.Context) error

	// RequestPairingCode asks the remote service for a phone-number
	// pairing code. Each call may issue a new code.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)
}

// DriverFactory builds a fresh driver for a session. Restarting a session
// always goes through the factory so no driver instance is ever reused.
type DriverFactory func(sessionID string) Driver
