package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SimulatedDriver walks a scripted lifecycle (qr, authenticated, ready)
// on a timer, for local development and integration testing without a
// real messaging backend. Pairing short-circuits the QR path the way a
// real driver does: requesting a code suppresses further QR emissions.
type SimulatedDriver struct {
	sessionID string
	stepDelay time.Duration

	mu       sync.Mutex
	handlers Handlers
	paired   bool
	cancel   context.CancelFunc
}

func NewSimulatedDriver(sessionID string) *SimulatedDriver {
	return &SimulatedDriver{
		sessionID: sessionID,
		stepDelay: 2 * time.Second,
	}
}

func (d *SimulatedDriver) Subscribe(h Handlers) {
	d.mu.Lock()
	d.handlers = h
	d.mu.Unlock()
}

func (d *SimulatedDriver) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(runCtx)
	return nil
}

func (d *SimulatedDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (d *SimulatedDriver) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return "", fmt.Errorf("phone number is required")
	}

	d.mu.Lock()
	d.paired = true
	h := d.handlers
	d.mu.Unlock()

	code := randomToken(4)
	// Entering the code on the phone is simulated as immediate success.
	go func() {
		time.Sleep(d.stepDelay)
		if h.Authenticated != nil {
			h.Authenticated()
		}
		time.Sleep(d.stepDelay)
		if h.Ready != nil {
			h.Ready(ConnectionInfo{PhoneNumber: phoneNumber, DisplayName: "Simulated Account"})
		}
	}()

	return code, nil
}

func (d *SimulatedDriver) run(ctx context.Context) {
	ticker := time.NewTicker(d.stepDelay)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.mu.Lock()
		h := d.handlers
		paired := d.paired
		d.mu.Unlock()
		if paired {
			return
		}

		switch step {
		case 0, 1:
			if h.QR != nil {
				h.QR("sim-qr-" + randomToken(8))
			}
		case 2:
			if h.Authenticated != nil {
				h.Authenticated()
			}
		case 3:
			if h.Ready != nil {
				h.Ready(ConnectionInfo{PhoneNumber: "+15550100", DisplayName: "Simulated Account"})
			}
			return
		}
		step++
	}
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", n*2)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
