package api

import (
	"net/http"

	"github.com/Priya8975/session-gateway/internal/engine"
	"github.com/Priya8975/session-gateway/internal/session"
	"github.com/Priya8975/session-gateway/internal/webhook"
	ws "github.com/Priya8975/session-gateway/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DeliveryLog is the handlers' read view of recorded delivery outcomes.
// *store.PostgresStore implements it.
type DeliveryLog interface {
	ListOutcomesHandler
	GetOutcomeHandler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(manager *session.Manager, coordinator *session.Coordinator, registry *webhook.Registry, deliveries DeliveryLog, cb *engine.CircuitBreaker, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	sessionHandler := NewSessionHandler(manager, coordinator)
	webhookHandler := NewWebhookHandler(registry, cb)
	deliveryHandler := NewDeliveryHandler(deliveries)

	// WebSocket endpoint for live session/delivery activity
	r.Get("/ws", hub.HandleWebSocket)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)
			r.Get("/{id}", sessionHandler.Get)
			r.Delete("/{id}", sessionHandler.Delete)
			r.Get("/{id}/qr", sessionHandler.QRCode)
			r.Post("/{id}/pairing-code", sessionHandler.PairingCode)
			r.Post("/{id}/restart", sessionHandler.Restart)
			r.Post("/{id}/logout", sessionHandler.Logout)

			r.Route("/{id}/webhooks", func(r chi.Router) {
				r.Post("/", webhookHandler.Create)
				r.Get("/", webhookHandler.List)
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/{id}", webhookHandler.Get)
			r.Patch("/{id}", webhookHandler.Update)
			r.Delete("/{id}", webhookHandler.Delete)
			r.Get("/{id}/health", webhookHandler.Health)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})
	})

	return r
}
