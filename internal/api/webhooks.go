package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/engine"
	"github.com/Priya8975/session-gateway/internal/webhook"
	"github.com/go-chi/chi/v5"
)

type WebhookHandler struct {
	registry       *webhook.Registry
	circuitBreaker *engine.CircuitBreaker
}

func NewWebhookHandler(registry *webhook.Registry, cb *engine.CircuitBreaker) *WebhookHandler {
	return &WebhookHandler{registry: registry, circuitBreaker: cb}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req domain.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.registry.Create(r.Context(), sessionID, req)
	if err != nil {
		var cfgErr *webhook.ConfigError
		if errors.As(err, &cfgErr) {
			respondError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	webhooks, err := h.registry.List(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	respondJSON(w, http.StatusOK, webhooks)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.registry.Update(r.Context(), id, req)
	if err != nil {
		var cfgErr *webhook.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			respondError(w, http.StatusBadRequest, cfgErr.Error())
		case errors.Is(err, webhook.ErrWebhookNotFound):
			respondError(w, http.StatusNotFound, "webhook not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update webhook")
		}
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, webhook.ErrWebhookNotFound) {
			respondError(w, http.StatusNotFound, "webhook not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports a webhook's endpoint health as seen by the circuit breaker.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.registry.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "webhook not found")
		return
	}

	type healthResponse struct {
		WebhookID      string                     `json:"webhook_id"`
		URL            string                     `json:"url"`
		IsActive       bool                       `json:"is_active"`
		CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
	}

	state := engine.CircuitBreakerState{State: engine.StateClosed}
	if h.circuitBreaker != nil {
		state = h.circuitBreaker.GetState(r.Context(), id)
	}

	respondJSON(w, http.StatusOK, healthResponse{
		WebhookID:      sub.ID,
		URL:            sub.URL,
		IsActive:       sub.IsActive,
		CircuitBreaker: state,
	})
}
