package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/store"
	"github.com/go-chi/chi/v5"
)

type ListOutcomesHandler interface {
	ListOutcomes(ctx context.Context, f store.OutcomeFilter) ([]domain.DeliveryOutcome, error)
}

type GetOutcomeHandler interface {
	GetOutcome(ctx context.Context, id string) (*domain.DeliveryOutcome, error)
}

type DeliveryHandler struct {
	log DeliveryLog
}

func NewDeliveryHandler(log DeliveryLog) *DeliveryHandler {
	return &DeliveryHandler{log: log}
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.OutcomeFilter{
		SessionID: r.URL.Query().Get("session_id"),
		WebhookID: r.URL.Query().Get("webhook_id"),
		Event:     r.URL.Query().Get("event"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	outcomes, err := h.log.ListOutcomes(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery outcomes")
		return
	}

	respondJSON(w, http.StatusOK, outcomes)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.log.GetOutcome(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery outcome")
		return
	}
	if outcome == nil {
		respondError(w, http.StatusNotFound, "delivery outcome not found")
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}
