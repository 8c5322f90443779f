package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/session"
	"github.com/go-chi/chi/v5"
)

type SessionHandler struct {
	manager     *session.Manager
	coordinator *session.Coordinator
}

func NewSessionHandler(manager *session.Manager, coordinator *session.Coordinator) *SessionHandler {
	return &SessionHandler{manager: manager, coordinator: coordinator}
}

type createSessionRequest struct {
	TenantID string `json:"tenant_id"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	s, err := h.manager.Create(r.Context(), req.TenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, s)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.List())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	if s.Status.NeedsRestart() {
		type sessionWithHint struct {
			domain.Session
			Hint string `json:"hint"`
		}
		respondJSON(w, http.StatusOK, sessionWithHint{
			Session: s,
			Hint:    "restart the session to reconnect",
		})
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// QRCode waits up to wait_ms (clamped server-side) for a QR code and maps
// each early-exit condition to a descriptive response.
func (h *SessionHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	waitMs := 0
	if v := r.URL.Query().Get("wait_ms"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			waitMs = n
		}
	}

	qr, err := h.coordinator.WaitForQRCode(r.Context(), id, time.Duration(waitMs)*time.Millisecond)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, session.ErrQRNotNeeded),
			errors.Is(err, session.ErrQRAlreadyScanned):
			respondJSON(w, http.StatusOK, map[string]string{"message": err.Error()})
		case errors.Is(err, session.ErrQRSessionFailed):
			respondErrorHint(w, http.StatusConflict, err.Error(), "restart the session")
		case errors.Is(err, session.ErrQRTimeout):
			respondErrorHint(w, http.StatusRequestTimeout, err.Error(), "retry, or restart the session")
		default:
			respondError(w, http.StatusInternalServerError, "failed to get QR code")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"qr_code": qr})
}

type pairingCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (h *SessionHandler) PairingCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req pairingCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	code, err := h.coordinator.RequestPairingCode(r.Context(), id, req.PhoneNumber)
	if err != nil {
		var stateErr *session.PairingStateError
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.As(err, &stateErr):
			respondErrorHint(w, http.StatusConflict, stateErr.Error(), "restart the session to pair again")
		default:
			respondError(w, http.StatusInternalServerError, "failed to request pairing code")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"pairing_code": code})
}

func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to restart session")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Logout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to log out session")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
