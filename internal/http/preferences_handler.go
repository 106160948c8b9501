package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/service"
)

type PreferencesStore interface {
	Get(ctx context.Context, sessionID string) (service.Preferences, error)
	Save(ctx context.Context, sessionID string, prefs service.Preferences) error
}

type PreferencesHandler struct {
	prefs   PreferencesStore
	timeout time.Duration
}

func NewPreferencesHandler(prefs PreferencesStore, timeout time.Duration) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs, timeout: timeout}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	p, err := h.prefs.Get(ctx, getSessionID(ctx))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PreferencesHandler) Put(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var p service.Preferences
	if err := decodeJSON(req, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.prefs.Save(ctx, getSessionID(ctx), p); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
