package http

import (
	"context"
	"net/http"
	"time"
)

type SessionGate interface {
	SignIn(ctx context.Context, user, password string) (string, error)
	SignOut(ctx context.Context, token string) error
	TokenValidator
}

type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type AuthHandler struct {
	gate    SessionGate
	timeout time.Duration
}

func NewAuthHandler(gate SessionGate, timeout time.Duration) *AuthHandler {
	return &AuthHandler{gate: gate, timeout: timeout}
}

func (h *AuthHandler) Login(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var body LoginRequestDTO
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	token, err := h.gate.SignIn(ctx, body.Username, body.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	if err := h.gate.SignOut(ctx, bearerToken(req)); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
