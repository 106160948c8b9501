package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/document"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error      string                           `json:"error"`
	Code       string                           `json:"code,omitempty"`
	Details    string                           `json:"details,omitempty"`
	Validation *service.ProductValidationResult `json:"validation,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondPDF(w http.ResponseWriter, doc *document.Document, disposition string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+doc.FileName+`"`)
	w.Header().Set("X-Document-Strategy", doc.Strategy)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Bytes); err != nil {
		zap.L().Warn("failed to write document", zap.Error(err))
	}
}

// decodeJSON reads the request body into dst. Numbers are kept as
// json.Number so that their type can be validated.
func decodeJSON(req *http.Request, dst interface{}) error {
	dec := json.NewDecoder(req.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	var notSaved *service.OrderNotSavedError
	var invalid *service.ValidationError

	switch {
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      invalid.Error(),
			Code:       "validation_failed",
			Validation: &invalid.Result,
		})
	case errors.As(err, &notSaved):
		respondError(w, http.StatusInternalServerError, "order_not_saved", notSaved.Error())
	case errors.Is(err, service.ErrInvalidSession):
		respondError(w, http.StatusBadRequest, "invalid_session", err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, service.ErrEmptyCart), errors.Is(err, document.ErrEmptySnapshot):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, service.ErrCompanyInfoNotLoaded), errors.Is(err, service.ErrShopNotReady):
		respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
	case errors.Is(err, service.ErrCartUnavailable):
		zap.L().Warn("cart unavailable", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", service.ErrCartUnavailable.Error())
	case errors.Is(err, service.ErrSnapshotNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, document.ErrPreviewNotFound),
		errors.Is(err, r.ErrProductNotFound),
		errors.Is(err, r.ErrVariantNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, r.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		zap.L().Error("unhandled service error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
