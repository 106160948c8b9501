package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ShopAdmin interface {
	Orders() []*domain.Order
	SaveProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UpdateCompanyInfo(ctx context.Context, info domain.CompanyInfo) error
	Refresh(ctx context.Context) error
}

type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) error
}

type AdminHandler struct {
	shop      ShopAdmin
	confirmer OrderConfirmer
	timeout   time.Duration
}

func NewAdminHandler(shop ShopAdmin, confirmer OrderConfirmer, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		shop:      shop,
		confirmer: confirmer,
		timeout:   timeout,
	}
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, _ *http.Request) {
	orders := h.shop.Orders()
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// ConfirmOrder moves a pending order to confirmed and decrements stock for
// each of its items.
func (h *AdminHandler) ConfirmOrder(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(req, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}
	if err := h.confirmer.ConfirmOrder(ctx, id); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"order_id": id.String(),
		"status":   domain.OrderStatusConfirmed.String(),
	})
}

func (h *AdminHandler) SaveProduct(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var input service.ProductInput
	if err := decodeJSON(req, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	p, err := h.shop.SaveProduct(ctx, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	if err := h.shop.DeleteProduct(ctx, chi.URLParam(req, "product_id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) UpdateCompany(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var info domain.CompanyInfo
	if err := decodeJSON(req, &info); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.shop.UpdateCompanyInfo(ctx, info); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *AdminHandler) Refresh(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	if err := h.shop.Refresh(ctx); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
