package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const eventsPingInterval = 25 * time.Second

type CartOpener interface {
	Open(ctx context.Context, sessionID string) (*service.Cart, error)
}

type ProductFinder interface {
	FindProduct(id string) (*domain.Product, bool)
}

type CartHandler struct {
	carts   CartOpener
	catalog ProductFinder
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartOpener, catalog ProductFinder, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  *int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartView struct {
	Items []domain.CartLineItem `json:"items"`
	Total string                `json:"total"`
	Count int                   `json:"count"`
}

func viewOf(items []domain.CartLineItem) CartView {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return CartView{
		Items: items,
		Total: domain.CartTotal(items).StringFixed(2),
		Count: n,
	}
}

func (h *CartHandler) open(ctx context.Context, w http.ResponseWriter) (*service.Cart, bool) {
	cart, err := h.carts.Open(ctx, getSessionID(ctx))
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return cart, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	respondJSON(w, http.StatusOK, viewOf(cart.Items()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var body AddItemRequestDTO
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if body.ProductID == "" || body.VariantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "product_id and variant_id are required")
		return
	}
	qty := 1
	if body.Quantity != nil {
		qty = *body.Quantity
	}
	if qty < 1 || qty > service.MaxLineQuantity {
		handleServiceError(w, service.ErrInvalidQuantity)
		return
	}

	product, found := h.catalog.FindProduct(body.ProductID)
	if !found {
		handleServiceError(w, r.ErrProductNotFound)
		return
	}
	variant, found := product.FindVariant(body.VariantID)
	if !found {
		handleServiceError(w, r.ErrVariantNotFound)
		return
	}

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	item := domain.CartLineItem{
		ProductID:   product.ID,
		VariantID:   variant.ID,
		Name:        product.Name,
		VariantName: variant.Name,
		Price:       variant.Price,
		ImageURL:    product.ImageURL,
		Description: product.Description,
	}
	if err := cart.AddItem(ctx, item, qty); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, viewOf(cart.Items()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	var body UpdateQuantityRequestDTO
	if err := decodeJSON(req, &body); err != nil || body.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}
	// zero removes the line
	if *body.Quantity < 0 || *body.Quantity > service.MaxLineQuantity {
		handleServiceError(w, service.ErrInvalidQuantity)
		return
	}

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	if err := cart.UpdateQuantity(ctx, chi.URLParam(req, "product_id"), chi.URLParam(req, "variant_id"), *body.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, viewOf(cart.Items()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	if err := cart.RemoveItem(ctx, chi.URLParam(req, "product_id"), chi.URLParam(req, "variant_id")); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, viewOf(cart.Items()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	if err := cart.Clear(ctx); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, viewOf(cart.Items()))
}

// Events streams the cart as server-sent events. A "cart" event is sent on
// connect and after every change made through any handle on the session.
// Slow clients only see the latest state.
func (h *CartHandler) Events(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	rc := http.NewResponseController(w)

	cart, ok := h.open(ctx, w)
	if !ok {
		return
	}
	defer cart.Close()

	updates := make(chan []domain.CartLineItem, 1)
	push := func(items []domain.CartLineItem) {
		for {
			select {
			case updates <- items:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	unregister := cart.OnChange(push)
	defer unregister()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(items []domain.CartLineItem) error {
		data, err := json.Marshal(viewOf(items))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(cart.Items()); err != nil {
		h.log.Debug("cart events: initial write failed", zap.Error(err))
		return
	}

	ping := time.NewTicker(eventsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case items := <-updates:
			if err := send(items); err != nil {
				h.log.Debug("cart events: client gone", zap.Error(err))
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
