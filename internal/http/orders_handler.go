package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/document"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CompanySource interface {
	CompanyInfo() *domain.CompanyInfo
	Refresh(ctx context.Context) error
}

type SnapshotKeeper interface {
	Save(ctx context.Context, sessionID string, snap *domain.OrderSnapshot) error
	Load(ctx context.Context, sessionID string, id uuid.UUID) (*domain.OrderSnapshot, error)
	Discard(ctx context.Context, sessionID string, id uuid.UUID) error
}

type OrderSender interface {
	SendOrder(ctx context.Context, cart service.CartClearer, snap *domain.OrderSnapshot) (*service.SendResult, error)
}

type DocumentRenderer interface {
	Render(snap *domain.OrderSnapshot) (*document.Document, error)
}

type PreviewKeeper interface {
	Put(ctx context.Context, doc *document.Document) (string, error)
	Get(ctx context.Context, id string) (*document.Document, error)
}

type OrdersHandler struct {
	carts     CartOpener
	shop      CompanySource
	snapshots SnapshotKeeper
	sender    OrderSender
	renderer  DocumentRenderer
	previews  PreviewKeeper
	timeout   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewOrdersHandler(
	carts CartOpener,
	shop CompanySource,
	snapshots SnapshotKeeper,
	sender OrderSender,
	renderer DocumentRenderer,
	previews PreviewKeeper,
	timeout time.Duration,
	log *zap.Logger,
) *OrdersHandler {
	return &OrdersHandler{
		carts:     carts,
		shop:      shop,
		snapshots: snapshots,
		sender:    sender,
		renderer:  renderer,
		previews:  previews,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

type PreviewResponse struct {
	PreviewID string `json:"preview_id"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	Strategy  string `json:"strategy"`
}

// CreateSnapshot freezes the session's cart into an order snapshot.
func (h *OrdersHandler) CreateSnapshot(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()
	sessionID := getSessionID(ctx)

	cart, err := h.carts.Open(ctx, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer cart.Close()

	snap, err := service.BuildSnapshot(cart.Items(), h.shop.CompanyInfo(), h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.snapshots.Save(ctx, sessionID, snap); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, snap)
}

// loadSnapshot resolves {id} for the session. It writes the error response
// itself and reports false on failure.
func (h *OrdersHandler) loadSnapshot(ctx context.Context, w http.ResponseWriter, req *http.Request) (*domain.OrderSnapshot, bool) {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "invalid snapshot id")
		return nil, false
	}
	snap, err := h.snapshots.Load(ctx, getSessionID(ctx), id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return snap, true
}

func (h *OrdersHandler) GetSnapshot(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	snap, ok := h.loadSnapshot(ctx, w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// CancelSnapshot drops the snapshot. The cart is left as it was.
func (h *OrdersHandler) CancelSnapshot(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "invalid snapshot id")
		return
	}
	if err := h.snapshots.Discard(ctx, getSessionID(ctx), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) Download(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	snap, ok := h.loadSnapshot(ctx, w, req)
	if !ok {
		return
	}
	doc, err := h.renderer.Render(snap)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondPDF(w, doc, "attachment")
}

// Preview renders the snapshot and stores it under a short-lived handle.
// When the handle cannot be stored the document is sent as a download.
func (h *OrdersHandler) Preview(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	snap, ok := h.loadSnapshot(ctx, w, req)
	if !ok {
		return
	}
	doc, err := h.renderer.Render(snap)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	id, err := h.previews.Put(ctx, doc)
	if err != nil {
		h.log.Warn("preview handle not stored, sending download",
			zap.String("snapshot_id", snap.ID.String()), zap.Error(err))
		respondPDF(w, doc, "attachment")
		return
	}

	respondJSON(w, http.StatusCreated, PreviewResponse{
		PreviewID: id,
		URL:       "/api/v1/previews/" + id,
		FileName:  doc.FileName,
		Strategy:  doc.Strategy,
	})
}

func (h *OrdersHandler) GetPreview(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	doc, err := h.previews.Get(ctx, chi.URLParam(req, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondPDF(w, doc, "inline")
}

// Send dispatches the snapshot to the seller. On success the cart is empty,
// the snapshot is gone and the cached order list is reloaded.
func (h *OrdersHandler) Send(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()
	sessionID := getSessionID(ctx)

	snap, ok := h.loadSnapshot(ctx, w, req)
	if !ok {
		return
	}
	cart, err := h.carts.Open(ctx, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer cart.Close()

	res, err := h.sender.SendOrder(ctx, cart, snap)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.snapshots.Discard(ctx, sessionID, snap.ID); err != nil {
		h.log.Warn("snapshot not discarded after send", zap.Error(err))
	}
	if err := h.shop.Refresh(ctx); err != nil {
		h.log.Warn("shop refresh after send failed", zap.Error(err))
	}

	respondJSON(w, http.StatusCreated, res)
}
