package http

import (
	"net/http"

	"github.com/fjod/go_storefront/internal/domain"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	Status() service.ShopStatus
	Products() []*domain.Product
	Search(query string) []*domain.Product
	FindProduct(id string) (*domain.Product, bool)
	CompanyInfo() *domain.CompanyInfo
}

// CatalogHandler serves the cached catalog. It never reaches the database.
type CatalogHandler struct {
	shop Catalog
}

func NewCatalogHandler(shop Catalog) *CatalogHandler {
	return &CatalogHandler{shop: shop}
}

func (h *CatalogHandler) Status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.shop.Status())
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, req *http.Request) {
	var products []*domain.Product
	if q := req.URL.Query().Get("q"); q != "" {
		products = h.shop.Search(q)
	} else {
		products = h.shop.Products()
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, req *http.Request) {
	p, ok := h.shop.FindProduct(chi.URLParam(req, "product_id"))
	if !ok {
		handleServiceError(w, r.ErrProductNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) Company(w http.ResponseWriter, _ *http.Request) {
	info := h.shop.CompanyInfo()
	if info == nil {
		handleServiceError(w, service.ErrCompanyInfoNotLoaded)
		return
	}
	respondJSON(w, http.StatusOK, info)
}
