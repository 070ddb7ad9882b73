package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/werserver/thaideals/internal/handler/dto"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/service"
	"github.com/werserver/thaideals/internal/source/remote"
	"github.com/werserver/thaideals/internal/source/tabular"
)

// ProductHandler serves the public product listing endpoints.
type ProductHandler struct {
	catalog *service.Catalog
	logger  *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalog *service.Catalog, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := model.PageQuery{
		Keyword:      query.Get("keyword"),
		CategoryID:   query.Get("category_id"),
		AdvertiserID: query.Get("advertiser_id"),
	}
	if l := query.Get("limit"); l != "" {
		q.Limit, _ = strconv.Atoi(l)
	}
	if p := query.Get("page"); p != "" {
		q.Page, _ = strconv.Atoi(p)
	}

	result, err := h.catalog.FetchProducts(r.Context(), q)
	if err != nil {
		h.handleCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToProductListResponse(result))
}

// Get handles GET /api/v1/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Product ID is required")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.handleCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// handleCatalogError maps catalog errors onto HTTP statuses. Missing
// configuration and upstream failures are distinguishable to callers.
func (h *ProductHandler) handleCatalogError(w http.ResponseWriter, err error) {
	var upstream *remote.UpstreamError
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	case errors.Is(err, remote.ErrMissingCredential):
		writeError(w, http.StatusServiceUnavailable, "CONFIG_ERROR", "Product source is not configured")
	case errors.Is(err, tabular.ErrNoDataSource):
		writeError(w, http.StatusServiceUnavailable, "CONFIG_ERROR", "No product data source is available")
	case errors.As(err, &upstream):
		h.logger.Warn("upstream failure", "status", upstream.Status)
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Product API request failed")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
