package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/werserver/thaideals/internal/clicks"
	"github.com/werserver/thaideals/internal/service"
)

// RedirectHandler serves the outbound click-through endpoint.
type RedirectHandler struct {
	catalog  *service.Catalog
	settings *service.Settings
	clicks   *clicks.Recorder
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(catalog *service.Catalog, settings *service.Settings, recorder *clicks.Recorder, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		catalog:  catalog,
		settings: settings,
		clicks:   recorder,
		logger:   logger,
	}
}

// Outbound handles GET /out/{id}: resolve the product, record the
// click, and send the visitor to the cloaked affiliate link.
func (h *RedirectHandler) Outbound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}

	start := time.Now()

	product, err := h.catalog.GetProduct(r.Context(), id)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			h.logger.Info("redirect_not_found",
				"product_id", id,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
			writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		h.logger.Error("redirect_error", "product_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "CONFIG_ERROR", "Product source unavailable")
		return
	}

	destination := product.OutboundLink
	if destination == "" {
		destination = product.OriginalLink
	}
	if destination == "" {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product has no destination link")
		return
	}

	if h.clicks != nil {
		h.clicks.Record(product.ID, string(h.settings.ActiveSource()), r.Header.Get("Referer"))
	}

	h.logger.Info("redirect_success",
		"product_id", product.ID,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, destination, http.StatusFound)
}
