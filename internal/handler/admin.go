package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/werserver/thaideals/internal/clicks"
	"github.com/werserver/thaideals/internal/handler/dto"
	"github.com/werserver/thaideals/internal/metrics"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/service"
	"github.com/werserver/thaideals/internal/source/tabular"
)

// maxUploadSize caps one tabular upload at 10 MB.
const maxUploadSize = 10 << 20

// AdminHandler serves the token-guarded management endpoints.
type AdminHandler struct {
	settings *service.Settings
	catalog  *service.Catalog
	registry *tabular.Registry
	metrics  metrics.Snapshotter
	clicks   *clicks.Recorder
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	settings *service.Settings,
	catalog *service.Catalog,
	registry *tabular.Registry,
	snapshotter metrics.Snapshotter,
	recorder *clicks.Recorder,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		catalog:  catalog,
		registry: registry,
		metrics:  snapshotter,
		clicks:   recorder,
		logger:   logger,
	}
}

// GetSettings handles GET /api/v1/admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsResponse())
}

// UpdateSettings handles PATCH /api/v1/admin/settings.
// Changes apply to the next product call; no restart involved.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req dto.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	update := service.SettingsUpdate{
		Credential:   req.APIToken,
		CloakToken:   req.CloakToken,
		CloakBaseURL: req.CloakBaseURL,
		Currency:     req.Currency,
	}

	if req.DataSource != nil {
		source, err := model.ParseDataSource(*req.DataSource)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SOURCE", "data_source must be remote or tabular")
			return
		}
		update.ActiveSource = &source
	}

	h.settings.Apply(update)

	h.logger.Info("settings_updated",
		"source_changed", req.DataSource != nil,
		"cloak_changed", req.CloakToken != nil || req.CloakBaseURL != nil,
	)

	writeJSON(w, http.StatusOK, h.settingsResponse())
}

func (h *AdminHandler) settingsResponse() dto.SettingsResponse {
	cloakCfg := h.settings.CloakConfig()
	return dto.SettingsResponse{
		DataSource:   string(h.settings.ActiveSource()),
		APITokenSet:  h.settings.Credential() != "",
		CloakToken:   cloakCfg.Token,
		CloakBaseURL: cloakCfg.CustomBaseURL,
		Currency:     h.settings.Currency(),
	}
}

// ListSources handles GET /api/v1/admin/sources.
func (h *AdminHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SourceListResponse{
		Categories: h.registry.Categories(),
		HasGeneral: strings.TrimSpace(h.registry.General()) != "",
	})
}

// UploadSource handles PUT /api/v1/admin/sources/{category}.
// The body is the raw delimited text; "general" targets the fallback
// slot. A new upload flushes every cache so both sources re-read on
// the next fetch.
func (h *AdminHandler) UploadSource(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CATEGORY", "Category name is required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read upload body")
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(w, http.StatusBadRequest, "EMPTY_UPLOAD", "Upload body is empty")
		return
	}

	h.registry.Set(category, string(body))
	if err := h.catalog.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("cache invalidation after upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Cache invalidation failed")
		return
	}

	h.logger.Info("source_uploaded", "category", category, "bytes", len(body))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSource handles DELETE /api/v1/admin/sources/{category}.
func (h *AdminHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CATEGORY", "Category name is required")
		return
	}

	h.registry.Delete(category)
	if err := h.catalog.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("cache invalidation after delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Cache invalidation failed")
		return
	}

	h.logger.Info("source_deleted", "category", category)
	w.WriteHeader(http.StatusNoContent)
}

// Invalidate handles POST /api/v1/admin/cache/invalidate.
func (h *AdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Cache invalidation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Metrics handles GET /api/v1/admin/metrics.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// Clicks handles GET /api/v1/admin/clicks.
func (h *AdminHandler) Clicks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.clicks.Counts())
}
