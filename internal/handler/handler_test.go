package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/werserver/thaideals/internal/cache"
	"github.com/werserver/thaideals/internal/clicks"
	"github.com/werserver/thaideals/internal/handler/dto"
	"github.com/werserver/thaideals/internal/metrics"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/service"
	"github.com/werserver/thaideals/internal/source/remote"
	"github.com/werserver/thaideals/internal/source/tabular"
)

type stubFetcher struct {
	lastQuery model.PageQuery
	result    *model.PageResult
	err       error
}

func (s *stubFetcher) FetchPage(_ context.Context, q model.PageQuery) (*model.PageResult, error) {
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubTabular struct {
	stubFetcher
	product     *model.Product
	invalidated int
}

func (s *stubTabular) FindProduct(context.Context, string) (*model.Product, bool, error) {
	if s.product == nil {
		return nil, false, nil
	}
	return s.product, true, nil
}

func (s *stubTabular) Invalidate() { s.invalidated++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	remote   *stubFetcher
	tabular  *stubTabular
	store    *cache.Memory
	settings *service.Settings
	catalog  *service.Catalog
}

func newTestEnv(source model.DataSource) *testEnv {
	remoteStub := &stubFetcher{result: &model.PageResult{Items: []model.Product{}, Limit: 20, Page: 1}}
	tabularStub := &stubTabular{}
	store := cache.NewMemory(5 * time.Minute)
	settings := service.NewSettings(source, "tok", "CLK", "", "THB")
	catalog := service.NewCatalog(settings, remoteStub, tabularStub, store, discardLogger())
	return &testEnv{remote: remoteStub, tabular: tabularStub, store: store, settings: settings, catalog: catalog}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProductList_ParsesQueryParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	env.remote.result = &model.PageResult{
		Items: []model.Product{{ID: "P1", Name: "Fan"}},
		Total: 42, Limit: 10, Page: 3,
	}
	h := NewProductHandler(env.catalog, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?keyword=fan&category_id=7&limit=10&page=3", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if q := env.remote.lastQuery; q.Keyword != "fan" || q.CategoryID != "7" || q.Limit != 10 || q.Page != 3 {
		t.Errorf("query = %+v", q)
	}

	var resp dto.ProductListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Meta.Total != 42 || len(resp.Data) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestProductList_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing credential", remote.ErrMissingCredential, http.StatusServiceUnavailable, "CONFIG_ERROR"},
		{"no data source", tabular.ErrNoDataSource, http.StatusServiceUnavailable, "CONFIG_ERROR"},
		{"upstream failure", &remote.UpstreamError{Status: 500}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(model.SourceRemote)
			env.remote.err = tt.err
			h := NewProductHandler(env.catalog, discardLogger())

			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestProductGet_RemoteFromItemCache(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	ctx := context.Background()
	if err := env.store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Fan"}}); err != nil {
		t.Fatal(err)
	}
	h := NewProductHandler(env.catalog, discardLogger())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/P1", nil), "id", "P1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil), "id", "missing")
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOutbound_RedirectsAndRecordsClick(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceTabular)
	env.tabular.product = &model.Product{
		ID:           "T1",
		Name:         "Scarf",
		OutboundLink: "https://goeco.mobi/?token=CLK&url=https%3A%2F%2Fshop.example&source=api_product",
		OriginalLink: "https://shop.example",
	}

	recorder := clicks.NewRecorder(16, metrics.NewNoop(), discardLogger())
	h := NewRedirectHandler(env.catalog, env.settings, recorder, discardLogger())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/out/T1", nil), "id", "T1")
	rec := httptest.NewRecorder()
	h.Outbound(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != env.tabular.product.OutboundLink {
		t.Errorf("Location = %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if got := recorder.Counts().ByProduct["T1"]; got != 1 {
		t.Errorf("clicks for T1 = %d, want 1", got)
	}
}

func TestOutbound_FallsBackToOriginalLink(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceTabular)
	env.tabular.product = &model.Product{ID: "T1", Name: "Scarf", OriginalLink: "https://shop.example/p/1"}

	h := NewRedirectHandler(env.catalog, env.settings, nil, discardLogger())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/out/T1", nil), "id", "T1")
	rec := httptest.NewRecorder()
	h.Outbound(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://shop.example/p/1" {
		t.Errorf("Location = %q", got)
	}
}

func TestOutbound_UnknownProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceTabular)
	h := NewRedirectHandler(env.catalog, env.settings, nil, discardLogger())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/out/nope", nil), "id", "nope")
	rec := httptest.NewRecorder()
	h.Outbound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func newAdminHandler(env *testEnv, registry *tabular.Registry, snap metrics.Snapshotter) *AdminHandler {
	recorder := clicks.NewRecorder(16, metrics.NewNoop(), discardLogger())
	return NewAdminHandler(env.settings, env.catalog, registry, snap, recorder, discardLogger())
}

func TestAdminUpdateSettings_SwitchesSource(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	h := newAdminHandler(env, tabular.NewRegistry(), metrics.NewInMemory())

	body := bytes.NewBufferString(`{"data_source":"tabular","currency":"USD"}`)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/admin/settings", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.settings.ActiveSource() != model.SourceTabular {
		t.Errorf("ActiveSource = %v", env.settings.ActiveSource())
	}
	if env.settings.Currency() != "USD" {
		t.Errorf("Currency = %q", env.settings.Currency())
	}

	var resp dto.SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DataSource != "tabular" || !resp.APITokenSet {
		t.Errorf("response = %+v", resp)
	}
}

func TestAdminUpdateSettings_RejectsUnknownSource(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	h := newAdminHandler(env, tabular.NewRegistry(), metrics.NewInMemory())

	body := bytes.NewBufferString(`{"data_source":"ftp"}`)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/admin/settings", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if env.settings.ActiveSource() != model.SourceRemote {
		t.Errorf("source changed despite rejection")
	}
}

func TestAdminUploadSource(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceTabular)
	ctx := context.Background()
	if err := env.store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Stale"}}); err != nil {
		t.Fatal(err)
	}
	registry := tabular.NewRegistry()
	h := newAdminHandler(env, registry, metrics.NewInMemory())

	body := bytes.NewBufferString("id,url,name,price\n1,https://x.example,Thing,10\n")
	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/v1/admin/sources/Fashion", body), "category", "Fashion")
	rec := httptest.NewRecorder()
	h.UploadSource(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := registry.Categories(); len(got) != 1 || got[0] != "Fashion" {
		t.Errorf("categories = %v", got)
	}
	if env.tabular.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", env.tabular.invalidated)
	}
	// An upload flushes the remote caches too, not just the unified list.
	if _, err := env.store.GetItem(ctx, "P1"); err == nil {
		t.Error("remote item cache survived an upload")
	}

	// Empty bodies are rejected before touching the registry.
	req = withURLParam(httptest.NewRequest(http.MethodPut, "/api/v1/admin/sources/Empty", bytes.NewBufferString("  ")), "category", "Empty")
	rec = httptest.NewRecorder()
	h.UploadSource(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty upload status = %d, want 400", rec.Code)
	}
}

func TestAdminDeleteSource(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceTabular)
	registry := tabular.NewRegistry()
	registry.Set("Fashion", "id,url,name\n")
	h := newAdminHandler(env, registry, metrics.NewInMemory())

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/sources/Fashion", nil), "category", "Fashion")
	rec := httptest.NewRecorder()
	h.DeleteSource(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := registry.Categories(); len(got) != 0 {
		t.Errorf("categories = %v, want empty", got)
	}
	if env.tabular.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", env.tabular.invalidated)
	}
}

func TestAdminInvalidate_FlushesCaches(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	ctx := context.Background()
	if err := env.store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Fan"}}); err != nil {
		t.Fatal(err)
	}
	h := newAdminHandler(env, tabular.NewRegistry(), metrics.NewInMemory())

	rec := httptest.NewRecorder()
	h.Invalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/invalidate", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := env.store.GetItem(ctx, "P1"); err == nil {
		t.Error("item survived invalidation")
	}
	if env.tabular.invalidated != 1 {
		t.Errorf("tabular invalidations = %d, want 1", env.tabular.invalidated)
	}
}

func TestAdminMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(model.SourceRemote)
	recorder := metrics.NewInMemory()
	recorder.IncPageCacheHit()
	h := newAdminHandler(env, tabular.NewRegistry(), recorder)

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.PageCacheHits != 1 {
		t.Errorf("PageCacheHits = %d, want 1", snap.PageCacheHits)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz without redis = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Checks["redis"] != "not configured" {
		t.Errorf("checks = %v", resp.Checks)
	}
}
