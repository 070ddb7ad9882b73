package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/werserver/thaideals/internal/cache"
	"github.com/werserver/thaideals/internal/model"
)

type stubFetcher struct {
	result *model.PageResult
	err    error
	calls  int
}

func (s *stubFetcher) FetchPage(context.Context, model.PageQuery) (*model.PageResult, error) {
	s.calls++
	return s.result, s.err
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

func newTestCatalog(settings *Settings, remote *stubFetcher, tabular *stubTabular, store cache.Store) *Catalog {
	if store == nil {
		store = cache.NewMemory(0)
	}
	return NewCatalog(settings, remote, tabular, store, discardLogger())
}

func TestFetchProducts_RoutesByActiveSource(t *testing.T) {
	t.Parallel()

	remote := &stubFetcher{result: &model.PageResult{Total: 1}}
	tabular := &stubTabular{stubFetcher: stubFetcher{result: &model.PageResult{Total: 2}}}
	settings := NewSettings(model.SourceRemote, "tok", "", "", "THB")
	catalog := newTestCatalog(settings, remote, tabular, nil)

	ctx := context.Background()
	result, err := catalog.FetchProducts(ctx, model.PageQuery{})
	if err != nil {
		t.Fatalf("FetchProducts() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want the remote result", result.Total)
	}

	// The switch takes effect on the very next call.
	src := model.SourceTabular
	settings.Apply(SettingsUpdate{ActiveSource: &src})

	result, err = catalog.FetchProducts(ctx, model.PageQuery{})
	if err != nil {
		t.Fatalf("FetchProducts() after switch error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, want the tabular result", result.Total)
	}
	if remote.calls != 1 || tabular.calls != 1 {
		t.Errorf("calls = remote %d / tabular %d, want 1 each", remote.calls, tabular.calls)
	}
}

func TestGetProduct_RemoteUsesItemCache(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory(0)
	ctx := context.Background()
	if err := store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Cached"}}); err != nil {
		t.Fatal(err)
	}

	settings := NewSettings(model.SourceRemote, "tok", "", "", "THB")
	catalog := newTestCatalog(settings, &stubFetcher{}, &stubTabular{}, store)

	p, err := catalog.GetProduct(ctx, "P1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "Cached" {
		t.Errorf("Name = %q", p.Name)
	}

	_, err = catalog.GetProduct(ctx, "unknown")
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound on a cache miss", err)
	}
}

func TestGetProduct_TabularUsesFinder(t *testing.T) {
	t.Parallel()

	tabular := &stubTabular{product: &model.Product{ID: "T1", Name: "Uploaded"}}
	settings := NewSettings(model.SourceTabular, "", "", "", "THB")
	catalog := newTestCatalog(settings, &stubFetcher{}, tabular, nil)

	p, err := catalog.GetProduct(context.Background(), "T1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "Uploaded" {
		t.Errorf("Name = %q", p.Name)
	}

	tabular.product = nil
	_, err = catalog.GetProduct(context.Background(), "T1")
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestInvalidateAll_FlushesBothSources(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory(0)
	ctx := context.Background()
	if err := store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Cached"}}); err != nil {
		t.Fatal(err)
	}

	tabular := &stubTabular{}
	settings := NewSettings(model.SourceRemote, "tok", "", "", "THB")
	catalog := newTestCatalog(settings, &stubFetcher{}, tabular, store)

	if err := catalog.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	if tabular.invalidated != 1 {
		t.Errorf("tabular invalidations = %d, want 1", tabular.invalidated)
	}
	if _, err := store.GetItem(ctx, "P1"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("GetItem after flush = %v, want ErrCacheMiss", err)
	}
}

func TestSourceSwitch_FlushesCaches(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory(0)
	ctx := context.Background()
	if err := store.SetItems(ctx, []model.Product{{ID: "P1", Name: "Cached"}}); err != nil {
		t.Fatal(err)
	}

	tabular := &stubTabular{}
	settings := NewSettings(model.SourceRemote, "tok", "", "", "THB")
	catalog := newTestCatalog(settings, &stubFetcher{}, tabular, store)
	settings.OnInvalidate(func() { _ = catalog.InvalidateAll(ctx) })

	src := model.SourceTabular
	settings.Apply(SettingsUpdate{ActiveSource: &src})

	if _, err := store.GetItem(ctx, "P1"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("GetItem after source switch = %v, want ErrCacheMiss", err)
	}
	if tabular.invalidated != 1 {
		t.Errorf("tabular invalidations = %d, want 1", tabular.invalidated)
	}
}

func TestSettings_ApplyPartialUpdateAndInvalidateHook(t *testing.T) {
	t.Parallel()

	settings := NewSettings(model.SourceRemote, "tok", "CLK", "", "THB")

	fired := 0
	settings.OnInvalidate(func() { fired++ })

	// Switching the data source makes cached products stale.
	src := model.SourceTabular
	settings.Apply(SettingsUpdate{ActiveSource: &src})
	if fired != 1 {
		t.Errorf("hook fired %d times on a source switch, want 1", fired)
	}
	if settings.ActiveSource() != model.SourceTabular {
		t.Errorf("ActiveSource = %v", settings.ActiveSource())
	}
	if settings.Credential() != "tok" {
		t.Errorf("Credential changed by an unrelated update")
	}

	// Cloaking changes do too.
	token := "NEW"
	settings.Apply(SettingsUpdate{CloakToken: &token})
	if fired != 2 {
		t.Errorf("hook fired %d times, want 2", fired)
	}
	if got := settings.CloakConfig().Token; got != "NEW" {
		t.Errorf("CloakConfig().Token = %q", got)
	}

	// Setting the same values again is a no-op.
	settings.Apply(SettingsUpdate{ActiveSource: &src, CloakToken: &token})
	if fired != 2 {
		t.Errorf("hook fired on unchanged values")
	}

	// Rotating the credential does not touch caches.
	cred := "tok2"
	settings.Apply(SettingsUpdate{Credential: &cred})
	if fired != 2 {
		t.Errorf("hook fired on a credential rotation")
	}
}
