package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/werserver/thaideals/internal/model"
)

func TestMemory_PageLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(5 * time.Minute)

	if _, err := m.GetPage(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("cold GetPage err = %v, want ErrCacheMiss", err)
	}

	result := &model.PageResult{
		Items: []model.Product{{ID: "1", Name: "a"}},
		Total: 1, Limit: 20, Page: 1,
	}
	if err := m.SetPage(ctx, "k", result); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	got, err := m.GetPage(ctx, "k")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if got.Total != 1 || len(got.Items) != 1 || got.Items[0].ID != "1" {
		t.Errorf("GetPage() = %+v", got)
	}

	// Mutating the returned page must not corrupt the cached entry.
	got.Items[0].Name = "mutated"
	again, err := m.GetPage(ctx, "k")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if again.Items[0].Name != "a" {
		t.Errorf("cached entry was mutated through a returned page")
	}
}

func TestMemory_PageTTLExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(5 * time.Minute)

	base := time.Now()
	m.now = func() time.Time { return base }

	if err := m.SetPage(ctx, "k", &model.PageResult{Total: 1, Limit: 20, Page: 1}); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	m.now = func() time.Time { return base.Add(4 * time.Minute) }
	if _, err := m.GetPage(ctx, "k"); err != nil {
		t.Errorf("entry within TTL should hit, got %v", err)
	}

	m.now = func() time.Time { return base.Add(5 * time.Minute) }
	if _, err := m.GetPage(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("entry at TTL should miss, got %v", err)
	}
}

func TestMemory_Items(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(time.Minute)

	if err := m.SetItems(ctx, []model.Product{{ID: "1", Name: "a"}, {Name: "no id"}}); err != nil {
		t.Fatalf("SetItems() error = %v", err)
	}

	p, err := m.GetItem(ctx, "1")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if p.Name != "a" {
		t.Errorf("GetItem() = %+v", p)
	}

	if _, err := m.GetItem(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("GetItem(missing) err = %v, want ErrCacheMiss", err)
	}

	// Item entries survive page expiry; only invalidation clears them.
	if err := m.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	if _, err := m.GetItem(ctx, "1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("GetItem after invalidation err = %v, want ErrCacheMiss", err)
	}
}

func TestMemory_InvalidateAllDropsPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(time.Minute)

	if err := m.SetPage(ctx, "k", &model.PageResult{Total: 1, Limit: 20, Page: 1}); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if err := m.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	if _, err := m.GetPage(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("GetPage after invalidation err = %v, want ErrCacheMiss", err)
	}
}
