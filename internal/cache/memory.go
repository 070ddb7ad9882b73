package cache

import (
	"context"
	"sync"
	"time"

	"github.com/werserver/thaideals/internal/model"
)

// pageEntry is one cached page result with its fetch timestamp.
type pageEntry struct {
	result    model.PageResult
	fetchedAt time.Time
}

// Memory is the default in-process Store. Page entries expire after the
// configured TTL; item entries live until an explicit invalidation.
type Memory struct {
	mu      sync.RWMutex
	pages   map[string]pageEntry
	items   map[string]model.Product
	pageTTL time.Duration

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewMemory creates an in-memory Store with the given page TTL.
func NewMemory(pageTTL time.Duration) *Memory {
	return &Memory{
		pages:   make(map[string]pageEntry),
		items:   make(map[string]model.Product),
		pageTTL: pageTTL,
		now:     time.Now,
	}
}

// GetPage returns a cached page younger than the TTL.
func (m *Memory) GetPage(_ context.Context, key string) (*model.PageResult, error) {
	m.mu.RLock()
	entry, ok := m.pages[key]
	m.mu.RUnlock()

	if !ok || m.now().Sub(entry.fetchedAt) >= m.pageTTL {
		return nil, ErrCacheMiss
	}

	result := entry.result
	result.Items = append([]model.Product(nil), entry.result.Items...)
	return &result, nil
}

// SetPage replaces the entry for key and restarts its TTL.
func (m *Memory) SetPage(_ context.Context, key string, result *model.PageResult) error {
	entry := pageEntry{result: *result, fetchedAt: m.now()}
	entry.result.Items = append([]model.Product(nil), result.Items...)

	m.mu.Lock()
	m.pages[key] = entry
	m.mu.Unlock()
	return nil
}

// GetItem returns the last-seen product for an id.
func (m *Memory) GetItem(_ context.Context, productID string) (*model.Product, error) {
	m.mu.RLock()
	p, ok := m.items[productID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return &p, nil
}

// SetItems records every given product by id.
func (m *Memory) SetItems(_ context.Context, products []model.Product) error {
	m.mu.Lock()
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		m.items[p.ID] = p
	}
	m.mu.Unlock()
	return nil
}

// InvalidateAll drops every page and item entry.
func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.pages = make(map[string]pageEntry)
	m.items = make(map[string]model.Product)
	m.mu.Unlock()
	return nil
}
