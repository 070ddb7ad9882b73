// Package cache provides the product cache layer at both granularities:
// page-level entries keyed by serialized query, and item-level entries
// keyed by product id. Loaders are the only writers.
package cache

import (
	"context"
	"errors"

	"github.com/werserver/thaideals/internal/model"
)

// ErrCacheMiss indicates the key is absent or its entry has expired.
var ErrCacheMiss = errors.New("cache miss")

// Store is the injected cache service the loaders and the facade use.
// Implementations must replace entries atomically; readers never see a
// partially written page.
type Store interface {
	// GetPage returns the cached result for a serialized page query,
	// or ErrCacheMiss when absent or older than the page TTL.
	GetPage(ctx context.Context, key string) (*model.PageResult, error)

	// SetPage stores a page result under the given key, replacing any
	// previous entry and restarting its TTL.
	SetPage(ctx context.Context, key string, result *model.PageResult) error

	// GetItem returns the last-seen product with the given id, or
	// ErrCacheMiss. Item entries do not expire on their own.
	GetItem(ctx context.Context, productID string) (*model.Product, error)

	// SetItems records every product of a fetched page, keyed by id.
	SetItems(ctx context.Context, products []model.Product) error

	// InvalidateAll drops every page and item entry.
	InvalidateAll(ctx context.Context) error
}
