package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/werserver/thaideals/internal/cache"
	"github.com/werserver/thaideals/internal/model"
)

// ErrProductNotFound indicates no product with the requested id exists
// in the active source.
var ErrProductNotFound = errors.New("product not found")

// PageFetcher is the page-serving side of a product source.
type PageFetcher interface {
	FetchPage(ctx context.Context, q model.PageQuery) (*model.PageResult, error)
}

// ProductFinder resolves a single product by id from a fully
// materialized source.
type ProductFinder interface {
	FindProduct(ctx context.Context, id string) (*model.Product, bool, error)
}

// Invalidator drops a source's cached state.
type Invalidator interface {
	Invalidate()
}

// TabularSource is the uploaded-data loader as the catalog sees it.
type TabularSource interface {
	PageFetcher
	ProductFinder
	Invalidator
}

// Catalog routes product queries to whichever source the settings
// store names at call time. Switching sources never requires a restart
// or a cache flush.
type Catalog struct {
	settings *Settings
	remote   PageFetcher
	tabular  TabularSource
	store    cache.Store
	logger   *slog.Logger
}

// NewCatalog wires the facade over both loaders.
func NewCatalog(settings *Settings, remote PageFetcher, tabular TabularSource, store cache.Store, logger *slog.Logger) *Catalog {
	return &Catalog{
		settings: settings,
		remote:   remote,
		tabular:  tabular,
		store:    store,
		logger:   logger.With("component", "catalog"),
	}
}

// FetchProducts serves one page of products from the active source.
func (c *Catalog) FetchProducts(ctx context.Context, q model.PageQuery) (*model.PageResult, error) {
	switch c.settings.ActiveSource() {
	case model.SourceTabular:
		return c.tabular.FetchPage(ctx, q)
	default:
		return c.remote.FetchPage(ctx, q)
	}
}

// GetProduct resolves a single product by id from the active source.
// Remote products are only resolvable after a page containing them was
// fetched; the item cache is the sole remote lookup path.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	switch c.settings.ActiveSource() {
	case model.SourceTabular:
		p, ok, err := c.tabular.FindProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrProductNotFound
		}
		return p, nil
	default:
		p, err := c.store.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, cache.ErrCacheMiss) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("item lookup: %w", err)
		}
		return p, nil
	}
}

// InvalidateAll flushes both sources: the remote page and item caches
// and the tabular unified list.
func (c *Catalog) InvalidateAll(ctx context.Context) error {
	c.tabular.Invalidate()
	if err := c.store.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("flushing cache: %w", err)
	}
	c.logger.Info("all caches invalidated")
	return nil
}
