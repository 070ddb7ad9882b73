// Package tabular serves product pages from uploaded delimited sources.
// All uploads are merged into one in-memory unified list; filtering and
// pagination are pure memory operations after the first parse.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/werserver/thaideals/internal/cloak"
	"github.com/werserver/thaideals/internal/metrics"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/normalize"
)

// ErrNoDataSource indicates neither the registry nor the configured
// fallback can supply any tabular text.
var ErrNoDataSource = errors.New("no tabular data source available")

// unifiedListTTL bounds how long a parsed list is served before the
// sources are re-read.
const unifiedListTTL = 10 * time.Minute

// Settings supplies the call-time configuration applied during
// normalization of uploaded rows.
type Settings interface {
	CloakConfig() cloak.Config
	Currency() string
}

// Options configure the loader's fallback source.
type Options struct {
	// FallbackPath is a local file read when the registry is empty.
	FallbackPath string

	// FallbackURL is fetched (SSRF-guarded) when the registry is empty
	// and no usable local file exists.
	FallbackURL string

	// FetchTimeout bounds the fallback URL fetch.
	FetchTimeout time.Duration

	// TTL overrides the unified list lifetime; zero means the default.
	TTL time.Duration
}

// Loader materializes the unified product list from the registry and
// serves paginated, filtered pages from it.
type Loader struct {
	registry *Registry
	settings Settings
	opts     Options
	client   *http.Client
	metrics  metrics.Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	products []model.Product
	loadedAt time.Time

	// now is swappable for TTL tests.
	now func() time.Time
}

// New creates a tabular loader.
func New(registry *Registry, settings Settings, opts Options, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.TTL <= 0 {
		opts.TTL = unifiedListTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Loader{
		registry: registry,
		settings: settings,
		opts:     opts,
		client:   newFallbackClient(opts.FetchTimeout),
		metrics:  recorder,
		logger:   logger.With("component", "source.tabular"),
		now:      time.Now,
	}
}

// FetchPage returns one page of products matching the query, parsing
// the registered sources first if the unified list is cold or stale.
func (l *Loader) FetchPage(ctx context.Context, q model.PageQuery) (*model.PageResult, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	q = q.Normalized()

	filtered := all
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		filtered = make([]model.Product, 0, len(all))
		for _, p := range all {
			if strings.Contains(strings.ToLower(p.Name), kw) ||
				strings.Contains(strings.ToLower(p.CategoryName), kw) {
				filtered = append(filtered, p)
			}
		}
	}
	// Category-id and advertiser filters are not applicable: tabular
	// sources carry category names only.

	total := len(filtered)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	items := append([]model.Product(nil), filtered[start:end]...)
	return &model.PageResult{Items: items, Total: total, Limit: q.Limit, Page: q.Page}, nil
}

// FindProduct scans the unified list for a product id. The list is
// already fully materialized, so no per-item cache is needed.
func (l *Loader) FindProduct(ctx context.Context, id string) (*model.Product, bool, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		if all[i].ID == id {
			p := all[i]
			return &p, true, nil
		}
	}
	return nil, false, nil
}

// Invalidate forces a re-parse on the next fetch. Called on new uploads
// and cloaking configuration changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.products = nil
	l.loadedAt = time.Time{}
	l.mu.Unlock()
}

// load returns the unified list, rebuilding it when cold or stale.
// The mutex also serializes concurrent rebuilds so only one parse pass
// runs for any number of simultaneous requests.
func (l *Loader) load(ctx context.Context) ([]model.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.products != nil && l.now().Sub(l.loadedAt) < l.opts.TTL {
		return l.products, nil
	}

	cloakCfg := l.settings.CloakConfig()
	currency := l.settings.Currency()

	var unified []model.Product
	categories := l.registry.Categories()
	for _, category := range categories {
		rows := l.parseRows(l.registry.Text(category))
		unified = append(unified, l.normalizeRows(rows, category, currency, cloakCfg)...)
	}

	if len(unified) == 0 {
		text, err := l.fallbackText(ctx)
		if err != nil {
			// Uploads that parsed to zero valid rows are an empty
			// source, not a missing one.
			if len(categories) > 0 && errors.Is(err, ErrNoDataSource) {
				err = nil
			}
			if err != nil {
				return nil, err
			}
		}
		rows := l.parseRows(text)
		unified = l.normalizeRows(rows, "", currency, cloakCfg)
	}

	if unified == nil {
		unified = []model.Product{}
	}
	l.products = unified
	l.loadedAt = l.now()
	l.metrics.IncTabularReload()
	l.logger.Info("unified product list rebuilt", "products", len(unified))
	return l.products, nil
}

// fallbackText resolves the general source when no per-category uploads
// exist: the registry's general slot, then the local file, then the
// configured URL.
func (l *Loader) fallbackText(ctx context.Context) (string, error) {
	if text := l.registry.General(); strings.TrimSpace(text) != "" {
		return text, nil
	}

	if l.opts.FallbackPath != "" {
		data, err := os.ReadFile(l.opts.FallbackPath)
		if err == nil {
			return string(data), nil
		}
		l.logger.Warn("fallback file unreadable", "path", l.opts.FallbackPath, "error", err)
	}

	if l.opts.FallbackURL != "" {
		text, err := l.fetchFallbackURL(ctx)
		if err != nil {
			l.logger.Warn("fallback URL fetch failed", "url", l.opts.FallbackURL, "error", err)
			return "", fmt.Errorf("%w: fallback fetch failed: %s", ErrNoDataSource, err)
		}
		return text, nil
	}

	return "", ErrNoDataSource
}

// fetchFallbackURL downloads the configured general source over the
// SSRF-guarded client.
func (l *Loader) fetchFallbackURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.opts.FallbackURL, nil)
	if err != nil {
		return "", fmt.Errorf("building fallback request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fallback source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFallbackSize))
	if err != nil {
		return "", fmt.Errorf("reading fallback body: %w", err)
	}
	return string(data), nil
}

// maxFallbackSize caps the fallback download at 20 MB.
const maxFallbackSize = 20 << 20

// parseRows reads delimited text with a header row into raw rows.
// Malformed lines are skipped; a malformed blob yields zero rows rather
// than an error.
func (l *Loader) parseRows(text string) []model.TabularRow {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []model.TabularRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.metrics.IncRecordDropped()
			continue
		}
		rows = append(rows, model.TabularRow{
			ID:            field(rec, "id"),
			URL:           field(rec, "url"),
			Name:          field(rec, "name"),
			Price:         field(rec, "price"),
			PriceMin:      field(rec, "price_min"),
			OriginalPrice: field(rec, "original_price"),
			Discount:      field(rec, "discount"),
			ShopName:      field(rec, "shop_name"),
			ShopLocation:  field(rec, "shop_location"),
			Rating:        field(rec, "rating"),
			RatingCount:   field(rec, "rating_count"),
			SoldCount:     field(rec, "sold_count"),
			SoldCountText: field(rec, "sold_count_text"),
			Image:         field(rec, "image"),
			Images:        field(rec, "images"),
			Category:      field(rec, "category"),
			ShopID:        field(rec, "shopid"),
			Variations:    field(rec, "variations"),
		})
	}
	return rows
}

// normalizeRows converts raw rows, dropping the ones the normalizer
// rejects so a single bad row never breaks a page.
func (l *Loader) normalizeRows(rows []model.TabularRow, categoryOverride, currency string, cfg cloak.Config) []model.Product {
	out := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		p, err := normalize.FromTabular(row, categoryOverride, currency, cfg)
		if err != nil {
			l.metrics.IncRecordDropped()
			continue
		}
		out = append(out, p)
	}
	return out
}

// newFallbackClient builds an HTTP client that refuses requests to
// private, loopback, and link-local addresses. Admin-supplied fallback
// URLs are fetched server-side, so SSRF protection applies.
func newFallbackClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}
