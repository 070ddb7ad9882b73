// Package remote loads product pages from the upstream affiliate API,
// with page-level and item-level caching in front of the network.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/werserver/thaideals/internal/cache"
	"github.com/werserver/thaideals/internal/cloak"
	"github.com/werserver/thaideals/internal/metrics"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/normalize"
)

// ErrMissingCredential indicates the upstream API token is not
// configured. This is the one configuration error users must see;
// it is raised before any network I/O.
var ErrMissingCredential = errors.New("product API credential is not configured")

// UpstreamError indicates a non-success response from the product API.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("product API returned status %d", e.Status)
}

// Settings supplies the call-time configuration the loader reads on
// every fetch, so admin edits take effect immediately.
type Settings interface {
	Credential() string
	CloakConfig() cloak.Config
	Currency() string
}

// Options configure the loader's upstream behavior.
type Options struct {
	// BaseURL is the products endpoint of the affiliate API.
	BaseURL string

	// Timeout bounds one upstream request.
	Timeout time.Duration

	// UpstreamRPS and UpstreamBurst throttle calls to the affiliate API.
	UpstreamRPS   float64
	UpstreamBurst int
}

// Loader fetches, normalizes, and caches product pages from the
// upstream API. Concurrent fetches for the same cache key converge on a
// single request.
type Loader struct {
	settings Settings
	store    cache.Store
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	group    singleflight.Group
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// New creates a remote loader.
func New(settings Settings, store cache.Store, opts Options, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UpstreamRPS <= 0 {
		opts.UpstreamRPS = 5
	}
	if opts.UpstreamBurst <= 0 {
		opts.UpstreamBurst = 5
	}
	return &Loader{
		settings: settings,
		store:    store,
		client:   newHTTPClient(opts.Timeout),
		baseURL:  opts.BaseURL,
		limiter:  rate.NewLimiter(rate.Limit(opts.UpstreamRPS), opts.UpstreamBurst),
		metrics:  recorder,
		logger:   logger.With("component", "source.remote"),
	}
}

// FetchPage returns one page of products matching the query, from cache
// when a fresh entry exists, otherwise from exactly one upstream call.
func (l *Loader) FetchPage(ctx context.Context, q model.PageQuery) (*model.PageResult, error) {
	q = q.Normalized()

	key := cacheKey(q)

	result, err := l.store.GetPage(ctx, key)
	if err == nil {
		l.metrics.IncPageCacheHit()
		return result, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.logger.Warn("page cache read failed", "key", key, "error", err)
	}
	l.metrics.IncPageCacheMiss()

	// A cached page is still servable without a credential; only an
	// actual upstream call requires one.
	if l.settings.Credential() == "" {
		return nil, ErrMissingCredential
	}

	// Coalesce concurrent fetches for the same key into one request.
	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.fetch(ctx, key, q)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PageResult), nil
}

// fetch performs the upstream call, normalizes the records, and fills
// both caches. Failures are never cached.
func (l *Loader) fetch(ctx context.Context, key string, q model.PageQuery) (*model.PageResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for upstream limiter: %w", err)
	}

	params := url.Values{}
	params.Set("token", l.settings.Credential())
	params.Set("currency", l.settings.Currency())
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("page", strconv.Itoa(q.Page))
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}
	if q.CategoryID != "" {
		params.Set("category_id", q.CategoryID)
	}
	if q.AdvertiserID != "" {
		params.Set("advertiser_id", q.AdvertiserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building product API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ThaiDeals/1.0")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		l.metrics.IncUpstreamRequest("error")
		return nil, fmt.Errorf("product API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		l.metrics.IncUpstreamRequest("error")
		l.logger.Warn("upstream returned non-success status",
			"status", resp.StatusCode,
			"page", q.Page,
		)
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	var env model.RemoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		l.metrics.IncUpstreamRequest("error")
		return nil, fmt.Errorf("decoding product API response: %w", err)
	}
	l.metrics.IncUpstreamRequest("success")
	l.metrics.ObserveFetchDuration(time.Since(start))

	cloakCfg := l.settings.CloakConfig()
	items := make([]model.Product, 0, len(env.Data))
	for _, rec := range env.Data {
		p, err := normalize.FromRemote(rec, cloakCfg)
		if err != nil {
			// One malformed record must not break the page.
			l.metrics.IncRecordDropped()
			l.logger.Debug("dropping malformed record", "product_id", rec.ProductID, "error", err)
			continue
		}
		items = append(items, p)
	}

	// Item entries are filled for every fetched page regardless of the
	// filters that produced it; detail views resolve by id from here.
	if err := l.store.SetItems(ctx, items); err != nil {
		l.logger.Warn("item cache write failed", "error", err)
	}

	result := &model.PageResult{
		Items: items,
		Total: env.Meta.Total,
		Limit: q.Limit,
		Page:  q.Page,
	}
	if err := l.store.SetPage(ctx, key, result); err != nil {
		l.logger.Warn("page cache write failed", "key", key, "error", err)
	}

	return result, nil
}

// cacheKey derives a deterministic key from the semantic query fields.
func cacheKey(q model.PageQuery) string {
	return fmt.Sprintf("remote|kw=%s|cat=%s|adv=%s|limit=%d|page=%d",
		q.Keyword, q.CategoryID, q.AdvertiserID, q.Limit, q.Page)
}

// newHTTPClient builds the upstream client with explicit timeouts.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
