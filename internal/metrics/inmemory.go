package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PageCacheHits        uint64 `json:"page_cache_hits"`
	PageCacheMisses      uint64 `json:"page_cache_misses"`
	UpstreamSuccesses    uint64 `json:"upstream_successes"`
	UpstreamErrors       uint64 `json:"upstream_errors"`
	FetchDurationCount   uint64 `json:"fetch_duration_count"`
	FetchDurationTotalNs int64  `json:"fetch_duration_total_ns"`
	RecordsDropped       uint64 `json:"records_dropped"`
	TabularReloads       uint64 `json:"tabular_reloads"`
	OutboundClicks       uint64 `json:"outbound_clicks"`
	ClicksDropped        uint64 `json:"clicks_dropped"`
}

// InMemoryRecorder stores metrics in memory; it backs the admin metrics
// endpoint and the tests.
type InMemoryRecorder struct {
	pageCacheHits        uint64
	pageCacheMisses      uint64
	upstreamSuccesses    uint64
	upstreamErrors       uint64
	fetchDurationCount   uint64
	fetchDurationTotalNs int64
	recordsDropped       uint64
	tabularReloads       uint64
	outboundClicks       uint64
	clicksDropped        uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PageCacheHits:        atomic.LoadUint64(&m.pageCacheHits),
		PageCacheMisses:      atomic.LoadUint64(&m.pageCacheMisses),
		UpstreamSuccesses:    atomic.LoadUint64(&m.upstreamSuccesses),
		UpstreamErrors:       atomic.LoadUint64(&m.upstreamErrors),
		FetchDurationCount:   atomic.LoadUint64(&m.fetchDurationCount),
		FetchDurationTotalNs: atomic.LoadInt64(&m.fetchDurationTotalNs),
		RecordsDropped:       atomic.LoadUint64(&m.recordsDropped),
		TabularReloads:       atomic.LoadUint64(&m.tabularReloads),
		OutboundClicks:       atomic.LoadUint64(&m.outboundClicks),
		ClicksDropped:        atomic.LoadUint64(&m.clicksDropped),
	}
}

// IncPageCacheHit increments the page cache hit counter.
func (m *InMemoryRecorder) IncPageCacheHit() {
	atomic.AddUint64(&m.pageCacheHits, 1)
}

// IncPageCacheMiss increments the page cache miss counter.
func (m *InMemoryRecorder) IncPageCacheMiss() {
	atomic.AddUint64(&m.pageCacheMisses, 1)
}

// IncUpstreamRequest counts one upstream API call by outcome.
func (m *InMemoryRecorder) IncUpstreamRequest(status string) {
	if status == "success" {
		atomic.AddUint64(&m.upstreamSuccesses, 1)
		return
	}
	atomic.AddUint64(&m.upstreamErrors, 1)
}

// ObserveFetchDuration records one fetch duration.
func (m *InMemoryRecorder) ObserveFetchDuration(duration time.Duration) {
	atomic.AddUint64(&m.fetchDurationCount, 1)
	atomic.AddInt64(&m.fetchDurationTotalNs, duration.Nanoseconds())
}

// IncRecordDropped counts one malformed record excluded from a page.
func (m *InMemoryRecorder) IncRecordDropped() {
	atomic.AddUint64(&m.recordsDropped, 1)
}

// IncTabularReload counts one rebuild of the unified tabular list.
func (m *InMemoryRecorder) IncTabularReload() {
	atomic.AddUint64(&m.tabularReloads, 1)
}

// IncOutboundClick counts one recorded outbound click.
func (m *InMemoryRecorder) IncOutboundClick() {
	atomic.AddUint64(&m.outboundClicks, 1)
}

// IncClickDropped counts one click event lost to a full buffer.
func (m *InMemoryRecorder) IncClickDropped() {
	atomic.AddUint64(&m.clicksDropped, 1)
}
