// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Cache metrics
	IncPageCacheHit()
	IncPageCacheMiss()

	// Upstream fetch metrics
	IncUpstreamRequest(status string) // status: "success" or "error"
	ObserveFetchDuration(duration time.Duration)

	// Normalization metrics
	IncRecordDropped()

	// Tabular loader metrics
	IncTabularReload()

	// Outbound click metrics
	IncOutboundClick()
	IncClickDropped()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
