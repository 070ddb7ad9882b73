package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncPageCacheHit is a no-op.
func (n *NoopRecorder) IncPageCacheHit() {}

// IncPageCacheMiss is a no-op.
func (n *NoopRecorder) IncPageCacheMiss() {}

// IncUpstreamRequest is a no-op.
func (n *NoopRecorder) IncUpstreamRequest(status string) {}

// ObserveFetchDuration is a no-op.
func (n *NoopRecorder) ObserveFetchDuration(duration time.Duration) {}

// IncRecordDropped is a no-op.
func (n *NoopRecorder) IncRecordDropped() {}

// IncTabularReload is a no-op.
func (n *NoopRecorder) IncTabularReload() {}

// IncOutboundClick is a no-op.
func (n *NoopRecorder) IncOutboundClick() {}

// IncClickDropped is a no-op.
func (n *NoopRecorder) IncClickDropped() {}
