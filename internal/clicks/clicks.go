// Package clicks records outbound redirect events off the request path.
// Recording never blocks a redirect: events go through a buffered
// channel to a single worker, and overflow is counted and dropped.
package clicks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/werserver/thaideals/internal/metrics"
)

// Event is one outbound click.
type Event struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Source    string    `json:"source"`
	Referrer  string    `json:"referrer,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder aggregates click events in memory.
type Recorder struct {
	events  chan Event
	metrics metrics.Recorder
	logger  *slog.Logger

	mu       sync.RWMutex
	byID     map[string]uint64
	total    uint64
	lastSeen time.Time

	// closeMu serializes Record against Shutdown: a straggling request
	// handler may still call Record after the HTTP drain deadline.
	closeMu sync.RWMutex
	closed  bool

	done chan struct{}
}

// NewRecorder starts the worker goroutine. buffer bounds how many
// events may be in flight before new ones are dropped.
func NewRecorder(buffer int, recorder metrics.Recorder, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	r := &Recorder{
		events:  make(chan Event, buffer),
		metrics: recorder,
		logger:  logger.With("component", "clicks"),
		byID:    make(map[string]uint64),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues a click without blocking. A full buffer or a
// recorder already shutting down drops the event and bumps the drop
// counter.
func (r *Recorder) Record(productID, source, referrer string) {
	ev := Event{
		ID:        ulid.Make().String(),
		ProductID: productID,
		Source:    source,
		Referrer:  sanitizeReferrer(referrer),
		At:        time.Now().UTC(),
	}

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		r.metrics.IncClickDropped()
		return
	}

	select {
	case r.events <- ev:
		r.metrics.IncOutboundClick()
	default:
		r.metrics.IncClickDropped()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.events {
		r.mu.Lock()
		r.byID[ev.ProductID]++
		r.total++
		r.lastSeen = ev.At
		r.mu.Unlock()
	}
}

// Stats is a point-in-time view of the aggregated clicks.
type Stats struct {
	Total     uint64            `json:"total"`
	ByProduct map[string]uint64 `json:"by_product"`
	LastSeen  time.Time         `json:"last_seen,omitempty"`
}

// Counts snapshots the aggregation.
func (r *Recorder) Counts() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byID := make(map[string]uint64, len(r.byID))
	for id, n := range r.byID {
		byID[id] = n
	}
	return Stats{Total: r.total, ByProduct: byID, LastSeen: r.lastSeen}
}

// Shutdown stops accepting events and waits for the worker to drain
// the buffer or the context to expire. Safe to call once all producers
// observe the closed flag; later Record calls drop cleanly.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.closeMu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.closeMu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sanitizeReferrer keeps referrers bounded and printable; they come
// straight off a request header.
func sanitizeReferrer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[:512]
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
