package runtime

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/jsoncodec"
)

const latencySampleSize = 256

// SubscriberInfo describes a registered subscriber for the stats endpoint.
type SubscriberInfo struct {
	ID       string           `json:"id"`
	Exchange string           `json:"exchange"`
	Queue    string           `json:"queue"`
	Stats    *SubscriberStats `json:"stats"`
}

// SubscriberStats accumulates delivery outcomes of one subscriber.
type SubscriberStats struct {
	mu sync.Mutex

	MessagesReceived uint64    `json:"messages_received"`
	MessagesHandled  uint64    `json:"messages_handled"`
	RecordsHandled   uint64    `json:"records_handled"`
	LastReceivedAt   time.Time `json:"last_received_at"`

	Latency LatencyMetrics `json:"latency"`
	Errors  ErrorBreakdown `json:"errors"`

	latencyWindow *latencyWindow
}

type LatencyMetrics struct {
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ErrorBreakdown struct {
	SchemaViolations uint64 `json:"schema_violations"`
	HandlerFailures  uint64 `json:"handler_failures"`
	LastError        string `json:"last_error,omitempty"`
}

func newSubscriberStats() *SubscriberStats {
	return &SubscriberStats{latencyWindow: newLatencyWindow(latencySampleSize)}
}

func (s *SubscriberStats) onReceived(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MessagesReceived++
	s.LastReceivedAt = now.UTC()
}

func (s *SubscriberStats) onHandled(records int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MessagesHandled++
	s.RecordsHandled += uint64(records)
	s.latencyWindow.Add(duration)
	s.Latency = s.latencyWindow.Snapshot()
}

func (s *SubscriberStats) onFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, errspkg.ErrSchemaViolation):
		s.Errors.SchemaViolations++
	case errors.Is(err, errspkg.ErrHandlerFailure):
		s.Errors.HandlerFailures++
	}
	if err != nil {
		s.Errors.LastError = err.Error()
	}
}

func (s *SubscriberStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias SubscriberStats
	return jsoncodec.Marshal((*Alias)(s))
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

// Snapshot computes percentiles over the retained samples.
func (lw *latencyWindow) Snapshot() LatencyMetrics {
	m := LatencyMetrics{LastNs: lw.last, SampleSize: lw.filled}
	if lw.filled == 0 {
		return m
	}
	sorted := make([]int64, lw.filled)
	if lw.filled < len(lw.samples) {
		copy(sorted, lw.samples[:lw.filled])
	} else {
		copy(sorted, lw.samples)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	m.P50Ns = percentile(sorted, 0.50)
	m.P95Ns = percentile(sorted, 0.95)
	m.P99Ns = percentile(sorted, 0.99)
	return m
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + int64(float64(sorted[upper]-sorted[lower])*frac)
}
