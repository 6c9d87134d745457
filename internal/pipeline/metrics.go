package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/albionradar/sniffer/internal/metrics"
)

// Metrics counts pipeline outcomes. Filtered and unrouted items are also
// counted as processed: they completed without error.
type Metrics struct {
	processed       atomic.Uint64
	dropped         atomic.Uint64
	errors          atomic.Uint64
	filtered        atomic.Uint64
	unrouted        atomic.Uint64
	processingNanos atomic.Int64
	lastActivity    atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics with derived rates.
type Snapshot struct {
	Processed           uint64        `json:"processed"`
	Dropped             uint64        `json:"dropped"`
	Errors              uint64        `json:"errors"`
	Filtered            uint64        `json:"filtered"`
	Unrouted            uint64        `json:"unrouted"`
	TotalProcessingTime time.Duration `json:"totalProcessingTime"`
	AverageLatency      time.Duration `json:"averageLatency"`
	ErrorRate           float64       `json:"errorRate"`
	DropRate            float64       `json:"dropRate"`
	LastActivity        time.Time     `json:"lastActivity"`
}

func (m *Metrics) touch() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// RecordProcessed counts a completed item.
func (m *Metrics) RecordProcessed(d time.Duration) {
	m.processed.Add(1)
	m.processingNanos.Add(int64(d))
	m.touch()
	metrics.IncPipeline(metrics.OutcomeProcessed)
	metrics.ObserveProcessing(d)
}

// RecordFiltered counts an item vetoed by the enrichment chain.
func (m *Metrics) RecordFiltered(d time.Duration) {
	m.filtered.Add(1)
	metrics.IncPipeline(metrics.OutcomeFiltered)
	m.RecordProcessed(d)
}

// RecordUnrouted counts an item no transformer accepted.
func (m *Metrics) RecordUnrouted(d time.Duration) {
	m.unrouted.Add(1)
	metrics.IncPipeline(metrics.OutcomeUnrouted)
	m.RecordProcessed(d)
}

// RecordError counts a failed item.
func (m *Metrics) RecordError(d time.Duration) {
	m.errors.Add(1)
	m.processingNanos.Add(int64(d))
	m.touch()
	metrics.IncPipeline(metrics.OutcomeError)
	metrics.ObserveProcessing(d)
}

// RecordDropped counts n items that never reached a worker.
func (m *Metrics) RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	m.dropped.Add(uint64(n))
	m.touch()
	for i := 0; i < n; i++ {
		metrics.IncDrop(reason)
	}
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Processed:           m.processed.Load(),
		Dropped:             m.dropped.Load(),
		Errors:              m.errors.Load(),
		Filtered:            m.filtered.Load(),
		Unrouted:            m.unrouted.Load(),
		TotalProcessingTime: time.Duration(m.processingNanos.Load()),
	}
	if last := m.lastActivity.Load(); last > 0 {
		s.LastActivity = time.Unix(0, last)
	}

	if done := s.Processed + s.Errors; done > 0 {
		s.AverageLatency = s.TotalProcessingTime / time.Duration(done)
		s.ErrorRate = float64(s.Errors) / float64(done) * 100
	}
	if seen := s.Processed + s.Dropped; seen > 0 {
		s.DropRate = float64(s.Dropped) / float64(seen) * 100
	}
	return s
}

// Reset zeroes every counter. Prometheus counters are left alone.
func (m *Metrics) Reset() {
	m.processed.Store(0)
	m.dropped.Store(0)
	m.errors.Store(0)
	m.filtered.Store(0)
	m.unrouted.Store(0)
	m.processingNanos.Store(0)
	m.lastActivity.Store(0)
}
