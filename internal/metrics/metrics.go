// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sniffer"

// Pipeline outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDropped   = "dropped"
	OutcomeError     = "error"
	OutcomeFiltered  = "filtered"
	OutcomeUnrouted  = "unrouted"
)

var (
	PipelineItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_items_total",
		Help:      "Pipeline items by outcome",
	}, []string{"outcome"})

	PipelineDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_drops_total",
		Help:      "Pipeline drops by reason",
	}, []string{"reason"})

	PipelineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pipeline_queue_depth",
		Help:      "Items currently buffered in the pipeline queue",
	})

	PipelineProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_processing_seconds",
		Help:      "Time spent enriching, routing and publishing one item",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
	})

	DecodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_total",
		Help:      "Decoded packets by kind and result",
	}, []string{"kind", "result"})

	DispatchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_failures_total",
		Help:      "Handler failures during dispatch",
	}, []string{"kind"})

	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Contract publishes by publisher and result",
	}, []string{"publisher", "result"})

	SchemaReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schema_reloads_total",
		Help:      "Schema table reloads by result",
	}, []string{"result"})

	IngestFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_frames_total",
		Help:      "Frames received by the ingest listener",
	}, []string{"result"})

	WorldEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "world_entities",
		Help:      "Tracked entities by store",
	}, []string{"store"})

	DiskUsedPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "disk_used_percent",
		Help:      "Used space on the data volume",
	})
)

// IncPipeline records one pipeline outcome.
func IncPipeline(outcome string) {
	PipelineItemsTotal.WithLabelValues(outcome).Inc()
}

// IncDrop records a pipeline drop with a concrete reason.
func IncDrop(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	PipelineItemsTotal.WithLabelValues(OutcomeDropped).Inc()
	PipelineDropsTotal.WithLabelValues(reason).Inc()
}

// ObserveProcessing records the processing time of one item.
func ObserveProcessing(d time.Duration) {
	PipelineProcessingSeconds.Observe(d.Seconds())
}

// IncDecode records a decode attempt.
func IncDecode(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	DecodeTotal.WithLabelValues(kind, result).Inc()
}

// IncPublish records a publish attempt.
func IncPublish(publisher string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PublishTotal.WithLabelValues(publisher, result).Inc()
}

// IncSchemaReload records a schema reload attempt.
func IncSchemaReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SchemaReloadsTotal.WithLabelValues(result).Inc()
}
