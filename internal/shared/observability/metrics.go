package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cobolscan_scan_seconds",
		Help:    "Time spent scanning a COBOL source file, including copybooks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})

	ScansAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cobolscan_scans_aborted_total",
		Help: "Total number of scans abandoned before completion.",
	}, []string{"reason"})

	CopybookLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cobolscan_copybook_lookups_total",
		Help: "Total number of copybook resolutions by result.",
	}, []string{"result"})

	TokensEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_tokens_emitted_total",
		Help: "Total number of tokens produced by the scanner.",
	})

	WorkspaceFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cobolscan_workspace_files",
		Help: "Number of source files currently held in the symbol cache.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cobolscan_write_queue_depth",
		Help: "Current number of in-memory write requests waiting to be persisted.",
	})

	WriteSpoolDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cobolscan_write_spool_depth",
		Help: "Current number of persistent spool rows waiting to be applied.",
	})

	WriteQueueEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_enqueued_total",
		Help: "Total number of write requests accepted into the in-memory queue.",
	})

	WriteQueueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_dropped_total",
		Help: "Total number of write requests dropped from in-memory enqueue due to backpressure.",
	})

	WriteQueueSpilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_spilled_total",
		Help: "Total number of write requests spooled to persistent storage.",
	})

	WriteQueueRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_retry_total",
		Help: "Total number of persistent spool retries.",
	})

	WriteQueueApplyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_apply_errors_total",
		Help: "Total number of write batch apply errors.",
	})

	WriteQueueProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cobolscan_write_queue_processed_total",
		Help: "Total number of write requests successfully applied.",
	})

	WriteQueueFlushLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cobolscan_write_queue_flush_seconds",
		Help:    "Latency for applying a write batch.",
		Buckets: prometheus.DefBuckets,
	})
)
