package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airtrail_pipeline_runs_total",
			Help: "Total number of channel pipeline runs",
		},
		[]string{"status"},
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airtrail_pipeline_run_duration_seconds",
			Help:    "Full pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airtrail_pipeline_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airtrail_pipeline_runs_in_progress",
			Help: "Number of channel runs currently being processed",
		},
	)

	RunQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airtrail_pipeline_run_queue_depth",
			Help: "Number of channel runs waiting to be dispatched",
		},
	)

	// Segment Metrics
	SegmentsSynthesized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airtrail_segments_synthesized_total",
			Help: "Total number of segments produced by timeline synthesis",
		},
	)

	SegmentsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airtrail_segments_merged_total",
			Help: "Total number of merged segments created",
		},
	)

	SegmentsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airtrail_segments_suppressed_total",
			Help: "Total number of segments marked ineligible for analysis",
		},
	)

	TranscriptionJobsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airtrail_transcription_jobs_published_total",
			Help: "Total number of transcription jobs handed to the queue",
		},
	)

	RecognitionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airtrail_recognition_batches_total",
			Help: "Total number of recognition batches consumed",
		},
		[]string{"status"},
	)

	// Database Metrics
	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airtrail_database_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DatabaseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airtrail_database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airtrail_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airtrail_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"kind"},
	)
)
