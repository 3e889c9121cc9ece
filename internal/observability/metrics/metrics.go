package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "nms_"

	resultSuccess = "success"
	resultError   = "error"
	resultDropped = "dropped"
)

var (
	registerOnce sync.Once

	collectorPolls *prometheus.CounterVec

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	pipelineDepth prometheus.Gauge

	alarmEventsTotal *prometheus.CounterVec

	maintenanceTotal   *prometheus.CounterVec
	maintenanceLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		collectorPolls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "collector_polls_total",
				Help: "Total collector poll cycles by source and result",
			},
			[]string{"source", "result"},
		)

		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_batches_total",
				Help: "Total ingested raw batches by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Normalize-evaluate-store latency per batch in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		pipelineDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "pipeline_queue_depth",
				Help: "Raw batches waiting in the ingest queue",
			},
		)

		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by type",
			},
			[]string{"event"},
		)

		maintenanceTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_maintenance_total",
				Help: "Total alarm maintenance passes by result",
			},
			[]string{"result"},
		)
		maintenanceLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alarm_maintenance_latency_seconds",
				Help:    "Alarm maintenance pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total alarm export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Alarm export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			collectorPolls,
			ingestRequests,
			ingestErrors,
			ingestLatency,
			pipelineDepth,
			alarmEventsTotal,
			maintenanceTotal,
			maintenanceLatency,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncCollectorPoll increments the per-source poll counter.
func IncCollectorPoll(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if collectorPolls != nil {
		collectorPolls.WithLabelValues(source, result).Inc()
	}
}

// ObserveIngest records batch processing duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// SetPipelineDepth sets the current ingest queue depth.
func SetPipelineDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	if pipelineDepth != nil {
		pipelineDepth.Set(float64(depth))
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveMaintenance records maintenance pass latency and result.
func ObserveMaintenance(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if maintenanceTotal != nil {
		maintenanceTotal.WithLabelValues(result).Inc()
	}
	if maintenanceLatency != nil {
		maintenanceLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultDropped = resultDropped
)
