package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers the extraction pipeline's external boundaries:
// document normalization, the extraction call, email sync, bulk commit, and
// event publishing.
type PipelineMetrics struct {
	normalizeTotal     *prometheus.CounterVec
	extractionTotal    *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionRows     *prometheus.HistogramVec
	extractionInFlight *prometheus.GaugeVec
	emailSyncTotal     *prometheus.CounterVec
	commitEntities     *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

func newPipelineMetrics(registry *prometheus.Registry) *PipelineMetrics {
	normalizeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "documents_normalized_total",
			Help:      "Total normalized documents by transport channel and status.",
		},
		[]string{"service", "channel", "status"},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "extraction_calls_total",
			Help:      "Total extraction calls by status.",
		},
		[]string{"service", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "extraction_duration_seconds",
			Help:      "Extraction call duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"service", "status"},
	)
	extractionRows := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "extraction_service_rows",
			Help:      "Distribution of service rows per successful extraction.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	extractionInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "extraction_in_flight",
			Help:      "Extraction calls currently in flight.",
		},
		[]string{"service"},
	)
	emailSyncTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "email_sync_total",
			Help:      "Total email sync fetches by status.",
		},
		[]string{"service", "status"},
	)
	commitEntities := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "commit_entities_total",
			Help:      "Total committed entities by outcome.",
		},
		[]string{"service", "outcome"},
	)
	eventsPublished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackwise",
			Subsystem: "pipeline",
			Name:      "events_published_total",
			Help:      "Total published pipeline events by status.",
		},
		[]string{"service", "subject", "status"},
	)

	registry.MustRegister(
		normalizeTotal,
		extractionTotal,
		extractionDuration,
		extractionRows,
		extractionInFlight,
		emailSyncTotal,
		commitEntities,
		eventsPublished,
	)

	return &PipelineMetrics{
		normalizeTotal:     normalizeTotal,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		extractionRows:     extractionRows,
		extractionInFlight: extractionInFlight,
		emailSyncTotal:     emailSyncTotal,
		commitEntities:     commitEntities,
		eventsPublished:    eventsPublished,
	}
}

func (m *PipelineMetrics) RecordNormalize(service, channel string, err error) {
	if m == nil {
		return
	}
	m.normalizeTotal.WithLabelValues(service, channel, statusLabel(err)).Inc()
}

func (m *PipelineMetrics) RecordExtraction(service string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := statusLabel(err)
	m.extractionTotal.WithLabelValues(service, status).Inc()
	m.extractionDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.extractionRows.WithLabelValues(service).Observe(float64(rows))
	}
}

// ExtractionStarted bumps the in-flight gauge and returns the matching
// decrement, meant for a deferred call.
func (m *PipelineMetrics) ExtractionStarted(service string) func() {
	if m == nil {
		return func() {}
	}
	gauge := m.extractionInFlight.WithLabelValues(service)
	gauge.Inc()
	return gauge.Dec
}

func (m *PipelineMetrics) RecordEmailSync(service string, err error) {
	if m == nil {
		return
	}
	m.emailSyncTotal.WithLabelValues(service, statusLabel(err)).Inc()
}

func (m *PipelineMetrics) RecordCommitEntity(service, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.commitEntities.WithLabelValues(service, outcome).Inc()
}

func (m *PipelineMetrics) RecordEventPublished(service, subject string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(service, subject, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
