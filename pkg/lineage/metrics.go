package lineage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for lineage operations
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Lineage metrics
	VersionsAppendedTotal *prometheus.CounterVec
	ConflictRetriesTotal  *prometheus.CounterVec
	OrphanedContentTotal  *prometheus.CounterVec
}

// NewMetrics creates the lineage collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_operations_total",
				Help: "Total number of lineage operations",
			},
			[]string{"kind", "operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lineage_operation_duration_seconds",
				Help:    "Duration of lineage operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "operation"},
		),
		VersionsAppendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_versions_appended_total",
				Help: "Total number of versions appended to item histories",
			},
			[]string{"kind"},
		),
		ConflictRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_conflict_retries_total",
				Help: "Total number of retries after a conflicting version write",
			},
			[]string{"kind", "operation"},
		),
		OrphanedContentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_orphaned_content_total",
				Help: "Total number of content refs that could not be removed",
			},
			[]string{"kind"},
		),
	}
}

// observe records the outcome and duration of one operation
func (m *Metrics) observe(kind Kind, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(string(kind), op, status).Inc()
	m.OperationDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) versionAppended(kind Kind) {
	if m == nil {
		return
	}
	m.VersionsAppendedTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) conflictRetry(kind Kind, op string) {
	if m == nil {
		return
	}
	m.ConflictRetriesTotal.WithLabelValues(string(kind), op).Inc()
}

func (m *Metrics) orphaned(kind Kind) {
	if m == nil {
		return
	}
	m.OrphanedContentTotal.WithLabelValues(string(kind)).Inc()
}
