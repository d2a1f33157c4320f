package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_agg"

// Metrics holds the Prometheus collectors for aggregation runs and report retrieval.
type Metrics struct {
	// File-level outcomes. labels: outcome={processed,unknown_category,malformed_date,read_error}
	Files *prometheus.CounterVec

	RowsLoaded        prometheus.Counter
	RowsDropped       *prometheus.CounterVec // labels: reason
	TimestampFailures prometheus.Counter
	RowsOutput        prometheus.Counter

	AggregationDuration prometheus.Histogram
	AggregationRunning  prometheus.Gauge
	LastSuccess         prometheus.Gauge

	// SPC retrieval. labels: kind={page,csv}, outcome={success,error,retry}
	FetchRequests *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Report files seen by aggregation runs, by outcome.",
		}, []string{"outcome"}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Raw rows read from report files.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows excluded by geospatial validation, by reason.",
		}, []string{"reason"}),
		TimestampFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_failures_total",
			Help:      "Rows kept without a UTC timestamp because the time token did not parse.",
		}),
		RowsOutput: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_output_total",
			Help:      "Canonical rows produced by successful runs.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a complete aggregation run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		AggregationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregation_running",
			Help:      "1 while an aggregation run is in progress.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful aggregation run.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "SPC retrieval requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Files,
		m.RowsLoaded,
		m.RowsDropped,
		m.TimestampFailures,
		m.RowsOutput,
		m.AggregationDuration,
		m.AggregationRunning,
		m.LastSuccess,
		m.FetchRequests,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not registered anywhere.
// One-shot commands that never serve /metrics use it and report the values
// themselves.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// FetchCounts returns the current fetch_requests_total values keyed by
// "<kind>_<outcome>", e.g. "csv_retry".
func (m *Metrics) FetchCounts() (map[string]int, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(m.FetchRequests); err != nil {
		return nil, err
	}
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var kind, outcome string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "kind":
					kind = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			counts[kind+"_"+outcome] = int(metric.GetCounter().GetValue())
		}
	}
	return counts, nil
}
