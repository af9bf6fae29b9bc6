package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast-and-alert pipeline.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CyclesSkipped      *prometheus.CounterVec // labels: reason={short_sequence,forecast_error,panic}
	ForecastsPersisted prometheus.Counter
	PipelineRunning    prometheus.Gauge
	DegradedMode       prometheus.Gauge

	WarningsIssued     *prometheus.CounterVec // labels: level={Low,Moderate,High}
	WarningsSuppressed prometheus.Counter

	SMSSent          prometheus.Counter
	SMSFailed        prometheus.Counter
	DispatchDuration prometheus.Histogram

	InferenceDuration prometheus.Histogram

	RateLimitDecisions *prometheus.CounterVec // labels: scope, outcome={allowed,denied,failopen}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "cycles_total",
			Help:      "Total forecast cycles attempted.",
		}),
		CyclesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped without producing a forecast, by reason.",
		}, []string{"reason"}),
		ForecastsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "forecasts_persisted_total",
			Help:      "Forecast rows written to storage.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_alert",
			Name:      "pipeline_running",
			Help:      "1 when the forecast loop is active, 0 when shut down.",
		}),
		DegradedMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_alert",
			Name:      "degraded_mode",
			Help:      "1 when the heuristic fallback engine is in use.",
		}),
		WarningsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "warnings_issued_total",
			Help:      "Flood warnings issued after deduplication, by risk level.",
		}, []string{"level"}),
		WarningsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "warnings_suppressed_total",
			Help:      "Warnings dropped because the area was inside its cooldown window.",
		}),
		SMSSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "sms_sent_total",
			Help:      "SMS messages accepted by the gateway.",
		}),
		SMSFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "sms_failed_total",
			Help:      "SMS messages the gateway rejected or that errored.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_alert",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a complete notification dispatch pass.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_alert",
			Name:      "inference_duration_seconds",
			Help:      "Model inference request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_alert",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions by scope and outcome.",
		}, []string{"scope", "outcome"}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CyclesSkipped,
		m.ForecastsPersisted,
		m.PipelineRunning,
		m.DegradedMode,
		m.WarningsIssued,
		m.WarningsSuppressed,
		m.SMSSent,
		m.SMSFailed,
		m.DispatchDuration,
		m.InferenceDuration,
		m.RateLimitDecisions,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesTotal:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_alert", Name: "cycles_total"}),
		CyclesSkipped:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_alert", Name: "cycles_skipped_total"}, []string{"reason"}),
		ForecastsPersisted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_alert", Name: "forecasts_persisted_total"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_alert", Name: "pipeline_running"}),
		DegradedMode:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_alert", Name: "degraded_mode"}),
		WarningsIssued:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_alert", Name: "warnings_issued_total"}, []string{"level"}),
		WarningsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_alert", Name: "warnings_suppressed_total"}),
		SMSSent:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_alert", Name: "sms_sent_total"}),
		SMSFailed:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_alert", Name: "sms_failed_total"}),
		DispatchDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_alert", Name: "dispatch_duration_seconds"}),
		InferenceDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_alert", Name: "inference_duration_seconds"}),
		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_alert", Name: "rate_limit_decisions_total"}, []string{"scope", "outcome"}),
	}
}
