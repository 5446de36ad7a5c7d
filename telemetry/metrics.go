package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockcast"

// Forecast request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ForecastRequests *prometheus.CounterVec
	ForecastLatency  prometheus.Histogram
	ModelFitted      *prometheus.GaugeVec
	ModelRMSE        *prometheus.GaugeVec
	StageDuration    *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
}

// NewMetrics registers every collector, plus the Go and process collectors,
// on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		ForecastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Time spent producing a forecast.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		ModelFitted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_fitted",
			Help:      "1 for the model serving forecasts.",
		}, []string{"model"}),
		ModelRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_test_rmse",
			Help:      "Hold-out RMSE of each evaluated candidate.",
		}, []string{"model"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ForecastRequests,
		m.ForecastLatency,
		m.ModelFitted,
		m.ModelRMSE,
		m.StageDuration,
		m.HTTPRequests,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveForecast counts one forecast request and, when it succeeded, its latency.
func (m *Metrics) ObserveForecast(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ForecastRequests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.ForecastLatency.Observe(time.Since(start).Seconds())
	}
}

// SetServingModel marks name as the only fitted model.
func (m *Metrics) SetServingModel(name string) {
	if m == nil {
		return
	}
	m.ModelFitted.Reset()
	m.ModelFitted.WithLabelValues(name).Set(1)
}
