package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/stockcast/config"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveForecast(OutcomeOK, time.Now())
	m.ObserveStage("clean", time.Now())
	m.SetServingModel("SARIMA(1,1,1)(1,1,1,5)")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `stockcast_forecast_requests_total{outcome="ok"} 1`)
	assert.Contains(t, body, "stockcast_pipeline_stage_duration_seconds")
	assert.Contains(t, body, `stockcast_model_fitted{model="SARIMA(1,1,1)(1,1,1,5)"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestObserveForecastOutcomes(t *testing.T) {
	m := NewMetrics()
	m.ObserveForecast(OutcomeRejected, time.Now())
	m.ObserveForecast(OutcomeRejected, time.Now())
	m.ObserveForecast(OutcomeOK, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ForecastLatency))
}

func TestSetServingModelReplacesPrevious(t *testing.T) {
	m := NewMetrics()
	m.SetServingModel("ARIMA(1,1,1)")
	m.SetServingModel("XGBoost(lags=10)")

	assert.Equal(t, 1, testutil.CollectAndCount(m.ModelFitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelFitted.WithLabelValues("XGBoost(lags=10)")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("load", time.Now())
		m.ObserveForecast(OutcomeOK, time.Now())
		m.SetServingModel("x")
	})
}

func TestSetupTracingDisabled(t *testing.T) {
	tracer, shutdown, err := SetupTracing(config.TelemetryConfig{ServiceName: "stockcast"}, nil, nil)
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TelemetryConfig{ServiceName: "stockcast", Tracing: true, TraceExporter: "stdout"}

	tracer, shutdown, err := SetupTracing(cfg, &buf, nil)
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "pipeline.clean")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "pipeline.clean")
	assert.Contains(t, buf.String(), "stockcast")
}

func TestSetupTracingUnknownExporter(t *testing.T) {
	_, _, err := SetupTracing(config.TelemetryConfig{Tracing: true, TraceExporter: "otlp"}, &bytes.Buffer{}, nil)
	assert.Error(t, err)
}
