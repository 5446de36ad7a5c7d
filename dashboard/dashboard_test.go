package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sartorproj/stockcast/config"
	"github.com/sartorproj/stockcast/evaluate"
	"github.com/sartorproj/stockcast/features"
	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/logging"
	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/pipeline"
	"github.com/sartorproj/stockcast/telemetry"
	"github.com/sartorproj/stockcast/timeseries"
)

func testState(t *testing.T) *pipeline.State {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	records := make([]market.PriceRecord, 300)
	d := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	price := 150.0
	for i := range records {
		price += 0.05 + rng.NormFloat64()*0.8
		records[i] = market.PriceRecord{
			Date: d, Open: price - 0.4, High: price + 1, Low: price - 1,
			Close: price, AdjClose: price, Volume: 8e7 + rng.Float64()*1e6,
		}
		d = timeseries.NextBusinessDay(d)
	}

	series, report, err := market.Clean(records, market.CleanOptions{Symbol: "AAPL"})
	require.NoError(t, err)
	cmp, err := evaluate.Compare(context.Background(), series, []evaluate.Candidate{evaluate.ARIMA(1, 1, 1)}, evaluate.Options{})
	require.NoError(t, err)
	f, err := forecast.Refit(cmp.Candidate, series, forecast.Limits{MinHorizon: 5, MaxHorizon: 240})
	require.NoError(t, err)

	return &pipeline.State{
		Dataset: &pipeline.Dataset{
			Symbol:   "AAPL",
			Series:   series,
			Features: features.Compute(series),
			Clean:    report,
		},
		Comparison: cmp,
		Forecaster: f,
		BuiltAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	server  *Server
	metrics *telemetry.Metrics
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, state *pipeline.State, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimit.Enabled = false
	for _, m := range mutate {
		m(cfg)
	}
	fx := &fixture{metrics: telemetry.NewMetrics(), logs: &bytes.Buffer{}}
	srv, err := New(state, cfg, WithLogger(logging.NewWithWriter(fx.logs, "debug")), WithMetrics(fx.metrics))
	require.NoError(t, err)
	fx.server = srv
	return fx
}

func (fx *fixture) get(target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAPIForecast(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/api/forecast?horizon=30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body ForecastResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "AAPL", body.Symbol)
	assert.Equal(t, "ARIMA(1,1,1)", body.Model)
	assert.Equal(t, 0.95, body.Level)
	require.Len(t, body.Rows, 30)

	prevWidth := 0.0
	for i, row := range body.Rows {
		assert.True(t, timeseries.IsBusinessDay(row.Date), "row %d on %s", i, row.Date.Weekday())
		assert.LessOrEqual(t, row.Lower95, row.Predicted)
		assert.GreaterOrEqual(t, row.Upper95, row.Predicted)
		width := row.Upper95 - row.Lower95
		assert.GreaterOrEqual(t, width, prevWidth-1e-9)
		prevWidth = width
	}
}

func TestAPIForecastDefaultHorizon(t *testing.T) {
	fx := newFixture(t, testState(t))

	var body ForecastResponse
	decodeJSON(t, fx.get("/api/forecast"), &body)
	assert.Equal(t, 30, body.Horizon)
	assert.Len(t, body.Rows, 30)
}

func TestAPIForecastRejectsHorizon(t *testing.T) {
	fx := newFixture(t, testState(t))

	for _, h := range []string{"4", "241", "-3"} {
		rec := fx.get("/api/forecast?horizon=" + h)
		require.Equal(t, http.StatusBadRequest, rec.Code, h)

		var body struct {
			ErrorCode string         `json:"error_code"`
			Message   string         `json:"message"`
			Details   HorizonDetails `json:"details"`
			TraceID   string         `json:"trace_id"`
		}
		decodeJSON(t, rec, &body)
		assert.Equal(t, CodeHorizonOutOfRange, body.ErrorCode)
		assert.Equal(t, 5, body.Details.Min)
		assert.Equal(t, 240, body.Details.Max)
		assert.Equal(t, rec.Header().Get(RequestIDHeader), body.TraceID)
	}

	rec := fx.get("/api/forecast?horizon=ten")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInvalidParameter)

	metrics := fx.get("/metrics").Body.String()
	assert.Contains(t, metrics, `stockcast_forecast_requests_total{outcome="rejected"} 4`)
}

func TestForecastCSVDownload(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/forecast.csv?horizon=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "AAPL_forecast_10d.csv")

	rows, err := forecast.ReadCSV(rec.Body)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestForecastXLSXDownload(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/forecast.xlsx?horizon=15")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Forecast")
	require.NoError(t, err)
	assert.Len(t, rows, 16)
}

func TestCharts(t *testing.T) {
	fx := newFixture(t, testState(t))

	for _, target := range []string{"/chart/history.svg", "/chart/forecast.svg?horizon=20", "/chart/forecast.svg?horizon=20&ci=false"} {
		rec := fx.get(target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<svg", target)
	}

	withBand := fx.get("/chart/forecast.svg?horizon=20").Body.String()
	withoutBand := fx.get("/chart/forecast.svg?horizon=20&ci=0").Body.String()
	assert.Contains(t, withBand, "95% interval")
	assert.NotContains(t, withoutBand, "95% interval")

	assert.Equal(t, http.StatusBadRequest, fx.get("/chart/forecast.svg?horizon=1000").Code)
}

func TestIndexPage(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "AAPL closing price forecast")
	assert.Contains(t, body, "Last close")
	assert.Contains(t, body, `min="5" max="240" step="5" value="30"`)
	assert.Contains(t, body, "/forecast.csv?horizon=30")
	assert.Contains(t, body, "Lower 95%")

	noCI := fx.get("/?tab=forecast&ci=false").Body.String()
	assert.NotContains(t, noCI, "Lower 95%")

	model := fx.get("/?tab=model").Body.String()
	assert.Contains(t, model, "ARIMA(1,1,1)")
	assert.Contains(t, model, "sigma2")

	comparison := fx.get("/?tab=comparison").Body.String()
	assert.Contains(t, comparison, "Model comparison")
	assert.Contains(t, comparison, "RMSE")

	history := fx.get("/?tab=history").Body.String()
	assert.Contains(t, history, "/chart/history.svg")
}

func TestIndexRejectsHorizonWithMessage(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/?horizon=500")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "horizon 500 out of range")
	assert.Contains(t, rec.Body.String(), "/forecast.csv?horizon=30", "falls back to the default horizon")
}

func TestAPISummary(t *testing.T) {
	state := testState(t)
	fx := newFixture(t, state)

	rec := fx.get("/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Symbol       string             `json:"symbol"`
		Model        string             `json:"model"`
		Kind         string             `json:"kind"`
		LastDate     string             `json:"last_date"`
		LastClose    string             `json:"last_close"`
		Observations int                `json:"observations"`
		Params       map[string]float64 `json:"params"`
		Summary      string             `json:"summary"`
		Horizon      HorizonRange       `json:"horizon"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ARIMA(1,1,1)", body.Model)
	assert.Equal(t, "arima", body.Kind)
	assert.Equal(t, 300, body.Observations)
	assert.Equal(t, state.Series.Last().Date.Format(time.DateOnly), body.LastDate)
	assert.NotEmpty(t, body.LastClose)
	assert.Contains(t, body.Params, "sigma2")
	assert.NotEmpty(t, body.Summary)
	assert.Equal(t, HorizonRange{Min: 5, Max: 240, Default: 30, Step: 5}, body.Horizon)
}

func TestModelSummaryIsPlainText(t *testing.T) {
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	fx := newFixture(t, testState(t))

	page := fx.get("/?tab=model")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "ARIMA(1,1,1)")
	assert.NotContains(t, page.Body.String(), "\x1b")

	api := fx.get("/api/summary")
	require.Equal(t, http.StatusOK, api.Code)
	assert.NotContains(t, api.Body.String(), `\u001b`)
	var body struct {
		Summary string `json:"summary"`
	}
	decodeJSON(t, api, &body)
	assert.True(t, strings.HasPrefix(body.Summary, "ARIMA(1,1,1)\n"), body.Summary)
}

func TestComparisonWithUndefinedMAPE(t *testing.T) {
	state := testState(t)
	for i := range state.Comparison.Results {
		state.Comparison.Results[i].MAPE = math.NaN()
	}
	state.Comparison.Best.MAPE = math.NaN()
	fx := newFixture(t, state)

	page := fx.get("/?tab=comparison")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "<td>-</td>")

	api := fx.get("/api/comparison")
	require.Equal(t, http.StatusOK, api.Code)
	var body struct {
		Results []map[string]any `json:"results"`
	}
	decodeJSON(t, api, &body)
	require.NotEmpty(t, body.Results)
	assert.Nil(t, body.Results[0]["mape"])
	assert.NotNil(t, body.Results[0]["rmse"])
}

func TestForecastChartShowsHistoryDays(t *testing.T) {
	state := testState(t)
	short := newFixture(t, state, func(c *config.Config) { c.Forecast.HistoryDays = 20 })
	long := newFixture(t, state, func(c *config.Config) { c.Forecast.HistoryDays = 250 })

	a := short.get("/chart/forecast.svg?horizon=10")
	b := long.get("/chart/forecast.svg?horizon=10")
	require.Equal(t, http.StatusOK, a.Code)
	require.Equal(t, http.StatusOK, b.Code)
	// One path vertex per plotted close.
	assert.Greater(t, strings.Count(b.Body.String(), "L "), strings.Count(a.Body.String(), "L ")+200)
}

func TestAPIComparisonWithReference(t *testing.T) {
	state := testState(t)
	ours, err := state.Forecaster.Forecast(10)
	require.NoError(t, err)
	state.Reference = ours.Rows[:5]

	fx := newFixture(t, state)
	rec := fx.get("/api/comparison")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ComparisonResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ARIMA(1,1,1)", body.Best)
	assert.Equal(t, body.Best, body.Serving)
	assert.Equal(t, 240, body.TrainSize)
	assert.Equal(t, 60, body.TestSize)
	require.Len(t, body.Results, 1)
	require.NotNil(t, body.Reference)
	assert.Equal(t, 5, body.Reference.Matched)
	assert.InDelta(t, 0, body.Reference.MeanAbs, 1e-9)
	assert.Equal(t, 5, body.Reference.InBand)

	page := fx.get("/?tab=comparison").Body.String()
	assert.Contains(t, page, "Reference run")
}

func TestHealthAndMetrics(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	fx.get("/api/forecast?horizon=10")
	metrics := fx.get("/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `stockcast_http_requests_total{code="200",route="/api/forecast"} 1`)
	assert.Contains(t, metrics.Body.String(), `stockcast_forecast_requests_total{outcome="ok"} 1`)
}

func TestNotFound(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/api/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeNotFound)
}

func TestRequestIDPropagation(t *testing.T) {
	fx := newFixture(t, testState(t))

	rec := fx.get("/healthz", RequestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, fx.logs.String(), `"trace_id":"req-42"`)
	assert.Contains(t, fx.logs.String(), "request completed")
}

func TestRateLimit(t *testing.T) {
	fx := newFixture(t, testState(t), func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.5, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, fx.get("/api/summary").Code)
	rec := fx.get("/api/summary")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), CodeRateLimited)

	assert.Equal(t, http.StatusOK, fx.get("/healthz").Code, "health checks bypass the limiter")
}

func TestRecoverer(t *testing.T) {
	var logs bytes.Buffer
	h := RequestID(Recoverer(logging.NewWithWriter(&logs, "info"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternal)
	assert.True(t, strings.Contains(logs.String(), "panic recovered"))
}

func TestNewRejectsIncompleteState(t *testing.T) {
	_, err := New(nil, config.Default())
	assert.Error(t, err)
	_, err = New(&pipeline.State{}, config.Default())
	assert.Error(t, err)
}

func TestListenAndServeShutsDown(t *testing.T) {
	fx := newFixture(t, testState(t), func(c *config.Config) {
		c.Server.Addr = "127.0.0.1:0"
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
