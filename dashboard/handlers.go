package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/sartorproj/stockcast/evaluate"
	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// horizon reads the horizon query parameter, defaulting when absent. Range
// checks belong to the Forecaster.
func (s *Server) horizon(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("horizon"))
	if raw == "" {
		return s.cfg.Forecast.DefaultHorizon, nil
	}
	h, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewAPIErrorWithDetails(http.StatusBadRequest, CodeInvalidParameter,
			"horizon must be an integer number of business days", raw)
	}
	return h, nil
}

// forecast serves one horizon request and records its outcome.
func (s *Server) forecast(r *http.Request) (*forecast.Result, error) {
	start := time.Now()
	h, err := s.horizon(r)
	var res *forecast.Result
	if err == nil {
		res, err = s.state.Forecaster.Forecast(h)
	}

	outcome := telemetry.OutcomeOK
	switch {
	case err == nil:
	case isRejection(err):
		outcome = telemetry.OutcomeRejected
	default:
		outcome = telemetry.OutcomeError
	}
	s.metrics.ObserveForecast(outcome, start)
	return res, err
}

func isRejection(err error) bool {
	var fe *forecast.ForecastError
	var apiErr *APIError
	return errors.As(err, &fe) || errors.As(err, &apiErr)
}

// showCI reads the ci query parameter; the band is shown unless it is false.
func showCI(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("ci"))
	return err != nil || v
}

func (s *Server) filename(res *forecast.Result, ext string) string {
	return fmt.Sprintf("%s_forecast_%dd.%s", s.state.Symbol, res.Horizon, ext)
}

func (s *Server) handleForecastCSV(w http.ResponseWriter, r *http.Request) {
	res, err := s.forecast(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := forecast.WriteCSV(&buf, res.Rows); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename(res, "csv")))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleForecastXLSX(w http.ResponseWriter, r *http.Request) {
	res, err := s.forecast(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := forecast.WriteXLSX(&buf, res); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename(res, "xlsx")))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderHistory(&buf, s.state.Series.Tail(s.cfg.Forecast.HistoryDays), s.state.Symbol); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeSVG(w, buf.Bytes())
}

func (s *Server) handleForecastChart(w http.ResponseWriter, r *http.Request) {
	res, err := s.forecast(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := renderForecast(&buf, s.state.Series.Tail(s.cfg.Forecast.HistoryDays), res, showCI(r)); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	writeSVG(w, buf.Bytes())
}

func writeSVG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}

// ForecastResponse is the body of GET /api/forecast.
type ForecastResponse struct {
	Symbol   string         `json:"symbol"`
	Model    string         `json:"model"`
	Horizon  int            `json:"horizon"`
	Level    float64        `json:"level"`
	LastDate string         `json:"last_date"`
	Rows     []forecast.Row `json:"rows"`
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	res, err := s.forecast(r)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	render.JSON(w, r, ForecastResponse{
		Symbol:   s.state.Symbol,
		Model:    res.Model,
		Horizon:  res.Horizon,
		Level:    forecast.Level,
		LastDate: s.state.Forecaster.LastDate().Format(time.DateOnly),
		Rows:     res.Rows,
	})
}

// HorizonRange is the horizon selector configuration.
type HorizonRange struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
	Step    int `json:"step"`
}

// SummaryResponse is the body of GET /api/summary.
type SummaryResponse struct {
	Symbol        string             `json:"symbol"`
	Model         string             `json:"model"`
	Kind          evaluate.Kind      `json:"kind"`
	Start         string             `json:"start"`
	LastDate      string             `json:"last_date"`
	LastClose     decimal.Decimal    `json:"last_close"`
	Observations  int                `json:"observations"`
	ForwardFilled int                `json:"forward_filled"`
	Params        map[string]float64 `json:"params"`
	Summary       string             `json:"summary"`
	Horizon       HorizonRange       `json:"horizon"`
	BuiltAt       time.Time          `json:"built_at"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	f := s.state.Forecaster
	render.JSON(w, r, SummaryResponse{
		Symbol:        s.state.Symbol,
		Model:         f.Model().Name(),
		Kind:          f.Candidate().Kind,
		Start:         s.state.Series.First().Date.Format(time.DateOnly),
		LastDate:      f.LastDate().Format(time.DateOnly),
		LastClose:     decimal.NewFromFloat(f.LastClose()).Round(2),
		Observations:  f.NObs(),
		ForwardFilled: s.state.Clean.ForwardFilled,
		Params:        finite(f.Model().Params()),
		Summary:       f.Model().Describe(),
		Horizon:       s.horizonRange(),
		BuiltAt:       s.state.BuiltAt,
	})
}

func (s *Server) horizonRange() HorizonRange {
	fc := s.cfg.Forecast
	return HorizonRange{Min: fc.MinHorizon, Max: fc.MaxHorizon, Default: fc.DefaultHorizon, Step: fc.Step}
}

// ComparisonResponse is the body of GET /api/comparison.
type ComparisonResponse struct {
	RunID          string                     `json:"run_id"`
	TrainSize      int                        `json:"train_size"`
	TestSize       int                        `json:"test_size"`
	Best           string                     `json:"best"`
	Serving        string                     `json:"serving"`
	Results        []evaluate.Result          `json:"results"`
	Failed         []evaluate.Failure         `json:"failed,omitempty"`
	Reference      *forecast.ReferenceSummary `json:"reference,omitempty"`
	ReferenceError string                     `json:"reference_error,omitempty"`
}

func (s *Server) handleAPIComparison(w http.ResponseWriter, r *http.Request) {
	cmp := s.state.Comparison
	results := make([]evaluate.Result, len(cmp.Results))
	for i, res := range cmp.Results {
		res.Params = finite(res.Params)
		results[i] = res
	}
	render.JSON(w, r, ComparisonResponse{
		RunID:          cmp.RunID,
		TrainSize:      cmp.TrainSize,
		TestSize:       cmp.TestSize,
		Best:           cmp.Best.Model,
		Serving:        s.state.Forecaster.Model().Name(),
		Results:        results,
		Failed:         cmp.Failed,
		Reference:      s.reference,
		ReferenceError: s.state.ReferenceErr,
	})
}

// finite drops NaN and infinite values, which JSON cannot encode.
func finite(params map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(params))
	for k, v := range params {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
