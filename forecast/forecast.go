// Package forecast refits the selected model on the full cleaned series and
// produces future business-day forecasts with 95% intervals.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sartorproj/stockcast/evaluate"
	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/timeseries"
)

// Level is the interval coverage of every forecast.
const Level = 0.95

// Limits bounds the horizons a Forecaster accepts.
type Limits struct {
	MinHorizon int
	MaxHorizon int
}

// DefaultLimits returns the dashboard horizon range.
func DefaultLimits() Limits {
	return Limits{MinHorizon: 1, MaxHorizon: 240}
}

// ForecastError rejects a horizon outside the configured limits.
type ForecastError struct {
	Horizon int
	Min     int
	Max     int
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("horizon %d out of range: must be between %d and %d business days", e.Horizon, e.Min, e.Max)
}

// Validate returns a *ForecastError when h lies outside the limits.
func (l Limits) Validate(h int) error {
	if h < l.MinHorizon || h > l.MaxHorizon || h < 1 {
		return &ForecastError{Horizon: h, Min: l.MinHorizon, Max: l.MaxHorizon}
	}
	return nil
}

// Row is one forecast business day.
type Row struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted_close"`
	Lower95   float64   `json:"lower_ci_95"`
	Upper95   float64   `json:"upper_ci_95"`
}

// Result is the forecast for one horizon request.
type Result struct {
	Model   string `json:"model"`
	Horizon int    `json:"horizon"`
	Rows    []Row  `json:"rows"`
}

// Forecaster serves forecasts from a model fitted on the whole series. It is
// read-only after Refit and safe for concurrent use.
type Forecaster struct {
	candidate evaluate.Candidate
	model     evaluate.Predictor
	lastDate  time.Time
	lastClose float64
	nobs      int
	limits    Limits
}

// Refit fits candidate on every close in series, independently of any model
// fitted during evaluation.
func Refit(candidate evaluate.Candidate, series *market.PriceSeries, limits Limits) (*Forecaster, error) {
	if series == nil || series.Len() == 0 {
		return nil, errors.New("refit: empty series")
	}
	if limits.MinHorizon < 1 || limits.MaxHorizon < limits.MinHorizon {
		return nil, fmt.Errorf("refit: invalid horizon limits %+v", limits)
	}

	model, err := candidate.Fit(series.Closes())
	if err != nil {
		return nil, fmt.Errorf("refit: %w", err)
	}

	last := series.Last()
	return &Forecaster{
		candidate: candidate,
		model:     model,
		lastDate:  last.Date,
		lastClose: last.Close,
		nobs:      series.Len(),
		limits:    limits,
	}, nil
}

// Forecast predicts the h business days after the last observation. An
// out-of-range horizon returns a *ForecastError before any computation.
func (f *Forecaster) Forecast(h int) (*Result, error) {
	if err := f.limits.Validate(h); err != nil {
		return nil, err
	}

	point, lower, upper, err := f.model.PredictWithInterval(h, Level)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", f.model.Name(), err)
	}

	dates := timeseries.FutureBusinessDays(f.lastDate, h)
	rows := make([]Row, h)
	for i := range rows {
		if math.IsNaN(point[i]) {
			return nil, fmt.Errorf("forecast %s: non-finite prediction at step %d", f.model.Name(), i+1)
		}
		rows[i] = Row{Date: dates[i], Predicted: point[i], Lower95: lower[i], Upper95: upper[i]}
	}
	return &Result{Model: f.model.Name(), Horizon: h, Rows: rows}, nil
}

// Model returns the fitted model.
func (f *Forecaster) Model() evaluate.Predictor { return f.model }

// Candidate returns the refitted candidate description.
func (f *Forecaster) Candidate() evaluate.Candidate { return f.candidate }

// Limits returns the accepted horizon range.
func (f *Forecaster) Limits() Limits { return f.limits }

// LastDate returns the last observed business day.
func (f *Forecaster) LastDate() time.Time { return f.lastDate }

// LastClose returns the last observed close.
func (f *Forecaster) LastClose() float64 { return f.lastClose }

// NObs returns the number of observations the model was fitted on.
func (f *Forecaster) NObs() int { return f.nobs }
