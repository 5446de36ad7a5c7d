package arima

import (
	"github.com/sartorproj/stockcast/sarima"
)

// FitError is returned by Fit when a model cannot be estimated.
type FitError = sarima.FitError

// Summary describes a fitted model.
type Summary = sarima.Summary

// Model represents an ARIMA(p,d,q) model. It is a SARIMA model without
// seasonal terms and shares its estimator, forecasting and summary.
type Model struct {
	*sarima.Model
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{Model: sarima.New(p, d, q, 0, 0, 0, 0)}
}
