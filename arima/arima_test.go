package arima

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/sartorproj/stockcast/timeseries"
)

func TestNewARIMA(t *testing.T) {
	model := New(2, 1, 1)

	if model.Order.P != 2 {
		t.Errorf("Expected P=2, got %d", model.Order.P)
	}
	if model.Order.D != 1 {
		t.Errorf("Expected D=1, got %d", model.Order.D)
	}
	if model.Order.Q != 1 {
		t.Errorf("Expected Q=1, got %d", model.Order.Q)
	}
	if model.Name() != "ARIMA(2,1,1)" {
		t.Errorf("Name() = %q", model.Name())
	}
}

func TestARIMAFitAR1(t *testing.T) {
	n := 300
	phi := 0.7
	rng := rand.New(rand.NewSource(1))
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = phi*(values[i-1]-100) + 100 + rng.NormFloat64()
	}

	model := New(1, 0, 0)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit AR(1) model: %v", err)
	}

	t.Logf("True AR coeff: %f, Estimated: %f", phi, model.ARCoeffs[0])
	if math.Abs(model.ARCoeffs[0]-phi) > 0.15 {
		t.Errorf("AR coefficient estimate off: true=%f, est=%f", phi, model.ARCoeffs[0])
	}
	if math.Abs(model.Intercept-100) > 1 {
		t.Errorf("Intercept should be near 100, got %f", model.Intercept)
	}
}

func TestARIMAFitMA1(t *testing.T) {
	n := 400
	theta := 0.5
	rng := rand.New(rand.NewSource(2))
	innovations := make([]float64, n)
	for i := range innovations {
		innovations[i] = rng.NormFloat64()
	}

	values := make([]float64, n)
	values[0] = 100 + innovations[0]
	for i := 1; i < n; i++ {
		values[i] = 100 + innovations[i] + theta*innovations[i-1]
	}

	model := New(0, 0, 1)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit MA(1) model: %v", err)
	}

	t.Logf("True MA coeff: %f, Estimated: %f", theta, model.MACoeffs[0])
	if math.Abs(model.MACoeffs[0]-theta) > 0.2 {
		t.Errorf("MA coefficient estimate off: true=%f, est=%f", theta, model.MACoeffs[0])
	}
}

func TestARIMAPredict(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i)/10 + float64(i%7-3)/2
	}

	model := New(1, 1, 0)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	forecasts, err := model.Predict(5)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if len(forecasts) != 5 {
		t.Errorf("Expected 5 forecasts, got %d", len(forecasts))
	}

	lastValue := values[n-1]
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
		if math.Abs(f-lastValue) > 10 {
			t.Errorf("Forecast %d unusual: %f (last value: %f)", i, f, lastValue)
		}
	}
}

func TestARIMARandomWalkInterval(t *testing.T) {
	n := 500
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, n)
	values[0] = 50
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + rng.NormFloat64()
	}

	model := New(0, 1, 0)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	forecasts, lower, upper, err := model.PredictWithInterval(25, 0.95)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	// A random walk forecast is flat with width growing like sqrt(h).
	for h := range forecasts {
		if math.Abs(forecasts[h]-values[n-1]) > 1e-9 {
			t.Errorf("step %d: forecast %f, expected last value %f", h+1, forecasts[h], values[n-1])
		}
	}
	ratio := (upper[24] - lower[24]) / (upper[0] - lower[0])
	if math.Abs(ratio-5) > 1e-6 {
		t.Errorf("width ratio at h=25 = %f, expected 5", ratio)
	}
}

func TestARIMASummary(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i%7-3)/2
	}

	model := New(1, 0, 1)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	summary := model.Summary()
	if summary == nil {
		t.Fatal("Summary should not be nil")
	}
	if summary.NObs != n {
		t.Errorf("Expected NObs=%d, got %d", n, summary.NObs)
	}
	if len(summary.Terms()) != 2 {
		t.Errorf("Expected 2 terms, got %d", len(summary.Terms()))
	}

	t.Logf("Summary - AIC: %f, BIC: %f, LogLik: %f", summary.AIC, summary.BIC, summary.LogLik)
}

func TestARIMAInsufficientData(t *testing.T) {
	model := New(5, 2, 5)
	err := model.Fit(timeseries.New([]float64{1, 2, 3}))

	var fe *FitError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FitError for insufficient data, got %v", err)
	}
	if fe.Model != "ARIMA(5,2,5)" {
		t.Errorf("FitError.Model = %q", fe.Model)
	}
}

func TestARIMAWhiteNoise(t *testing.T) {
	n := 200
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = float64(i%7-3) / 3
	}

	series := timeseries.New(values)
	model := New(0, 0, 0)
	if err := model.Fit(series); err != nil {
		t.Fatalf("Failed to fit white noise: %v", err)
	}

	if math.Abs(model.Intercept-series.Mean()) > 1e-9 {
		t.Errorf("Intercept should equal the mean: got %f, expected %f", model.Intercept, series.Mean())
	}
}

func TestARIMAMultipleOrders(t *testing.T) {
	tests := []struct {
		name    string
		p, d, q int
	}{
		{"AR1", 1, 0, 0},
		{"AR2", 2, 0, 0},
		{"MA1", 0, 0, 1},
		{"MA2", 0, 0, 2},
		{"ARMA11", 1, 0, 1},
		{"ARIMA110", 1, 1, 0},
		{"ARIMA011", 0, 1, 1},
		{"ARIMA111", 1, 1, 1},
		{"ARIMA211", 2, 1, 1},
		{"ARIMA212", 2, 1, 2},
	}

	n := 150
	rng := rand.New(rand.NewSource(4))
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = 0.6*(values[i-1]-100) + 100 + rng.NormFloat64()
	}
	series := timeseries.New(values)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(tt.p, tt.d, tt.q)
			if err := model.Fit(series); err != nil {
				t.Fatalf("Model %s failed to fit: %v", tt.name, err)
			}

			forecasts, lower, upper, err := model.PredictWithInterval(3, 0.95)
			if err != nil {
				t.Fatalf("Prediction failed: %v", err)
			}
			if len(forecasts) != 3 {
				t.Errorf("Expected 3 forecasts, got %d", len(forecasts))
			}
			for h := range forecasts {
				if !(lower[h] <= forecasts[h] && forecasts[h] <= upper[h]) {
					t.Errorf("step %d: forecast outside interval", h+1)
				}
			}

			t.Logf("%s - AIC: %.2f, AICc: %.2f, Forecasts: %v", tt.name, model.AIC, model.AICc, forecasts)
		})
	}
}
