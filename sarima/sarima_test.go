package sarima

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sartorproj/stockcast/timeseries"
)

// weeklySeries is a business-day series with a linear trend and a Friday bump.
// Position 0 is a Monday.
func weeklySeries(n int, slope, bump, noise float64, seed int64) (values, truth []float64) {
	rng := rand.New(rand.NewSource(seed))
	values = make([]float64, n)
	truth = make([]float64, n)
	for i := range values {
		truth[i] = weeklyTruth(i, slope, bump)
		values[i] = truth[i] + rng.NormFloat64()*noise
	}
	return values, truth
}

func weeklyTruth(i int, slope, bump float64) float64 {
	v := 100 + slope*float64(i)
	if i%5 == 4 {
		v += bump
	}
	return v
}

func TestNewSARIMA(t *testing.T) {
	model := New(1, 1, 1, 1, 1, 1, 5)

	if model.Order.P != 1 || model.Order.D != 1 || model.Order.Q != 1 {
		t.Errorf("unexpected non-seasonal order %+v", model.Order)
	}
	if model.Order.SP != 1 || model.Order.SD != 1 || model.Order.SQ != 1 {
		t.Errorf("unexpected seasonal order %+v", model.Order)
	}
	if model.Order.M != 5 {
		t.Errorf("Expected M=5, got %d", model.Order.M)
	}
	if got := model.Name(); got != "SARIMA(1,1,1)(1,1,1,5)" {
		t.Errorf("Name() = %q", got)
	}
	if got := New(1, 1, 1, 0, 0, 0, 0).Name(); got != "ARIMA(1,1,1)" {
		t.Errorf("Name() = %q", got)
	}
}

func TestSARIMATrendWithWeeklyBump(t *testing.T) {
	n := 1500
	horizon := 30
	slope, bump := 0.2, 2.0
	values, _ := weeklySeries(n, slope, bump, 0.05, 42)

	model := New(1, 1, 1, 1, 1, 1, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	t.Logf("coefficients: ar=%v ma=%v sar=%v sma=%v sigma2=%f",
		model.ARCoeffs, model.MACoeffs, model.SARCoeffs, model.SMACoeffs, model.Variance)

	forecasts, lower, upper, err := model.PredictWithInterval(horizon, 0.95)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if len(forecasts) != horizon {
		t.Fatalf("Expected %d forecasts, got %d", horizon, len(forecasts))
	}

	sse := 0.0
	for h, f := range forecasts {
		diff := f - weeklyTruth(n+h, slope, bump)
		sse += diff * diff
	}
	rmse := math.Sqrt(sse / float64(horizon))
	t.Logf("RMSE against true trend+bump: %f", rmse)
	if rmse > 1.5 {
		t.Errorf("RMSE %f exceeds 1.5", rmse)
	}

	// The Friday of every forecast week carries the largest detrended value.
	for week := 0; week < horizon/5; week++ {
		best, bestDay := math.Inf(-1), -1
		for day := 0; day < 5; day++ {
			h := week*5 + day
			detrended := forecasts[h] - slope*float64(n+h)
			if detrended > best {
				best, bestDay = detrended, day
			}
		}
		if bestDay != 4 {
			t.Errorf("week %d: peak on weekday %d, expected Friday", week, bestDay)
		}
	}

	for h := range forecasts {
		if lower[h] > forecasts[h] || upper[h] < forecasts[h] {
			t.Errorf("step %d: forecast %f outside [%f, %f]", h+1, forecasts[h], lower[h], upper[h])
		}
		if h > 0 && upper[h]-lower[h] < upper[h-1]-lower[h-1]-1e-12 {
			t.Errorf("interval width shrank at step %d", h+1)
		}
	}
}

func TestSARIMAPureDifferencingIsExact(t *testing.T) {
	values, _ := weeklySeries(100, 0.2, 2, 0, 1)

	model := New(0, 1, 0, 0, 1, 0, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	forecasts, err := model.Predict(12)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for h, f := range forecasts {
		if expected := weeklyTruth(100+h, 0.2, 2); math.Abs(f-expected) > 1e-9 {
			t.Errorf("step %d: got %f, expected %f", h+1, f, expected)
		}
	}
}

func TestSARIMAIntervalWidens(t *testing.T) {
	values, _ := weeklySeries(300, 0.1, 1, 0.5, 7)

	model := New(1, 1, 0, 0, 1, 1, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	_, lower, upper, err := model.PredictWithInterval(60, 0.95)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for h := 1; h < len(lower); h++ {
		if upper[h]-lower[h] < upper[h-1]-lower[h-1]-1e-12 {
			t.Fatalf("width decreased at step %d", h+1)
		}
	}

	_, lo80, up80, _ := model.PredictWithInterval(60, 0.80)
	if up80[0]-lo80[0] >= upper[0]-lower[0] {
		t.Error("80% interval should be narrower than 95%")
	}
}

func TestSARIMAPredictDoesNotMutate(t *testing.T) {
	values, _ := weeklySeries(200, 0.1, 1, 0.3, 3)

	model := New(1, 1, 1, 1, 1, 1, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	first, _ := model.Predict(10)
	longer, _ := model.Predict(20)
	second, _ := model.Predict(10)

	for i := range first {
		if first[i] != second[i] || first[i] != longer[i] {
			t.Fatalf("forecast %d changed between calls: %f %f %f", i, first[i], second[i], longer[i])
		}
	}
}

func TestSARIMAInsufficientData(t *testing.T) {
	model := New(1, 1, 1, 1, 1, 1, 5)
	err := model.Fit(timeseries.New([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))

	var fe *FitError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FitError, got %v", err)
	}
	if fe.Model != "SARIMA(1,1,1)(1,1,1,5)" {
		t.Errorf("FitError.Model = %q", fe.Model)
	}
	if !IsFitError(err) {
		t.Error("IsFitError should report true")
	}
	if model.IsFitted() {
		t.Error("model should not be marked fitted")
	}
	if _, err := model.Predict(5); err == nil {
		t.Error("Predict before a successful fit should fail")
	}
}

func TestSARIMARejectsNonFinite(t *testing.T) {
	values, _ := weeklySeries(100, 0.2, 2, 0.1, 1)
	values[50] = math.NaN()

	err := New(1, 1, 0, 0, 0, 0, 0).Fit(timeseries.New(values))
	if !IsFitError(err) {
		t.Fatalf("expected FitError, got %v", err)
	}
}

func TestSARIMAInvalidOrder(t *testing.T) {
	values, _ := weeklySeries(100, 0.2, 2, 0.1, 1)
	if err := New(1, 0, 0, 1, 0, 0, 1).Fit(timeseries.New(values)); !IsFitError(err) {
		t.Fatalf("expected FitError for seasonal period 1, got %v", err)
	}
}

func TestSARIMASummary(t *testing.T) {
	values, _ := weeklySeries(400, 0.1, 1, 0.3, 11)

	model := New(1, 1, 1, 1, 1, 1, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	summary := model.Summary()
	if summary == nil {
		t.Fatal("Summary returned nil")
	}
	if summary.NObs != 400 {
		t.Errorf("NObs = %d, expected 400", summary.NObs)
	}
	if summary.LjungBox == nil {
		t.Error("expected a Ljung-Box result")
	}

	terms := summary.Terms()
	names := []string{"ar.L1", "ma.L1", "ar.S.L5", "ma.S.L5"}
	if len(terms) != len(names) {
		t.Fatalf("expected %d terms, got %d", len(names), len(terms))
	}
	for i, name := range names {
		if terms[i].Name != name {
			t.Errorf("term %d = %q, expected %q", i, terms[i].Name, name)
		}
	}

	text := summary.String()
	for _, want := range append(names, "SARIMA(1,1,1)(1,1,1,5)", "sigma2", "AICc") {
		if !strings.Contains(text, want) {
			t.Errorf("summary text missing %q", want)
		}
	}
	t.Log("\n" + text)
}

func TestSummaryStringIsPlainText(t *testing.T) {
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	values, _ := weeklySeries(200, 0.1, 0, 0.5, 4)
	model := New(1, 1, 1, 0, 0, 0, 0)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	text := model.Summary().String()
	if strings.ContainsRune(text, '\x1b') {
		t.Errorf("summary contains escape sequences: %q", text)
	}
	if !strings.HasPrefix(text, "ARIMA(1,1,1)\n") {
		t.Errorf("summary title = %q", strings.SplitN(text, "\n", 2)[0])
	}
}

func TestSARIMAStandardErrors(t *testing.T) {
	model := New(1, 0, 0, 0, 0, 0, 0)
	ar := make([]float64, 500)
	rng := rand.New(rand.NewSource(9))
	for i := 1; i < len(ar); i++ {
		ar[i] = 0.6*ar[i-1] + rng.NormFloat64()
	}
	if err := model.Fit(timeseries.New(ar)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if math.Abs(model.ARCoeffs[0]-0.6) > 0.15 {
		t.Errorf("AR estimate %f far from 0.6", model.ARCoeffs[0])
	}
	se := model.ARStdErrors[0]
	// Asymptotic se for AR(1) is sqrt((1-phi^2)/n).
	expected := math.Sqrt((1 - 0.36) / float64(len(ar)))
	if math.IsNaN(se) || se <= 0 || math.Abs(se-expected) > expected {
		t.Errorf("AR standard error %f, expected near %f", se, expected)
	}
}

func TestSARIMAResiduals(t *testing.T) {
	values, _ := weeklySeries(200, 0.1, 1, 0.3, 2)

	model := New(0, 1, 1, 0, 1, 1, 5)
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	residuals := model.Residuals()
	fitted := model.FittedValues()
	expectedLen := 200 - 1 - 5
	if len(residuals) != expectedLen || len(fitted) != expectedLen {
		t.Fatalf("expected %d residuals and fitted values, got %d and %d",
			expectedLen, len(residuals), len(fitted))
	}

	residuals[0] = 1e9
	if model.Residuals()[0] == 1e9 {
		t.Error("Residuals should return a copy")
	}
}

func TestYuleWalker(t *testing.T) {
	// ACF of an AR(1) process with phi = 0.6
	acf := []float64{1.0, 0.6, 0.36, 0.216, 0.1296}

	coeffs := yuleWalker(acf, 2)
	if len(coeffs) != 2 {
		t.Fatalf("Expected 2 coefficients, got %d", len(coeffs))
	}
	if math.Abs(coeffs[0]-0.6) > 1e-12 || math.Abs(coeffs[1]) > 1e-12 {
		t.Errorf("Yule-Walker coefficients = %v, expected [0.6 0]", coeffs)
	}

	if yuleWalker(acf[:2], 2) != nil {
		t.Error("expected nil when the ACF is too short")
	}
}
