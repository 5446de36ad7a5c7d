package evaluate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/stockcast/arima"
	"github.com/sartorproj/stockcast/boost"
	"github.com/sartorproj/stockcast/features"
	"github.com/sartorproj/stockcast/sarima"
	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

// Kind identifies a model family.
type Kind string

const (
	KindARIMA   Kind = "arima"
	KindSARIMA  Kind = "sarima"
	KindXGBoost Kind = "xgboost"
)

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindARIMA, KindSARIMA, KindXGBoost:
		return k, nil
	}
	return "", fmt.Errorf("unknown model kind %q", s)
}

// ErrFit marks a candidate that could not be fitted or produced no usable
// forecast. Errors from Candidate.Fit wrap it alongside the underlying cause,
// so errors.As still reaches a *sarima.FitError.
var ErrFit = errors.New("model fit failed")

// minBoostRows is the smallest design matrix a tree candidate is fitted on.
const minBoostRows = 50

// Candidate describes one model to fit.
type Candidate struct {
	Kind  Kind
	Order sarima.Order // ARIMA uses P, D and Q only
	Lags  int          // prior closes used as tree features
	Boost boost.Config
}

// ARIMA returns a non-seasonal candidate.
func ARIMA(p, d, q int) Candidate {
	return Candidate{Kind: KindARIMA, Order: sarima.Order{P: p, D: d, Q: q}}
}

// SARIMA returns a seasonal candidate.
func SARIMA(order sarima.Order) Candidate {
	return Candidate{Kind: KindSARIMA, Order: order}
}

// XGBoost returns a gradient-boosted tree candidate over lags prior closes and the
// trailing 21-day mean and volatility.
func XGBoost(lags int, cfg boost.Config) Candidate {
	return Candidate{Kind: KindXGBoost, Lags: lags, Boost: cfg}
}

// DefaultCandidates returns ARIMA(1,1,1), SARIMA(1,1,1)(1,1,1,5) and the tree model.
func DefaultCandidates(lags int, cfg boost.Config) []Candidate {
	return []Candidate{
		ARIMA(1, 1, 1),
		SARIMA(sarima.Order{P: 1, D: 1, Q: 1, SP: 1, SD: 1, SQ: 1, M: 5}),
		XGBoost(lags, cfg),
	}
}

// Name returns the display name, e.g. "SARIMA(1,1,1)(1,1,1,5)".
func (c Candidate) Name() string {
	switch c.Kind {
	case KindARIMA:
		return fmt.Sprintf("ARIMA(%d,%d,%d)", c.Order.P, c.Order.D, c.Order.Q)
	case KindSARIMA:
		return c.Order.String()
	case KindXGBoost:
		return fmt.Sprintf("XGBoost(lags=%d)", c.Lags)
	}
	return string(c.Kind)
}

// Predictor is a fitted candidate. PredictWithInterval does not modify it, so a
// Predictor may be shared by concurrent readers.
type Predictor interface {
	Name() string
	NObs() int
	PredictWithInterval(steps int, level float64) (point, lower, upper []float64, err error)
	Params() map[string]float64
	Describe() string
}

// Fit fits the candidate to series. Failures wrap ErrFit.
func (c Candidate) Fit(series *timeseries.Series) (Predictor, error) {
	p, err := c.fit(series)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFit, c.Name(), err)
	}
	return p, nil
}

func (c Candidate) fit(series *timeseries.Series) (Predictor, error) {
	switch c.Kind {
	case KindARIMA:
		m := arima.New(c.Order.P, c.Order.D, c.Order.Q)
		if err := m.Fit(series); err != nil {
			return nil, err
		}
		return &statsPredictor{Model: m.Model}, nil
	case KindSARIMA:
		o := c.Order
		m := sarima.New(o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
		if err := m.Fit(series); err != nil {
			return nil, err
		}
		return &statsPredictor{Model: m}, nil
	case KindXGBoost:
		return fitTrees(c, series.Values)
	}
	return nil, fmt.Errorf("unknown model kind %q", c.Kind)
}

// statsPredictor adapts a fitted ARIMA or SARIMA model.
type statsPredictor struct {
	*sarima.Model
}

func (p *statsPredictor) Params() map[string]float64 {
	s := p.Summary()
	out := map[string]float64{
		"sigma2": s.Variance,
		"loglik": s.LogLik,
		"aic":    s.AIC,
		"aicc":   s.AICc,
		"bic":    s.BIC,
	}
	for _, t := range s.Terms() {
		out[t.Name] = t.Coef
	}
	return out
}

func (p *statsPredictor) Describe() string {
	return p.Summary().String()
}

// treePredictor forecasts recursively, feeding each prediction back as a lag.
type treePredictor struct {
	name    string
	model   *boost.Model
	lags    int
	history []float64
	sigma   float64 // in-sample residual standard deviation
}

func fitTrees(c Candidate, values []float64) (*treePredictor, error) {
	if c.Lags < 1 {
		return nil, fmt.Errorf("lags must be positive, got %d", c.Lags)
	}
	X, y := features.Supervised(values, c.Lags)
	if len(X) < minBoostRows {
		return nil, fmt.Errorf("insufficient data: %d training rows, need %d", len(X), minBoostRows)
	}

	model := boost.New(c.Boost)
	if err := model.Fit(X, y); err != nil {
		return nil, err
	}

	resid := make([]float64, len(y))
	for i, x := range X {
		resid[i] = y[i] - model.Predict(x)
	}
	sigma := stat.StdDev(resid, nil)
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, errors.New("non-finite residual variance")
	}

	return &treePredictor{
		name:    c.Name(),
		model:   model,
		lags:    c.Lags,
		history: append([]float64(nil), values...),
		sigma:   sigma,
	}, nil
}

func (p *treePredictor) Name() string { return p.name }

func (p *treePredictor) NObs() int { return len(p.history) }

// PredictWithInterval treats one-step errors as independent, so the band grows
// with sqrt(h).
func (p *treePredictor) PredictWithInterval(steps int, level float64) (point, lower, upper []float64, err error) {
	if steps < 1 {
		return nil, nil, nil, errors.New("steps must be at least 1")
	}
	if level <= 0 || level >= 1 {
		level = 0.95
	}
	z := stats.NormalQuantile((1 + level) / 2)

	hist := make([]float64, len(p.history), len(p.history)+steps)
	copy(hist, p.history)
	point = make([]float64, steps)
	lower = make([]float64, steps)
	upper = make([]float64, steps)
	for h := range point {
		x, ok := features.Vector(hist, p.lags)
		if !ok {
			return nil, nil, nil, errors.New("history too short for lag features")
		}
		yhat := p.model.Predict(x)
		half := z * p.sigma * math.Sqrt(float64(h+1))
		point[h], lower[h], upper[h] = yhat, yhat-half, yhat+half
		hist = append(hist, yhat)
	}
	return point, lower, upper, nil
}

func (p *treePredictor) Params() map[string]float64 {
	out := map[string]float64{
		"trees": float64(p.model.Trees()),
		"lags":  float64(p.lags),
		"sigma": p.sigma,
	}
	names := features.LagNames(p.lags)
	for i, v := range p.model.FeatureImportance() {
		out["importance."+names[i]] = v
	}
	return out
}

var describeTitle = sarima.PlainRenderer().NewStyle().Bold(true)

func (p *treePredictor) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", describeTitle.Render(p.name))
	fmt.Fprintf(&b, "Trees: %d  Residual std: %.4f  Observations: %d\n\n", p.model.Trees(), p.sigma, len(p.history))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("feature", "importance")
	names := features.LagNames(p.lags)
	for i, v := range p.model.FeatureImportance() {
		t.Row(names[i], fmt.Sprintf("%.4f", v))
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}
