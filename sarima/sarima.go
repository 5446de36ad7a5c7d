package sarima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

const (
	coeffBound     = 0.99
	maxEvaluations = 4000
	ljungBoxLags   = 10
)

// Order represents SARIMA model order (p, d, q) x (P, D, Q, m).
type Order struct {
	P int // Non-seasonal AR order
	D int // Non-seasonal differencing order
	Q int // Non-seasonal MA order
	// Seasonal components
	SP int // Seasonal AR order
	SD int // Seasonal differencing order
	SQ int // Seasonal MA order
	M  int // Seasonal period (5 for business-day data with a weekly cycle)
}

// Seasonal reports whether the order has any seasonal component.
func (o Order) Seasonal() bool {
	return o.SP > 0 || o.SD > 0 || o.SQ > 0
}

// String formats the order as ARIMA(p,d,q) or SARIMA(p,d,q)(P,D,Q,m).
func (o Order) String() string {
	if !o.Seasonal() {
		return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
	}
	return fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
}

func (o Order) numCoeffs() int {
	return o.P + o.Q + o.SP + o.SQ
}

func (o Order) validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 || o.SP < 0 || o.SD < 0 || o.SQ < 0 {
		return errors.New("orders must be non-negative")
	}
	if o.Seasonal() && o.M < 2 {
		return errors.New("seasonal period must be at least 2")
	}
	return nil
}

// Model represents a multiplicative SARIMA model fitted by conditional sum of squares.
type Model struct {
	Order     Order
	ARCoeffs  []float64 // Non-seasonal AR coefficients
	MACoeffs  []float64 // Non-seasonal MA coefficients
	SARCoeffs []float64 // Seasonal AR coefficients
	SMACoeffs []float64 // Seasonal MA coefficients
	Intercept float64   // Mean of the differenced series; zero when any differencing is applied
	Variance  float64   // Residual variance (sigma2)
	AIC       float64
	AICc      float64 // Corrected AIC for small sample sizes
	BIC       float64
	LogLik    float64

	// Standard errors for coefficients
	ARStdErrors  []float64
	MAStdErrors  []float64
	SARStdErrors []float64
	SMAStdErrors []float64

	fitted     bool
	data       []float64
	diffData   []float64
	arPoly     []float64 // phi(B) * Phi(B^m), leading 1
	maPoly     []float64 // theta(B) * Theta(B^m), leading 1
	start      int
	residuals  []float64
	fittedVals []float64
}

// New creates a new SARIMA model with the specified order.
func New(p, d, q, sp, sd, sq, m int) *Model {
	return &Model{
		Order: Order{
			P: p, D: d, Q: q,
			SP: sp, SD: sd, SQ: sq, M: m,
		},
		ARCoeffs:  make([]float64, p),
		MACoeffs:  make([]float64, q),
		SARCoeffs: make([]float64, sp),
		SMACoeffs: make([]float64, sq),
	}
}

// Name returns the model's order string.
func (m *Model) Name() string {
	return m.Order.String()
}

// IsFitted reports whether Fit has completed successfully.
func (m *Model) IsFitted() bool {
	return m.fitted
}

// NObs returns the number of observations the model was fitted on.
func (m *Model) NObs() int {
	return len(m.data)
}

// Fit fits the model to the series. It returns a *FitError when the data are
// insufficient for the order or the optimizer does not reach a finite solution.
func (m *Model) Fit(series *timeseries.Series) error {
	o := m.Order
	if err := o.validate(); err != nil {
		return m.fail(err.Error(), nil)
	}

	minLen := o.P + o.Q + o.D + (o.SP+o.SD+o.SQ)*o.M + 20
	if series == nil || series.Len() < minLen {
		n := 0
		if series != nil {
			n = series.Len()
		}
		return m.fail(fmt.Sprintf("insufficient data: need at least %d observations, got %d", minLen, n), nil)
	}
	for i, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return m.fail(fmt.Sprintf("non-finite value at position %d", i), nil)
		}
	}

	m.fitted = false
	m.data = make([]float64, series.Len())
	copy(m.data, series.Values)

	// Apply non-seasonal then seasonal differencing
	diffSeries := series
	for i := 0; i < o.D; i++ {
		diffSeries = diffSeries.Diff()
	}
	for i := 0; i < o.SD; i++ {
		diffSeries = diffSeries.SeasonalDiff(o.M)
	}
	m.diffData = diffSeries.Values

	m.start = o.P + o.SP*o.M
	if len(m.diffData)-m.start < 10 {
		return m.fail("differencing left too few observations", nil)
	}

	m.Intercept = 0
	if o.D == 0 && o.SD == 0 {
		m.Intercept = stats.Mean(m.diffData)
	}

	x, err := m.optimizeCSS(m.initialParams())
	if err != nil {
		return err
	}
	m.setParams(x)

	residuals, sse, count := m.css(x)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return m.fail("optimizer diverged: non-finite sum of squares", nil)
	}
	m.residuals = residuals
	m.fittedVals = make([]float64, len(m.diffData))
	for t, v := range m.diffData {
		m.fittedVals[t] = v - residuals[t]
	}

	k := o.numCoeffs()
	if m.Intercept != 0 {
		k++
	}
	if count > k {
		m.Variance = sse / float64(count-k)
	} else {
		m.Variance = sse / float64(count)
	}
	if math.IsNaN(m.Variance) || math.IsInf(m.Variance, 0) {
		return m.fail("non-finite residual variance", nil)
	}

	// sigma2 counts as an estimated parameter
	m.LogLik = stats.GaussianLogLik(residuals[m.start:], sse/float64(count))
	ic := stats.CalculateIC(m.LogLik, count, k+1)
	m.AIC, m.AICc, m.BIC = ic.AIC, ic.AICc, ic.BIC

	m.setStdErrors(m.standardErrors(x))

	m.fitted = true
	return nil
}

func (m *Model) fail(reason string, err error) error {
	return &FitError{Model: m.Order.String(), Reason: reason, Err: err}
}

// initialParams returns starting values laid out as [AR, MA, SAR, SMA].
func (m *Model) initialParams() []float64 {
	o := m.Order
	x := make([]float64, 0, o.numCoeffs())
	y := timeseries.New(m.diffData)

	ar := make([]float64, o.P)
	if o.P > 0 {
		if acf := stats.ACF(y, o.P); acf != nil {
			if yw := yuleWalker(acf, o.P); yw != nil {
				ar = yw
			}
		}
	}
	x = append(x, ar...)

	for i := 0; i < o.Q; i++ {
		x = append(x, 0.1)
	}

	sar := make([]float64, o.SP)
	if o.SP > 0 {
		if acf := stats.ACF(y, o.SP*o.M); acf != nil {
			for i := range sar {
				if idx := (i + 1) * o.M; idx < len(acf) {
					sar[i] = acf[idx] * 0.5
				}
			}
		}
	}
	x = append(x, sar...)

	for i := 0; i < o.SQ; i++ {
		x = append(x, 0.1)
	}

	for i := range x {
		x[i] = clamp(x[i], -coeffBound, coeffBound)
	}
	return x
}

// optimizeCSS minimizes the conditional mean squared residual with Nelder-Mead.
func (m *Model) optimizeCSS(x0 []float64) ([]float64, error) {
	if len(x0) == 0 {
		return x0, nil
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			_, sse, count := m.css(x)
			if count == 0 || math.IsNaN(sse) {
				return math.Inf(1)
			}
			return sse / float64(count)
		},
	}

	settings := &optimize.Settings{FuncEvaluations: maxEvaluations}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, m.fail("optimizer failed", err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, m.fail("optimizer diverged", err)
	}

	x := make([]float64, len(result.X))
	for i, v := range result.X {
		x[i] = clamp(v, -coeffBound, coeffBound)
	}
	return x, nil
}

// split clamps the parameter vector and returns its AR, MA, SAR and SMA parts.
func (m *Model) split(x []float64) (ar, ma, sar, sma []float64) {
	o := m.Order
	c := make([]float64, len(x))
	for i, v := range x {
		c[i] = clamp(v, -coeffBound, coeffBound)
	}
	ar = c[:o.P]
	ma = c[o.P : o.P+o.Q]
	sar = c[o.P+o.Q : o.P+o.Q+o.SP]
	sma = c[o.P+o.Q+o.SP:]
	return ar, ma, sar, sma
}

func (m *Model) polynomials(x []float64) (arPoly, maPoly []float64) {
	ar, ma, sar, sma := m.split(x)
	arPoly = stats.PolyMul(lagPolynomial(ar, 1, -1), lagPolynomial(sar, m.Order.M, -1))
	maPoly = stats.PolyMul(lagPolynomial(ma, 1, 1), lagPolynomial(sma, m.Order.M, 1))
	return arPoly, maPoly
}

// lagPolynomial returns 1 + sign*(c1 B^step + c2 B^2step + ...).
func lagPolynomial(coeffs []float64, step int, sign float64) []float64 {
	if len(coeffs) == 0 {
		return []float64{1}
	}
	poly := make([]float64, len(coeffs)*step+1)
	poly[0] = 1
	for i, c := range coeffs {
		poly[(i+1)*step] = sign * c
	}
	return poly
}

// css returns the conditional residuals for parameters x, their sum of squares
// and the number of residuals counted. Residuals before the AR start are zero.
func (m *Model) css(x []float64) (residuals []float64, sse float64, count int) {
	arPoly, maPoly := m.polynomials(x)
	y := m.diffData
	n := len(y)
	mu := m.Intercept

	residuals = make([]float64, n)
	for t := m.start; t < n; t++ {
		e := y[t] - mu
		for i := 1; i < len(arPoly); i++ {
			if arPoly[i] != 0 {
				e += arPoly[i] * (y[t-i] - mu)
			}
		}
		for j := 1; j < len(maPoly) && t-j >= 0; j++ {
			if maPoly[j] != 0 {
				e -= maPoly[j] * residuals[t-j]
			}
		}
		residuals[t] = e
		sse += e * e
	}
	return residuals, sse, n - m.start
}

func (m *Model) setParams(x []float64) {
	ar, ma, sar, sma := m.split(x)
	m.ARCoeffs = append([]float64(nil), ar...)
	m.MACoeffs = append([]float64(nil), ma...)
	m.SARCoeffs = append([]float64(nil), sar...)
	m.SMACoeffs = append([]float64(nil), sma...)
	m.arPoly, m.maPoly = m.polynomials(x)
}

func (m *Model) setStdErrors(se []float64) {
	o := m.Order
	m.ARStdErrors = se[:o.P]
	m.MAStdErrors = se[o.P : o.P+o.Q]
	m.SARStdErrors = se[o.P+o.Q : o.P+o.Q+o.SP]
	m.SMAStdErrors = se[o.P+o.Q+o.SP:]
}

// standardErrors approximates sigma2 * (J'J)^-1 where J is the Jacobian of the
// conditional residuals with respect to the coefficients.
func (m *Model) standardErrors(x []float64) []float64 {
	k := len(x)
	se := make([]float64, k)
	for i := range se {
		se[i] = math.NaN()
	}
	rows := len(m.diffData) - m.start
	if k == 0 || rows <= k {
		return se
	}

	const h = 1e-5
	jac := mat.NewDense(rows, k, nil)
	for j := 0; j < k; j++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] = clamp(x[j]+h, -coeffBound, coeffBound)
		xm[j] = clamp(x[j]-h, -coeffBound, coeffBound)
		step := xp[j] - xm[j]
		if step == 0 {
			return se
		}

		rp, _, _ := m.css(xp)
		rm, _, _ := m.css(xm)
		for t := m.start; t < len(m.diffData); t++ {
			jac.Set(t-m.start, j, (rp[t]-rm[t])/step)
		}
	}

	var jtj, inv mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := inv.Inverse(&jtj); err != nil {
		return se
	}
	for j := 0; j < k; j++ {
		if v := m.Variance * inv.At(j, j); v >= 0 {
			se[j] = math.Sqrt(v)
		}
	}
	return se
}

// Predict generates forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	forecasts, _, _, err := m.PredictWithInterval(steps, 0.95)
	return forecasts, err
}

// PredictWithInterval generates forecasts with prediction intervals.
// Returns point forecasts, lower bounds, and upper bounds at the given confidence level.
// The interval half-width is z * sqrt(sigma2 * sum psi_j^2) over the psi weights of
// the differenced model, so it never shrinks as the horizon grows.
// The fitted model is not modified.
func (m *Model) PredictWithInterval(steps int, confidence float64) (forecasts, lower, upper []float64, err error) {
	if !m.fitted {
		return nil, nil, nil, errors.New("model must be fitted before prediction")
	}
	if steps < 1 {
		return nil, nil, nil, errors.New("steps must be at least 1")
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	forecasts = m.integrate(m.forecastDifferenced(steps))

	delta := stats.DifferencingPolynomial(m.Order.D, m.Order.SD, m.Order.M)
	psi := stats.PsiWeights(stats.PolyMul(m.arPoly, delta), m.maPoly, steps)
	variance := stats.ForecastVariance(psi, m.Variance)
	z := stats.NormalQuantile((1 + confidence) / 2)

	lower = make([]float64, steps)
	upper = make([]float64, steps)
	for h := 0; h < steps; h++ {
		half := z * math.Sqrt(variance[h])
		lower[h] = forecasts[h] - half
		upper[h] = forecasts[h] + half
	}
	return forecasts, lower, upper, nil
}

// forecastDifferenced extends the differenced series; future residuals are zero.
func (m *Model) forecastDifferenced(steps int) []float64 {
	y := m.diffData
	n := len(y)
	mu := m.Intercept

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := mu
		for i := 1; i < len(m.arPoly) && t-i >= 0; i++ {
			pred -= m.arPoly[i] * (extY[t-i] - mu)
		}
		for j := 1; j < len(m.maPoly) && t-j >= 0; j++ {
			pred += m.maPoly[j] * extResiduals[t-j]
		}
		extY[t] = pred
	}

	out := make([]float64, steps)
	copy(out, extY[n:])
	return out
}

// integrate undoes differencing by solving (1-B)^d (1-B^m)^D y_t = w_t forward
// from the observed history.
func (m *Model) integrate(w []float64) []float64 {
	delta := stats.DifferencingPolynomial(m.Order.D, m.Order.SD, m.Order.M)
	n := len(m.data)

	y := make([]float64, n+len(w))
	copy(y, m.data)
	for h, v := range w {
		t := n + h
		for k := 1; k < len(delta); k++ {
			v -= delta[k] * y[t-k]
		}
		y[t] = v
	}

	out := make([]float64, len(w))
	copy(out, y[n:])
	return out
}

// Residuals returns the model residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns the fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.fittedVals))
	copy(result, m.fittedVals)
	return result
}

// yuleWalker estimates AR coefficients from autocorrelations with the
// Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	v := 1 - phi[0]*phi[0]

	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
	}

	return phi
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
