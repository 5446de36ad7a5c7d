package sarima

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

// Summary represents a model summary.
type Summary struct {
	Order        Order
	ARCoeffs     []float64
	MACoeffs     []float64
	SARCoeffs    []float64
	SMACoeffs    []float64
	ARStdErrors  []float64 // Standard errors for AR coefficients
	MAStdErrors  []float64 // Standard errors for MA coefficients
	SARStdErrors []float64 // Standard errors for seasonal AR coefficients
	SMAStdErrors []float64 // Standard errors for seasonal MA coefficients
	Intercept    float64
	Variance     float64
	AIC          float64
	AICc         float64 // Corrected AIC
	BIC          float64
	LogLik       float64
	NObs         int
	LjungBox     *stats.LjungBoxResult
}

// Term is one estimated coefficient.
type Term struct {
	Name   string
	Coef   float64
	StdErr float64
}

// Z returns the coefficient's z statistic, or NaN without a standard error.
func (t Term) Z() float64 {
	if t.StdErr == 0 || math.IsNaN(t.StdErr) {
		return math.NaN()
	}
	return t.Coef / t.StdErr
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	resid := timeseries.New(m.residuals[m.start:])
	lb := stats.LjungBox(resid, ljungBoxLags, m.Order.numCoeffs())

	return &Summary{
		Order:        m.Order,
		ARCoeffs:     m.ARCoeffs,
		MACoeffs:     m.MACoeffs,
		SARCoeffs:    m.SARCoeffs,
		SMACoeffs:    m.SMACoeffs,
		ARStdErrors:  m.ARStdErrors,
		MAStdErrors:  m.MAStdErrors,
		SARStdErrors: m.SARStdErrors,
		SMAStdErrors: m.SMAStdErrors,
		Intercept:    m.Intercept,
		Variance:     m.Variance,
		AIC:          m.AIC,
		AICc:         m.AICc,
		BIC:          m.BIC,
		LogLik:       m.LogLik,
		NObs:         len(m.data),
		LjungBox:     lb,
	}
}

// Terms lists the coefficients with statsmodels-style names (ar.L1, ma.S.L5, ...).
func (s *Summary) Terms() []Term {
	var terms []Term
	add := func(prefix string, step int, coeffs, se []float64) {
		for i, c := range coeffs {
			t := Term{Name: fmt.Sprintf("%s%d", prefix, (i+1)*step), Coef: c, StdErr: math.NaN()}
			if i < len(se) {
				t.StdErr = se[i]
			}
			terms = append(terms, t)
		}
	}
	add("ar.L", 1, s.ARCoeffs, s.ARStdErrors)
	add("ma.L", 1, s.MACoeffs, s.MAStdErrors)
	add("ar.S.L", s.Order.M, s.SARCoeffs, s.SARStdErrors)
	add("ma.S.L", s.Order.M, s.SMACoeffs, s.SMAStdErrors)
	return terms
}

// Summaries are embedded in HTML and JSON, so the title is styled with a
// renderer that never emits escape sequences.
var summaryTitle = PlainRenderer().NewStyle().Bold(true)

// PlainRenderer returns a lipgloss renderer with the ASCII profile, for text
// that leaves the terminal.
func PlainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

// String renders the summary as plain-text tables.
func (s *Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", summaryTitle.Render(s.Order.String()))
	fmt.Fprintf(&b, "Observations: %d\n\n", s.NObs)

	coeffs := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("term", "coef", "std err", "z")
	for _, t := range s.Terms() {
		coeffs.Row(t.Name, formatFloat(t.Coef), formatFloat(t.StdErr), formatFloat(t.Z()))
	}
	if s.Intercept != 0 {
		coeffs.Row("intercept", formatFloat(s.Intercept), "", "")
	}
	coeffs.Row("sigma2", formatFloat(s.Variance), "", "")
	b.WriteString(coeffs.Render())
	b.WriteString("\n")

	fit := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("statistic", "value").
		Row("Log likelihood", formatFloat(s.LogLik)).
		Row("AIC", formatFloat(s.AIC)).
		Row("AICc", formatFloat(s.AICc)).
		Row("BIC", formatFloat(s.BIC))
	if s.LjungBox != nil {
		fit.Row(fmt.Sprintf("Ljung-Box Q(%d)", s.LjungBox.Lags), formatFloat(s.LjungBox.Statistic))
		fit.Row("Prob(Q)", formatFloat(s.LjungBox.PValue))
	}
	b.WriteString(fit.Render())
	b.WriteString("\n")

	return b.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
