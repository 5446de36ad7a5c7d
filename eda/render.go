package eda

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func newTable(headers ...string) *table.Table {
	return table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
}

func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.Abs(v) >= 1e6:
		return fmt.Sprintf("%.3e", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func verdict(ok bool) string {
	if ok {
		return okStyle.Render("stationary")
	}
	return warnStyle.Render("non-stationary")
}

// Render writes the report as terminal sections.
func Render(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", headingStyle.Render("Exploratory analysis: "+r.Symbol))
	fmt.Fprintf(&b, "%s to %s, %d business days (%d forward-filled)\n\n",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.Observations, r.Filled)

	summary := newTable("column", "count", "mean", "std", "min", "25%", "50%", "75%", "max")
	for _, s := range r.Summary {
		summary.Row(s.Name, fmt.Sprint(s.Count), num(s.Mean), num(s.Std), num(s.Min),
			num(s.Q1), num(s.Median), num(s.Q3), num(s.Max))
	}
	fmt.Fprintf(&b, "%s\n%s\n\n", headingStyle.Render("Summary"), summary.Render())

	st := newTable("series", "ADF stat", "ADF p", "ADF", "KPSS stat", "KPSS p", "KPSS")
	for _, s := range r.Stationarity {
		st.Row(s.Series, num(s.ADFStatistic), num(s.ADFPValue), verdict(s.ADFStationary),
			num(s.KPSSStatistic), num(s.KPSSPValue), verdict(s.KPSSStationary))
	}
	fmt.Fprintf(&b, "%s\n%s\n", headingStyle.Render("Stationarity"), st.Render())
	fmt.Fprintf(&b, "Differences needed (KPSS): %d\n\n", r.NDiffs)

	corr := newTable(append([]string{""}, r.CorrelationColumns...)...)
	for i, row := range r.Correlation {
		cells := []string{r.CorrelationColumns[i]}
		for _, v := range row {
			if math.IsNaN(v) {
				cells = append(cells, "-")
			} else {
				cells = append(cells, fmt.Sprintf("%.2f", v))
			}
		}
		corr.Row(cells...)
	}
	fmt.Fprintf(&b, "%s\n%s\n\n", headingStyle.Render("Correlation"), corr.Render())

	fmt.Fprintf(&b, "%s\n", headingStyle.Render("Trend and seasonality"))
	fmt.Fprintf(&b, "Trend slope: %s per business day\n", num(r.Trend.Slope))
	if s := r.Seasonality; s != nil {
		fmt.Fprintf(&b, "Seasonal strength (period %d): %s\n", s.Period, num(s.Strength))
		if s.Weekday != nil {
			prof := newTable("weekday", "effect")
			for d := time.Monday; d <= time.Friday; d++ {
				prof.Row(d.String(), num(s.Weekday[d]))
			}
			fmt.Fprintf(&b, "%s\nPeak: %s\n", prof.Render(), s.Peak)
		}
	}
	b.WriteString("\n")

	if c := r.Correlogram; c != nil {
		acf := newTable("lag", "ACF", "PACF")
		for i := 1; i < len(c.Lags); i++ {
			acf.Row(fmt.Sprint(c.Lags[i]), num(c.ACF[i]), num(c.PACF[i]))
		}
		fmt.Fprintf(&b, "%s\n%s\n", headingStyle.Render("Correlogram of differenced close"), acf.Render())
		fmt.Fprintf(&b, "95%% bound: ±%.4f  significant ACF lags: %v  significant PACF lags: %v\n\n",
			c.ConfBound, r.SignificantACF, r.SignificantPACF)
	}

	switch {
	case r.Suggested != nil:
		fmt.Fprintf(&b, "Suggested order: %s (%s %.2f, %d candidates)\n",
			r.Suggested.Order, strings.ToUpper(r.Suggested.Criterion), r.Suggested.Score, len(r.Suggested.Evaluated))
	case r.SuggestErr != "":
		fmt.Fprintf(&b, "Order search failed: %s\n", r.SuggestErr)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
