// Package eda computes the exploratory analysis of a cleaned price series:
// summary statistics, stationarity tests, correlations, weekly decomposition,
// correlograms and a suggested ARIMA order. Nothing downstream depends on it.
package eda

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/stockcast/autoarima"
	"github.com/sartorproj/stockcast/features"
	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

// Options controls the analysis.
type Options struct {
	Period  int               // seasonal period in business days (default: 5)
	MaxLag  int               // correlogram depth (default: 20)
	Suggest bool              // run the order search
	Search  *autoarima.Config // order search settings (default: autoarima defaults with M = Period)
}

// ColumnSummary describes one numeric column.
type ColumnSummary struct {
	Name   string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Stationarity holds ADF and KPSS verdicts for one series.
type Stationarity struct {
	Series         string
	ADFStatistic   float64
	ADFPValue      float64
	ADFStationary  bool
	KPSSStatistic  float64
	KPSSPValue     float64
	KPSSStationary bool
}

// Trend is a least-squares line through the decomposition trend.
type Trend struct {
	Intercept float64
	Slope     float64 // change per business day
}

// Seasonality is the seasonal profile of the additive decomposition. Weekday
// and Peak are set only for a five-day period.
type Seasonality struct {
	Period   int
	Cycle    []float64 // effect per cycle position, position 0 at the first date
	Weekday  map[time.Weekday]float64
	Peak     time.Weekday
	Strength float64
}

// Report is the full analysis.
type Report struct {
	Symbol       string
	Start        time.Time
	End          time.Time
	Observations int
	Filled       int

	Summary      []ColumnSummary
	Stationarity []Stationarity

	CorrelationColumns []string
	Correlation        [][]float64

	Trend       Trend
	Seasonality *Seasonality

	Correlogram     *stats.CorrelogramResult // of the differenced close
	SignificantACF  []int
	SignificantPACF []int
	NDiffs          int

	Suggested  *autoarima.Suggestion
	SuggestErr string
}

// Build analyzes series and its derived feature rows.
func Build(ctx context.Context, series *market.PriceSeries, rows []features.Row, opts Options) (*Report, error) {
	if series == nil || series.Len() < 2 {
		return nil, errors.New("eda: series needs at least two observations")
	}
	if len(rows) != series.Len() {
		return nil, errors.New("eda: feature rows do not match the series")
	}
	period := opts.Period
	if period == 0 {
		period = 5
	}
	maxLag := opts.MaxLag
	if maxLag == 0 {
		maxLag = 20
	}

	r := &Report{
		Symbol:       series.Symbol,
		Start:        series.First().Date,
		End:          series.Last().Date,
		Observations: series.Len(),
	}
	for _, f := range series.Filled {
		if f {
			r.Filled++
		}
	}

	daily := features.Column(rows, func(row features.Row) null.Float { return row.DailyReturn })
	logRet := features.Column(rows, func(row features.Row) null.Float { return row.LogReturn })

	for _, col := range market.PriceColumns {
		r.Summary = append(r.Summary, summarize(col, series.Column(col)))
	}
	r.Summary = append(r.Summary, summarize("Daily Return", daily), summarize("Log Return", logRet))

	closes := series.Closes()
	r.Stationarity = append(r.Stationarity, stationarity("Close", closes))
	r.Stationarity = append(r.Stationarity, stationarity("Log Return", timeseries.New(dropNaN(logRet))))

	r.CorrelationColumns = append(append([]string(nil), market.PriceColumns...), "Daily Return", "Log Return")
	cols := make([][]float64, 0, len(r.CorrelationColumns))
	for _, col := range market.PriceColumns {
		cols = append(cols, series.Column(col))
	}
	r.Correlation = stats.CorrelationMatrix(append(cols, daily, logRet))

	if d := stats.Decompose(closes, period, "additive"); d != nil {
		r.Trend = fitTrend(d.Trend.Values)
		r.Seasonality = weekly(d, series.First().Date, stats.SeasonalStrength(closes, period))
	}

	diffed := closes.Diff()
	r.Correlogram = stats.Correlogram(diffed, maxLag)
	if r.Correlogram != nil {
		r.SignificantACF = stats.SignificantLags(r.Correlogram.ACF, r.Correlogram.ConfBound)
		r.SignificantPACF = stats.SignificantLags(r.Correlogram.PACF, r.Correlogram.ConfBound)
	}
	r.NDiffs = stats.NDiffs(closes, 2, "kpss")

	if opts.Suggest {
		cfg := opts.Search
		if cfg == nil {
			cfg = autoarima.DefaultConfig()
			cfg.M = period
		}
		s, err := autoarima.Suggest(ctx, closes, cfg)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			r.SuggestErr = err.Error()
		default:
			r.Suggested = s
		}
	}
	return r, nil
}

func summarize(name string, values []float64) ColumnSummary {
	finite := dropNaN(values)
	s := ColumnSummary{Name: name, Count: len(finite)}
	if len(finite) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	s.Mean = stats.Mean(finite)
	s.Std = math.Sqrt(stats.Variance(finite))
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	s.Q1 = stats.Quantile(finite, 0.25)
	s.Median = stats.Quantile(finite, 0.5)
	s.Q3 = stats.Quantile(finite, 0.75)
	return s
}

func stationarity(name string, s *timeseries.Series) Stationarity {
	out := Stationarity{Series: name, ADFStatistic: math.NaN(), ADFPValue: math.NaN(), KPSSStatistic: math.NaN(), KPSSPValue: math.NaN()}
	if adf := stats.ADF(s, 0); adf != nil {
		out.ADFStatistic, out.ADFPValue, out.ADFStationary = adf.Statistic, adf.PValue, adf.IsStationary
	}
	if kpss := stats.KPSS(s, "c", 0); kpss != nil {
		out.KPSSStatistic, out.KPSSPValue, out.KPSSStationary = kpss.Statistic, kpss.PValue, kpss.IsStationary
	}
	return out
}

func fitTrend(trend []float64) Trend {
	var xs, ys []float64
	for i, v := range trend {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return Trend{Intercept: math.NaN(), Slope: math.NaN()}
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Trend{Intercept: alpha, Slope: beta}
}

// weekly maps cycle positions to weekdays. Position 0 is the weekday of first;
// the calendar has no gaps, so position k is k business days later.
func weekly(d *stats.DecompositionResult, first time.Time, strength float64) *Seasonality {
	s := &Seasonality{Period: d.Period, Cycle: d.Profile, Strength: strength}
	if d.Period != 5 {
		return s
	}
	s.Weekday = make(map[time.Weekday]float64, 5)
	day := first
	best := math.Inf(-1)
	for k := 0; k < d.Period; k++ {
		s.Weekday[day.Weekday()] = d.Profile[k]
		if d.Profile[k] > best {
			best = d.Profile[k]
			s.Peak = day.Weekday()
		}
		day = timeseries.NextBusinessDay(day)
	}
	return s
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
