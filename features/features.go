// Package features derives returns and trailing-window statistics from a cleaned
// price series, and builds the lagged design matrix used by tree models.
package features

import (
	"math"
	"time"

	"github.com/guregu/null/v6"

	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/stats"
)

// Window is the trailing window length for rolling statistics.
const Window = 21

// Row holds the derived values for one business day. Undefined values are null,
// never zero.
type Row struct {
	Date                time.Time  `json:"date"`
	Close               float64    `json:"close"`
	DailyReturn         null.Float `json:"daily_return"`
	LogReturn           null.Float `json:"log_return"`
	RollingMean21       null.Float `json:"rolling_mean_21"`
	RollingVolatility21 null.Float `json:"rolling_volatility_21"`
}

// Complete reports whether every derived value is defined.
func (r Row) Complete() bool {
	return r.DailyReturn.Valid && r.LogReturn.Valid && r.RollingMean21.Valid && r.RollingVolatility21.Valid
}

// Compute derives one Row per record of series:
//
//	dailyReturn[t]  = close[t]/close[t-1] - 1
//	logReturn[t]    = ln(close[t]/close[t-1])
//	rollingMean21   = mean(close[t-20..t])
//	rollingVolatility21 = sample std(close[t-20..t])
//
// Row 0 has no returns and rows 0..19 have no rolling values.
func Compute(series *market.PriceSeries) []Row {
	closes := series.Closes()
	pct := closes.PctChange().Values
	logRet := closes.LogReturns().Values
	mean := closes.TrailingMean(Window).Values
	vol := closes.TrailingStd(Window).Values

	rows := make([]Row, closes.Len())
	for i := range rows {
		rows[i] = Row{
			Date:                closes.Timestamps[i],
			Close:               closes.Values[i],
			DailyReturn:         defined(pct[i]),
			LogReturn:           defined(logRet[i]),
			RollingMean21:       defined(mean[i]),
			RollingVolatility21: defined(vol[i]),
		}
	}
	return rows
}

// Complete returns the rows whose derived values are all defined.
func Complete(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// CapReturns clamps DailyReturn and LogReturn to their IQR bounds with multiplier k,
// in place, and returns the number of values changed.
func CapReturns(rows []Row, k float64) int {
	changed := 0
	for _, get := range []func(*Row) *null.Float{
		func(r *Row) *null.Float { return &r.DailyReturn },
		func(r *Row) *null.Float { return &r.LogReturn },
	} {
		values := make([]float64, 0, len(rows))
		for i := range rows {
			if f := get(&rows[i]); f.Valid {
				values = append(values, f.Float64)
			}
		}
		lower, upper := stats.IQRBounds(values, k)
		for i := range rows {
			f := get(&rows[i])
			if !f.Valid {
				continue
			}
			if c := math.Max(lower, math.Min(upper, f.Float64)); c != f.Float64 {
				*f = null.FloatFrom(c)
				changed++
			}
		}
	}
	return changed
}

// Column extracts one derived value per row; undefined entries are NaN.
func Column(rows []Row, get func(Row) null.Float) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if v := get(r); v.Valid {
			out[i] = v.Float64
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func defined(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}
