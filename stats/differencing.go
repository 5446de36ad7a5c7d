package stats

import (
	"math"

	"github.com/sartorproj/stockcast/timeseries"
)

// NDiffs returns the number of first differences (0..maxD) needed for the
// series to pass a stationarity test. testType is "kpss" (default) or "adf".
func NDiffs(series *timeseries.Series, maxD int, testType string) int {
	if maxD <= 0 {
		maxD = 2
	}

	current := series
	for d := 0; d < maxD; d++ {
		stationary := false
		if testType == "adf" {
			r := ADF(current, 0)
			stationary = r != nil && r.IsStationary
		} else {
			r := KPSS(current, "c", 0)
			stationary = r != nil && r.IsStationary
		}
		if stationary {
			return d
		}

		current = current.Diff()
		if current.Len() < 10 {
			return d
		}
	}
	return maxD
}

// NSDiffs returns the number of seasonal differences (0..maxD) suggested by the
// seasonal strength rule F_S >= 0.64.
func NSDiffs(series *timeseries.Series, period int, maxD int) int {
	if maxD <= 0 {
		maxD = 1
	}
	if period <= 1 || series.Len() < 2*period {
		return 0
	}

	current := series
	for d := 0; d < maxD; d++ {
		if SeasonalStrength(current, period) < 0.64 {
			return d
		}
		current = current.SeasonalDiff(period)
		if current.Len() < 2*period {
			return d
		}
	}
	return maxD
}

// SeasonalStrength computes F_S = max(0, 1 - Var(R)/Var(S+R)) from an additive
// decomposition.
func SeasonalStrength(series *timeseries.Series, period int) float64 {
	d := Decompose(series, period, "additive")
	if d == nil {
		return 0
	}

	var resid, seasonalResid []float64
	for i, r := range d.Residual.Values {
		if math.IsNaN(r) {
			continue
		}
		resid = append(resid, r)
		seasonalResid = append(seasonalResid, r+d.Seasonal.Values[i])
	}

	varSR := Variance(seasonalResid)
	if varSR == 0 {
		return 0
	}
	return math.Max(0, 1-Variance(resid)/varSR)
}
