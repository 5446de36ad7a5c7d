package stats

import (
	"math"

	"github.com/sartorproj/stockcast/timeseries"
)

// ACF calculates the Autocorrelation Function for lags 0 to maxLag.
// Returns nil when the series has zero variance.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := series.Mean()
	denom := 0.0
	for _, v := range series.Values {
		denom += (v - mean) * (v - mean)
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (series.Values[i] - mean) * (series.Values[i-k] - mean)
		}
		acf[k] = sum / denom
	}
	return acf
}

// PACF calculates the Partial Autocorrelation Function with the Durbin-Levinson
// recursion. Index 0 holds 1; indices 1..maxLag hold the partial autocorrelations.
func PACF(series *timeseries.Series, maxLag int) []float64 {
	if maxLag >= series.Len() {
		maxLag = series.Len() - 1
	}
	if maxLag < 1 {
		return nil
	}

	acf := ACF(series, maxLag)
	if acf == nil {
		return nil
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1

	prev := []float64{acf[1]}
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num, den := acf[k], 1.0
		for j := 1; j < k; j++ {
			num -= prev[j-1] * acf[k-j]
			den -= prev[j-1] * acf[j]
		}
		if den == 0 {
			break
		}
		phiKK := num / den
		pacf[k] = phiKK

		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = prev[j-1] - phiKK*prev[k-j-1]
		}
		next[k-1] = phiKK
		prev = next
	}
	return pacf
}

// CorrelogramResult holds ACF and PACF values with their 95% bound.
type CorrelogramResult struct {
	Lags      []int
	ACF       []float64
	PACF      []float64
	ConfBound float64 // ±1.96/sqrt(n)
}

// Correlogram computes ACF and PACF up to maxLag. Returns nil for a constant series.
func Correlogram(series *timeseries.Series, maxLag int) *CorrelogramResult {
	acf := ACF(series, maxLag)
	if acf == nil {
		return nil
	}
	pacf := PACF(series, len(acf)-1)

	lags := make([]int, len(acf))
	for i := range lags {
		lags[i] = i
	}

	return &CorrelogramResult{
		Lags:      lags,
		ACF:       acf,
		PACF:      pacf,
		ConfBound: 1.96 / math.Sqrt(float64(series.Len())),
	}
}

// SignificantLags returns the lags (excluding 0) whose value exceeds the bound.
func SignificantLags(values []float64, confBound float64) []int {
	var significant []int
	for i := 1; i < len(values); i++ {
		if math.Abs(values[i]) > confBound {
			significant = append(significant, i)
		}
	}
	return significant
}
