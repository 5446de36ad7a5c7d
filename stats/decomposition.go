package stats

import (
	"math"

	"github.com/sartorproj/stockcast/timeseries"
)

// DecompositionResult represents the decomposition of a time series.
type DecompositionResult struct {
	Trend    *timeseries.Series
	Seasonal *timeseries.Series
	Residual *timeseries.Series
	Profile  []float64 // one seasonal effect per position in the cycle
	Period   int
	Type     string // "additive" or "multiplicative"
}

// Decompose performs classical decomposition with a centered moving-average trend.
// Type is "additive" (Y = T + S + R) or "multiplicative" (Y = T * S * R).
// Position i of the cycle is i % period counted from the first observation.
func Decompose(series *timeseries.Series, period int, kind string) *DecompositionResult {
	n := series.Len()
	if period < 2 || n < 2*period {
		return nil
	}
	if kind != "multiplicative" {
		kind = "additive"
	}
	mult := kind == "multiplicative"

	trend := centeredMovingAverage(series.Values, period)

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range series.Values {
		if math.IsNaN(trend[i]) || (mult && trend[i] == 0) {
			continue
		}
		if mult {
			sums[i%period] += v / trend[i]
		} else {
			sums[i%period] += v - trend[i]
		}
		counts[i%period]++
	}

	profile := make([]float64, period)
	mean := 0.0
	for i := range profile {
		if counts[i] > 0 {
			profile[i] = sums[i] / float64(counts[i])
		}
		mean += profile[i]
	}
	mean /= float64(period)
	for i := range profile {
		if mult {
			profile[i] /= mean
		} else {
			profile[i] -= mean
		}
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range series.Values {
		seasonal[i] = profile[i%period]
		switch {
		case math.IsNaN(trend[i]):
			residual[i] = math.NaN()
		case mult:
			residual[i] = v / (trend[i] * seasonal[i])
		default:
			residual[i] = v - trend[i] - seasonal[i]
		}
	}

	return &DecompositionResult{
		Trend:    &timeseries.Series{Values: trend, Timestamps: series.Timestamps, Name: "trend"},
		Seasonal: &timeseries.Series{Values: seasonal, Timestamps: series.Timestamps, Name: "seasonal"},
		Residual: &timeseries.Series{Values: residual, Timestamps: series.Timestamps, Name: "residual"},
		Profile:  profile,
		Period:   period,
		Type:     kind,
	}
}

// centeredMovingAverage uses a 2xperiod MA for even periods.
func centeredMovingAverage(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		sum := 0.0
		if period%2 == 0 {
			sum = 0.5*values[i-half] + 0.5*values[i+half]
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
		} else {
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
		}
		trend[i] = sum / float64(period)
	}
	return trend
}
