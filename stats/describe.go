package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func nan() float64 { return math.NaN() }

// finite returns the non-NaN, non-Inf values of data in a new slice.
func finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Mean is the arithmetic mean of the finite values in data, or NaN when there are none.
func Mean(data []float64) float64 {
	valid := finite(data)
	if len(valid) == 0 {
		return nan()
	}
	return stat.Mean(valid, nil)
}

// Variance is the sample variance of the finite values in data.
func Variance(data []float64) float64 {
	valid := finite(data)
	if len(valid) < 2 {
		return 0
	}
	return stat.Variance(valid, nil)
}

// Quantile returns the p-quantile of the finite values in data, linearly
// interpolating between order statistics at position p*(n-1).
func Quantile(data []float64, p float64) float64 {
	sorted := finite(data)
	if len(sorted) == 0 {
		return nan()
	}
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// IQRBounds returns [Q1 - k*IQR, Q3 + k*IQR].
func IQRBounds(data []float64, k float64) (lower, upper float64) {
	q1 := Quantile(data, 0.25)
	q3 := Quantile(data, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// Clip clamps every finite value of data into [lower, upper] in place and
// returns how many values changed.
func Clip(data []float64, lower, upper float64) int {
	changed := 0
	for i, v := range data {
		switch {
		case math.IsNaN(v):
		case v < lower:
			data[i] = lower
			changed++
		case v > upper:
			data[i] = upper
			changed++
		}
	}
	return changed
}

// CorrelationMatrix returns Pearson correlations between every pair of columns,
// using only rows where both values are finite.
func CorrelationMatrix(columns [][]float64) [][]float64 {
	k := len(columns)
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
		out[i][i] = 1
	}

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			x, y := pairwiseFinite(columns[i], columns[j])
			r := nan()
			if len(x) > 2 {
				r = stat.Correlation(x, y, nil)
			}
			out[i][j], out[j][i] = r, r
		}
	}
	return out
}

func pairwiseFinite(a, b []float64) (x, y []float64) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) || math.IsInf(a[i], 0) || math.IsInf(b[i], 0) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	return x, y
}

// NormalQuantile returns the standard normal quantile for probability p.
func NormalQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return nan()
	}
	return distuv.UnitNormal.Quantile(p)
}
