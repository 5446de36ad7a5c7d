package features

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// LagNames returns the column names of the matrix built by Supervised.
func LagNames(lags int) []string {
	names := make([]string, 0, lags+2)
	for i := 1; i <= lags; i++ {
		names = append(names, fmt.Sprintf("lag_%d", i))
	}
	return append(names, "rolling_mean_21", "rolling_volatility_21")
}

// MinHistory is the number of prior closes needed to build one feature vector.
func MinHistory(lags int) int {
	return max(lags, Window)
}

// Vector builds the feature vector for the value following history: the last
// lags closes (most recent first) followed by the trailing mean and sample
// standard deviation of the last Window closes. It returns false when history is
// too short.
func Vector(history []float64, lags int) ([]float64, bool) {
	n := len(history)
	if lags < 1 || n < MinHistory(lags) {
		return nil, false
	}

	x := make([]float64, 0, lags+2)
	for i := 1; i <= lags; i++ {
		x = append(x, history[n-i])
	}

	mean, std := stat.MeanStdDev(history[n-Window:], nil)
	return append(x, mean, std), true
}

// Supervised turns a close series into a design matrix whose row for day t uses
// only closes before t, with target close[t]. Rows start at MinHistory(lags).
func Supervised(closes []float64, lags int) (X [][]float64, y []float64) {
	for t := MinHistory(lags); t < len(closes); t++ {
		x, ok := Vector(closes[:t], lags)
		if !ok {
			continue
		}
		X = append(X, x)
		y = append(y, closes[t])
	}
	return X, y
}
