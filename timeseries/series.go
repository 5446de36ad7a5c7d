package timeseries

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Series is a sequence of observations with optional timestamps.
// When Timestamps is non-nil it has the same length as Values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates an undated series from values.
func New(values []float64) *Series {
	return &Series{Values: values}
}

// NewWithTimestamps creates a dated series.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Dated reports whether every value carries a timestamp.
func (s *Series) Dated() bool {
	return len(s.Timestamps) == len(s.Values) && len(s.Values) > 0
}

// Last returns the final value, or NaN for an empty series.
func (s *Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// Variance calculates the sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.Values {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(s.Values)-1)
}

// Std calculates the sample standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Diff calculates the first difference of the series.
func (s *Series) Diff() *Series {
	return s.lagDiff(1, "_diff")
}

// SeasonalDiff calculates the seasonal difference with period m.
func (s *Series) SeasonalDiff(m int) *Series {
	return s.lagDiff(m, "_seasonal_diff")
}

// lagDiff returns y[t] - y[t-k]; the result is k observations shorter.
func (s *Series) lagDiff(k int, suffix string) *Series {
	if k <= 0 || len(s.Values) <= k {
		return &Series{Values: []float64{}}
	}

	result := make([]float64, len(s.Values)-k)
	for i := k; i < len(s.Values); i++ {
		result[i-k] = s.Values[i] - s.Values[i-k]
	}

	return &Series{
		Timestamps: s.timestampsFrom(k, len(s.Values)),
		Values:     result,
		Name:       s.Name + suffix,
	}
}

// Slice returns a copy of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	return &Series{
		Timestamps: s.timestampsFrom(start, end),
		Values:     values,
		Name:       s.Name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return s.Slice(0, len(s.Values))
}

// PctChange returns v[t]/v[t-1] - 1 aligned with the input; position 0 is NaN.
func (s *Series) PctChange() *Series {
	return s.mapPairs("_pct_change", func(prev, cur float64) float64 {
		if prev == 0 {
			return math.NaN()
		}
		return cur/prev - 1
	})
}

// LogReturns returns ln(v[t]/v[t-1]) aligned with the input; position 0 is NaN.
func (s *Series) LogReturns() *Series {
	return s.mapPairs("_log_return", func(prev, cur float64) float64 {
		if prev <= 0 || cur <= 0 {
			return math.NaN()
		}
		return math.Log(cur / prev)
	})
}

// TrailingMean returns the mean of the trailing window ending at each position.
// The first window-1 positions are NaN.
func (s *Series) TrailingMean(window int) *Series {
	out := nanSlice(len(s.Values))
	if window > 0 && window <= len(s.Values) {
		sum := 0.0
		for i, v := range s.Values {
			sum += v
			if i >= window {
				sum -= s.Values[i-window]
			}
			if i >= window-1 {
				out[i] = sum / float64(window)
			}
		}
	}
	return &Series{
		Timestamps: s.timestampsFrom(0, len(s.Values)),
		Values:     out,
		Name:       s.Name + "_rolling_mean",
	}
}

// TrailingStd returns the sample standard deviation of the trailing window ending
// at each position. The first window-1 positions are NaN.
func (s *Series) TrailingStd(window int) *Series {
	out := nanSlice(len(s.Values))
	if window > 1 && window <= len(s.Values) {
		for i := window - 1; i < len(s.Values); i++ {
			_, out[i] = stat.MeanStdDev(s.Values[i-window+1:i+1], nil)
		}
	}
	return &Series{
		Timestamps: s.timestampsFrom(0, len(s.Values)),
		Values:     out,
		Name:       s.Name + "_rolling_std",
	}
}

func (s *Series) mapPairs(suffix string, f func(prev, cur float64) float64) *Series {
	out := nanSlice(len(s.Values))
	for i := 1; i < len(s.Values); i++ {
		out[i] = f(s.Values[i-1], s.Values[i])
	}
	return &Series{
		Timestamps: s.timestampsFrom(0, len(s.Values)),
		Values:     out,
		Name:       s.Name + suffix,
	}
}

func (s *Series) timestampsFrom(start, end int) []time.Time {
	if len(s.Timestamps) < end {
		return nil
	}
	ts := make([]time.Time, end-start)
	copy(ts, s.Timestamps[start:end])
	return ts
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
