package timeseries

import (
	"math"
	"testing"
	"time"
)

func TestNewWithTimestamps(t *testing.T) {
	ts := BusinessDays(time.Date(2019, 1, 7, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 11, 0, 0, 0, 0, time.UTC))
	s, err := NewWithTimestamps(ts, []float64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !s.Dated() {
		t.Error("Expected series to be dated")
	}

	if _, err := NewWithTimestamps(ts, []float64{1, 2}); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"simple", []float64{1, 2, 3, 4, 5}, 3.0},
		{"single", []float64{5}, 5.0},
		{"negative", []float64{-1, -2, -3}, -2.0},
		{"empty", []float64{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(tt.values).Mean()
			if math.Abs(result-tt.expected) > 1e-10 {
				t.Errorf("Expected mean %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestStd(t *testing.T) {
	s := New([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	expected := math.Sqrt(4.571428571428571)

	if result := s.Std(); math.Abs(result-expected) > 1e-10 {
		t.Errorf("Expected std %f, got %f", expected, result)
	}
}

func TestDiff(t *testing.T) {
	diff := New([]float64{1, 3, 6, 10, 15}).Diff()

	expected := []float64{2, 3, 4, 5}
	if len(diff.Values) != len(expected) {
		t.Fatalf("Expected length %d, got %d", len(expected), len(diff.Values))
	}
	for i, v := range diff.Values {
		if math.Abs(v-expected[i]) > 1e-10 {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, v)
		}
	}
}

func TestSeasonalDiff(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18, 11, 13, 15, 17, 19}
	diff := New(values).SeasonalDiff(5)

	if diff.Len() != 5 {
		t.Fatalf("Expected length 5, got %d", diff.Len())
	}
	for i, v := range diff.Values {
		if math.Abs(v-1) > 1e-10 {
			t.Errorf("Expected 1 at index %d, got %f", i, v)
		}
	}
}

func TestDiffKeepsTimestamps(t *testing.T) {
	ts := BusinessDays(time.Date(2019, 1, 7, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 11, 0, 0, 0, 0, time.UTC))
	s, _ := NewWithTimestamps(ts, []float64{1, 2, 4, 7, 11})

	diff := s.Diff()
	if !diff.Dated() {
		t.Fatal("Expected differenced series to keep timestamps")
	}
	if !diff.Timestamps[0].Equal(ts[1]) {
		t.Errorf("Expected first timestamp %v, got %v", ts[1], diff.Timestamps[0])
	}
}

func TestSlice(t *testing.T) {
	s := New([]float64{1, 2, 3, 4, 5})
	sliced := s.Slice(1, 4)

	expected := []float64{2, 3, 4}
	for i, v := range sliced.Values {
		if v != expected[i] {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, v)
		}
	}

	sliced.Values[0] = 99
	if s.Values[1] == 99 {
		t.Error("Slice should not share memory with the original")
	}

	if empty := s.Slice(4, 2); empty.Len() != 0 {
		t.Errorf("Expected empty slice, got %d values", empty.Len())
	}
}

func TestPctChangeAndLogReturns(t *testing.T) {
	s := New([]float64{100, 110, 99})

	pct := s.PctChange()
	if !math.IsNaN(pct.Values[0]) {
		t.Errorf("Expected NaN at position 0, got %f", pct.Values[0])
	}
	if math.Abs(pct.Values[1]-0.1) > 1e-12 {
		t.Errorf("Expected 0.1, got %f", pct.Values[1])
	}
	if math.Abs(pct.Values[2]-(-0.1)) > 1e-12 {
		t.Errorf("Expected -0.1, got %f", pct.Values[2])
	}

	logs := s.LogReturns()
	if math.Abs(logs.Values[1]-math.Log(1.1)) > 1e-12 {
		t.Errorf("Expected ln(1.1), got %f", logs.Values[1])
	}
}

func TestTrailingMean(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i * i)
	}
	ma := New(values).TrailingMean(21)

	for i := 0; i < 20; i++ {
		if !math.IsNaN(ma.Values[i]) {
			t.Errorf("Expected NaN at %d, got %f", i, ma.Values[i])
		}
	}
	for i := 20; i < len(values); i++ {
		sum := 0.0
		for j := i - 20; j <= i; j++ {
			sum += values[j]
		}
		if math.Abs(ma.Values[i]-sum/21) > 1e-9 {
			t.Errorf("Position %d: expected %f, got %f", i, sum/21, ma.Values[i])
		}
	}
}

func TestTrailingStd(t *testing.T) {
	s := New([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	std := s.TrailingStd(8)

	for i := 0; i < 7; i++ {
		if !math.IsNaN(std.Values[i]) {
			t.Errorf("Expected NaN at %d", i)
		}
	}
	if math.Abs(std.Values[7]-s.Std()) > 1e-10 {
		t.Errorf("Expected %f, got %f", s.Std(), std.Values[7])
	}
}
