package features

import (
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"github.com/sartorproj/stockcast/market"
)

func testSeries(closes []float64) *market.PriceSeries {
	s := &market.PriceSeries{Symbol: "TEST"}
	d := time.Date(2019, time.January, 7, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		s.Records = append(s.Records, market.PriceRecord{Date: d, Close: c, Open: c, High: c, Low: c, AdjClose: c, Volume: 1})
		s.Filled = append(s.Filled, false)
		d = d.AddDate(0, 0, 1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
	}
	return s
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i) + 3*math.Sin(float64(i))
	}
	return out
}

func TestComputeRollingMeanDefinition(t *testing.T) {
	closes := ramp(60)
	rows := Compute(testSeries(closes))

	if len(rows) != len(closes) {
		t.Fatalf("expected %d rows, got %d", len(closes), len(rows))
	}
	for i, r := range rows {
		if i < Window-1 {
			if r.RollingMean21.Valid || r.RollingVolatility21.Valid {
				t.Errorf("row %d: rolling values should be undefined", i)
			}
			continue
		}
		sum := 0.0
		for _, c := range closes[i-20 : i+1] {
			sum += c
		}
		want := sum / 21
		if !r.RollingMean21.Valid || math.Abs(r.RollingMean21.Float64-want) > 1e-9 {
			t.Errorf("row %d: rollingMean21 = %v, want %v", i, r.RollingMean21, want)
		}
	}
}

func TestComputeReturns(t *testing.T) {
	closes := []float64{100, 110, 99}
	rows := Compute(testSeries(closes))

	if rows[0].DailyReturn.Valid || rows[0].LogReturn.Valid {
		t.Error("first row should have no returns")
	}
	if math.Abs(rows[1].DailyReturn.Float64-0.1) > 1e-12 {
		t.Errorf("dailyReturn[1] = %v, want 0.1", rows[1].DailyReturn.Float64)
	}
	if math.Abs(rows[2].LogReturn.Float64-math.Log(99.0/110)) > 1e-12 {
		t.Errorf("logReturn[2] = %v", rows[2].LogReturn.Float64)
	}
	if !rows[1].Date.Equal(time.Date(2019, time.January, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("row date = %v", rows[1].Date)
	}
}

func TestRollingVolatilityIsSampleStd(t *testing.T) {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = float64(i % 2)
	}
	rows := Compute(testSeries(closes))
	last := rows[20]
	// 10 ones and 11 zeros
	mean := 10.0 / 21
	ss := 10*(1-mean)*(1-mean) + 11*mean*mean
	want := math.Sqrt(ss / 20)
	if math.Abs(last.RollingVolatility21.Float64-want) > 1e-12 {
		t.Errorf("rollingVolatility21 = %v, want %v", last.RollingVolatility21.Float64, want)
	}
}

func TestComplete(t *testing.T) {
	rows := Compute(testSeries(ramp(50)))
	done := Complete(rows)
	if len(done) != 50-20 {
		t.Fatalf("expected 30 complete rows, got %d", len(done))
	}
	if !done[0].Date.Equal(rows[20].Date) {
		t.Errorf("first complete row = %v, want %v", done[0].Date, rows[20].Date)
	}
}

func TestCapReturns(t *testing.T) {
	closes := ramp(80)
	closes[40] = 400
	rows := Compute(testSeries(closes))

	changed := CapReturns(rows, 1.5)
	if changed == 0 {
		t.Fatal("expected the spike returns to be capped")
	}
	if rows[0].DailyReturn.Valid {
		t.Error("capping must not define missing values")
	}
	if rows[40].DailyReturn.Float64 > 1 {
		t.Errorf("spike return still %v", rows[40].DailyReturn.Float64)
	}
}

func TestColumn(t *testing.T) {
	rows := Compute(testSeries([]float64{1, 2}))
	col := Column(rows, func(r Row) null.Float { return r.DailyReturn })
	if !math.IsNaN(col[0]) || col[1] != 1 {
		t.Errorf("Column = %v", col)
	}
}

func TestSupervisedUsesOnlyPriorCloses(t *testing.T) {
	closes := ramp(40)
	X, y := Supervised(closes, 5)

	if len(X) != 40-Window || len(y) != len(X) {
		t.Fatalf("got %d rows, %d targets", len(X), len(y))
	}
	if len(X[0]) != len(LagNames(5)) {
		t.Fatalf("row width %d, want %d", len(X[0]), len(LagNames(5)))
	}
	// Row 0 predicts closes[21] from closes[0..20].
	if y[0] != closes[Window] {
		t.Errorf("target = %v, want %v", y[0], closes[Window])
	}
	if X[0][0] != closes[Window-1] || X[0][4] != closes[Window-5] {
		t.Errorf("lags = %v", X[0][:5])
	}
	sum := 0.0
	for _, c := range closes[:Window] {
		sum += c
	}
	if math.Abs(X[0][5]-sum/Window) > 1e-12 {
		t.Errorf("rolling mean feature = %v, want %v", X[0][5], sum/Window)
	}
}

func TestVectorShortHistory(t *testing.T) {
	if _, ok := Vector(ramp(10), 5); ok {
		t.Error("expected Vector to reject history shorter than the window")
	}
	if _, ok := Vector(ramp(30), 0); ok {
		t.Error("expected Vector to reject zero lags")
	}
}

func TestVectorMatchesRollingFeatures(t *testing.T) {
	closes := ramp(60)
	rows := Compute(testSeries(closes))
	lags := 3
	for _, n := range []int{Window, 40, 60} {
		x, ok := Vector(closes[:n], lags)
		if !ok {
			t.Fatalf("Vector(%d closes) rejected", n)
		}
		row := rows[n-1]
		if math.Abs(x[lags]-row.RollingMean21.Float64) > 1e-9 {
			t.Errorf("n=%d: mean %v, rolling mean %v", n, x[lags], row.RollingMean21.Float64)
		}
		if math.Abs(x[lags+1]-row.RollingVolatility21.Float64) > 1e-9 {
			t.Errorf("n=%d: std %v, rolling volatility %v", n, x[lags+1], row.RollingVolatility21.Float64)
		}
	}
}
