package timeseries

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBusinessDays(t *testing.T) {
	// Friday 2019-03-01 through Tuesday 2019-03-12
	days := BusinessDays(date(2019, 3, 1), date(2019, 3, 12))

	if len(days) != 8 {
		t.Fatalf("Expected 8 business days, got %d", len(days))
	}
	for i, d := range days {
		if !IsBusinessDay(d) {
			t.Errorf("Day %d (%v) is not a business day", i, d)
		}
		if i > 0 && !d.After(days[i-1]) {
			t.Errorf("Days not strictly increasing at %d", i)
		}
	}

	if got := BusinessDays(date(2019, 3, 12), date(2019, 3, 1)); got != nil {
		t.Errorf("Expected nil for reversed range, got %v", got)
	}
}

func TestNextBusinessDay(t *testing.T) {
	tests := []struct {
		from, want time.Time
	}{
		{date(2019, 12, 27), date(2019, 12, 30)}, // Friday -> Monday
		{date(2019, 12, 28), date(2019, 12, 30)}, // Saturday -> Monday
		{date(2019, 12, 30), date(2019, 12, 31)},
	}
	for _, tt := range tests {
		if got := NextBusinessDay(tt.from); !got.Equal(tt.want) {
			t.Errorf("NextBusinessDay(%v) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestFutureBusinessDays(t *testing.T) {
	days := FutureBusinessDays(date(2019, 12, 27), 6)

	if len(days) != 6 {
		t.Fatalf("Expected 6 days, got %d", len(days))
	}
	if !days[0].Equal(date(2019, 12, 30)) {
		t.Errorf("Expected first day 2019-12-30, got %v", days[0])
	}
	if !days[5].Equal(date(2020, 1, 6)) {
		t.Errorf("Expected last day 2020-01-06, got %v", days[5])
	}
	if FutureBusinessDays(date(2019, 12, 27), 0) != nil {
		t.Error("Expected nil for n=0")
	}
}
