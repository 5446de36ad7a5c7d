package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

// DefaultMinRows is the smallest number of valid rows Clean accepts by default.
const DefaultMinRows = 100

// CleanOptions controls reindexing and outlier capping.
type CleanOptions struct {
	Symbol        string
	Source        string  // Name used in errors
	MinRows       int     // Minimum valid input rows (default: DefaultMinRows)
	CapVolume     bool    // Also cap Volume; price columns are always capped unless NoCap is set
	NoCap         bool    // Skip outlier capping entirely
	IQRMultiplier float64 // Whisker length in IQRs (default: 1.5)
}

// Bounds is the closed capping interval of one column.
type Bounds struct {
	Lower float64
	Upper float64
}

// CleanReport summarizes what Clean changed.
type CleanReport struct {
	Input         int // valid records received
	WeekendDrops  int // records dated Saturday or Sunday
	BusinessDays  int // length of the output calendar
	ForwardFilled int // business days with no record of their own
	Start         time.Time
	End           time.Time
	Bounds        map[string]Bounds // capping bounds per column
	Capped        map[string]int    // values clamped per column
}

// Clean sorts records by date, reindexes them onto every business day between
// the first and last date with forward fill, and clamps each capped column to
// [Q1 - k*IQR, Q3 + k*IQR] of its pre-capping values. The input slice is not
// modified.
func Clean(records []PriceRecord, opts CleanOptions) (*PriceSeries, *CleanReport, error) {
	source := opts.Source
	if source == "" {
		source = "input"
	}
	minRows := opts.MinRows
	if minRows <= 0 {
		minRows = DefaultMinRows
	}
	if len(records) < minRows {
		return nil, nil, dataErrorf(source, nil, "%d valid rows, need at least %d", len(records), minRows)
	}
	k := opts.IQRMultiplier
	if k <= 0 {
		k = 1.5
	}

	sorted := append([]PriceRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, nil, dataErrorf(source, nil, "duplicate date %s", sorted[i].Date.Format("2006-01-02"))
		}
	}

	report := &CleanReport{
		Input:  len(sorted),
		Bounds: make(map[string]Bounds),
		Capped: make(map[string]int),
	}
	for _, r := range sorted {
		if !timeseries.IsBusinessDay(r.Date) {
			report.WeekendDrops++
		}
	}

	days := timeseries.BusinessDays(sorted[0].Date, sorted[len(sorted)-1].Date)
	if len(days) == 0 {
		return nil, nil, dataErrorf(source, nil, "no business days between %s and %s",
			sorted[0].Date.Format("2006-01-02"), sorted[len(sorted)-1].Date.Format("2006-01-02"))
	}

	series := &PriceSeries{
		Symbol:  opts.Symbol,
		Records: make([]PriceRecord, len(days)),
		Filled:  make([]bool, len(days)),
	}

	// Walk both calendars; the latest record on or before each day is carried forward.
	j := -1
	for i, day := range days {
		for j+1 < len(sorted) && !sorted[j+1].Date.After(day) {
			j++
		}
		rec := sorted[j]
		series.Filled[i] = !rec.Date.Equal(day)
		if series.Filled[i] {
			report.ForwardFilled++
		}
		rec.Date = day
		series.Records[i] = rec
	}

	if !opts.NoCap {
		for _, col := range cappedColumns(opts.CapVolume) {
			values := series.Column(col)
			lower, upper := stats.IQRBounds(values, k)
			report.Bounds[col] = Bounds{Lower: lower, Upper: upper}
			report.Capped[col] = stats.Clip(values, lower, upper)
			for i, v := range values {
				series.Records[i].setField(col, v)
			}
		}
	}

	report.BusinessDays = len(days)
	report.Start = days[0]
	report.End = days[len(days)-1]

	if err := validateCalendar(series); err != nil {
		return nil, nil, dataErrorf(source, err, "reindex")
	}
	return series, report, nil
}

func cappedColumns(volume bool) []string {
	cols := []string{ColOpen, ColHigh, ColLow, ColClose, ColAdjClose}
	if volume {
		cols = append(cols, ColVolume)
	}
	return cols
}

// validateCalendar checks that dates are strictly increasing consecutive business days.
func validateCalendar(s *PriceSeries) error {
	for i, r := range s.Records {
		if !timeseries.IsBusinessDay(r.Date) {
			return fmt.Errorf("%s is not a business day", r.Date.Format("2006-01-02"))
		}
		if i > 0 && !r.Date.Equal(timeseries.NextBusinessDay(s.Records[i-1].Date)) {
			return fmt.Errorf("gap between %s and %s",
				s.Records[i-1].Date.Format("2006-01-02"), r.Date.Format("2006-01-02"))
		}
	}
	return nil
}
