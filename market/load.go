package market

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/sartorproj/stockcast/timeseries"
)

// LoadOptions controls how a price file is parsed.
type LoadOptions struct {
	Source     string // Name used in errors (defaults to the file path or "input")
	DayFirst   bool   // Read ambiguous numeric dates as dd/mm/yyyy
	DateFormat string // Preferred date layout, tried first
}

// LoadReport describes what Load kept and dropped.
type LoadReport struct {
	Rows    int // data rows read
	Valid   int // rows returned
	Skipped []timeseries.SkippedRow
}

var headerAliases = map[string]string{
	"Adj_Close": ColAdjClose,
	"AdjClose":  ColAdjClose,
	"adj_close": ColAdjClose,
	"date":      ColDate,
	"open":      ColOpen,
	"high":      ColHigh,
	"low":       ColLow,
	"close":     ColClose,
	"volume":    ColVolume,
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts LoadOptions) ([]PriceRecord, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, dataErrorf(path, err, "open price file")
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = path
	}
	return Load(f, opts)
}

// Load reads a CSV with columns Date, Open, High, Low, Close, Adj Close and Volume.
// Rows whose date cannot be parsed or whose prices are missing are dropped and
// listed in the report. Records are returned in file order; duplicate dates are
// a *DataError.
func Load(r io.Reader, opts LoadOptions) ([]PriceRecord, *LoadReport, error) {
	source := opts.Source
	if source == "" {
		source = "input"
	}

	frame, err := timeseries.ReadFrame(r, &timeseries.FrameOptions{
		DateColumn: ColDate,
		DateFormat: opts.DateFormat,
		DayFirst:   opts.DayFirst,
		Delimiter:  ',',
		Aliases:    headerAliases,
	})
	if err != nil {
		if errors.Is(err, timeseries.ErrNoDateColumn) {
			return nil, nil, dataErrorf(source, err, "missing %q column", ColDate)
		}
		return nil, nil, dataErrorf(source, err, "read CSV")
	}

	var missing []string
	for _, col := range PriceColumns {
		if !frame.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, dataErrorf(source, nil, "missing columns: %s", strings.Join(missing, ", "))
	}

	report := &LoadReport{
		Rows:    frame.Len() + len(frame.Skipped),
		Skipped: append([]timeseries.SkippedRow(nil), frame.Skipped...),
	}

	records := make([]PriceRecord, 0, frame.Len())
	seen := make(map[int64]int, frame.Len())
	for i, date := range frame.Dates {
		rec := PriceRecord{Date: date}
		var bad string
		for _, col := range PriceColumns {
			v := frame.Column(col)[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = col
				break
			}
			rec.setField(col, v)
		}
		if bad != "" {
			report.Skipped = append(report.Skipped, timeseries.SkippedRow{
				Value:  date.Format("2006-01-02"),
				Reason: fmt.Sprintf("missing %s", bad),
			})
			continue
		}

		key := date.Unix()
		if prev, ok := seen[key]; ok {
			return nil, report, dataErrorf(source, nil, "duplicate date %s (rows %d and %d)",
				date.Format("2006-01-02"), prev+1, len(records)+1)
		}
		seen[key] = len(records)
		records = append(records, rec)
	}

	report.Valid = len(records)
	return records, report, nil
}
