package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// FrameOptions holds options for reading a dated CSV frame.
type FrameOptions struct {
	DateColumn string            // Column holding dates (default: "Date")
	DateFormat string            // Preferred layout, tried before the built-in list
	DayFirst   bool              // Interpret ambiguous dd/mm vs mm/dd dates as day first
	Delimiter  rune              // Field delimiter (default: ',')
	Aliases    map[string]string // Header renames applied before lookup, e.g. "Adj_Close" -> "Adj Close"
}

// DefaultFrameOptions returns default options for frame loading.
func DefaultFrameOptions() *FrameOptions {
	return &FrameOptions{
		DateColumn: "Date",
		Delimiter:  ',',
	}
}

// SkippedRow records a data row that could not be used.
type SkippedRow struct {
	Line   int
	Value  string
	Reason string
}

// Frame is a table of float columns indexed by date, in file order.
type Frame struct {
	Dates   []time.Time
	Names   []string
	Columns map[string][]float64
	Skipped []SkippedRow
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	return len(f.Dates)
}

// Column returns the named column, or nil.
func (f *Frame) Column(name string) []float64 {
	return f.Columns[name]
}

// Has reports whether the frame contains every named column.
func (f *Frame) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := f.Columns[n]; !ok {
			return false
		}
	}
	return true
}

// ErrNoDateColumn is returned when the header lacks the configured date column.
var ErrNoDateColumn = errors.New("date column not found in header")

// ReadFrame reads a header-first CSV whose date column indexes numeric columns.
// Rows whose date cannot be parsed are reported in Skipped; blank or non-numeric
// cells become NaN.
func ReadFrame(r io.Reader, opts *FrameOptions) (*Frame, error) {
	if opts == nil {
		opts = DefaultFrameOptions()
	}
	dateCol := opts.DateColumn
	if dateCol == "" {
		dateCol = "Date"
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty CSV input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx := -1
	frame := &Frame{Columns: make(map[string][]float64)}
	colIdx := make([]int, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\"\ufeff"))
		if alias, ok := opts.Aliases[h]; ok {
			h = alias
		}
		if h == dateCol {
			dateIdx = i
			continue
		}
		if h == "" {
			continue
		}
		frame.Names = append(frame.Names, h)
		colIdx = append(colIdx, i)
	}
	if dateIdx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrNoDateColumn, dateCol)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateIdx >= len(record) {
			frame.Skipped = append(frame.Skipped, SkippedRow{Line: line, Reason: "missing date field"})
			continue
		}

		raw := strings.TrimSpace(strings.Trim(record[dateIdx], "\""))
		ts, err := ParseDate(raw, opts.DateFormat, opts.DayFirst)
		if err != nil {
			frame.Skipped = append(frame.Skipped, SkippedRow{Line: line, Value: raw, Reason: "unparsable date"})
			continue
		}

		frame.Dates = append(frame.Dates, ts)
		for j, idx := range colIdx {
			name := frame.Names[j]
			v := math.NaN()
			if idx < len(record) {
				v = parseCell(record[idx])
			}
			frame.Columns[name] = append(frame.Columns[name], v)
		}
	}

	return frame, nil
}

func parseCell(cell string) float64 {
	cell = strings.TrimSpace(strings.Trim(cell, "\""))
	switch cell {
	case "", "NA", "NaN", "nan", "null", "-":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

var (
	isoLayouts = []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"02-Jan-2006",
		"2-Jan-06",
		"Jan 2, 2006",
	}
	dayFirstLayouts = []string{
		"02-01-2006",
		"2-1-2006",
		"02/01/2006",
		"2/1/2006",
		"02.01.2006",
	}
	monthFirstLayouts = []string{
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"1-2-2006",
	}
)

// ParseDate parses a calendar date, trying layout first, then unambiguous ISO-like
// layouts, then day-first or month-first numeric layouts. The result is truncated
// to midnight UTC.
func ParseDate(s, layout string, dayFirst bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	candidates := make([]string, 0, 1+len(isoLayouts)+len(dayFirstLayouts)+len(monthFirstLayouts))
	if layout != "" {
		candidates = append(candidates, layout)
	}
	candidates = append(candidates, isoLayouts...)
	if dayFirst {
		candidates = append(candidates, dayFirstLayouts...)
		candidates = append(candidates, monthFirstLayouts...)
	} else {
		candidates = append(candidates, monthFirstLayouts...)
		candidates = append(candidates, dayFirstLayouts...)
	}

	for _, l := range candidates {
		if ts, err := time.Parse(l, s); err == nil {
			return Day(ts), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
