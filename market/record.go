package market

import (
	"time"

	"github.com/sartorproj/stockcast/timeseries"
)

// Column names as they appear in the input header.
const (
	ColDate     = "Date"
	ColOpen     = "Open"
	ColHigh     = "High"
	ColLow      = "Low"
	ColClose    = "Close"
	ColAdjClose = "Adj Close"
	ColVolume   = "Volume"
)

// PriceColumns lists the numeric columns of a PriceRecord in file order.
var PriceColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}

// PriceRecord is one trading day of prices.
type PriceRecord struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Field returns the value of the named column, or false for an unknown name.
func (r PriceRecord) Field(name string) (float64, bool) {
	switch name {
	case ColOpen:
		return r.Open, true
	case ColHigh:
		return r.High, true
	case ColLow:
		return r.Low, true
	case ColClose:
		return r.Close, true
	case ColAdjClose:
		return r.AdjClose, true
	case ColVolume:
		return r.Volume, true
	}
	return 0, false
}

func (r *PriceRecord) setField(name string, v float64) {
	switch name {
	case ColOpen:
		r.Open = v
	case ColHigh:
		r.High = v
	case ColLow:
		r.Low = v
	case ColClose:
		r.Close = v
	case ColAdjClose:
		r.AdjClose = v
	case ColVolume:
		r.Volume = v
	}
}

// PriceSeries is a date-ordered sequence of records on a contiguous business-day
// calendar. Filled[i] marks records carried forward from an earlier day.
// A PriceSeries is not modified after Clean returns it.
type PriceSeries struct {
	Symbol  string
	Records []PriceRecord
	Filled  []bool
}

// Len returns the number of business days in the series.
func (s *PriceSeries) Len() int {
	return len(s.Records)
}

// First returns the earliest record.
func (s *PriceSeries) First() PriceRecord {
	return s.Records[0]
}

// Last returns the latest record.
func (s *PriceSeries) Last() PriceRecord {
	return s.Records[len(s.Records)-1]
}

// Dates returns a copy of the record dates.
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Date
	}
	return out
}

// Column returns a copy of the named column.
func (s *PriceSeries) Column(name string) []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		out[i], _ = r.Field(name)
	}
	return out
}

// Closes returns the closing prices as a dated series.
func (s *PriceSeries) Closes() *timeseries.Series {
	return &timeseries.Series{
		Timestamps: s.Dates(),
		Values:     s.Column(ColClose),
		Name:       s.Symbol,
	}
}

// Tail returns a series holding the last n records, sharing no state with s.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n > len(s.Records) || n < 0 {
		n = len(s.Records)
	}
	start := len(s.Records) - n
	return &PriceSeries{
		Symbol:  s.Symbol,
		Records: append([]PriceRecord(nil), s.Records[start:]...),
		Filled:  append([]bool(nil), s.Filled[start:]...),
	}
}

// Head returns a series holding the first n records.
func (s *PriceSeries) Head(n int) *PriceSeries {
	if n > len(s.Records) || n < 0 {
		n = len(s.Records)
	}
	return &PriceSeries{
		Symbol:  s.Symbol,
		Records: append([]PriceRecord(nil), s.Records[:n]...),
		Filled:  append([]bool(nil), s.Filled[:n]...),
	}
}
