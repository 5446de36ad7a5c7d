// Package timeseries provides the Series type, a Monday–Friday business-day
// calendar and a dated CSV frame reader.
//
// # Creating a Series
//
//	series := timeseries.New([]float64{100, 102, 105, 103, 108, 110})
//	returns := series.PctChange()       // NaN at position 0
//	ma := series.TrailingMean(21)       // NaN for the first 20 positions
//
// # Calendar
//
// The calendar only removes weekends, the same rule pandas applies with
// bdate_range:
//
//	days := timeseries.BusinessDays(start, end)
//	future := timeseries.FutureBusinessDays(last, 30)
//
// # Reading CSV
//
// ReadFrame loads every numeric column of a CSV indexed by its date column.
// Rows with unparsable dates are kept aside in Frame.Skipped so callers can
// report them:
//
//	frame, err := timeseries.ReadFrame(f, &timeseries.FrameOptions{DayFirst: true})
//	closes := frame.Column("Close")
package timeseries
