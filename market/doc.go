// Package market loads daily OHLCV price files and cleans them into a gap-free
// business-day PriceSeries.
//
// Loading validates the header and dates; cleaning sorts, reindexes onto the
// Monday-Friday calendar with forward fill, and caps outliers with the
// interquartile-range rule. Problems with the input surface as *DataError.
package market
