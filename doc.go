// Package stockcast forecasts the daily closing price of a single stock.
//
// The module reads a daily OHLCV file, reindexes it onto a gap-free
// business-day calendar, caps outliers, derives return and rolling features,
// and compares ARIMA, SARIMA and gradient-boosted tree models on a
// chronological hold-out window. The winning model is refitted on the full
// history and serves point forecasts with 95% intervals through a web
// dashboard, a JSON API and CSV or XLSX exports.
//
// # Quick Start
//
// Serve the dashboard for a price file:
//
//	stockcast --data data/AAPL.csv
//
// Compare the candidate models, or write a 30-day forecast:
//
//	stockcast compare --config stockcast.yaml
//	stockcast forecast --horizon 30 --out forecast.xlsx
//
// # Packages
//
// Modeling:
//
//   - timeseries: series container, business-day calendar, CSV frames
//   - stats: correlograms, stationarity tests, decomposition, quantiles
//   - arima, sarima: models fitted by conditional sum of squares
//   - autoarima: stepwise order search
//   - boost: second-order gradient-boosted regression trees
//
// Application:
//
//   - market: price loading and cleaning
//   - features: returns, rolling statistics, lag design matrices
//   - eda: exploratory report
//   - evaluate: hold-out comparison and model selection
//   - forecast: refit, horizon-limited forecasts, exports
//   - pipeline, dashboard, cli: wiring, HTTP server and commands
//   - config, logging, telemetry: ambient stack
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - Chen, T., & Guestrin, C. (2016). XGBoost: A Scalable Tree Boosting System
package stockcast
