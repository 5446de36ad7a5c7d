// Package stats provides the statistical routines used for exploratory analysis,
// model diagnostics and forecast uncertainty.
//
// # Stationarity Tests
//
//	adf := stats.ADF(series, 0)       // H0: unit root
//	kpss := stats.KPSS(series, "c", 0) // H0: level stationary
//
// # Autocorrelation
//
//	c := stats.Correlogram(series.Diff(), 20)
//	significant := stats.SignificantLags(c.ACF, c.ConfBound)
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q)
//	dw := stats.DurbinWatson(residuals.Values)
//
// # Decomposition
//
//	d := stats.Decompose(series, 5, "additive")
//	strength := stats.SeasonalStrength(series, 5)
//
// # Descriptive Helpers
//
// Quantile uses linear interpolation between order statistics (the pandas
// default), which is what IQRBounds relies on for outlier capping.
//
// # Forecast Variance
//
// PsiWeights expands an ARMA model written in lag polynomials into its
// MA(∞) representation; ForecastVariance sums the squared weights to give the
// h-step error variance used for prediction intervals.
package stats
