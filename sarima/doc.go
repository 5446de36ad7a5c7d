// Package sarima implements multiplicative Seasonal ARIMA models fitted by
// conditional sum of squares.
//
// A SARIMA(p,d,q)(P,D,Q)[m] model is written in lag polynomials as
//
//	phi(B) Phi(B^m) (1-B)^d (1-B^m)^D y_t = theta(B) Theta(B^m) e_t
//
// The seasonal and non-seasonal operators multiply, so SARIMA(1,1,1)(1,1,1)[5]
// has MA terms at lags 1, 5 and 6.
//
// # Basic Usage
//
// Business-day closing prices with a weekly cycle:
//
//	model := sarima.New(1, 1, 1, 1, 1, 1, 5)
//	if err := model.Fit(series); err != nil {
//	    var fe *sarima.FitError
//	    if errors.As(err, &fe) {
//	        // not enough data, or the optimizer diverged
//	    }
//	    return err
//	}
//
//	forecasts, lower, upper, _ := model.PredictWithInterval(30, 0.95)
//
// # Prediction Intervals
//
// Interval width comes from the psi weights of the full differenced model, so
// the band is non-decreasing in the horizon. Prediction reads the fitted state
// only and is safe to call from concurrent goroutines.
//
// # Summary
//
// Summary reports coefficients with standard errors, sigma2, the
// log-likelihood, AIC/AICc/BIC and a Ljung-Box test on the residuals.
// Summary.String renders it as text tables.
package sarima
