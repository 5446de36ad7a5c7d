// Package arima provides non-seasonal ARIMA(p,d,q) models.
//
// An ARIMA model is a SARIMA model with no seasonal terms; it shares the
// sarima estimator, psi-weight prediction intervals and summary.
//
//	model := arima.New(1, 1, 1)
//	if err := model.Fit(closes); err != nil {
//	    return err // *arima.FitError when the data are too short or the fit diverges
//	}
//	point, lower, upper, _ := model.PredictWithInterval(30, 0.95)
//
// Compare fitted models by AICc, lower is better; the evaluate package
// instead ranks candidates by hold-out RMSE.
package arima
