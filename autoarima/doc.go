// Package autoarima suggests ARIMA and SARIMA orders for a series.
//
// The differencing order d comes from repeated stationarity tests (KPSS by
// default), the seasonal order D from the seasonal strength rule, and (p, q, P, Q)
// from a Hyndman-Khandakar style stepwise search that fits each round of
// neighbouring orders, Config.Parallelism at a time, and keeps the lowest
// information criterion.
//
//	cfg := autoarima.DefaultConfig()
//	cfg.M = 5 // business days, weekly cycle
//	s, err := autoarima.Suggest(ctx, closes, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%s AICc=%.2f\n", s.Order, s.Score)
package autoarima
