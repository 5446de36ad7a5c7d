package stats

import "math"

// InformationCriteria holds likelihood-based model selection scores.
type InformationCriteria struct {
	LogLik float64
	AIC    float64
	AICc   float64 // AIC corrected for small samples
	BIC    float64
}

// GaussianLogLik is the log-likelihood of residuals under N(0, sigma2).
func GaussianLogLik(residuals []float64, sigma2 float64) float64 {
	if sigma2 <= 0 || len(residuals) == 0 {
		return math.Inf(-1)
	}
	n := float64(len(residuals))
	sse := 0.0
	for _, r := range residuals {
		sse += r * r
	}
	return -n/2*math.Log(2*math.Pi) - n/2*math.Log(sigma2) - sse/(2*sigma2)
}

// CalculateIC computes AIC, AICc and BIC for nParams estimated parameters.
func CalculateIC(logLik float64, nObs, nParams int) InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	ic := InformationCriteria{
		LogLik: logLik,
		AIC:    -2*logLik + 2*k,
		BIC:    -2*logLik + k*math.Log(n),
		AICc:   math.Inf(1),
	}
	if n-k-1 > 0 {
		ic.AICc = ic.AIC + 2*k*(k+1)/(n-k-1)
	}
	return ic
}
