package stats

// PolyMul multiplies two lag polynomials given by their coefficients in
// increasing powers of B.
func PolyMul(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// DifferencingPolynomial returns (1-B)^d (1-B^m)^D.
func DifferencingPolynomial(d, seasonalD, m int) []float64 {
	poly := []float64{1}
	for i := 0; i < d; i++ {
		poly = PolyMul(poly, []float64{1, -1})
	}
	if m > 0 {
		seasonal := make([]float64, m+1)
		seasonal[0], seasonal[m] = 1, -1
		for i := 0; i < seasonalD; i++ {
			poly = PolyMul(poly, seasonal)
		}
	}
	return poly
}

// PsiWeights returns the first n weights of the MA(∞) form of
// ar(B) y_t = ma(B) e_t, where ar and ma include the leading 1
// (ar = 1 - phi_1 B - ..., ma = 1 + theta_1 B + ...).
func PsiWeights(ar, ma []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j < len(ma) {
			v = ma[j]
		}
		for i := 1; i < len(ar) && i <= j; i++ {
			v -= ar[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// ForecastVariance returns the h-step forecast error variances
// sigma2 * sum_{j<h} psi_j^2 for h = 1..len(psi). The result is non-decreasing.
func ForecastVariance(psi []float64, sigma2 float64) []float64 {
	out := make([]float64, len(psi))
	acc := 0.0
	for h, w := range psi {
		acc += w * w
		out[h] = sigma2 * acc
	}
	return out
}
