package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// NormCDF calculates the cumulative distribution function of the standard normal distribution
func NormCDF(x float64) float64 {
	return stdNormal.CDF(x)
}

// NormPDF calculates the probability density function of the standard normal distribution
func NormPDF(x float64) float64 {
	return stdNormal.Prob(x)
}

// D1D2 returns the Black-Scholes d1 and d2 terms with a continuous dividend yield q.
func D1D2(s, k, t, r, q, sigma float64) (float64, float64) {
	sigmaSqrtT := sigma * math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / sigmaSqrtT
	return d1, d1 - sigmaSqrtT
}

// BSPrice returns the Black-Scholes price of a European option.
func BSPrice(s, k, t, r, q, sigma float64, isCall bool) float64 {
	d1, d2 := D1D2(s, k, t, r, q, sigma)
	if isCall {
		return s*math.Exp(-q*t)*NormCDF(d1) - k*math.Exp(-r*t)*NormCDF(d2)
	}
	return k*math.Exp(-r*t)*NormCDF(-d2) - s*math.Exp(-q*t)*NormCDF(-d1)
}

// Greeks holds closed-form option sensitivities.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BSGreeks calculates the closed-form Black-Scholes Greeks.
func BSGreeks(s, k, t, r, q, sigma float64, isCall bool) Greeks {
	d1, d2 := D1D2(s, k, t, r, q, sigma)
	expQt := math.Exp(-q * t)
	expRt := math.Exp(-r * t)
	sqrtT := math.Sqrt(t)

	var delta, theta, rho float64
	if isCall {
		delta = expQt * NormCDF(d1)
		theta = -expQt*s*NormPDF(d1)*sigma/(2*sqrtT) +
			q*s*expQt*NormCDF(d1) -
			r*k*expRt*NormCDF(d2)
		rho = k * t * expRt * NormCDF(d2)
	} else {
		delta = expQt * (NormCDF(d1) - 1)
		theta = -expQt*s*NormPDF(d1)*sigma/(2*sqrtT) -
			q*s*expQt*NormCDF(-d1) +
			r*k*expRt*NormCDF(-d2)
		rho = -k * t * expRt * NormCDF(-d2)
	}

	return Greeks{
		Delta: delta,
		Gamma: expQt * NormPDF(d1) / (s * sigma * sqrtT),
		Theta: theta,
		Vega:  s * expQt * NormPDF(d1) * sqrtT,
		Rho:   rho,
	}
}

// ImpliedVolBS backs the Black-Scholes implied volatility out of an observed
// price using Newton-Raphson on vega.
func ImpliedVolBS(price, s, k, t, r, q float64, isCall bool) (float64, error) {
	if price <= 0 {
		return 0, &PreconditionError{Param: "price", Reason: "must be positive"}
	}
	if s <= 0 || k <= 0 || t <= 0 {
		return 0, &PreconditionError{Param: "spot/strike/time", Reason: "must be positive"}
	}

	// Brenner-Subrahmanyam starting point.
	v := math.Sqrt(2*math.Pi/t) * price / s
	if v < 1e-4 {
		v = 1e-4
	}

	for i := 0; i < 100; i++ {
		theo := BSPrice(s, k, t, r, q, v, isCall)
		diff := theo - price
		if math.Abs(diff) < 1e-10 {
			return v, nil
		}
		vega := s * math.Exp(-q*t) * NormPDF(firstD1(s, k, t, r, q, v)) * math.Sqrt(t)
		if vega < 1e-12 {
			break
		}
		v -= diff / vega
		if v <= 1e-6 {
			v = 1e-6
		}
	}

	theo := BSPrice(s, k, t, r, q, v, isCall)
	if math.Abs(theo-price) < 1e-6*price {
		return v, nil
	}
	return 0, &NumericalError{Op: "implied vol", Detail: "Newton-Raphson did not converge"}
}

func firstD1(s, k, t, r, q, sigma float64) float64 {
	d1, _ := D1D2(s, k, t, r, q, sigma)
	return d1
}
