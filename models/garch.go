package models

import (
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// GARCH11 is a GARCH(1,1) conditional variance model:
//
//	v_t = omega + alpha*r_{t-1}^2 + beta*v_{t-1}
//
// Fit re-estimates the parameters in place from a return series; the model is
// then used for forecasting until refit. All other operations are read-only.
type GARCH11 struct {
	Omega float64
	Alpha float64
	Beta  float64
}

const garchEps = 1e-12

// NewGARCH11 constructs a model, requiring alpha+beta < 1 for stationarity.
func NewGARCH11(omega, alpha, beta float64) (*GARCH11, error) {
	g := &GARCH11{Omega: omega, Alpha: alpha, Beta: beta}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GARCH11) validate() error {
	if g.Omega <= 0 {
		return &PreconditionError{Param: "omega", Reason: "must be positive"}
	}
	if g.Alpha <= 0 {
		return &PreconditionError{Param: "alpha", Reason: "must be positive"}
	}
	if g.Beta <= 0 {
		return &PreconditionError{Param: "beta", Reason: "must be positive"}
	}
	if g.Alpha+g.Beta >= 1 {
		return &PreconditionError{Param: "alpha+beta", Reason: "must be below 1 for stationarity"}
	}
	return nil
}

// LongRunVariance returns omega / (1 - alpha - beta), the unconditional
// variance the recursion mean-reverts to.
func (g *GARCH11) LongRunVariance() float64 {
	return g.Omega / (1 - g.Alpha - g.Beta)
}

// NegLogLikelihood computes the negative Gaussian log-likelihood of the
// return series under the variance recursion, with v_0 set to the sample
// variance.
func (g *GARCH11) NegLogLikelihood(returns []float64) float64 {
	variance := stat.Variance(returns, nil)
	if variance <= 0 {
		return math.Inf(1)
	}

	nll := 0.0
	for t := 1; t < len(returns); t++ {
		variance = g.Omega + g.Alpha*returns[t-1]*returns[t-1] + g.Beta*variance
		if variance <= 0 {
			return math.Inf(1)
		}
		nll += 0.5 * (math.Log(variance) + returns[t]*returns[t]/variance)
	}
	return nll
}

// Fit estimates (omega, alpha, beta) by maximum likelihood. Candidate points
// outside (eps, 1) or with alpha+beta >= 1 get a +Inf objective, so the
// optimizer never leaves the stationary region. On non-convergence the model
// is left untouched and a CalibrationError carrying the best point found is
// returned.
func (g *GARCH11) Fit(returns []float64) error {
	if len(returns) < 10 {
		return &PreconditionError{Param: "returns", Reason: "need at least 10 observations"}
	}

	sampleVar := stat.Variance(returns, nil)
	if sampleVar <= 0 {
		return &PreconditionError{Param: "returns", Reason: "series has zero variance"}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			omega, alpha, beta := x[0], x[1], x[2]
			if omega <= garchEps || omega >= 1 ||
				alpha <= garchEps || alpha >= 1 ||
				beta <= garchEps || beta >= 1 ||
				alpha+beta >= 1 {
				return math.Inf(1)
			}
			cand := GARCH11{Omega: omega, Alpha: alpha, Beta: beta}
			return cand.NegLogLikelihood(returns)
		},
	}

	initGuess := []float64{0.1 * sampleVar, 0.1, 0.8}
	result, err := optimize.Minimize(problem, initGuess, nil, &optimize.NelderMead{})
	if err != nil {
		best := initGuess
		residual := math.Inf(1)
		if result != nil {
			best = result.X
			residual = result.F
		}
		return &CalibrationError{Model: "garch", Best: best, Residual: residual, Err: err}
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return &CalibrationError{Model: "garch", Best: result.X, Residual: result.F}
	}

	fitted := GARCH11{Omega: result.X[0], Alpha: result.X[1], Beta: result.X[2]}
	if err := fitted.validate(); err != nil {
		return &CalibrationError{Model: "garch", Best: result.X, Residual: result.F, Err: err}
	}

	*g = fitted
	return nil
}

// ForecastVariance forecasts the conditional variance. horizon 1 is the
// recursion itself; longer horizons iterate the mean-reverting recursion
// toward LongRunVariance.
func (g *GARCH11) ForecastVariance(currentVar, lastReturn float64, horizon int) (float64, error) {
	if horizon < 1 {
		return 0, &PreconditionError{Param: "horizon", Reason: "must be at least 1"}
	}
	if currentVar < 0 {
		return 0, &PreconditionError{Param: "currentVar", Reason: "must be non-negative"}
	}

	forecast := g.Omega + g.Alpha*lastReturn*lastReturn + g.Beta*currentVar
	for i := 1; i < horizon; i++ {
		forecast = g.Omega + (g.Alpha+g.Beta)*forecast
	}
	return forecast, nil
}
