package calibration

import (
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/mquant/volcal/models"
)

// Box bounds for (alpha, beta, rho, nu).
var sabrBounds = [4][2]float64{
	{0.01, 1.0},
	{0.01, 1.0},
	{-0.99, 0.99},
	{0.01, 1.0},
}

var defaultSABRGuess = models.SABRParams{Alpha: 0.2, Beta: 0.5, Rho: -0.3, Nu: 0.4}

// SABRCalibrator fits SABR parameters to market implied volatilities by
// minimizing the sum of squared relative vol errors. Quotes without an
// implied vol fall back to a Black-Scholes backout from the observed price;
// quotes with neither are skipped.
type SABRCalibrator struct {
	Forward float64
	Rate    float64
	Options []MarketOption
	Now     time.Time
}

// NewSABRCalibrator builds a calibrator anchored at the current time.
func NewSABRCalibrator(forward, rate float64, options []MarketOption) *SABRCalibrator {
	return &SABRCalibrator{
		Forward: forward,
		Rate:    rate,
		Options: options,
		Now:     time.Now(),
	}
}

// Calibrate fits the model, starting from initGuess or a common default when
// nil.
func (c *SABRCalibrator) Calibrate(initGuess *models.SABRParams) (SABRResult, error) {
	if len(c.Options) == 0 {
		return SABRResult{}, models.ErrNoMarketData
	}
	if c.Forward <= 0 {
		return SABRResult{}, &models.PreconditionError{Param: "forward", Reason: "must be positive"}
	}

	targets := c.targetVols()
	if len(targets) == 0 {
		return SABRResult{}, models.ErrNoMarketData
	}

	guess := defaultSABRGuess
	if initGuess != nil {
		guess = *initGuess
	}

	problem := optimize.Problem{Func: func(x []float64) float64 { return c.objective(x, targets) }}
	x0 := []float64{guess.Alpha, guess.Beta, guess.Rho, guess.Nu}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		best, residual := x0, math.Inf(1)
		if result != nil {
			best, residual = result.X, result.F
		}
		return SABRResult{}, &models.CalibrationError{Model: "sabr", Best: best, Residual: residual, Err: err}
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) || !inSABRBounds(result.X) {
		return SABRResult{}, &models.CalibrationError{Model: "sabr", Best: result.X, Residual: result.F}
	}

	params := models.SABRParams{Alpha: result.X[0], Beta: result.X[1], Rho: result.X[2], Nu: result.X[3]}
	return SABRResult{Params: params, Residual: result.F}, nil
}

// volTarget is one usable calibration point: strike, year fraction, implied vol.
type volTarget struct {
	strike float64
	tau    float64
	vol    float64
}

func (c *SABRCalibrator) targetVols() []volTarget {
	var targets []volTarget
	for _, opt := range c.Options {
		tau := opt.TimeToExpiry(c.Now)
		if tau <= 0 {
			continue
		}

		vol := opt.ImpliedVol
		if vol <= 0 && opt.Price > 0 {
			// Undiscounted Black on the forward recovers the quote's vol.
			backout, err := models.ImpliedVolBS(opt.Price, c.Forward, opt.Strike, tau, 0, 0, opt.IsCall)
			if err != nil {
				continue
			}
			vol = backout
		}
		if vol <= 0 {
			continue
		}
		targets = append(targets, volTarget{strike: opt.Strike, tau: tau, vol: vol})
	}
	return targets
}

func (c *SABRCalibrator) objective(x []float64, targets []volTarget) float64 {
	if !inSABRBounds(x) {
		return math.Inf(1)
	}

	model := models.SABRModel{Params: models.SABRParams{Alpha: x[0], Beta: x[1], Rho: x[2], Nu: x[3]}}

	totalError := 0.0
	for _, tgt := range targets {
		modelVol, err := model.ImpliedVol(c.Forward, tgt.strike, tgt.tau)
		if err != nil {
			return math.Inf(1)
		}
		relErr := (modelVol - tgt.vol) / tgt.vol
		totalError += relErr * relErr
	}
	return totalError
}

func inSABRBounds(x []float64) bool {
	for i, b := range sabrBounds {
		if x[i] < b[0] || x[i] > b[1] {
			return false
		}
	}
	return true
}
