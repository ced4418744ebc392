package calibration

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"

	"github.com/mquant/volcal/models"
)

// Economically sane box bounds for (kappa, theta, xi, rho, v0). Candidates
// outside get a +Inf objective, so the optimizer never leaves them.
var hestonBounds = [5][2]float64{
	{0.1, 10.0},
	{0.01, 0.25},
	{0.01, 0.8},
	{-0.99, 0.99},
	{0.01, 0.25},
}

var defaultHestonGuess = models.HestonParams{Kappa: 2.0, Theta: 0.04, Xi: 0.3, Rho: -0.7, V0: 0.04}

// HestonCalibrator fits Heston parameters to a basket of market quotes by
// minimizing the sum of squared relative price errors. Relative errors are
// used because option prices span orders of magnitude across moneyness and
// tenor.
type HestonCalibrator struct {
	Spot    float64
	Rate    float64
	Options []MarketOption

	// Now anchors the time-to-expiry of each quote.
	Now time.Time

	Log *logrus.Logger
}

// NewHestonCalibrator builds a calibrator anchored at the current time.
func NewHestonCalibrator(spot, rate float64, options []MarketOption) *HestonCalibrator {
	return &HestonCalibrator{
		Spot:    spot,
		Rate:    rate,
		Options: options,
		Now:     time.Now(),
		Log:     logrus.StandardLogger(),
	}
}

// Calibrate fits the model, starting from initGuess or a common default when
// nil. Non-convergence surfaces a CalibrationError carrying the best point
// found; the caller decides whether to retry or fall back.
func (c *HestonCalibrator) Calibrate(initGuess *models.HestonParams) (HestonResult, error) {
	if len(c.Options) == 0 {
		return HestonResult{}, models.ErrNoMarketData
	}
	if c.Spot <= 0 {
		return HestonResult{}, &models.PreconditionError{Param: "spot", Reason: "must be positive"}
	}

	guess := defaultHestonGuess
	if initGuess != nil {
		guess = *initGuess
	}

	problem := optimize.Problem{Func: c.objective}
	x0 := []float64{guess.Kappa, guess.Theta, guess.Xi, guess.Rho, guess.V0}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		best, residual := x0, math.Inf(1)
		if result != nil {
			best, residual = result.X, result.F
		}
		return HestonResult{}, &models.CalibrationError{Model: "heston", Best: best, Residual: residual, Err: err}
	}
	if !math.IsInf(result.F, 0) && !math.IsNaN(result.F) && inHestonBounds(result.X) {
		params := models.HestonParams{
			Kappa: result.X[0],
			Theta: result.X[1],
			Xi:    result.X[2],
			Rho:   result.X[3],
			V0:    result.X[4],
		}
		if !params.FellerSatisfied() && c.Log != nil {
			c.Log.Warnf("calibrated heston parameters violate the Feller condition: 2*%.4f*%.4f < %.4f^2",
				params.Kappa, params.Theta, params.Xi)
		}
		return HestonResult{Params: params, Residual: result.F}, nil
	}

	return HestonResult{}, &models.CalibrationError{Model: "heston", Best: result.X, Residual: result.F}
}

func (c *HestonCalibrator) objective(x []float64) float64 {
	if !inHestonBounds(x) {
		return math.Inf(1)
	}

	model := models.HestonModel{Params: models.HestonParams{
		Kappa: x[0],
		Theta: x[1],
		Xi:    x[2],
		Rho:   x[3],
		V0:    x[4],
	}}

	totalError := 0.0
	priced := 0
	for _, opt := range c.Options {
		tau := opt.TimeToExpiry(c.Now)
		if tau <= 0 || opt.Price <= 0 {
			continue
		}
		modelPrice, err := model.PriceEuropean(c.Spot, opt.Strike, tau, c.Rate, opt.IsCall)
		if err != nil {
			return math.Inf(1)
		}
		relErr := (modelPrice - opt.Price) / opt.Price
		totalError += relErr * relErr
		priced++
	}
	if priced == 0 {
		return math.Inf(1)
	}
	return totalError
}

func inHestonBounds(x []float64) bool {
	for i, b := range hestonBounds {
		if x[i] < b[0] || x[i] > b[1] {
			return false
		}
	}
	return true
}
