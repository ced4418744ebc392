package models

import "math"

// JumpDiffusionParams holds the inputs of the BCC97-style jump diffusion
// pricer. Times and rates are annualized.
type JumpDiffusionParams struct {
	Spot           float64
	Strike         float64
	TimeToMaturity float64
	RiskFreeRate   float64
	DividendRate   float64
	Volatility     float64 // Diffusion volatility
	JumpIntensity  float64 // Poisson arrival rate lambda
	JumpMean       float64 // Mean jump size, ln(1+JumpMean) shifts the drift
	JumpVol        float64 // Jump size volatility
}

// Validate checks the hard input ranges.
func (p JumpDiffusionParams) Validate() error {
	if p.Spot <= 0 || p.Strike <= 0 {
		return &PreconditionError{Param: "spot/strike", Reason: "must be positive"}
	}
	if p.TimeToMaturity <= 0 {
		return &PreconditionError{Param: "timeToMaturity", Reason: "must be positive"}
	}
	if p.Volatility <= 0 {
		return &PreconditionError{Param: "volatility", Reason: "must be positive"}
	}
	if p.JumpIntensity < 0 {
		return &PreconditionError{Param: "jumpIntensity", Reason: "must be non-negative"}
	}
	if p.JumpMean <= -1 {
		return &PreconditionError{Param: "jumpMean", Reason: "must be above -1"}
	}
	if p.JumpVol < 0 {
		return &PreconditionError{Param: "jumpVol", Reason: "must be non-negative"}
	}
	return nil
}

// JumpDiffusionModel prices European options in closed form as a
// Black-Scholes term plus a Poisson-weighted sum of jump-adjusted
// Black-Scholes terms.
type JumpDiffusionModel struct {
	Params JumpDiffusionParams

	// MaxJumps truncates the Poisson sum. The default of 10 is a documented
	// accuracy/speed trade-off; the pmf recursion stays stable well past it.
	MaxJumps int
}

const defaultMaxJumps = 10

// NewJumpDiffusionModel validates the parameters and returns a model with the
// default jump truncation.
func NewJumpDiffusionModel(p JumpDiffusionParams) (*JumpDiffusionModel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &JumpDiffusionModel{Params: p, MaxJumps: defaultMaxJumps}, nil
}

// PricingResult bundles a price with its closed-form Greeks.
type PricingResult struct {
	Price float64
	Greeks
}

// PriceAndGreeks computes the option price and Greeks.
//
// The Greeks are the closed-form Black-Scholes derivatives evaluated at the
// base (non-jump-adjusted) parameters; the jump contribution to the Greeks
// has no closed form in this formulation and is intentionally not included.
func (m *JumpDiffusionModel) PriceAndGreeks(isCall bool) (PricingResult, error) {
	p := m.Params
	if err := p.Validate(); err != nil {
		return PricingResult{}, err
	}

	maxJumps := m.MaxJumps
	if maxJumps <= 0 {
		maxJumps = defaultMaxJumps
	}

	bsTerm := BSPrice(p.Spot, p.Strike, p.TimeToMaturity, p.RiskFreeRate, p.DividendRate, p.Volatility, isCall)
	price := bsTerm + m.jumpTerm(isCall, maxJumps)

	result := PricingResult{
		Price:  math.Max(price, 0),
		Greeks: BSGreeks(p.Spot, p.Strike, p.TimeToMaturity, p.RiskFreeRate, p.DividendRate, p.Volatility, isCall),
	}
	return result, nil
}

// jumpTerm sums Black-Scholes terms at jump-adjusted volatility and rate,
// weighted by the Poisson pmf. The pmf is built by the recursion
// w_n = w_{n-1} * lambda*T / n, avoiding factorial overflow.
func (m *JumpDiffusionModel) jumpTerm(isCall bool, maxJumps int) float64 {
	p := m.Params
	lambdaT := p.JumpIntensity * p.TimeToMaturity
	if lambdaT == 0 {
		return 0
	}

	weight := math.Exp(-lambdaT)
	sum := 0.0
	for n := 1; n <= maxJumps; n++ {
		weight *= lambdaT / float64(n)

		adjVol := math.Sqrt(p.Volatility*p.Volatility +
			float64(n)*p.JumpVol*p.JumpVol/p.TimeToMaturity)
		adjRate := p.RiskFreeRate +
			float64(n)*math.Log(1+p.JumpMean)/p.TimeToMaturity

		sum += weight * BSPrice(p.Spot, p.Strike, p.TimeToMaturity, adjRate, p.DividendRate, adjVol, isCall)
	}
	return sum
}
