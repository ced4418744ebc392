package models

import "math"

// SABRParams holds the parameters of the SABR model.
type SABRParams struct {
	Alpha float64 // Initial volatility
	Beta  float64 // CEV exponent
	Rho   float64 // Correlation between forward and volatility
	Nu    float64 // Volatility of volatility
}

// Validate checks the parameter ranges. Values outside these ranges make the
// Hagan expansion produce garbage, so they are rejected up front.
func (p SABRParams) Validate() error {
	if p.Alpha <= 0 {
		return &PreconditionError{Param: "alpha", Reason: "must be positive"}
	}
	if p.Beta < 0 || p.Beta > 1 {
		return &PreconditionError{Param: "beta", Reason: "must be in [0, 1]"}
	}
	if p.Rho < -1 || p.Rho > 1 {
		return &PreconditionError{Param: "rho", Reason: "must be in [-1, 1]"}
	}
	if p.Nu <= 0 {
		return &PreconditionError{Param: "nu", Reason: "must be positive"}
	}
	return nil
}

// SABRModel computes Black implied volatilities from the Hagan asymptotic
// expansion.
type SABRModel struct {
	Params SABRParams
}

// NewSABRModel validates the parameters and returns a model.
func NewSABRModel(p SABRParams) (*SABRModel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &SABRModel{Params: p}, nil
}

// atmEps is the relative moneyness below which the ATM branch is used; the
// general expansion has a removable 0/0 singularity at z -> 0.
const atmEps = 1e-7

// ImpliedVol returns the Hagan-expansion implied volatility for a forward,
// strike and time to maturity. The forward==strike case is special-cased to
// the ATM closed form.
func (m *SABRModel) ImpliedVol(f, k, t float64) (float64, error) {
	if f <= 0 || k <= 0 {
		return 0, &PreconditionError{Param: "forward/strike", Reason: "must be positive"}
	}
	if t <= 0 {
		return 0, &PreconditionError{Param: "timeToMaturity", Reason: "must be positive"}
	}

	alpha := m.Params.Alpha
	beta := m.Params.Beta
	rho := m.Params.Rho
	nu := m.Params.Nu

	if math.Abs(f-k) < atmEps*f {
		return m.atmVol(f, t), nil
	}

	logFK := math.Log(f / k)
	fkPow := math.Pow(f*k, (1-beta)/2)

	// z from the moneyness-weighted midpoint, x(z) via the log formula.
	fMid := (f + k) / 2
	z := (nu / alpha) * math.Pow(fMid, 1-beta) * logFK
	xz := math.Log((math.Sqrt(1-2*rho*z+z*z) + z - rho) / (1 - rho))

	zOverX := 1.0
	if math.Abs(z) > atmEps {
		zOverX = z / xz
	}

	a := alpha / (fkPow * (1 +
		math.Pow(1-beta, 2)/24*logFK*logFK +
		math.Pow(1-beta, 4)/1920*math.Pow(logFK, 4)))

	b := 1 + (math.Pow(1-beta, 2)/24*alpha*alpha/(fkPow*fkPow)+
		0.25*rho*beta*nu*alpha/fkPow+
		(2-3*rho*rho)/24*nu*nu)*t

	return a * zOverX * b, nil
}

// atmVol is the closed-form at-the-money limit of the expansion.
func (m *SABRModel) atmVol(f, t float64) float64 {
	alpha := m.Params.Alpha
	beta := m.Params.Beta
	rho := m.Params.Rho
	nu := m.Params.Nu

	fPow := math.Pow(f, 1-beta)
	b := 1 + (math.Pow(1-beta, 2)/24*alpha*alpha/(fPow*fPow)+
		0.25*rho*beta*nu*alpha/fPow+
		(2-3*rho*rho)/24*nu*nu)*t

	return alpha / fPow * b
}
