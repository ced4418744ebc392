package models

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/integrate/quad"
)

// HestonParams holds the parameters of the Heston stochastic volatility model.
type HestonParams struct {
	Kappa float64 // Mean reversion speed of variance
	Theta float64 // Long-run variance
	Xi    float64 // Volatility of variance
	Rho   float64 // Correlation between asset returns and variance
	V0    float64 // Initial variance
}

// Validate checks the hard parameter ranges. The Feller condition is not a
// hard range; see FellerSatisfied.
func (p HestonParams) Validate() error {
	if p.Kappa <= 0 {
		return &PreconditionError{Param: "kappa", Reason: "must be positive"}
	}
	if p.Theta <= 0 {
		return &PreconditionError{Param: "theta", Reason: "must be positive"}
	}
	if p.Xi <= 0 {
		return &PreconditionError{Param: "xi", Reason: "must be positive"}
	}
	if p.Rho < -1 || p.Rho > 1 {
		return &PreconditionError{Param: "rho", Reason: "must be in [-1, 1]"}
	}
	if p.V0 <= 0 {
		return &PreconditionError{Param: "v0", Reason: "must be positive"}
	}
	return nil
}

// FellerSatisfied reports whether 2*kappa*theta >= xi^2. A violation means the
// variance process can reach zero; the model stays usable but may misbehave
// numerically.
func (p HestonParams) FellerSatisfied() bool {
	return 2*p.Kappa*p.Theta >= p.Xi*p.Xi
}

// HestonModel prices European options semi-analytically from the model's
// characteristic function.
type HestonModel struct {
	Params HestonParams

	// IntegrationBound truncates the (0, inf) pricing integral. The default of
	// 100 trades accuracy for speed and is adequate away from extreme
	// parameter corners; raise it for very short maturities.
	IntegrationBound float64

	// IntegrationPoints is the Gauss-Legendre point count. Default 100.
	IntegrationPoints int
}

const (
	defaultHestonBound  = 100.0
	defaultHestonPoints = 100
)

// NewHestonModel validates the parameters and returns a model with default
// integration settings.
func NewHestonModel(p HestonParams) (*HestonModel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &HestonModel{
		Params:            p,
		IntegrationBound:  defaultHestonBound,
		IntegrationPoints: defaultHestonPoints,
	}, nil
}

// characteristicFunction evaluates phi(u) = E[exp(iu ln S_T)] using the
// "little trap" branch of d and g, which stays continuous in u at long
// maturities.
func (h *HestonModel) characteristicFunction(u complex128, tau, x, r float64) complex128 {
	kappa := complex(h.Params.Kappa, 0)
	theta := complex(h.Params.Theta, 0)
	xi := complex(h.Params.Xi, 0)
	rho := complex(h.Params.Rho, 0)
	v0 := complex(h.Params.V0, 0)
	iu := 1i * u

	beta := kappa - rho*xi*iu
	d := cmplx.Sqrt(beta*beta + xi*xi*(iu+u*u))
	g := (beta - d) / (beta + d)

	expDT := cmplx.Exp(-d * complex(tau, 0))
	c := complex(r*tau, 0)*iu +
		kappa*theta/(xi*xi)*((beta-d)*complex(tau, 0)-
			2*cmplx.Log((1-g*expDT)/(1-g)))
	dTerm := (beta - d) / (xi * xi) * (1 - expDT) / (1 - g*expDT)

	return cmplx.Exp(c + dTerm*v0 + iu*complex(x, 0))
}

// PriceEuropean prices a European option by quadrature over the two
// in-the-money probabilities:
//
//	Pj = 1/2 + (1/pi) * Int_0^inf Re[exp(-iu ln K) fj(u) / (iu)] du
//
// with f2(u) = phi(u) and f1(u) = phi(u-i)/phi(-i). A non-finite quadrature
// result is surfaced as a NumericalError, never returned as a silent zero.
// The price is floored at zero and at discounted intrinsic value.
func (h *HestonModel) PriceEuropean(s0, k, t, r float64, isCall bool) (float64, error) {
	if s0 <= 0 || k <= 0 {
		return 0, &PreconditionError{Param: "spot/strike", Reason: "must be positive"}
	}
	if t <= 0 {
		return 0, &PreconditionError{Param: "timeToMaturity", Reason: "must be positive"}
	}

	bound := h.IntegrationBound
	if bound <= 0 {
		bound = defaultHestonBound
	}
	points := h.IntegrationPoints
	if points <= 0 {
		points = defaultHestonPoints
	}

	x := math.Log(s0)
	lnK := math.Log(k)
	phiMinusI := h.characteristicFunction(complex(0, -1), t, x, r)

	p1 := h.probability(func(u float64) complex128 {
		return h.characteristicFunction(complex(u, -1), t, x, r) / phiMinusI
	}, lnK, bound, points)
	p2 := h.probability(func(u float64) complex128 {
		return h.characteristicFunction(complex(u, 0), t, x, r)
	}, lnK, bound, points)

	if math.IsNaN(p1) || math.IsInf(p1, 0) || math.IsNaN(p2) || math.IsInf(p2, 0) {
		return 0, &NumericalError{Op: "heston integration", Detail: "quadrature produced a non-finite probability"}
	}

	df := math.Exp(-r * t)
	var price, intrinsic float64
	if isCall {
		price = s0*p1 - k*df*p2
		intrinsic = s0 - k*df
	} else {
		price = k*df*(1-p2) - s0*(1-p1)
		intrinsic = k*df - s0
	}

	price = math.Max(price, 0)
	price = math.Max(price, intrinsic)
	return price, nil
}

func (h *HestonModel) probability(f func(u float64) complex128, lnK, bound float64, points int) float64 {
	integral := quad.Fixed(func(u float64) float64 {
		v := cmplx.Exp(complex(0, -u*lnK)) * f(u) / complex(0, u)
		return real(v)
	}, 0, bound, points, nil, 0)
	return 0.5 + integral/math.Pi
}
