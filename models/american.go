package models

import (
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// AmericanOptionParams holds the inputs of the LSM pricer. It is a value
// struct: Greeks work on perturbed copies, never by aliasing the original.
type AmericanOptionParams struct {
	Spot           float64
	Strike         float64
	TimeToMaturity float64
	RiskFreeRate   float64
	Volatility     float64
	DividendRate   float64
	IsCall         bool
}

// Validate checks the hard input ranges.
func (p AmericanOptionParams) Validate() error {
	if p.Spot <= 0 || p.Strike <= 0 {
		return &PreconditionError{Param: "spot/strike", Reason: "must be positive"}
	}
	if p.TimeToMaturity <= 0 {
		return &PreconditionError{Param: "timeToMaturity", Reason: "must be positive"}
	}
	if p.Volatility <= 0 {
		return &PreconditionError{Param: "volatility", Reason: "must be positive"}
	}
	return nil
}

func (p AmericanOptionParams) intrinsic(s float64) float64 {
	if p.IsCall {
		return math.Max(s-p.Strike, 0)
	}
	return math.Max(p.Strike-s, 0)
}

// LSMPricer prices American options by Least-Squares Monte Carlo: simulate
// lognormal paths, then induct backward regressing discounted continuation
// values on a polynomial basis over the in-the-money paths.
type LSMPricer struct {
	NumSteps int
	NumPaths int
	NumBasis int // Polynomial basis degree

	// Seed makes the path simulation reproducible for a fixed worker count.
	Seed uint64

	// Workers for the path simulation; defaults to GOMAXPROCS.
	Workers int
}

// NewLSMPricer rejects non-positive step, path and basis counts.
func NewLSMPricer(numSteps, numPaths, numBasis int, seed uint64) (*LSMPricer, error) {
	if numSteps <= 0 {
		return nil, &PreconditionError{Param: "numSteps", Reason: "must be positive"}
	}
	if numPaths <= 0 {
		return nil, &PreconditionError{Param: "numPaths", Reason: "must be positive"}
	}
	if numBasis <= 0 {
		return nil, &PreconditionError{Param: "numBasis", Reason: "must be positive"}
	}
	return &LSMPricer{NumSteps: numSteps, NumPaths: numPaths, NumBasis: numBasis, Seed: seed}, nil
}

// SimulatePaths generates a (NumSteps+1) x NumPaths price grid under the
// risk-neutral lognormal SDE with dividend yield. Paths are split across
// workers, each with its own seeded RNG.
func (p *LSMPricer) SimulatePaths(params AmericanOptionParams) [][]float64 {
	dt := params.TimeToMaturity / float64(p.NumSteps)
	drift := (params.RiskFreeRate - params.DividendRate - 0.5*params.Volatility*params.Volatility) * dt
	volSqrtDt := params.Volatility * math.Sqrt(dt)

	grid := make([][]float64, p.NumSteps+1)
	for t := range grid {
		grid[t] = make([]float64, p.NumPaths)
	}
	for j := 0; j < p.NumPaths; j++ {
		grid[0][j] = params.Spot
	}

	numWorkers := p.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > p.NumPaths {
		numWorkers = p.NumPaths
	}
	chunk := (p.NumPaths + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunk
		end := start + chunk
		if end > p.NumPaths {
			end = p.NumPaths
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(p.Seed + uint64(worker)))
			for j := start; j < end; j++ {
				s := params.Spot
				for t := 1; t <= p.NumSteps; t++ {
					s *= math.Exp(drift + volSqrtDt*rng.NormFloat64())
					grid[t][j] = s
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	return grid
}

// Price runs the full simulate / backward-induct / report pipeline and
// returns the time-0 option value, floored at intrinsic value and zero.
func (p *LSMPricer) Price(params AmericanOptionParams) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	if p.NumSteps <= 0 || p.NumPaths <= 0 || p.NumBasis <= 0 {
		return 0, &PreconditionError{Param: "numSteps/numPaths/numBasis", Reason: "must be positive"}
	}

	grid := p.SimulatePaths(params)
	dt := params.TimeToMaturity / float64(p.NumSteps)
	df := math.Exp(-params.RiskFreeRate * dt)

	// Path values, starting from intrinsic payoff at maturity.
	value := make([]float64, p.NumPaths)
	for j := 0; j < p.NumPaths; j++ {
		value[j] = params.intrinsic(grid[p.NumSteps][j])
	}

	for t := p.NumSteps - 1; t >= 1; t-- {
		var itm []int
		for j := 0; j < p.NumPaths; j++ {
			if params.intrinsic(grid[t][j]) > 0 {
				itm = append(itm, j)
			}
		}

		// Out-of-the-money paths carry discounted future value unchanged;
		// with no in-the-money paths there is nothing to regress.
		continuation := p.fitContinuation(grid[t], value, itm, df)

		for j := 0; j < p.NumPaths; j++ {
			value[j] *= df
		}
		for i, j := range itm {
			if exercise := params.intrinsic(grid[t][j]); continuation != nil && exercise > continuation[i] {
				value[j] = exercise
			}
		}
	}

	sum := 0.0
	for j := 0; j < p.NumPaths; j++ {
		sum += value[j]
	}
	price := df * sum / float64(p.NumPaths)

	price = math.Max(price, params.intrinsic(params.Spot))
	return math.Max(price, 0), nil
}

// fitContinuation regresses discounted next-step values on powers of the
// current spot over the in-the-money paths and returns the fitted
// continuation values. A singular basis matrix falls back to the SVD
// minimum-norm solution; it is a local degeneracy, not an error.
func (p *LSMPricer) fitContinuation(spots, value []float64, itm []int, df float64) []float64 {
	if len(itm) == 0 {
		return nil
	}

	cols := p.NumBasis + 1
	a := mat.NewDense(len(itm), cols, nil)
	b := mat.NewVecDense(len(itm), nil)
	for i, j := range itm {
		basis := 1.0
		for c := 0; c < cols; c++ {
			a.Set(i, c, basis)
			basis *= spots[j]
		}
		b.SetVec(i, df*value[j])
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil
	}
	rank := svd.Rank(1e-15)
	if rank == 0 {
		return nil
	}

	coef := mat.NewVecDense(cols, nil)
	svd.SolveVecTo(coef, b, rank)

	fitted := make([]float64, len(itm))
	for i, j := range itm {
		basis := 1.0
		v := 0.0
		for c := 0; c < cols; c++ {
			v += coef.AtVec(c) * basis
			basis *= spots[j]
		}
		fitted[i] = v
	}
	return fitted
}

// AmericanResult bundles the LSM price with finite-difference Greeks.
type AmericanResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// PriceAndGreeks prices the option and estimates delta, gamma, theta and vega
// by re-running the whole pipeline on perturbed copies of the parameters
// (spot +-1%, time -1 day, volatility +-0.1%). That is roughly 5-9x the cost
// of a single Price call; callers needing cheap Greeks should use pathwise
// estimators instead.
func (p *LSMPricer) PriceAndGreeks(params AmericanOptionParams) (AmericanResult, error) {
	price, err := p.Price(params)
	if err != nil {
		return AmericanResult{}, err
	}

	delta, err := p.delta(params)
	if err != nil {
		return AmericanResult{}, err
	}
	gamma, err := p.gamma(params)
	if err != nil {
		return AmericanResult{}, err
	}
	theta, err := p.theta(params, price)
	if err != nil {
		return AmericanResult{}, err
	}
	vega, err := p.vega(params)
	if err != nil {
		return AmericanResult{}, err
	}

	return AmericanResult{Price: price, Delta: delta, Gamma: gamma, Theta: theta, Vega: vega}, nil
}

func (p *LSMPricer) delta(params AmericanOptionParams) (float64, error) {
	const eps = 0.01

	up := params
	up.Spot *= 1 + eps
	down := params
	down.Spot *= 1 - eps

	priceUp, err := p.Price(up)
	if err != nil {
		return 0, err
	}
	priceDown, err := p.Price(down)
	if err != nil {
		return 0, err
	}
	return (priceUp - priceDown) / (2 * eps * params.Spot), nil
}

func (p *LSMPricer) gamma(params AmericanOptionParams) (float64, error) {
	const eps = 0.01

	up := params
	up.Spot *= 1 + eps
	down := params
	down.Spot *= 1 - eps

	deltaUp, err := p.delta(up)
	if err != nil {
		return 0, err
	}
	deltaDown, err := p.delta(down)
	if err != nil {
		return 0, err
	}
	return (deltaUp - deltaDown) / (2 * eps * params.Spot), nil
}

func (p *LSMPricer) theta(params AmericanOptionParams, basePrice float64) (float64, error) {
	eps := 1.0 / 365
	if params.TimeToMaturity <= eps {
		eps = params.TimeToMaturity / 2
	}

	down := params
	down.TimeToMaturity -= eps

	priceDown, err := p.Price(down)
	if err != nil {
		return 0, err
	}
	return -(basePrice - priceDown) / eps, nil
}

func (p *LSMPricer) vega(params AmericanOptionParams) (float64, error) {
	const eps = 0.001

	up := params
	up.Volatility += eps
	down := params
	down.Volatility -= eps

	priceUp, err := p.Price(up)
	if err != nil {
		return 0, err
	}
	priceDown, err := p.Price(down)
	if err != nil {
		return 0, err
	}
	return (priceUp - priceDown) / (2 * eps), nil
}
