package models

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// VolPoint is one observed implied volatility at a strike and time to expiry
// (in years).
type VolPoint struct {
	Strike float64
	Tau    float64
	Vol    float64
}

// VolSurface interpolates implied volatility across strikes and expiries from
// scattered market points.
type VolSurface struct {
	Spot   float64
	Points []VolPoint
}

// NewVolSurface returns an empty surface anchored at a spot price.
func NewVolSurface(spot float64) *VolSurface {
	return &VolSurface{Spot: spot}
}

// Add records a market implied volatility point.
func (s *VolSurface) Add(strike, tau, vol float64) {
	s.Points = append(s.Points, VolPoint{Strike: strike, Tau: tau, Vol: vol})
}

// Vol interpolates the volatility at a strike and time to expiry using
// inverse-distance weighting over the four nearest points in
// (moneyness, tau) space.
func (s *VolSurface) Vol(strike, tau float64) (float64, error) {
	if len(s.Points) == 0 {
		return 0, ErrNoMarketData
	}
	if s.Spot <= 0 || strike <= 0 {
		return 0, &PreconditionError{Param: "spot/strike", Reason: "must be positive"}
	}

	moneyness := strike / s.Spot
	dist := make([]float64, len(s.Points))
	order := make([]int, len(s.Points))
	for i, pt := range s.Points {
		dist[i] = math.Abs(pt.Strike/s.Spot-moneyness) + math.Abs(pt.Tau-tau)
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return dist[order[i]] < dist[order[j]] })

	n := len(order)
	if n > 4 {
		n = 4
	}

	totalWeight := 0.0
	weightedVol := 0.0
	for _, i := range order[:n] {
		w := 1 / (dist[i] + 1e-6)
		totalWeight += w
		weightedVol += w * s.Points[i].Vol
	}
	return weightedVol / totalWeight, nil
}

// LogReturns computes log returns from a price series.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns
}

// HistoricalVolatility returns the annualized standard deviation of a daily
// return series, assuming 252 trading days.
func HistoricalVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return math.Sqrt(stat.Variance(returns, nil) * 252)
}
