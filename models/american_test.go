package models

import (
	"math"
	"testing"
)

// An American put must price strictly above the European put under identical
// parameters: the early-exercise premium is non-negative and, for an ITM put
// with positive rates, material.
func TestAmericanPutAboveEuropean(t *testing.T) {
	params := AmericanOptionParams{
		Spot:           100,
		Strike:         110,
		TimeToMaturity: 1,
		RiskFreeRate:   0.05,
		Volatility:     0.3,
		IsCall:         false,
	}

	pricer, err := NewLSMPricer(50, 20000, 10, 7)
	if err != nil {
		t.Fatal(err)
	}

	price, err := pricer.Price(params)
	if err != nil {
		t.Fatal(err)
	}

	euPut := BSPrice(params.Spot, params.Strike, params.TimeToMaturity,
		params.RiskFreeRate, 0, params.Volatility, false)
	if price <= euPut {
		t.Errorf("american put %v not above european %v", price, euPut)
	}
	if price < params.Strike-params.Spot {
		t.Errorf("price %v below intrinsic %v", price, params.Strike-params.Spot)
	}
}

func TestLSMDeepITMPutNearIntrinsic(t *testing.T) {
	params := AmericanOptionParams{
		Spot:           50,
		Strike:         110,
		TimeToMaturity: 0.1,
		RiskFreeRate:   0.05,
		Volatility:     0.2,
		IsCall:         false,
	}

	pricer, err := NewLSMPricer(20, 5000, 5, 11)
	if err != nil {
		t.Fatal(err)
	}

	price, err := pricer.Price(params)
	if err != nil {
		t.Fatal(err)
	}

	intrinsic := params.Strike - params.Spot
	if price < intrinsic {
		t.Errorf("price %v below intrinsic %v", price, intrinsic)
	}
	if price > intrinsic*1.05 {
		t.Errorf("deep ITM short-dated put %v too far above intrinsic %v", price, intrinsic)
	}
}

// The call with zero dividends never exercises early, so LSM should land near
// the European value.
func TestLSMNoDividendCallNearEuropean(t *testing.T) {
	params := AmericanOptionParams{
		Spot:           100,
		Strike:         100,
		TimeToMaturity: 0.5,
		RiskFreeRate:   0.03,
		Volatility:     0.2,
		IsCall:         true,
	}

	pricer, err := NewLSMPricer(50, 20000, 10, 3)
	if err != nil {
		t.Fatal(err)
	}

	price, err := pricer.Price(params)
	if err != nil {
		t.Fatal(err)
	}

	euCall := BSPrice(params.Spot, params.Strike, params.TimeToMaturity,
		params.RiskFreeRate, 0, params.Volatility, true)
	if math.Abs(price-euCall)/euCall > 0.05 {
		t.Errorf("no-dividend american call %v too far from european %v", price, euCall)
	}
}

func TestLSMGreeksSigns(t *testing.T) {
	params := AmericanOptionParams{
		Spot:           100,
		Strike:         105,
		TimeToMaturity: 0.5,
		RiskFreeRate:   0.05,
		Volatility:     0.25,
		IsCall:         false,
	}

	pricer, err := NewLSMPricer(25, 4000, 5, 99)
	if err != nil {
		t.Fatal(err)
	}

	result, err := pricer.PriceAndGreeks(params)
	if err != nil {
		t.Fatal(err)
	}

	if result.Price <= 0 {
		t.Fatalf("non-positive price: %v", result.Price)
	}
	if result.Delta >= 0 || result.Delta <= -1 {
		t.Errorf("put delta out of (-1,0): %v", result.Delta)
	}
	if result.Vega <= 0 {
		t.Errorf("put vega not positive: %v", result.Vega)
	}
}

func TestLSMSimulatePathsShape(t *testing.T) {
	params := AmericanOptionParams{
		Spot:           100,
		Strike:         100,
		TimeToMaturity: 1,
		RiskFreeRate:   0.02,
		Volatility:     0.2,
	}

	pricer, err := NewLSMPricer(10, 500, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	grid := pricer.SimulatePaths(params)
	if len(grid) != 11 {
		t.Fatalf("expected 11 time rows, got %d", len(grid))
	}
	for tIdx, row := range grid {
		if len(row) != 500 {
			t.Fatalf("row %d has %d paths", tIdx, len(row))
		}
		for _, s := range row {
			if s <= 0 || math.IsNaN(s) {
				t.Fatalf("bad simulated price at t=%d: %v", tIdx, s)
			}
		}
	}
	for _, s := range grid[0] {
		if s != params.Spot {
			t.Fatalf("time-0 price %v != spot", s)
		}
	}
}

func TestNewLSMPricerRejectsBadCounts(t *testing.T) {
	if _, err := NewLSMPricer(0, 1000, 5, 1); err == nil {
		t.Error("expected error for zero steps")
	}
	if _, err := NewLSMPricer(50, -1, 5, 1); err == nil {
		t.Error("expected error for negative paths")
	}
	if _, err := NewLSMPricer(50, 1000, 0, 1); err == nil {
		t.Error("expected error for zero basis")
	}
}

func TestLSMRejectsBadParams(t *testing.T) {
	pricer, err := NewLSMPricer(10, 100, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pricer.Price(AmericanOptionParams{Spot: 100, Strike: 100, TimeToMaturity: -1, Volatility: 0.2}); err == nil {
		t.Error("expected error for negative maturity")
	}
	if _, err := pricer.Price(AmericanOptionParams{Spot: 100, Strike: 100, TimeToMaturity: 1, Volatility: 0}); err == nil {
		t.Error("expected error for zero volatility")
	}
}
