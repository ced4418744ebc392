package calibration

import (
	"time"

	"github.com/mquant/volcal/models"
)

// MarketOption is an immutable snapshot of one quoted contract, supplied by
// the market-data collaborator and consumed read-only by the calibrators.
type MarketOption struct {
	Strike     float64
	Expiry     time.Time
	Price      float64
	ImpliedVol float64 // Zero when the venue does not quote one
	IsCall     bool
}

// TimeToExpiry returns the year fraction between now and expiry.
func (o MarketOption) TimeToExpiry(now time.Time) float64 {
	return o.Expiry.Sub(now).Hours() / 24 / 365
}

// HestonResult is a fitted Heston parameter set with its fit residual.
// Produced once per calibration call and not mutated afterward.
type HestonResult struct {
	Params   models.HestonParams
	Residual float64
}

// SABRResult is a fitted SABR parameter set with its fit residual.
type SABRResult struct {
	Params   models.SABRParams
	Residual float64
}
