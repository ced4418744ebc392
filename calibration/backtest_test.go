package calibration

import (
	"bytes"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/mquant/volcal/models"
)

func backtestDates(n int) []time.Time {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// hestonHistory builds a quote history where every date's quotes are priced
// from the same known parameter set.
func hestonHistory(t *testing.T, dates []time.Time, params models.HestonParams, rate float64) ([]PriceBar, []OptionQuote) {
	t.Helper()

	model, err := models.NewHestonModel(params)
	if err != nil {
		t.Fatal(err)
	}

	var prices []PriceBar
	var quotes []OptionQuote
	for i, date := range dates {
		spot := 100.0 + float64(i)
		prices = append(prices, PriceBar{Date: date, Close: spot})

		expiry := date.AddDate(0, 0, 90)
		tau := expiry.Sub(date).Hours() / 24 / 365
		for _, strike := range []float64{90, 100, 110} {
			price, err := model.PriceEuropean(spot, strike, tau, rate, true)
			if err != nil {
				t.Fatal(err)
			}
			quotes = append(quotes, OptionQuote{Date: date, Option: MarketOption{
				Strike: strike,
				Expiry: expiry,
				Price:  price,
				IsCall: true,
			}})
		}
	}
	return prices, quotes
}

func TestBacktestHestonRollsForward(t *testing.T) {
	trueParams := models.HestonParams{Kappa: 2.0, Theta: 0.04, Xi: 0.3, Rho: -0.7, V0: 0.04}
	rate := 0.03
	dates := backtestDates(4)

	prices, quotes := hestonHistory(t, dates, trueParams, rate)

	backtester := NewModelBacktester(prices, quotes)
	backtester.Progress = io.Discard
	backtester.Workers = 2

	records, err := backtester.BacktestHeston(2, rate)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}

	// Dates 0 and 1 seed the window; 2 and 3 get calibrated.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, rec := range records {
		if !rec.Date.Equal(dates[2+i]) {
			t.Errorf("record %d has date %v, expected %v", i, rec.Date, dates[2+i])
		}
		if err := rec.Params.Validate(); err != nil {
			t.Errorf("record %d carries invalid parameters: %v", i, err)
		}
		if rec.Residual > 1e-3 {
			t.Errorf("record %d residual too large: %v", i, rec.Residual)
		}
	}
}

func TestBacktestHestonSkipsBadDates(t *testing.T) {
	trueParams := models.HestonParams{Kappa: 2.0, Theta: 0.04, Xi: 0.3, Rho: -0.7, V0: 0.04}
	rate := 0.03
	dates := backtestDates(4)

	prices, quotes := hestonHistory(t, dates, trueParams, rate)

	// Drop the spot for the last evaluation date: it must be skipped with a
	// warning, not abort the run.
	prices = prices[:len(prices)-1]

	var logged bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logged)

	backtester := NewModelBacktester(prices, quotes)
	backtester.Log = log
	backtester.Workers = 1

	records, err := backtester.BacktestHeston(2, rate)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].Date.Equal(dates[2]) {
		t.Errorf("surviving record has date %v, expected %v", records[0].Date, dates[2])
	}
	if !bytes.Contains(logged.Bytes(), []byte(dates[3].Format("2006-01-02"))) {
		t.Errorf("expected a warning naming the skipped date, log was: %s", logged.String())
	}
}

func TestBacktestHestonShortHistory(t *testing.T) {
	trueParams := models.HestonParams{Kappa: 2.0, Theta: 0.04, Xi: 0.3, Rho: -0.7, V0: 0.04}
	dates := backtestDates(2)
	prices, quotes := hestonHistory(t, dates, trueParams, 0.03)

	backtester := NewModelBacktester(prices, quotes)
	records, err := backtester.BacktestHeston(5, 0.03)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}
	if records != nil {
		t.Errorf("expected no records for a history shorter than the window, got %d", len(records))
	}
}

func TestBacktestHestonRejectsBadWindow(t *testing.T) {
	backtester := NewModelBacktester(nil, nil)
	if _, err := backtester.BacktestHeston(0, 0.03); err == nil {
		t.Fatal("expected error for window < 1")
	}
}

func TestBacktestGARCHRollsForward(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// A random walk with GARCH(1,1) noise.
	omega, alpha, beta := 5e-6, 0.08, 0.88
	variance := omega / (1 - alpha - beta)
	prices := []PriceBar{{Date: backtestDates(1)[0], Close: 100}}
	dates := backtestDates(161)
	lastReturn := 0.0
	for i := 1; i < len(dates); i++ {
		variance = omega + alpha*lastReturn*lastReturn + beta*variance
		lastReturn = math.Sqrt(variance) * rng.NormFloat64()
		prices = append(prices, PriceBar{
			Date:  dates[i],
			Close: prices[i-1].Close * math.Exp(lastReturn),
		})
	}

	backtester := NewModelBacktester(prices, nil)
	backtester.Progress = io.Discard

	records, err := backtester.BacktestGARCH(150)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected at least one record")
	}

	for i, rec := range records {
		if rec.Params.Alpha+rec.Params.Beta >= 1 {
			t.Errorf("record %d is non-stationary: alpha=%v beta=%v", i, rec.Params.Alpha, rec.Params.Beta)
		}
		if rec.ForecastVol <= 0 {
			t.Errorf("record %d has non-positive forecast vol: %v", i, rec.ForecastVol)
		}
		if i > 0 && !records[i-1].Date.Before(rec.Date) {
			t.Errorf("records out of date order at %d", i)
		}
	}
}

func TestBacktestGARCHShortHistory(t *testing.T) {
	prices := []PriceBar{
		{Date: backtestDates(1)[0], Close: 100},
		{Date: backtestDates(2)[1], Close: 101},
	}

	backtester := NewModelBacktester(prices, nil)
	records, err := backtester.BacktestGARCH(50)
	if err != nil {
		t.Fatalf("backtest failed: %v", err)
	}
	if records != nil {
		t.Errorf("expected no records, got %d", len(records))
	}
}
