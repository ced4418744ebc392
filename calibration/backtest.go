package calibration

import (
	"io"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"gonum.org/v1/gonum/stat"

	"github.com/mquant/volcal/models"
)

// PriceBar is one close of the underlying price history.
type PriceBar struct {
	Date  time.Time
	Close float64
}

// OptionQuote is one dated market option observation.
type OptionQuote struct {
	Date   time.Time
	Option MarketOption
}

// HestonRecord is one date's calibrated parameter set.
type HestonRecord struct {
	Date     time.Time           `json:"date"`
	Params   models.HestonParams `json:"params"`
	Residual float64             `json:"residual"`
}

// GARCHRecord is one date's fitted GARCH parameters and annualized one-step
// volatility forecast.
type GARCHRecord struct {
	Date        time.Time      `json:"date"`
	Params      models.GARCH11 `json:"params"`
	ForecastVol float64        `json:"forecast_vol"`
}

// ModelBacktester walks a calibrator or the GARCH fitter forward through a
// quote history on rolling windows. Per-date failures are logged and skipped;
// one bad date never aborts the run.
type ModelBacktester struct {
	Prices []PriceBar
	Quotes []OptionQuote

	Log *logrus.Logger

	// Progress, when set, renders a progress bar for long runs.
	Progress io.Writer

	// Workers bounds the concurrent per-date calibrations; defaults to
	// GOMAXPROCS. Each date gets a fresh calibrator, so dates share no state.
	Workers int
}

// NewModelBacktester builds a backtester over a price and quote history.
func NewModelBacktester(prices []PriceBar, quotes []OptionQuote) *ModelBacktester {
	return &ModelBacktester{
		Prices: prices,
		Quotes: quotes,
		Log:    logrus.StandardLogger(),
	}
}

// BacktestHeston calibrates a fresh Heston model on every quote date with
// index >= window and records the fitted parameters keyed by date. Dates
// whose calibration fails are absent from the result.
func (b *ModelBacktester) BacktestHeston(window int, rate float64) ([]HestonRecord, error) {
	if window < 1 {
		return nil, &models.PreconditionError{Param: "window", Reason: "must be at least 1"}
	}

	dates := b.quoteDates()
	if len(dates) <= window {
		return nil, nil
	}
	eval := dates[window:]

	spotByDate := make(map[time.Time]float64, len(b.Prices))
	for _, bar := range b.Prices {
		spotByDate[bar.Date] = bar.Close
	}
	quotesByDate := make(map[time.Time][]MarketOption)
	for _, q := range b.Quotes {
		quotesByDate[q.Date] = append(quotesByDate[q.Date], q.Option)
	}

	progress, bar := b.progressBar("calibrating", int64(len(eval)))

	numWorkers := b.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	semaphore := make(chan struct{}, numWorkers)

	var records []HestonRecord
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, date := range eval {
		wg.Add(1)
		go func(date time.Time) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			if bar != nil {
				defer bar.Increment()
			}

			spot, ok := spotByDate[date]
			if !ok || spot <= 0 {
				b.warn(date, "no spot price for date")
				return
			}

			calibrator := NewHestonCalibrator(spot, rate, quotesByDate[date])
			calibrator.Now = date
			calibrator.Log = b.Log

			result, err := calibrator.Calibrate(nil)
			if err != nil {
				b.warn(date, err.Error())
				return
			}

			mu.Lock()
			records = append(records, HestonRecord{Date: date, Params: result.Params, Residual: result.Residual})
			mu.Unlock()
		}(date)
	}
	wg.Wait()
	if progress != nil {
		progress.Wait()
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// BacktestGARCH fits a fresh GARCH(1,1) on each rolling window of log returns
// and records the parameters with an annualized one-step volatility forecast.
func (b *ModelBacktester) BacktestGARCH(window int) ([]GARCHRecord, error) {
	if window < 1 {
		return nil, &models.PreconditionError{Param: "window", Reason: "must be at least 1"}
	}

	closes := make([]float64, len(b.Prices))
	for i, barp := range b.Prices {
		closes[i] = barp.Close
	}
	returns := models.LogReturns(closes)
	if len(returns) <= window {
		return nil, nil
	}

	progress, bar := b.progressBar("fitting garch", int64(len(returns)-window))

	var records []GARCHRecord
	for i := window; i < len(returns); i++ {
		if bar != nil {
			bar.Increment()
		}

		// returns[i] belongs to the close at Prices[i+1].
		date := b.Prices[i+1].Date
		train := returns[i-window : i]

		var g models.GARCH11
		if err := g.Fit(train); err != nil {
			b.warn(date, err.Error())
			continue
		}

		currentVar := stat.Variance(train, nil)
		forecast, err := g.ForecastVariance(currentVar, train[len(train)-1], 1)
		if err != nil {
			b.warn(date, err.Error())
			continue
		}

		records = append(records, GARCHRecord{
			Date:        date,
			Params:      g,
			ForecastVol: annualizedVol(forecast),
		})
	}
	if progress != nil {
		progress.Wait()
	}
	return records, nil
}

func annualizedVol(dailyVariance float64) float64 {
	return math.Sqrt(dailyVariance * 252)
}

func (b *ModelBacktester) quoteDates() []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, q := range b.Quotes {
		if !seen[q.Date] {
			seen[q.Date] = true
			dates = append(dates, q.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func (b *ModelBacktester) warn(date time.Time, msg string) {
	if b.Log == nil {
		return
	}
	b.Log.WithField("date", date.Format("2006-01-02")).Warn(msg)
}

func (b *ModelBacktester) progressBar(name string, total int64) (*mpb.Progress, *mpb.Bar) {
	if b.Progress == nil || total <= 0 {
		return nil, nil
	}
	p := mpb.New(mpb.WithOutput(b.Progress), mpb.WithWidth(64))
	return p, p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)
}
