// Package density extracts the risk-neutral probability density of the
// underlying's terminal price from one expiration of an option chain, using
// the Breeden-Litzenberger relation PDF(K) = e^(rT) * d²C/dK².
package density

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"OptionSentinel/internal/calculator"
	"OptionSentinel/internal/model"
)

// Defaults used by NewExtractor.
const (
	DefaultNumPoints       = 200
	DefaultSmoothingFactor = 0.1
	MinStrikes             = 5
)

// Cleaning bounds applied to every quote before extraction.
const (
	maxImpliedVol     = 5.0
	minStrikeToSpot   = 0.3
	maxStrikeToSpot   = 2.0
	gridPadding       = 0.1
	minGridToSpot     = 0.5
	syntheticBidRatio = 0.95
	syntheticAskRatio = 1.05
	filterWidthRatio  = 0.02
)

// minDensityMass is the smallest integral treated as a real density rather
// than rounding noise left by differentiating a straight or concave curve.
const minDensityMass = 1e-8

// Fit methods reported in ImpliedDistribution.FitMethod.
const (
	FitSmoothing = "smoothing"
	FitCubic     = "cubic"
)

var (
	// ErrInsufficientData means fewer than MinStrikes usable strikes survived cleaning.
	ErrInsufficientData = errors.New("insufficient option data")
	// ErrInvalidChain means the snapshot has a non-positive spot or time to expiry.
	ErrInvalidChain = errors.New("invalid option chain")
)

// Extractor turns option chains into implied distributions. The zero value is
// not usable; build one with NewExtractor or fill every field.
type Extractor struct {
	RiskFreeRate    float64
	NumPoints       int
	SmoothingFactor float64
	Logger          logrus.FieldLogger
}

// NewExtractor returns an extractor with the default grid size and smoothing.
func NewExtractor(rate float64, logger logrus.FieldLogger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{
		RiskFreeRate:    rate,
		NumPoints:       DefaultNumPoints,
		SmoothingFactor: DefaultSmoothingFactor,
		Logger:          logger,
	}
}

type cleanQuote struct {
	strike float64
	mid    float64
	iv     float64
}

type combinedRow struct {
	strike    float64
	callPrice float64
}

// Extract builds the implied distribution for one chain snapshot.
// It fails with ErrInvalidChain on a malformed envelope and with
// ErrInsufficientData when fewer than MinStrikes strikes are usable.
func (e *Extractor) Extract(chain model.OptionChainSnapshot) (*ImpliedDistribution, error) {
	spot, t := chain.Spot, chain.TimeToExpiry
	if spot <= 0 || t <= 0 || math.IsNaN(spot) || math.IsNaN(t) {
		return nil, fmt.Errorf("%w: spot %.4f, time to expiry %.6f", ErrInvalidChain, spot, t)
	}
	numPoints := e.NumPoints
	if numPoints < 2 {
		numPoints = DefaultNumPoints
	}
	log := e.logger().WithFields(logrus.Fields{
		"symbol":     chain.Symbol,
		"expiration": chain.Expiration.Format(model.DateLayout),
	})

	discount := math.Exp(-e.RiskFreeRate * t)
	calls := cleanQuotes(chain.Calls, spot)
	puts := cleanQuotes(chain.Puts, spot)

	rows := combineWithParity(calls, puts, spot, discount)
	if len(rows) < MinStrikes {
		return nil, fmt.Errorf("%w: %d valid strikes, need %d", ErrInsufficientData, len(rows), MinStrikes)
	}

	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		xs[i], ys[i] = r.strike, r.callPrice
	}

	kLo, kHi := xs[0], xs[len(xs)-1]
	span := kHi - kLo
	kLo = math.Max(kLo-gridPadding*span, minGridToSpot*spot)
	kHi = kHi + gridPadding*span
	if kLo >= kHi {
		return nil, fmt.Errorf("%w: strikes end at %.4f, below the grid floor %.4f", ErrInsufficientData, kHi, kLo)
	}
	grid := calculator.Linspace(kLo, kHi, numPoints)

	fitMethod := FitSmoothing
	if e.SmoothingFactor <= 0 {
		fitMethod = FitCubic
	}
	fit, err := fitSmoothing(xs, ys, e.SmoothingFactor*float64(len(xs)))
	if err != nil {
		log.WithError(err).Warn("smoothing spline failed, using interpolating cubic spline")
		fitMethod = FitCubic
		fit, err = fitInterpolating(xs, ys)
		if err != nil {
			return nil, fmt.Errorf("fit call prices: %w", err)
		}
	}

	prices := make([]float64, numPoints)
	for i, k := range grid {
		prices[i] = fit.Predict(k)
	}

	dk := grid[1] - grid[0]
	d2 := calculator.Gradient(calculator.Gradient(prices, dk), dk)
	for i := range d2 {
		d2[i] /= discount
	}

	sigma := math.Max(1, math.Round(filterWidthRatio*float64(numPoints)))
	pdf := calculator.ClipNonNegative(calculator.GaussianFilter1D(d2, sigma))

	if total := calculator.Trapezoid(grid, pdf); total > minDensityMass {
		for i := range pdf {
			pdf[i] /= total
		}
	} else {
		log.Warn("extracted density has no mass, using uniform density over the grid")
		u := 1 / (kHi - kLo)
		for i := range pdf {
			pdf[i] = u
		}
	}

	widths := make([]float64, numPoints)
	for i := range widths {
		widths[i] = dk
	}
	cdf := calculator.Cumulative(pdf, widths)

	dist := &ImpliedDistribution{
		Symbol:           chain.Symbol,
		Expiration:       chain.Expiration,
		Spot:             spot,
		Strikes:          grid,
		Density:          pdf,
		CDF:              cdf,
		ATMIV:            atmIV(calls, puts, spot),
		DaysToExpiration: chain.DaysToExpiration,
		FitMethod:        fitMethod,
	}
	dist.computeMoments()

	log.WithFields(logrus.Fields{
		"method":   fitMethod,
		"strikes":  len(xs),
		"expected": dist.ExpectedPrice,
		"std_dev":  dist.StdDev,
	}).Debug("density extracted")
	return dist, nil
}

func (e *Extractor) logger() logrus.FieldLogger {
	if e.Logger == nil {
		return logrus.StandardLogger()
	}
	return e.Logger
}

// cleanQuotes drops unusable quotes, keeps the first quote per strike and
// returns the survivors sorted by strike.
func cleanQuotes(quotes []model.OptionQuote, spot float64) []cleanQuote {
	out := make([]cleanQuote, 0, len(quotes))
	seen := make(map[float64]bool, len(quotes))
	for _, q := range quotes {
		if q.LastPrice <= 0 || q.ImpliedVolatility <= 0 || q.ImpliedVolatility >= maxImpliedVol {
			continue
		}
		if q.Strike <= minStrikeToSpot*spot || q.Strike >= maxStrikeToSpot*spot {
			continue
		}
		if seen[q.Strike] {
			continue
		}
		seen[q.Strike] = true

		bid, ask := q.Bid, q.Ask
		if !q.HasBidAsk() {
			bid, ask = q.LastPrice*syntheticBidRatio, q.LastPrice*syntheticAskRatio
		}
		out = append(out, cleanQuote{strike: q.Strike, mid: (bid + ask) / 2, iv: q.ImpliedVolatility})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].strike < out[j].strike })
	return out
}

// combineWithParity merges both sides into one call-price curve. Puts are
// converted with C = P + S - K*e^(-rT); strikes quoted on both sides average
// the call mid with the synthetic call.
func combineWithParity(calls, puts []cleanQuote, spot, discount float64) []combinedRow {
	type legs struct {
		call, put       float64
		hasCall, hasPut bool
	}
	byStrike := make(map[float64]*legs, len(calls)+len(puts))
	for _, c := range calls {
		byStrike[c.strike] = &legs{call: c.mid, hasCall: true}
	}
	for _, p := range puts {
		l, ok := byStrike[p.strike]
		if !ok {
			l = &legs{}
			byStrike[p.strike] = l
		}
		l.put, l.hasPut = p.mid, true
	}

	rows := make([]combinedRow, 0, len(byStrike))
	for k, l := range byStrike {
		var price float64
		synthetic := l.put + spot - k*discount
		switch {
		case l.hasCall && l.hasPut:
			price = (l.call + synthetic) / 2
		case l.hasCall:
			price = l.call
		default:
			price = synthetic
		}
		if price <= 0 || math.IsNaN(price) {
			continue
		}
		rows = append(rows, combinedRow{strike: k, callPrice: price})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].strike < rows[j].strike })
	return rows
}

// atmIV averages the implied volatility of the call and the put struck nearest
// to spot. A chain with only one side uses that side alone.
func atmIV(calls, puts []cleanQuote, spot float64) float64 {
	callIV, hasCall := nearestIV(calls, spot)
	putIV, hasPut := nearestIV(puts, spot)
	switch {
	case hasCall && hasPut:
		return (callIV + putIV) / 2
	case hasCall:
		return callIV
	case hasPut:
		return putIV
	}
	return 0
}

func nearestIV(quotes []cleanQuote, spot float64) (float64, bool) {
	if len(quotes) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(quotes); i++ {
		if math.Abs(quotes[i].strike-spot) < math.Abs(quotes[best].strike-spot) {
			best = i
		}
	}
	return quotes[best].iv, true
}
