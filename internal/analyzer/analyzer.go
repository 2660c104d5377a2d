// Package analyzer evaluates one option chain snapshot: implied distribution,
// per-quote Greeks, the volatility surface and summary statistics.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"OptionSentinel/internal/density"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/pricing"
)

// Confidence levels for the one and two standard deviation ranges.
const (
	OneSigma = 0.68
	TwoSigma = 0.95
)

// QuoteGreeks is a quote with its sensitivities. IV is the volatility the
// Greeks were computed with: the quoted one, or one solved from the mid price
// when the quote carried none. Greeks are zero when no volatility is usable.
type QuoteGreeks struct {
	model.OptionQuote
	IV     float64
	Greeks model.Greeks
}

// IVPoint is one point of the volatility smile.
type IVPoint struct {
	Strike    float64
	IV        float64
	Side      model.Side
	Moneyness float64 // strike / spot
}

// Range is a price interval.
type Range struct {
	Lower, Upper float64
}

// Summary aggregates chain activity and, when available, distribution statistics.
type Summary struct {
	CallVolume   float64
	PutVolume    float64
	TotalVolume  float64
	PutCallRatio float64
	CallOI       float64
	PutOI        float64
	TotalOI      float64
	IVMean       float64
	IVMedian     float64
	IVStd        float64

	HasDistribution bool
	ExpectedPrice   float64
	ExpectedMove    float64 // one standard deviation, in price
	ExpectedMovePct float64 // ExpectedMove as a percent of spot
	Skewness        float64
	Kurtosis        float64
	ATMIV           float64
	ProbAbove       float64
	ProbBelow       float64
	Range1Sigma     Range
	Range2Sigma     Range
}

// Analysis is the full result for one snapshot. Distribution is nil when the
// chain did not support an extraction.
type Analysis struct {
	Chain        model.OptionChainSnapshot
	Distribution *density.ImpliedDistribution
	Calls        []QuoteGreeks
	Puts         []QuoteGreeks
	IVSurface    []IVPoint
	Summary      Summary
}

// Analyzer combines the pricing model and the density extractor.
type Analyzer struct {
	Pricing   pricing.Model
	Extractor *density.Extractor
	Logger    logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// New returns an analyzer whose pricing model shares the extractor's rate.
func New(extractor *density.Extractor, logger logrus.FieldLogger, m *metrics.Metrics) *Analyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Analyzer{
		Pricing:   pricing.NewModel(extractor.RiskFreeRate),
		Extractor: extractor,
		Logger:    logger,
		Metrics:   m,
	}
}

// Analyze evaluates one snapshot. Only a malformed snapshot is an error; a
// failed extraction is logged and leaves Distribution nil.
func (a *Analyzer) Analyze(chain model.OptionChainSnapshot) (*Analysis, error) {
	log := a.Logger.WithFields(logrus.Fields{
		"symbol":     chain.Symbol,
		"expiration": chain.Expiration.Format(model.DateLayout),
	})

	start := time.Now()
	dist, err := a.Extractor.Extract(chain)
	switch {
	case err == nil:
		a.Metrics.ObserveExtraction(metrics.OutcomeOK, time.Since(start))
	case errors.Is(err, density.ErrInvalidChain):
		a.Metrics.ObserveExtraction(metrics.OutcomeInvalid, time.Since(start))
		return nil, fmt.Errorf("analyze %s: %w", chain.Symbol, err)
	case errors.Is(err, density.ErrInsufficientData):
		a.Metrics.ObserveExtraction(metrics.OutcomeInsufficient, time.Since(start))
		log.WithError(err).Warn("distribution unavailable")
	default:
		a.Metrics.ObserveExtraction(metrics.OutcomeError, time.Since(start))
		log.WithError(err).Warn("distribution unavailable")
	}

	res := &Analysis{
		Chain:        chain,
		Distribution: dist,
		Calls:        a.quoteGreeks(chain, model.Call),
		Puts:         a.quoteGreeks(chain, model.Put),
		IVSurface:    ivSurface(chain),
	}
	res.Summary = summarize(chain, dist)

	log.WithFields(logrus.Fields{
		"distribution": dist != nil,
		"put_call":     res.Summary.PutCallRatio,
		"iv_mean":      res.Summary.IVMean,
	}).Debug("chain analyzed")
	return res, nil
}

// AnalyzeAll analyzes independent snapshots concurrently. Results keep the
// input order; snapshots that fail are logged and left out.
func (a *Analyzer) AnalyzeAll(ctx context.Context, chains []model.OptionChainSnapshot) []*Analysis {
	results := make([]*Analysis, len(chains))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range chains {
		i, c := i, c // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := a.Analyze(c)
			if err != nil {
				a.Logger.WithError(err).WithField("symbol", c.Symbol).Warn("analysis failed")
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Analysis, 0, len(chains))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (a *Analyzer) quoteGreeks(chain model.OptionChainSnapshot, side model.Side) []QuoteGreeks {
	quotes := chain.Quotes(side)
	out := make([]QuoteGreeks, len(quotes))
	unavailable := 0
	for i, q := range quotes {
		row := QuoteGreeks{OptionQuote: q, IV: q.ImpliedVolatility}
		if row.IV <= 0 && q.Mid() > 0 {
			row.IV = a.Pricing.ImpliedVolatility(q.Mid(), chain.Spot, q.Strike, chain.TimeToExpiry, side)
			if !pricing.IsComputable(row.IV) {
				unavailable++
				row.IV = 0
			}
		}
		if row.IV > 0 && chain.TimeToExpiry > 0 {
			row.Greeks = a.Pricing.Greeks(chain.Spot, q.Strike, chain.TimeToExpiry, row.IV, side)
		}
		out[i] = row
	}
	if unavailable > 0 {
		a.Metrics.IVUnavailable(unavailable)
		a.Logger.WithFields(logrus.Fields{
			"symbol": chain.Symbol,
			"side":   side,
			"quotes": unavailable,
		}).Debug("implied volatility unavailable")
	}
	return out
}

func ivSurface(chain model.OptionChainSnapshot) []IVPoint {
	var pts []IVPoint
	for _, side := range []model.Side{model.Call, model.Put} {
		for _, q := range chain.Quotes(side) {
			if q.ImpliedVolatility <= 0 {
				continue
			}
			pts = append(pts, IVPoint{
				Strike:    q.Strike,
				IV:        q.ImpliedVolatility,
				Side:      side,
				Moneyness: q.Strike / chain.Spot,
			})
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Strike < pts[j].Strike })
	return pts
}

func summarize(chain model.OptionChainSnapshot, dist *density.ImpliedDistribution) Summary {
	var s Summary
	var ivs []float64
	for _, q := range chain.Calls {
		s.CallVolume += q.Volume
		s.CallOI += q.OpenInterest
		if q.ImpliedVolatility > 0 {
			ivs = append(ivs, q.ImpliedVolatility)
		}
	}
	for _, q := range chain.Puts {
		s.PutVolume += q.Volume
		s.PutOI += q.OpenInterest
		if q.ImpliedVolatility > 0 {
			ivs = append(ivs, q.ImpliedVolatility)
		}
	}
	if s.CallVolume > 0 {
		s.PutCallRatio = s.PutVolume / s.CallVolume
	}
	s.TotalVolume = s.CallVolume + s.PutVolume
	s.TotalOI = s.CallOI + s.PutOI
	s.IVMean, s.IVMedian, s.IVStd = ivStats(ivs)

	if dist == nil {
		return s
	}
	spot := chain.Spot
	s.HasDistribution = true
	s.ExpectedPrice = dist.ExpectedPrice
	s.ExpectedMove = dist.StdDev
	s.ExpectedMovePct = dist.StdDev / spot * 100
	s.Skewness = dist.Skewness
	s.Kurtosis = dist.Kurtosis
	s.ATMIV = dist.ATMIV
	s.ProbAbove = dist.ProbabilityAbove(spot)
	s.ProbBelow = dist.ProbabilityBelow(spot)
	s.Range1Sigma.Lower, s.Range1Sigma.Upper = dist.ExpectedMove(OneSigma)
	s.Range2Sigma.Lower, s.Range2Sigma.Upper = dist.ExpectedMove(TwoSigma)
	return s
}

// ivStats returns the mean, median and sample standard deviation. A single
// value has zero deviation.
func ivStats(ivs []float64) (mean, median, std float64) {
	if len(ivs) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64(nil), ivs...)
	sort.Float64s(sorted)
	mean = stat.Mean(sorted, nil)
	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if n > 1 {
		std = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(std) {
		std = 0
	}
	return mean, median, std
}
