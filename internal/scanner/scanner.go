// Package scanner turns analyzed chains into ranked alerts and keeps a short
// per-symbol history for percentile and change rules.
package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"OptionSentinel/internal/analyzer"
	"OptionSentinel/internal/config"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
)

// History limits.
const (
	MaxScanHistory  = 100
	IVHistoryWindow = 30 * 24 * time.Hour
	MinIVHistory    = 5
)

type ivObservation struct {
	at time.Time
	iv float64
}

// Scanner is safe for concurrent use.
type Scanner struct {
	Analyzer   *analyzer.Analyzer
	Thresholds config.Scanner
	Logger     logrus.FieldLogger
	Metrics    *metrics.Metrics
	Now        func() time.Time

	mu        sync.Mutex
	history   map[string][]*model.ScanResult
	ivHistory map[string][]ivObservation
}

// New creates a scanner with empty history.
func New(a *analyzer.Analyzer, th config.Scanner, logger logrus.FieldLogger, m *metrics.Metrics) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{
		Analyzer:   a,
		Thresholds: th,
		Logger:     logger,
		Metrics:    m,
		Now:        time.Now,
		history:    make(map[string][]*model.ScanResult),
		ivHistory:  make(map[string][]ivObservation),
	}
}

// Scan analyzes one chain and evaluates it.
func (s *Scanner) Scan(chain model.OptionChainSnapshot) (*model.ScanResult, error) {
	res, err := s.Analyzer.Analyze(chain)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(res), nil
}

// ScanAll analyzes chains concurrently and evaluates them with EvaluateAll.
func (s *Scanner) ScanAll(ctx context.Context, chains []model.OptionChainSnapshot) []*model.ScanResult {
	return s.EvaluateAll(s.Analyzer.AnalyzeAll(ctx, chains))
}

// EvaluateAll evaluates analyses in input order and returns the results
// sorted by alert score, highest first.
func (s *Scanner) EvaluateAll(analyses []*analyzer.Analysis) []*model.ScanResult {
	results := make([]*model.ScanResult, 0, len(analyses))
	for _, a := range analyses {
		results = append(results, s.Evaluate(a))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score() > results[j].Score() })

	s.Metrics.ObserveScan(results, s.now())
	alerted := 0
	for _, r := range results {
		if r.HasAlerts() {
			alerted++
		}
	}
	s.Logger.WithFields(logrus.Fields{
		"scanned": len(results),
		"alerted": alerted,
	}).Info("scan complete")
	return results
}

// Evaluate applies the alert rules to an analysis and records it in history.
func (s *Scanner) Evaluate(a *analyzer.Analysis) *model.ScanResult {
	chain, sum := a.Chain, a.Summary
	now := s.now()

	r := &model.ScanResult{
		Symbol:       chain.Symbol,
		Timestamp:    now,
		Expiration:   chain.Expiration,
		CurrentPrice: chain.Spot,
		PutCallRatio: sum.PutCallRatio,
		TotalVolume:  sum.TotalVolume,
		TotalOI:      sum.TotalOI,
		ProbUp:       0.5,
		ProbDown:     0.5,
	}
	if sum.TotalOI > 0 {
		r.VolumeOIRatio = sum.TotalVolume / sum.TotalOI
	}
	if d := a.Distribution; d != nil {
		r.ATMIV = d.ATMIV
		r.ExpectedMovePct = d.StdDev / chain.Spot * 100
		r.Skewness = d.Skewness
		r.ProbUp = d.ProbabilityAbove(chain.Spot)
		r.ProbDown = d.ProbabilityBelow(chain.Spot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	percentile := s.recordIV(chain.Symbol, r.ATMIV, now)
	// A side without a distribution has no ATM IV or skew to compare.
	if prev := s.last(chain.Symbol); prev != nil && prev.ATMIV > 0 && r.ATMIV > 0 {
		ivChange := r.ATMIV - prev.ATMIV
		skewChange := r.Skewness - prev.Skewness
		r.IVChange, r.SkewChange = &ivChange, &skewChange
	}

	r.Alerts = evaluate(s.Thresholds, reading{
		volumeOI:        r.VolumeOIRatio,
		putCall:         r.PutCallRatio,
		callVolume:      sum.CallVolume,
		atmIV:           r.ATMIV,
		ivPercentile:    percentile,
		hasDistribution: a.Distribution != nil,
		skewness:        r.Skewness,
		probUp:          r.ProbUp,
		probDown:        r.ProbDown,
		ivChange:        r.IVChange,
	})

	h := append(s.history[chain.Symbol], r)
	if len(h) > MaxScanHistory {
		h = h[len(h)-MaxScanHistory:]
	}
	s.history[chain.Symbol] = h

	if r.HasAlerts() {
		s.Logger.WithFields(logrus.Fields{
			"symbol": r.Symbol,
			"alerts": len(r.Alerts),
			"score":  r.Score(),
		}).Info("scanner alert")
	}
	return r
}

// History returns a copy of the stored results for symbol, oldest first.
func (s *Scanner) History(symbol string) []*model.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.ScanResult(nil), s.history[symbol]...)
}

// recordIV appends a positive IV to the window and returns the percentile of
// iv within it, or 50 until MinIVHistory observations exist.
func (s *Scanner) recordIV(symbol string, iv float64, now time.Time) float64 {
	obs := s.ivHistory[symbol]
	if iv > 0 {
		obs = append(obs, ivObservation{at: now, iv: iv})
	}
	cutoff := now.Add(-IVHistoryWindow)
	kept := obs[:0]
	for _, o := range obs {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	s.ivHistory[symbol] = kept

	if len(kept) < MinIVHistory {
		return 50
	}
	below := 0
	for _, o := range kept {
		if o.iv < iv {
			below++
		}
	}
	return float64(below) / float64(len(kept)) * 100
}

func (s *Scanner) last(symbol string) *model.ScanResult {
	h := s.history[symbol]
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}

func (s *Scanner) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Significant returns the results whose score reaches minScore, keeping order.
func Significant(results []*model.ScanResult, minScore int) []*model.ScanResult {
	var out []*model.ScanResult
	for _, r := range results {
		if r.HasAlerts() && r.Score() >= minScore {
			out = append(out, r)
		}
	}
	return out
}

// Movers ranks scan results along several readings.
type Movers struct {
	HighestIV     []*model.ScanResult
	HighestVolume []*model.ScanResult
	MostBullish   []*model.ScanResult
	MostBearish   []*model.ScanResult
	Unusual       []*model.ScanResult
}

// TopMovers returns the top n results for each ranking.
func TopMovers(results []*model.ScanResult, n int) Movers {
	top := func(less func(a, b *model.ScanResult) bool) []*model.ScanResult {
		sorted := append([]*model.ScanResult(nil), results...)
		sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
		if len(sorted) > n {
			sorted = sorted[:n]
		}
		return sorted
	}
	return Movers{
		HighestIV:     top(func(a, b *model.ScanResult) bool { return a.ATMIV > b.ATMIV }),
		HighestVolume: top(func(a, b *model.ScanResult) bool { return a.TotalVolume > b.TotalVolume }),
		MostBullish:   top(func(a, b *model.ScanResult) bool { return a.ProbUp > b.ProbUp }),
		MostBearish:   top(func(a, b *model.ScanResult) bool { return a.Skewness < b.Skewness }),
		Unusual:       top(func(a, b *model.ScanResult) bool { return a.VolumeOIRatio > b.VolumeOIRatio }),
	}
}
