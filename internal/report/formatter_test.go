package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"OptionSentinel/internal/analyzer"
	"OptionSentinel/internal/density"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/portfolio"
)

var at = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func assertContains(t *testing.T, text string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(text, p) {
			t.Errorf("missing %q in:\n%s", p, text)
		}
	}
}

func TestFormatAnalysis(t *testing.T) {
	a := &analyzer.Analysis{
		Chain: model.OptionChainSnapshot{
			Symbol: "SPY", Spot: 450, DaysToExpiration: 30,
			Expiration: time.Date(2026, 11, 18, 0, 0, 0, 0, time.UTC),
		},
		Distribution: &density.ImpliedDistribution{FitMethod: density.FitSmoothing},
		Summary: analyzer.Summary{
			HasDistribution: true,
			ExpectedPrice:   451.8,
			ExpectedMove:    19.1,
			ExpectedMovePct: 4.24,
			ATMIV:           0.15,
			ProbAbove:       0.49,
			ProbBelow:       0.51,
			Range1Sigma:     analyzer.Range{Lower: 432.1, Upper: 470.3},
			PutCallRatio:    0.85,
		},
	}
	text := FormatAnalysis(a)
	assertContains(t, text,
		"SPY @ $450.00 | exp 2026-11-18 (30d)",
		"Expected price: $451.80",
		"1σ range: $432.10 - $470.30",
		"ATM IV: 15.0% | fit: smoothing",
		"Put/Call volume: 0.85",
	)

	a.Distribution = nil
	a.Summary.HasDistribution = false
	text = FormatAnalysis(a)
	assertContains(t, text, "Implied distribution: unavailable")
	if strings.Contains(text, "Expected price") {
		t.Error("distribution fields printed without a distribution")
	}
}

func TestFormatScan(t *testing.T) {
	results := []*model.ScanResult{
		{Symbol: "SPY", CurrentPrice: 450, ATMIV: 0.3, ProbUp: 0.62, VolumeOIRatio: 2.4, Alerts: []model.Alert{
			{Kind: model.AlertUnusualVolume, Message: "UNUSUAL VOLUME: Vol/OI ratio 2.40x"},
		}},
		{Symbol: "QQQ", CurrentPrice: 380, ATMIV: 0.2, ProbUp: 0.5, VolumeOIRatio: 0.4},
	}
	text := FormatScan(results, at)
	assertContains(t, text,
		"OPTIONS SCANNER REPORT - 2026-10-19 15:30",
		"Scanned 2 symbols, 1 with alerts",
		"SPY @ $450.00 (score 3)",
		"  ! UNUSUAL VOLUME: Vol/OI ratio 2.40x",
		"  SPY: 30.0%",
		"  SPY: 62% up probability",
		"  QQQ: 0.40x",
	)

	empty := FormatScan(nil, at)
	assertContains(t, empty, "Scanned 0 symbols, 0 with alerts")
	if strings.Contains(empty, "HIGHEST IV") {
		t.Error("movers printed for an empty scan")
	}
}

func TestFormatPortfolioGreeks(t *testing.T) {
	rep := &portfolio.Report{
		Timestamp: at,
		Lines: []portfolio.Line{
			{
				Position:    model.Position{Symbol: "SPY", Kind: model.KindCall, Quantity: 2, Strike: 460, Expiration: "2026-11-20"},
				MarketValue: decimal.NewFromInt(1500),
				PnL:         decimal.NewFromInt(-100),
				PnLPct:      -6.3,
			},
		},
		Skipped:     []model.Position{{Symbol: "QQQ", Kind: model.KindStock}},
		Greeks:      model.Greeks{Delta: 84.5, Gamma: 0.0123, Theta: -12.3, Vega: 45.6},
		TotalValue:  decimal.NewFromInt(1500),
		TotalCost:   decimal.NewFromInt(1600),
		TotalPnL:    decimal.NewFromInt(-100),
		TotalPnLPct: -6.25,
		Losers:      1,
	}
	text := FormatPortfolioGreeks(rep)
	assertContains(t, text,
		"PORTFOLIO | 2026-10-19 15:30",
		"SPY CALL 460.00 2026-11-20",
		"P&L $-100.00 (-6.3%)",
		"QQQ",
		"skipped: no market data",
		"Total value: $1500.00 | cost $1600.00",
		"Delta 84.50 | Gamma 0.0123 | Theta -12.30/day | Vega 45.60",
	)
}
