// Package report renders analyses, scans and portfolio valuations as plain text.
package report

import (
	"fmt"
	"strings"
	"time"

	"OptionSentinel/internal/analyzer"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/portfolio"
	"OptionSentinel/internal/scanner"
)

const (
	heavyRule = "======================================================================"
	lightRule = "--------------------------------------------------"
	topMovers = 5
)

// FormatAnalysis formats one chain analysis.
func FormatAnalysis(a *analyzer.Analysis) string {
	var b strings.Builder
	c, s := a.Chain, a.Summary

	b.WriteString(fmt.Sprintf("%s @ $%.2f | exp %s (%dd)\n",
		c.Symbol, c.Spot, c.Expiration.Format(model.DateLayout), c.DaysToExpiration))
	b.WriteString(lightRule + "\n")

	if !s.HasDistribution {
		b.WriteString("Implied distribution: unavailable\n")
	} else {
		b.WriteString(fmt.Sprintf("Expected price: $%.2f (%+.2f%%)\n", s.ExpectedPrice, (s.ExpectedPrice/c.Spot-1)*100))
		b.WriteString(fmt.Sprintf("Expected move: ±$%.2f (%.2f%%)\n", s.ExpectedMove, s.ExpectedMovePct))
		b.WriteString(fmt.Sprintf("1σ range: $%.2f - $%.2f\n", s.Range1Sigma.Lower, s.Range1Sigma.Upper))
		b.WriteString(fmt.Sprintf("2σ range: $%.2f - $%.2f\n", s.Range2Sigma.Lower, s.Range2Sigma.Upper))
		b.WriteString(fmt.Sprintf("P(up): %.1f%% | P(down): %.1f%%\n", s.ProbAbove*100, s.ProbBelow*100))
		b.WriteString(fmt.Sprintf("Skew: %.3f | Excess kurtosis: %.3f\n", s.Skewness, s.Kurtosis))
		b.WriteString(fmt.Sprintf("ATM IV: %.1f%% | fit: %s\n", s.ATMIV*100, a.Distribution.FitMethod))
	}

	b.WriteString(fmt.Sprintf("IV mean/median/std: %.1f%% / %.1f%% / %.1f%%\n", s.IVMean*100, s.IVMedian*100, s.IVStd*100))
	b.WriteString(fmt.Sprintf("Put/Call volume: %.2f | OI calls %.0f, puts %.0f\n", s.PutCallRatio, s.CallOI, s.PutOI))
	return b.String()
}

// FormatScan formats a scan report: alerts first, then the top movers.
func FormatScan(results []*model.ScanResult, at time.Time) string {
	var b strings.Builder
	b.WriteString(heavyRule + "\n")
	b.WriteString(fmt.Sprintf("OPTIONS SCANNER REPORT - %s\n", at.Format("2006-01-02 15:04")))
	b.WriteString(heavyRule + "\n")

	withAlerts := 0
	for _, r := range results {
		if r.HasAlerts() {
			withAlerts++
		}
	}
	b.WriteString(fmt.Sprintf("\nScanned %d symbols, %d with alerts\n", len(results), withAlerts))

	if withAlerts > 0 {
		b.WriteString("\n" + lightRule + "\nALERTS:\n" + lightRule + "\n")
		for _, r := range results {
			if !r.HasAlerts() {
				continue
			}
			b.WriteString(fmt.Sprintf("\n%s @ $%.2f (score %d)\n", r.Symbol, r.CurrentPrice, r.Score()))
			for _, a := range r.Alerts {
				b.WriteString(fmt.Sprintf("  ! %s\n", a.Message))
			}
		}
	}

	if len(results) > 0 {
		m := scanner.TopMovers(results, topMovers)
		b.WriteString("\n" + lightRule + "\nHIGHEST IV:\n")
		for _, r := range m.HighestIV {
			b.WriteString(fmt.Sprintf("  %s: %.1f%%\n", r.Symbol, r.ATMIV*100))
		}
		b.WriteString("\n" + lightRule + "\nMOST BULLISH DISTRIBUTIONS:\n")
		for _, r := range m.MostBullish {
			b.WriteString(fmt.Sprintf("  %s: %.0f%% up probability\n", r.Symbol, r.ProbUp*100))
		}
		b.WriteString("\n" + lightRule + "\nUNUSUAL ACTIVITY (Vol/OI):\n")
		for _, r := range m.Unusual {
			b.WriteString(fmt.Sprintf("  %s: %.2fx\n", r.Symbol, r.VolumeOIRatio))
		}
	}

	b.WriteString("\n" + heavyRule)
	return b.String()
}

// FormatPortfolioGreeks formats a portfolio valuation with its aggregate Greeks.
func FormatPortfolioGreeks(rep *portfolio.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("PORTFOLIO | %s\n", rep.Timestamp.Format("2006-01-02 15:04")))
	b.WriteString(lightRule + "\n")

	for _, l := range rep.Lines {
		p := l.Position
		label := p.Symbol
		if p.IsOption() {
			label = fmt.Sprintf("%s %s %.2f %s", p.Symbol, strings.ToUpper(string(p.Kind)), p.Strike, p.Expiration)
		}
		b.WriteString(fmt.Sprintf("%-28s x%-6g value $%s  P&L $%s (%+.1f%%)\n",
			label, p.Quantity, l.MarketValue.StringFixed(2), l.PnL.StringFixed(2), l.PnLPct))
	}
	for _, p := range rep.Skipped {
		b.WriteString(fmt.Sprintf("%-28s skipped: no market data\n", p.Symbol))
	}

	b.WriteString(lightRule + "\n")
	b.WriteString(fmt.Sprintf("Total value: $%s | cost $%s | P&L $%s (%+.1f%%)\n",
		rep.TotalValue.StringFixed(2), rep.TotalCost.StringFixed(2), rep.TotalPnL.StringFixed(2), rep.TotalPnLPct))
	b.WriteString(fmt.Sprintf("Winners %d | Losers %d\n", rep.Winners, rep.Losers))

	g := rep.Greeks
	b.WriteString(fmt.Sprintf("Delta %.2f | Gamma %.4f | Theta %.2f/day | Vega %.2f | Rho %.2f\n",
		g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho))
	return b.String()
}
