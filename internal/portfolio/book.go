// Package portfolio values configured stock and option positions and
// aggregates their Greeks.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/pricing"
)

// MarketData supplies spot prices and option chains.
type MarketData interface {
	Spot(symbol string) (float64, error)
	CollectExpiration(symbol string, exp time.Time) (model.OptionChainSnapshot, error)
}

// Line is the valuation of one position. Money fields are totals for the
// whole position; Greeks are scaled by quantity and contract size.
type Line struct {
	Position         model.Position
	Spot             float64
	IV               float64
	MarketPrice      decimal.Decimal // per share or per contract premium
	TheoreticalPrice decimal.Decimal
	MarketValue      decimal.Decimal
	TheoreticalValue decimal.Decimal
	CostBasis        decimal.Decimal
	PnL              decimal.Decimal
	PnLPct           float64
	Greeks           model.Greeks
}

// Report is a valuation of the whole book.
type Report struct {
	Timestamp   time.Time
	Lines       []Line
	Skipped     []model.Position
	Greeks      model.Greeks
	TotalValue  decimal.Decimal
	TotalCost   decimal.Decimal
	TotalPnL    decimal.Decimal
	TotalPnLPct float64
	Winners     int
	Losers      int
}

// Book holds positions. It is safe for concurrent use.
type Book struct {
	Pricing pricing.Model
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	Now     func() time.Time

	mu        sync.Mutex
	positions []model.Position
}

// NewBook validates and stores the positions.
func NewBook(positions []model.Position, pm pricing.Model, logger logrus.FieldLogger, m *metrics.Metrics) (*Book, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Book{Pricing: pm, Logger: logger, Metrics: m, Now: time.Now}
	for _, p := range positions {
		if err := b.Add(p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add appends a validated position.
func (b *Book) Add(p model.Position) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("add position: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = append(b.positions, p)
	return nil
}

// Positions returns a copy of the held positions.
func (b *Book) Positions() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Position(nil), b.positions...)
}

// Symbols returns the distinct underlyings, sorted.
func (b *Book) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range b.Positions() {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// Evaluate values every position. Positions whose market data cannot be
// fetched are logged and listed in Report.Skipped.
func (b *Book) Evaluate(ctx context.Context, md MarketData) (*Report, error) {
	rep := &Report{
		Timestamp:  b.now(),
		TotalValue: decimal.Zero,
		TotalCost:  decimal.Zero,
		TotalPnL:   decimal.Zero,
	}
	chains := make(map[string]model.OptionChainSnapshot)

	for _, p := range b.Positions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := b.Logger.WithFields(logrus.Fields{"symbol": p.Symbol, "kind": p.Kind})

		var (
			line Line
			err  error
		)
		if p.IsOption() {
			line, err = b.valueOption(p, md, chains)
		} else {
			line, err = b.valueStock(p, md)
		}
		if err != nil {
			log.WithError(err).Warn("position skipped")
			rep.Skipped = append(rep.Skipped, p)
			continue
		}

		rep.Lines = append(rep.Lines, line)
		rep.Greeks = rep.Greeks.Add(line.Greeks)
		rep.TotalValue = rep.TotalValue.Add(line.MarketValue)
		rep.TotalCost = rep.TotalCost.Add(line.CostBasis)
		rep.TotalPnL = rep.TotalPnL.Add(line.PnL)
		switch line.PnL.Sign() {
		case 1:
			rep.Winners++
		case -1:
			rep.Losers++
		}
	}
	rep.TotalPnLPct = percentOf(rep.TotalPnL, rep.TotalCost)

	b.Metrics.SetPortfolioGreeks(rep.Greeks)
	b.Logger.WithFields(logrus.Fields{
		"positions": len(rep.Lines),
		"skipped":   len(rep.Skipped),
		"delta":     rep.Greeks.Delta,
		"pnl":       rep.TotalPnL.StringFixed(2),
	}).Info("portfolio evaluated")
	return rep, nil
}

// Greeks aggregates position Greeks; stock adds its quantity to delta.
func (b *Book) Greeks(ctx context.Context, md MarketData) (model.Greeks, error) {
	rep, err := b.Evaluate(ctx, md)
	if err != nil {
		return model.Greeks{}, err
	}
	return rep.Greeks, nil
}

func (b *Book) valueStock(p model.Position, md MarketData) (Line, error) {
	spot, err := md.Spot(p.Symbol)
	if err != nil {
		return Line{}, err
	}
	qty := decimal.NewFromFloat(p.Quantity)
	price := decimal.NewFromFloat(spot)
	line := Line{
		Position:         p,
		Spot:             spot,
		MarketPrice:      price,
		TheoreticalPrice: price,
		MarketValue:      price.Mul(qty),
		CostBasis:        decimal.NewFromFloat(p.EntryPrice).Mul(qty),
		Greeks:           model.Greeks{Delta: p.Quantity},
	}
	line.TheoreticalValue = line.MarketValue
	line.PnL = line.MarketValue.Sub(line.CostBasis)
	line.PnLPct = percentOf(line.PnL, line.CostBasis)
	return line, nil
}

func (b *Book) valueOption(p model.Position, md MarketData, chains map[string]model.OptionChainSnapshot) (Line, error) {
	exp, err := p.ExpirationDate()
	if err != nil {
		return Line{}, err
	}
	key := p.Symbol + "|" + p.Expiration
	chain, ok := chains[key]
	if !ok {
		chain, err = md.CollectExpiration(p.Symbol, exp)
		if err != nil {
			return Line{}, err
		}
		chains[key] = chain
	}

	side := p.Side()
	quote, exact, found := nearestQuote(chain.Quotes(side), p.Strike)
	if !found {
		return Line{}, fmt.Errorf("no %s quotes for %s %s", side, p.Symbol, p.Expiration)
	}

	iv := quote.ImpliedVolatility
	theo := b.Pricing.Price(chain.Spot, p.Strike, chain.TimeToExpiry, iv, side)
	market := theo
	if exact && quote.Mid() > 0 {
		market = quote.Mid()
	}

	contracts := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromInt(model.ContractMultiplier))
	line := Line{
		Position:         p,
		Spot:             chain.Spot,
		IV:               iv,
		MarketPrice:      decimal.NewFromFloat(market),
		TheoreticalPrice: decimal.NewFromFloat(theo),
		CostBasis:        decimal.NewFromFloat(p.EntryPrice).Mul(contracts),
		Greeks: b.Pricing.Greeks(chain.Spot, p.Strike, chain.TimeToExpiry, iv, side).
			Scale(p.Quantity * model.ContractMultiplier),
	}
	line.MarketValue = line.MarketPrice.Mul(contracts)
	line.TheoreticalValue = line.TheoreticalPrice.Mul(contracts)
	line.PnL = line.MarketValue.Sub(line.CostBasis)
	line.PnLPct = percentOf(line.PnL, line.CostBasis)
	return line, nil
}

// nearestQuote returns the quote struck closest to strike and whether it is
// an exact match.
func nearestQuote(quotes []model.OptionQuote, strike float64) (model.OptionQuote, bool, bool) {
	best := -1
	for i, q := range quotes {
		if best < 0 || math.Abs(q.Strike-strike) < math.Abs(quotes[best].Strike-strike) {
			best = i
		}
	}
	if best < 0 {
		return model.OptionQuote{}, false, false
	}
	return quotes[best], quotes[best].Strike == strike, true
}

func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole.Abs()).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func (b *Book) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}
