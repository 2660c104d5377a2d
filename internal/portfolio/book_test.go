package portfolio

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/pricing"
)

var _ MarketData = (*collector.Collector)(nil)

var fixedNow = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

const testExpiration = "2026-11-18"

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type stubMarket struct {
	spots  map[string]float64
	chains map[string]model.OptionChainSnapshot
	calls  int
}

func (s *stubMarket) Spot(symbol string) (float64, error) {
	v, ok := s.spots[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, collector.ErrChainNotFound)
	}
	return v, nil
}

func (s *stubMarket) CollectExpiration(symbol string, exp time.Time) (model.OptionChainSnapshot, error) {
	s.calls++
	c, ok := s.chains[symbol+"|"+exp.Format(model.DateLayout)]
	if !ok {
		return model.OptionChainSnapshot{}, fmt.Errorf("%s: %w", symbol, collector.ErrChainNotFound)
	}
	return c, nil
}

func spyMarket() *stubMarket {
	exp, _ := time.Parse(model.DateLayout, testExpiration)
	chain := model.NewChainSnapshot("SPY", exp, 450, []model.OptionQuote{
		{Strike: 440, LastPrice: 14, Bid: 13.9, Ask: 14.1, ImpliedVolatility: 0.21, Side: model.Call},
		{Strike: 450, LastPrice: 9.5, Bid: 9.9, Ask: 10.1, ImpliedVolatility: 0.2, Side: model.Call},
	}, []model.OptionQuote{
		{Strike: 440, LastPrice: 5, Bid: 4.9, Ask: 5.1, ImpliedVolatility: 0.22, Side: model.Put},
	}, fixedNow)
	return &stubMarket{
		spots:  map[string]float64{"SPY": 450},
		chains: map[string]model.OptionChainSnapshot{"SPY|" + testExpiration: chain},
	}
}

func newTestBook(t *testing.T, positions ...model.Position) *Book {
	t.Helper()
	b, err := NewBook(positions, pricing.NewModel(0.05), quietLogger(), nil)
	require.NoError(t, err)
	b.Now = func() time.Time { return fixedNow }
	return b
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestEvaluate_Stock(t *testing.T) {
	b := newTestBook(t, model.Position{Symbol: "SPY", Kind: model.KindStock, Quantity: 10, EntryPrice: 400})
	rep, err := b.Evaluate(context.Background(), spyMarket())
	require.NoError(t, err)
	require.Len(t, rep.Lines, 1)

	line := rep.Lines[0]
	assert.True(t, dec(4500).Equal(line.MarketValue), line.MarketValue.String())
	assert.True(t, dec(4000).Equal(line.CostBasis))
	assert.True(t, dec(500).Equal(line.PnL))
	assert.InDelta(t, 12.5, line.PnLPct, 1e-9)
	assert.Equal(t, model.Greeks{Delta: 10}, line.Greeks)
	assert.Equal(t, 1, rep.Winners)
}

func TestEvaluate_OptionAtListedStrike(t *testing.T) {
	b := newTestBook(t, model.Position{
		Symbol: "SPY", Kind: model.KindCall, Quantity: 2, EntryPrice: 8, Strike: 450, Expiration: testExpiration,
	})
	md := spyMarket()
	rep, err := b.Evaluate(context.Background(), md)
	require.NoError(t, err)
	require.Len(t, rep.Lines, 1)

	line := rep.Lines[0]
	assert.True(t, dec(10).Equal(line.MarketPrice.Round(6)), line.MarketPrice.String())
	assert.True(t, dec(2000).Equal(line.MarketValue.Round(6)))
	assert.True(t, dec(1600).Equal(line.CostBasis))
	assert.True(t, dec(400).Equal(line.PnL.Round(6)))
	assert.InDelta(t, 25, line.PnLPct, 1e-9)

	chain := md.chains["SPY|"+testExpiration]
	want := pricing.ComputeGreeks(450, 450, chain.TimeToExpiry, 0.05, 0.2, model.Call).Scale(200)
	assert.InDelta(t, want.Delta, line.Greeks.Delta, 1e-9)
	assert.InDelta(t, want.Vega, line.Greeks.Vega, 1e-9)
	assert.InDelta(t, want.Delta, rep.Greeks.Delta, 1e-9)

	theo := pricing.Price(450, 450, chain.TimeToExpiry, 0.05, 0.2, model.Call)
	assert.InDelta(t, theo*200, line.TheoreticalValue.InexactFloat64(), 1e-6)
}

func TestEvaluate_OptionBetweenStrikesUsesNearestIV(t *testing.T) {
	b := newTestBook(t, model.Position{
		Symbol: "SPY", Kind: model.KindPut, Quantity: -1, EntryPrice: 6, Strike: 438, Expiration: testExpiration,
	})
	rep, err := b.Evaluate(context.Background(), spyMarket())
	require.NoError(t, err)
	require.Len(t, rep.Lines, 1)

	line := rep.Lines[0]
	assert.Equal(t, 0.22, line.IV)
	assert.True(t, line.MarketPrice.Equal(line.TheoreticalPrice))
	// Short put: positive delta, negative gamma.
	assert.Greater(t, line.Greeks.Delta, 0.0)
	assert.Less(t, line.Greeks.Gamma, 0.0)
}

func TestEvaluate_AggregatesAndSkips(t *testing.T) {
	b := newTestBook(t,
		model.Position{Symbol: "SPY", Kind: model.KindStock, Quantity: 100, EntryPrice: 460},
		model.Position{Symbol: "SPY", Kind: model.KindCall, Quantity: -1, EntryPrice: 12, Strike: 450, Expiration: testExpiration},
		model.Position{Symbol: "SPY", Kind: model.KindCall, Quantity: 1, EntryPrice: 15, Strike: 440, Expiration: testExpiration},
		model.Position{Symbol: "QQQ", Kind: model.KindPut, Quantity: 1, EntryPrice: 3, Strike: 370, Expiration: "2026-12-18"},
	)
	md := spyMarket()
	rep, err := b.Evaluate(context.Background(), md)
	require.NoError(t, err)

	assert.Len(t, rep.Lines, 3)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "QQQ", rep.Skipped[0].Symbol)
	assert.Equal(t, 2, md.calls, "SPY chain fetched once per expiration")

	sum := model.Greeks{}
	total := decimal.Zero
	for _, l := range rep.Lines {
		sum = sum.Add(l.Greeks)
		total = total.Add(l.PnL)
	}
	assert.InDelta(t, sum.Delta, rep.Greeks.Delta, 1e-9)
	assert.True(t, total.Equal(rep.TotalPnL))
	assert.Equal(t, 3, rep.Winners+rep.Losers)
}

func TestEvaluate_Cancelled(t *testing.T) {
	b := newTestBook(t, model.Position{Symbol: "SPY", Kind: model.KindStock, Quantity: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Evaluate(ctx, spyMarket())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBook_WithMockCollector(t *testing.T) {
	f := collector.NewMockFetcher(map[string]float64{"SPY": 450})
	f.Now = func() time.Time { return fixedNow }
	c := collector.NewCollector(f, quietLogger())
	c.Now = f.Now

	b := newTestBook(t,
		model.Position{Symbol: "SPY", Kind: model.KindStock, Quantity: 50, EntryPrice: 440},
		model.Position{Symbol: "SPY", Kind: model.KindPut, Quantity: 5, EntryPrice: 4, Strike: 450, Expiration: testExpiration},
	)
	g, err := b.Greeks(context.Background(), c)
	require.NoError(t, err)
	// 50 shares plus five puts of roughly -0.45 delta each.
	assert.Greater(t, g.Delta, 50-5*100*0.6)
	assert.Less(t, g.Delta, 50-5*100*0.3)
	assert.Greater(t, g.Gamma, 0.0)
}

func TestBook_AddSymbols(t *testing.T) {
	b := newTestBook(t)
	assert.Error(t, b.Add(model.Position{Kind: model.KindStock}))
	require.NoError(t, b.Add(model.Position{Symbol: "SPY", Kind: model.KindStock, Quantity: 1}))
	require.NoError(t, b.Add(model.Position{Symbol: "AAPL", Kind: model.KindStock, Quantity: 1}))
	require.NoError(t, b.Add(model.Position{Symbol: "SPY", Kind: model.KindCall, Strike: 500, Expiration: testExpiration}))

	assert.Equal(t, []string{"AAPL", "SPY"}, b.Symbols())
	assert.Len(t, b.Positions(), 3)

	_, err := NewBook([]model.Position{{Symbol: "SPY", Kind: "bond"}}, pricing.NewModel(0.05), nil, nil)
	assert.Error(t, err)
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 0.0, percentOf(dec(5), decimal.Zero))
	assert.InDelta(t, 10, percentOf(dec(10), dec(100)), 1e-12)
	assert.InDelta(t, 10, percentOf(dec(10), dec(-100)), 1e-12)
}
