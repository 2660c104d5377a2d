package collector

import (
	"fmt"
	"math"
	"time"

	"OptionSentinel/internal/model"
	"OptionSentinel/internal/pricing"
)

// MockFetcher prices a synthetic chain with Black-Scholes for development and
// testing. Implied volatility follows a linear smile in log-moneyness.
type MockFetcher struct {
	Spot        map[string]float64
	Vol         float64 // at-the-money volatility
	Skew        float64 // vol change per unit of ln(K/S)
	Rate        float64 // rate used to price quotes
	StrikeCount int     // strikes per side
	StrikeStep  float64 // as a fraction of spot
	Expiries    []int   // days from Now
	Spread      float64 // relative bid/ask half-width; 0 leaves the book empty
	VolumeScale float64 // volume relative to open interest
	Now         func() time.Time
}

// NewMockFetcher returns a fetcher with a 20% vol, mild put skew and weekly,
// monthly and quarterly expirations.
func NewMockFetcher(spots map[string]float64) *MockFetcher {
	return &MockFetcher{
		Spot:        spots,
		Vol:         0.2,
		Skew:        -0.1,
		Rate:        0.05,
		StrikeCount: 21,
		StrikeStep:  0.025,
		Expiries:    []int{7, 30, 90},
		Spread:      0.02,
		VolumeScale: 0.4,
		Now:         time.Now,
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSpot(symbol string) (float64, error) {
	s, ok := m.Spot[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrChainNotFound)
	}
	return s, nil
}

func (m *MockFetcher) FetchExpirations(symbol string) ([]time.Time, error) {
	if _, ok := m.Spot[symbol]; !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrChainNotFound)
	}
	now := m.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	exps := make([]time.Time, len(m.Expiries))
	for i, d := range m.Expiries {
		exps[i] = today.AddDate(0, 0, d)
	}
	return exps, nil
}

func (m *MockFetcher) FetchQuotes(symbol string, expiration time.Time) ([]model.OptionQuote, []model.OptionQuote, error) {
	spot, err := m.FetchSpot(symbol)
	if err != nil {
		return nil, nil, err
	}
	t := model.YearFraction(model.DaysUntil(expiration, m.now()))
	return m.side(spot, t, model.Call), m.side(spot, t, model.Put), nil
}

// MockChain builds a snapshot directly, for callers that do not need a Collector.
func (m *MockFetcher) MockChain(symbol string, days int) model.OptionChainSnapshot {
	spot := m.Spot[symbol]
	now := m.now()
	exp := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	t := model.YearFraction(model.DaysUntil(exp, now))
	return model.NewChainSnapshot(symbol, exp, spot, m.side(spot, t, model.Call), m.side(spot, t, model.Put), now)
}

func (m *MockFetcher) side(spot, t float64, side model.Side) []model.OptionQuote {
	half := m.StrikeCount / 2
	quotes := make([]model.OptionQuote, 0, m.StrikeCount)
	for i := -half; i < m.StrikeCount-half; i++ {
		k := math.Round(spot*(1+float64(i)*m.StrikeStep)*100) / 100
		vol := math.Max(0.01, m.Vol+m.Skew*math.Log(k/spot))
		price := pricing.Price(spot, k, t, m.Rate, vol, side)
		if price < 0.01 {
			price = 0.01
		}
		oi := math.Round(5000 * math.Exp(-0.5*float64(i*i)/16))
		q := model.OptionQuote{
			Strike:            k,
			LastPrice:         price,
			ImpliedVolatility: vol,
			OpenInterest:      oi,
			Volume:            math.Round(oi * m.VolumeScale),
			Side:              side,
		}
		if m.Spread > 0 {
			q.Bid = price * (1 - m.Spread)
			q.Ask = price * (1 + m.Spread)
		}
		quotes = append(quotes, q)
	}
	return quotes
}

func (m *MockFetcher) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
