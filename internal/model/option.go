package model

import (
	"math"
	"time"
)

// DateLayout formats expiration dates.
const DateLayout = "2006-01-02"

// Side is the option right.
type Side string

const (
	Call Side = "call"
	Put  Side = "put"
)

// OptionQuote is one market observation for a single strike.
// Bid and Ask are zero when the data source did not provide them.
type OptionQuote struct {
	Strike            float64 `yaml:"strike"`
	LastPrice         float64 `yaml:"last_price"`
	Bid               float64 `yaml:"bid"`
	Ask               float64 `yaml:"ask"`
	ImpliedVolatility float64 `yaml:"implied_volatility"`
	Volume            float64 `yaml:"volume"`
	OpenInterest      float64 `yaml:"open_interest"`
	Side              Side    `yaml:"side"`
}

// HasBidAsk reports whether both sides of the market are quoted.
func (q OptionQuote) HasBidAsk() bool {
	return q.Bid > 0 && q.Ask > 0
}

// Mid returns the bid/ask midpoint, or the last trade when the book is empty.
func (q OptionQuote) Mid() float64 {
	if q.HasBidAsk() {
		return (q.Bid + q.Ask) / 2
	}
	return q.LastPrice
}

// OptionChainSnapshot is every quote for one underlying and one expiration.
type OptionChainSnapshot struct {
	Symbol           string
	Expiration       time.Time
	Spot             float64
	Calls            []OptionQuote
	Puts             []OptionQuote
	DaysToExpiration int
	TimeToExpiry     float64 // years
}

// DaysUntil counts calendar days from the start of now's day to exp, floored at 1.
func DaysUntil(exp, now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	e := time.Date(exp.Year(), exp.Month(), exp.Day(), 0, 0, 0, 0, now.Location())
	days := int(math.Floor(e.Sub(today).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// YearFraction converts calendar days to the year fraction used by the pricing model.
func YearFraction(days int) float64 {
	return float64(days) / 365.0
}

// NewChainSnapshot stamps days-to-expiration and time-to-expiry relative to now.
func NewChainSnapshot(symbol string, exp time.Time, spot float64, calls, puts []OptionQuote, now time.Time) OptionChainSnapshot {
	days := DaysUntil(exp, now)
	return OptionChainSnapshot{
		Symbol:           symbol,
		Expiration:       exp,
		Spot:             spot,
		Calls:            calls,
		Puts:             puts,
		DaysToExpiration: days,
		TimeToExpiry:     YearFraction(days),
	}
}

// Quotes returns the quotes for one side.
func (c OptionChainSnapshot) Quotes(side Side) []OptionQuote {
	if side == Put {
		return c.Puts
	}
	return c.Calls
}
