package collector

import (
	"time"

	"OptionSentinel/internal/model"
)

// ChainFetcher is the market-data boundary: it supplies spot prices, listed
// expirations and the quotes of one expiration.
type ChainFetcher interface {
	FetchSpot(symbol string) (float64, error)
	FetchExpirations(symbol string) ([]time.Time, error)
	FetchQuotes(symbol string, expiration time.Time) (calls, puts []model.OptionQuote, err error)
	Name() string
}
