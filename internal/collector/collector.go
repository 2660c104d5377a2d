package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"OptionSentinel/internal/model"
)

var (
	// ErrChainNotFound means the fetcher has no data for the symbol or expiration.
	ErrChainNotFound = errors.New("option chain not found")
	// ErrNoExpirations means the symbol lists no expirations.
	ErrNoExpirations = errors.New("no expirations listed")
)

// Collector assembles chain snapshots from a ChainFetcher.
type Collector struct {
	Fetcher ChainFetcher
	Logger  logrus.FieldLogger
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher ChainFetcher, logger logrus.FieldLogger) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{Fetcher: fetcher, Logger: logger, Now: time.Now}
}

// Expirations returns the listed expirations in ascending order.
func (c *Collector) Expirations(symbol string) ([]time.Time, error) {
	exps, err := c.Fetcher.FetchExpirations(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch expirations: %w", err)
	}
	if len(exps) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoExpirations)
	}
	sorted := append([]time.Time(nil), exps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted, nil
}

// Collect snapshots the expiration at index (0 is the nearest). An index past
// the last expiration selects the last one.
func (c *Collector) Collect(symbol string, index int) (model.OptionChainSnapshot, error) {
	exps, err := c.Expirations(symbol)
	if err != nil {
		return model.OptionChainSnapshot{}, err
	}
	if index < 0 {
		index = 0
	}
	if index > len(exps)-1 {
		index = len(exps) - 1
	}
	return c.CollectExpiration(symbol, exps[index])
}

// CollectExpiration snapshots one named expiration.
func (c *Collector) CollectExpiration(symbol string, exp time.Time) (model.OptionChainSnapshot, error) {
	spot, err := c.Fetcher.FetchSpot(symbol)
	if err != nil {
		return model.OptionChainSnapshot{}, fmt.Errorf("fetch spot: %w", err)
	}
	calls, puts, err := c.Fetcher.FetchQuotes(symbol, exp)
	if err != nil {
		return model.OptionChainSnapshot{}, fmt.Errorf("fetch quotes: %w", err)
	}

	snap := model.NewChainSnapshot(symbol, exp, spot, calls, puts, c.now())
	c.Logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"expiration": exp.Format(model.DateLayout),
		"source":     c.Fetcher.Name(),
		"calls":      len(calls),
		"puts":       len(puts),
	}).Debug("chain collected")
	return snap, nil
}

// Spot returns the current underlying price.
func (c *Collector) Spot(symbol string) (float64, error) {
	spot, err := c.Fetcher.FetchSpot(symbol)
	if err != nil {
		return 0, fmt.Errorf("fetch spot: %w", err)
	}
	return spot, nil
}

// CollectAll snapshots the expiration at index for every symbol concurrently.
// Symbols that fail are logged and left out of the result, which keeps the
// order of symbols.
func (c *Collector) CollectAll(ctx context.Context, symbols []string, index int) []model.OptionChainSnapshot {
	snaps := make([]*model.OptionChainSnapshot, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sym := range symbols {
		i, sym := i, sym // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			snap, err := c.Collect(sym, index)
			if err != nil {
				c.Logger.WithError(err).WithField("symbol", sym).Warn("collect chain failed")
				return nil
			}
			snaps[i] = &snap
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.OptionChainSnapshot, 0, len(symbols))
	for _, s := range snaps {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
