package collector

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"OptionSentinel/internal/model"
)

var fixedNow = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newMock() *MockFetcher {
	m := NewMockFetcher(map[string]float64{"SPY": 450, "QQQ": 380})
	m.Now = func() time.Time { return fixedNow }
	return m
}

func TestMockFetcher_Chain(t *testing.T) {
	m := newMock()
	calls, puts, err := m.FetchQuotes("SPY", fixedNow.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 21 || len(puts) != 21 {
		t.Fatalf("expected 21 quotes per side, got %d calls %d puts", len(calls), len(puts))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].Strike <= calls[i-1].Strike {
			t.Fatalf("strikes not ascending at %d", i)
		}
		if calls[i].LastPrice > calls[i-1].LastPrice {
			t.Errorf("call price should fall with strike: %.4f > %.4f", calls[i].LastPrice, calls[i-1].LastPrice)
		}
	}
	if calls[10].Strike != 450 {
		t.Errorf("middle strike = %.2f, want 450", calls[10].Strike)
	}
	if !calls[10].HasBidAsk() {
		t.Error("expected a quoted book")
	}
	if puts[0].Side != model.Put || calls[0].Side != model.Call {
		t.Error("sides not stamped")
	}
	if calls[0].ImpliedVolatility <= calls[20].ImpliedVolatility {
		t.Error("expected downside skew")
	}
}

func TestMockFetcher_UnknownSymbol(t *testing.T) {
	m := newMock()
	if _, err := m.FetchSpot("NOPE"); !errors.Is(err, ErrChainNotFound) {
		t.Errorf("expected ErrChainNotFound, got %v", err)
	}
	if _, err := m.FetchExpirations("NOPE"); !errors.Is(err, ErrChainNotFound) {
		t.Errorf("expected ErrChainNotFound, got %v", err)
	}
}

func TestCollector_CollectStampsExpiry(t *testing.T) {
	c := NewCollector(newMock(), quietLogger())
	c.Now = func() time.Time { return fixedNow }

	snap, err := c.Collect("SPY", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DaysToExpiration != 30 {
		t.Errorf("days to expiration = %d, want 30", snap.DaysToExpiration)
	}
	if snap.TimeToExpiry != 30.0/365 {
		t.Errorf("time to expiry = %.6f", snap.TimeToExpiry)
	}
	if snap.Spot != 450 || snap.Symbol != "SPY" {
		t.Errorf("unexpected envelope: %+v", snap)
	}

	last, err := c.Collect("SPY", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.DaysToExpiration != 90 {
		t.Errorf("out-of-range index should pick the last expiration, got %d days", last.DaysToExpiration)
	}
}

func TestCollector_CollectAllSkipsFailures(t *testing.T) {
	c := NewCollector(newMock(), quietLogger())
	c.Now = func() time.Time { return fixedNow }

	snaps := c.CollectAll(context.Background(), []string{"QQQ", "MISSING", "SPY"}, 0)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Symbol != "QQQ" || snaps[1].Symbol != "SPY" {
		t.Errorf("order not preserved: %s, %s", snaps[0].Symbol, snaps[1].Symbol)
	}
}

func TestFileFetcher_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := newMock()
	calls, puts, _ := m.FetchQuotes("SPY", fixedNow.AddDate(0, 0, 30))

	cf := &ChainFile{
		Symbol: "SPY",
		Spot:   450,
		Expirations: []ExpirationBlock{
			{Date: "2026-12-18", Calls: calls[:3], Puts: puts[:2]},
			{Date: "2026-11-18", Calls: calls, Puts: puts},
		},
	}
	if err := WriteChainFile(dir, cf); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := NewFileFetcher(dir)
	c := NewCollector(f, quietLogger())
	c.Now = func() time.Time { return fixedNow }

	exps, err := c.Expirations("SPY")
	if err != nil {
		t.Fatalf("expirations: %v", err)
	}
	if len(exps) != 2 || exps[0].Format(model.DateLayout) != "2026-11-18" {
		t.Fatalf("expirations not sorted: %v", exps)
	}

	snap, err := c.Collect("SPY", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(snap.Calls) != len(calls) || len(snap.Puts) != len(puts) {
		t.Errorf("got %d calls %d puts", len(snap.Calls), len(snap.Puts))
	}
	if snap.Calls[5] != calls[5] {
		t.Errorf("quote changed on disk round trip: %+v vs %+v", snap.Calls[5], calls[5])
	}
	if snap.DaysToExpiration != 30 {
		t.Errorf("days to expiration = %d, want 30", snap.DaysToExpiration)
	}

	if _, _, err := f.FetchQuotes("SPY", time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrChainNotFound) {
		t.Errorf("expected ErrChainNotFound for unlisted expiration, got %v", err)
	}
}

func TestFileFetcher_MissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	f := NewFileFetcher(dir)

	if _, err := f.FetchSpot("SPY"); !errors.Is(err, ErrChainNotFound) {
		t.Errorf("expected ErrChainNotFound, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "BAD.yaml"), []byte("symbol: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.FetchSpot("BAD"); err == nil || errors.Is(err, ErrChainNotFound) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestFileFetcher_SymbolMap(t *testing.T) {
	dir := t.TempDir()
	if err := WriteChainFile(dir, &ChainFile{Symbol: "SPX", Spot: 5800}); err != nil {
		t.Fatal(err)
	}
	spot, err := NewFileFetcher(dir).FetchSpot("SPX500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spot != 5800 {
		t.Errorf("spot = %.2f, want 5800", spot)
	}
}

func TestCollector_NoExpirations(t *testing.T) {
	dir := t.TempDir()
	if err := WriteChainFile(dir, &ChainFile{Symbol: "IWM", Spot: 200}); err != nil {
		t.Fatal(err)
	}
	c := NewCollector(NewFileFetcher(dir), quietLogger())
	if _, err := c.Collect("IWM", 0); !errors.Is(err, ErrNoExpirations) {
		t.Errorf("expected ErrNoExpirations, got %v", err)
	}
}
