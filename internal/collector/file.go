package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"OptionSentinel/internal/model"
)

// ChainFile is the on-disk layout of one symbol's snapshot.
type ChainFile struct {
	Symbol      string            `yaml:"symbol"`
	Spot        float64           `yaml:"spot"`
	AsOf        string            `yaml:"as_of,omitempty"`
	Expirations []ExpirationBlock `yaml:"expirations"`
}

// ExpirationBlock holds the quotes of one expiration date (YYYY-MM-DD).
type ExpirationBlock struct {
	Date  string              `yaml:"date"`
	Calls []model.OptionQuote `yaml:"calls"`
	Puts  []model.OptionQuote `yaml:"puts"`
}

// FileFetcher serves chain snapshots from YAML files named <SYMBOL>.yaml in Dir.
type FileFetcher struct {
	Dir       string
	SymbolMap map[string]string // maps watchlist symbol to file symbol
}

// NewFileFetcher creates a fetcher reading snapshots from dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{
		Dir: dir,
		SymbolMap: map[string]string{
			"SPX500": "SPX",
			"SP500":  "SPX",
		},
	}
}

func (f *FileFetcher) Name() string { return "file" }

func (f *FileFetcher) fileSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func (f *FileFetcher) load(symbol string) (*ChainFile, error) {
	path := filepath.Join(f.Dir, strings.ToUpper(f.fileSymbol(symbol))+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, ErrChainNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	var cf ChainFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse chain file %s: %w", path, err)
	}
	return &cf, nil
}

func (f *FileFetcher) FetchSpot(symbol string) (float64, error) {
	cf, err := f.load(symbol)
	if err != nil {
		return 0, err
	}
	if cf.Spot <= 0 {
		return 0, fmt.Errorf("%s: spot price missing", symbol)
	}
	return cf.Spot, nil
}

func (f *FileFetcher) FetchExpirations(symbol string) ([]time.Time, error) {
	cf, err := f.load(symbol)
	if err != nil {
		return nil, err
	}
	exps := make([]time.Time, 0, len(cf.Expirations))
	for _, b := range cf.Expirations {
		t, err := time.Parse(model.DateLayout, b.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: parse expiration %q: %w", symbol, b.Date, err)
		}
		exps = append(exps, t)
	}
	return exps, nil
}

func (f *FileFetcher) FetchQuotes(symbol string, expiration time.Time) ([]model.OptionQuote, []model.OptionQuote, error) {
	cf, err := f.load(symbol)
	if err != nil {
		return nil, nil, err
	}
	want := expiration.Format(model.DateLayout)
	for _, b := range cf.Expirations {
		if b.Date != want {
			continue
		}
		return withSide(b.Calls, model.Call), withSide(b.Puts, model.Put), nil
	}
	return nil, nil, fmt.Errorf("%s %s: %w", symbol, want, ErrChainNotFound)
}

// WriteChainFile stores a snapshot in the layout FileFetcher reads.
func WriteChainFile(dir string, cf *ChainFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chain dir: %w", err)
	}
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal chain file: %w", err)
	}
	path := filepath.Join(dir, strings.ToUpper(cf.Symbol)+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chain file: %w", err)
	}
	return nil
}

func withSide(quotes []model.OptionQuote, side model.Side) []model.OptionQuote {
	out := make([]model.OptionQuote, len(quotes))
	for i, q := range quotes {
		q.Side = side
		out[i] = q
	}
	return out
}
