package model

import (
	"fmt"
	"time"
)

// PositionKind is what a portfolio line holds.
type PositionKind string

const (
	KindStock PositionKind = "stock"
	KindCall  PositionKind = "call"
	KindPut   PositionKind = "put"
)

// ContractMultiplier is the number of shares per listed equity option contract.
const ContractMultiplier = 100

// Position is a single stock or option holding.
type Position struct {
	Symbol     string       `yaml:"symbol"`
	Kind       PositionKind `yaml:"kind"`
	Quantity   float64      `yaml:"quantity"`
	EntryPrice float64      `yaml:"entry_price"`
	Strike     float64      `yaml:"strike"`
	Expiration string       `yaml:"expiration"` // 2006-01-02
}

// IsOption reports whether the position is a call or put.
func (p Position) IsOption() bool {
	return p.Kind == KindCall || p.Kind == KindPut
}

// Side maps an option position to its option side.
func (p Position) Side() Side {
	if p.Kind == KindPut {
		return Put
	}
	return Call
}

// ExpirationDate parses Expiration.
func (p Position) ExpirationDate() (time.Time, error) {
	return time.Parse(DateLayout, p.Expiration)
}

// Validate checks that the position is complete for its kind.
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	switch p.Kind {
	case KindStock:
		return nil
	case KindCall, KindPut:
	default:
		return fmt.Errorf("%s: unknown kind %q", p.Symbol, p.Kind)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("%s %s: strike must be positive", p.Symbol, p.Kind)
	}
	if _, err := p.ExpirationDate(); err != nil {
		return fmt.Errorf("%s %s: expiration: %w", p.Symbol, p.Kind, err)
	}
	return nil
}
