package pricing

import "OptionSentinel/internal/model"

// Model is a Black-Scholes-Merton pricer bound to one risk-free rate.
// It holds no other state and is safe to share.
type Model struct {
	RiskFreeRate float64
}

// NewModel returns a pricing model using the given annual risk-free rate.
func NewModel(rate float64) Model {
	return Model{RiskFreeRate: rate}
}

// Price values one option.
func (m Model) Price(spot, strike, t, vol float64, side model.Side) float64 {
	return Price(spot, strike, t, m.RiskFreeRate, vol, side)
}

// Greeks computes sensitivities for one option.
func (m Model) Greeks(spot, strike, t, vol float64, side model.Side) model.Greeks {
	return ComputeGreeks(spot, strike, t, m.RiskFreeRate, vol, side)
}

// ImpliedVolatility inverts a market price; NaN means unavailable.
func (m Model) ImpliedVolatility(price, spot, strike, t float64, side model.Side) float64 {
	return ImpliedVolatility(price, spot, strike, t, m.RiskFreeRate, side)
}
