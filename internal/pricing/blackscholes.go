// Package pricing implements Black-Scholes-Merton pricing, Greeks and
// implied-volatility inversion for European options.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"OptionSentinel/internal/model"
)

const (
	daysPerYear = 365.0
	vegaScale   = 100.0 // per 1 IV point
	rhoScale    = 100.0 // per 1% rate move
)

var unitNormal = distuv.UnitNormal

// D1 returns (ln(S/K) + (r + σ²/2)T) / (σ√T), or 0 when t or vol is non-positive.
func D1(spot, strike, t, r, vol float64) float64 {
	if t <= 0 || vol <= 0 {
		return 0
	}
	return (math.Log(spot/strike) + (r+0.5*vol*vol)*t) / (vol * math.Sqrt(t))
}

// D2 returns D1 - σ√T, or 0 when t or vol is non-positive.
func D2(spot, strike, t, r, vol float64) float64 {
	if t <= 0 || vol <= 0 {
		return 0
	}
	return D1(spot, strike, t, r, vol) - vol*math.Sqrt(t)
}

// Intrinsic is the exercise value at expiry.
func Intrinsic(spot, strike float64, side model.Side) float64 {
	if side == model.Put {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

// Price returns the Black-Scholes-Merton value of a European option.
// At or past expiry it is the intrinsic value. A non-positive vol is not an
// error: d1 and d2 collapse to 0 and the closed form is evaluated as is.
func Price(spot, strike, t, r, vol float64, side model.Side) float64 {
	if t <= 0 {
		return Intrinsic(spot, strike, side)
	}
	d1 := D1(spot, strike, t, r, vol)
	d2 := D2(spot, strike, t, r, vol)
	discount := math.Exp(-r * t)
	if side == model.Put {
		return strike*discount*unitNormal.CDF(-d2) - spot*unitNormal.CDF(-d1)
	}
	return spot*unitNormal.CDF(d1) - strike*discount*unitNormal.CDF(d2)
}

// CallPrice prices a European call.
func CallPrice(spot, strike, t, r, vol float64) float64 {
	return Price(spot, strike, t, r, vol, model.Call)
}

// PutPrice prices a European put.
func PutPrice(spot, strike, t, r, vol float64) float64 {
	return Price(spot, strike, t, r, vol, model.Put)
}

// ComputeGreeks returns delta, gamma, theta (per day), vega (per IV point) and
// rho (per 1% rate). All five are zero when t or vol is non-positive.
func ComputeGreeks(spot, strike, t, r, vol float64, side model.Side) model.Greeks {
	if t <= 0 || vol <= 0 {
		return model.Greeks{}
	}
	d1 := D1(spot, strike, t, r, vol)
	d2 := D2(spot, strike, t, r, vol)
	sqrtT := math.Sqrt(t)
	discount := math.Exp(-r * t)

	pdfD1 := unitNormal.Prob(d1)
	cdfD1 := unitNormal.CDF(d1)
	decay := -spot * pdfD1 * vol / (2 * sqrtT)

	g := model.Greeks{
		Gamma: pdfD1 / (spot * vol * sqrtT),
		Vega:  spot * pdfD1 * sqrtT / vegaScale,
	}
	if side == model.Put {
		g.Delta = cdfD1 - 1
		g.Theta = (decay + r*strike*discount*unitNormal.CDF(-d2)) / daysPerYear
		g.Rho = -strike * t * discount * unitNormal.CDF(-d2) / rhoScale
	} else {
		g.Delta = cdfD1
		g.Theta = (decay - r*strike*discount*unitNormal.CDF(d2)) / daysPerYear
		g.Rho = strike * t * discount * unitNormal.CDF(d2) / rhoScale
	}
	return g
}
