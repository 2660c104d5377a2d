package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptionSentinel/internal/model"
)

func TestPrice_ReferenceValues(t *testing.T) {
	tests := []struct {
		name                string
		spot, strike, tt, r float64
		vol                 float64
		side                model.Side
		want                float64
	}{
		{"quarter year ATM call", 100, 100, 0.25, 0.05, 0.2, model.Call, 4.614997},
		{"one year ATM call", 100, 100, 1, 0.05, 0.2, model.Call, 10.450584},
		{"one year ATM put", 100, 100, 1, 0.05, 0.2, model.Put, 5.573526},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.spot, tt.strike, tt.tt, tt.r, tt.vol, tt.side)
			assert.InDelta(t, tt.want, got, 1e-5)
		})
	}
}

func TestPrice_ExpiredIsIntrinsic(t *testing.T) {
	assert.Equal(t, 10.0, Price(110, 100, 0, 0.05, 0.2, model.Call))
	assert.Equal(t, 0.0, Price(90, 100, 0, 0.05, 0.2, model.Call))
	assert.Equal(t, 10.0, Price(90, 100, -0.1, 0.05, 0.2, model.Put))
	assert.Equal(t, 0.0, Price(110, 100, 0, 0.05, 0.2, model.Put))
}

func TestPrice_ZeroVolCollapsesD1D2(t *testing.T) {
	// d1 = d2 = 0, so N(d1) = N(d2) = 0.5.
	assert.Equal(t, 0.0, D1(100, 100, 0.25, 0.05, 0))
	assert.Equal(t, 0.0, D2(100, 100, 0.25, 0.05, -1))
	assert.InDelta(t, 0.621110, CallPrice(100, 100, 0.25, 0.05, 0), 1e-6)
	assert.InDelta(t, -0.621110, PutPrice(100, 100, 0.25, 0.05, 0), 1e-6)
}

func TestPutCallParity(t *testing.T) {
	for _, spot := range []float64{50, 90, 100, 130} {
		for _, strike := range []float64{60, 100, 140} {
			for _, tt := range []float64{0.02, 0.5, 2} {
				for _, vol := range []float64{0.05, 0.3, 1.5} {
					r := 0.04
					c := CallPrice(spot, strike, tt, r, vol)
					p := PutPrice(spot, strike, tt, r, vol)
					assert.InDelta(t, spot-strike*math.Exp(-r*tt), c-p, 1e-9,
						"S=%v K=%v T=%v vol=%v", spot, strike, tt, vol)
				}
			}
		}
	}
}

func TestComputeGreeks_ReferenceCall(t *testing.T) {
	g := ComputeGreeks(100, 100, 0.25, 0.05, 0.2, model.Call)
	assert.InDelta(t, 0.569460, g.Delta, 1e-6)
	assert.InDelta(t, 0.039288, g.Gamma, 1e-6)
	assert.InDelta(t, -0.028696, g.Theta, 1e-6)
	assert.InDelta(t, 0.196440, g.Vega, 1e-6)
	assert.InDelta(t, 0.130828, g.Rho, 1e-6)
}

func TestComputeGreeks_ReferencePut(t *testing.T) {
	g := ComputeGreeks(100, 100, 1, 0.05, 0.2, model.Put)
	assert.InDelta(t, -0.363169, g.Delta, 1e-6)
	assert.InDelta(t, 0.018762, g.Gamma, 1e-6)
	assert.InDelta(t, -0.004542, g.Theta, 1e-6)
	assert.InDelta(t, 0.375240, g.Vega, 1e-6)
	assert.InDelta(t, -0.418905, g.Rho, 1e-6)
}

func TestComputeGreeks_DegenerateInputsAreZero(t *testing.T) {
	assert.Equal(t, model.Greeks{}, ComputeGreeks(100, 100, 0, 0.05, 0.2, model.Call))
	assert.Equal(t, model.Greeks{}, ComputeGreeks(100, 100, 0.5, 0.05, 0, model.Put))
	assert.Equal(t, model.Greeks{}, ComputeGreeks(100, 100, -1, 0.05, -0.2, model.Put))
}

func TestComputeGreeks_Bounds(t *testing.T) {
	for _, strike := range []float64{40, 80, 100, 120, 250} {
		for _, vol := range []float64{0.01, 0.2, 0.9, 4.0} {
			for _, tt := range []float64{1.0 / 365, 0.1, 1, 3} {
				call := ComputeGreeks(100, strike, tt, 0.05, vol, model.Call)
				put := ComputeGreeks(100, strike, tt, 0.05, vol, model.Put)

				assert.GreaterOrEqual(t, call.Delta, 0.0)
				assert.LessOrEqual(t, call.Delta, 1.0)
				assert.GreaterOrEqual(t, put.Delta, -1.0)
				assert.LessOrEqual(t, put.Delta, 0.0)
				assert.GreaterOrEqual(t, call.Gamma, 0.0)
				assert.GreaterOrEqual(t, call.Vega, 0.0)
				assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
				assert.InDelta(t, call.Vega, put.Vega, 1e-12)
			}
		}
	}
}

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	cases := []struct {
		spot, strike, tt float64
	}{
		{100, 100, 0.25},
		{100, 90, 0.5},
		{100, 115, 1},
		{450, 430, 30.0 / 365},
	}
	for _, c := range cases {
		for _, vol := range []float64{0.05, 0.15, 0.4, 1.0, 2.5, 4.0, 4.9} {
			for _, side := range []model.Side{model.Call, model.Put} {
				price := Price(c.spot, c.strike, c.tt, 0.05, vol, side)
				iv := ImpliedVolatility(price, c.spot, c.strike, c.tt, 0.05, side)
				require.True(t, IsComputable(iv), "S=%v K=%v vol=%v side=%s", c.spot, c.strike, vol, side)
				assert.InDelta(t, vol, iv, 1e-4, "S=%v K=%v vol=%v side=%s", c.spot, c.strike, vol, side)
			}
		}
	}
}

func TestImpliedVolatility_OutsideBandIsNaN(t *testing.T) {
	// Below the 1% vol price floor.
	iv := ImpliedVolatility(0.00001, 100, 100, 1, 0.05, model.Call)
	assert.False(t, IsComputable(iv))

	// Above what 500% vol can produce (a call is worth at most the spot).
	iv = ImpliedVolatility(150, 100, 100, 1, 0.05, model.Call)
	assert.True(t, math.IsNaN(iv))
}

func TestImpliedVolatility_ExpiredIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ImpliedVolatility(5, 100, 100, 0, 0.05, model.Call))
}

func TestModel_UsesConfiguredRate(t *testing.T) {
	m := NewModel(0.05)
	assert.InDelta(t, 4.614997, m.Price(100, 100, 0.25, 0.2, model.Call), 1e-5)
	assert.Equal(t, ComputeGreeks(100, 100, 0.25, 0.05, 0.2, model.Put), m.Greeks(100, 100, 0.25, 0.2, model.Put))
	assert.InDelta(t, 0.2, m.ImpliedVolatility(4.614997, 100, 100, 0.25, model.Call), 1e-4)
}
