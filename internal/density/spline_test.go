package density

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavyPoints() (xs, ys []float64) {
	for i := 0; i <= 10; i++ {
		x := float64(i)
		xs = append(xs, x)
		ys = append(ys, 0.01*math.Pow(x-5, 3)+0.5*math.Sin(2*x))
	}
	return xs, ys
}

func TestFitSmoothing_HitsResidualTarget(t *testing.T) {
	xs, ys := wavyPoints()
	for _, target := range []float64{0.05, 0.1, 0.5} {
		c, err := fitSmoothing(xs, ys, target)
		require.NoError(t, err)

		rss := 0.0
		for i, x := range xs {
			d := ys[i] - c.Predict(x)
			rss += d * d
		}
		assert.InEpsilon(t, target, rss, 2e-3, "target %.2f", target)
	}
}

func TestFitSmoothing_MoreSmoothingIsFlatter(t *testing.T) {
	xs, ys := wavyPoints()
	loose, err := fitSmoothing(xs, ys, 0.05)
	require.NoError(t, err)
	tight, err := fitSmoothing(xs, ys, 0.8)
	require.NoError(t, err)

	roughness := func(c curve) float64 {
		r := 0.0
		for x := 0.5; x < 10; x += 0.5 {
			d := c.PredictDerivative(x+0.01) - c.PredictDerivative(x-0.01)
			r += d * d
		}
		return r
	}
	assert.Less(t, roughness(tight), roughness(loose))
}

func TestFitSmoothing_Failures(t *testing.T) {
	_, err := fitSmoothing([]float64{1, 2, 3}, []float64{3, 2, 1}, 0.1)
	assert.ErrorIs(t, err, errTooFewKnots)

	_, err = fitSmoothing([]float64{1, 2, 3, 4, 5}, []float64{10, 8, 6, 4, 2}, 0.1)
	assert.ErrorIs(t, err, errLinearSuffices)
}

func TestFitSmoothing_ZeroTargetInterpolates(t *testing.T) {
	xs, ys := wavyPoints()
	c, err := fitSmoothing(xs, ys, 0)
	require.NoError(t, err)
	for i, x := range xs {
		assert.InDelta(t, ys[i], c.Predict(x), 1e-9)
	}
}

func TestFitInterpolating_LinearTails(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{10, 8, 6, 4, 2}
	c, err := fitInterpolating(xs, ys)
	require.NoError(t, err)

	for i, x := range xs {
		assert.InDelta(t, ys[i], c.Predict(x), 1e-9)
	}
	assert.InDelta(t, 14, c.Predict(-1), 1e-9)
	assert.InDelta(t, -2, c.Predict(7), 1e-9)
	assert.InDelta(t, -2, c.PredictDerivative(-1), 1e-9)
	assert.InDelta(t, -2, c.PredictDerivative(7), 1e-9)
}

func TestLineRSS(t *testing.T) {
	assert.InDelta(t, 0, lineRSS([]float64{0, 1, 2}, []float64{1, 3, 5}), 1e-12)
	// Residuals of the best line through (0,0), (1,1), (2,0) are -1/3, 2/3, -1/3.
	assert.InDelta(t, 2.0/3, lineRSS([]float64{0, 1, 2}, []float64{0, 1, 0}), 1e-12)
	assert.True(t, math.IsInf(lineRSS([]float64{1, 1}, []float64{0, 1}), 1))
}
