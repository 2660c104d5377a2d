package pricing

import (
	"errors"
	"math"

	"OptionSentinel/internal/model"
)

// Implied volatility search bounds and tolerance.
const (
	MinVolatility = 0.01
	MaxVolatility = 5.0
	volTolerance  = 1e-6
	maxIterations = 100
)

var (
	errNoBracket  = errors.New("root is not bracketed")
	errNoConverge = errors.New("root finder did not converge")
)

const machineEpsilon = 2.220446049250313e-16

// ImpliedVolatility inverts Price for the volatility in [MinVolatility, MaxVolatility]
// that reproduces marketPrice. It returns 0 when t is non-positive and NaN when no
// volatility in the range reproduces the price; callers must check with IsComputable.
func ImpliedVolatility(marketPrice, spot, strike, t, r float64, side model.Side) float64 {
	if t <= 0 {
		return 0
	}
	objective := func(vol float64) float64 {
		return Price(spot, strike, t, r, vol, side) - marketPrice
	}
	vol, err := brent(objective, MinVolatility, MaxVolatility, volTolerance, maxIterations)
	if err != nil {
		return math.NaN()
	}
	return vol
}

// IsComputable reports whether an implied volatility result is usable.
func IsComputable(vol float64) bool {
	return !math.IsNaN(vol) && !math.IsInf(vol, 0)
}

// brent finds a root of f in [a, b] with Brent's method (bisection, secant and
// inverse quadratic interpolation). f(a) and f(b) must differ in sign.
func brent(f func(float64) float64, a, b, xtol float64, maxIter int) (float64, error) {
	fa, fb := f(a), f(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, errNoBracket
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, errNoBracket
	}

	c, fc := a, fa
	d := b - a
	e := d
	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol := 2*machineEpsilon*math.Abs(b) + 0.5*xtol
		m := 0.5 * (c - b)
		if math.Abs(m) <= tol || fb == 0 {
			return b, nil
		}
		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * m * s
				q = 1 - s
			} else {
				qa := fa / fc
				r := fb / fc
				p = s * (2*m*qa*(qa-r) - (b-a)*(r-1))
				q = (qa - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = m
			}
		} else {
			d = m
			e = m
		}
		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else if m > 0 {
			b += tol
		} else {
			b -= tol
		}
		fb = f(b)
	}
	return 0, errNoConverge
}
