package density

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

const (
	// penaltySearchIterations bounds the bisection on log(alpha).
	penaltySearchIterations = 80
	// residualRelTol is the relative tolerance on the residual target.
	residualRelTol = 1e-3
)

var (
	errTooFewKnots     = errors.New("smoothing spline needs at least 4 distinct strikes")
	errLinearSuffices  = errors.New("residual target reached by a straight line")
	errNotPositiveDef  = errors.New("penalized system is not positive definite")
	errNonFiniteResult = errors.New("smoothing spline produced non-finite values")
)

// curve is a fitted call-price function of strike.
type curve interface {
	Predict(x float64) float64
	PredictDerivative(x float64) float64
}

// linearTails extends a curve fitted on [lo, hi] with straight lines that
// continue the value and slope at each end.
type linearTails struct {
	inner  curve
	lo, hi float64
}

func (c linearTails) Predict(x float64) float64 {
	switch {
	case x < c.lo:
		return c.inner.Predict(c.lo) + c.inner.PredictDerivative(c.lo)*(x-c.lo)
	case x > c.hi:
		return c.inner.Predict(c.hi) + c.inner.PredictDerivative(c.hi)*(x-c.hi)
	}
	return c.inner.Predict(x)
}

func (c linearTails) PredictDerivative(x float64) float64 {
	switch {
	case x < c.lo:
		return c.inner.PredictDerivative(c.lo)
	case x > c.hi:
		return c.inner.PredictDerivative(c.hi)
	}
	return c.inner.PredictDerivative(x)
}

// fitInterpolating passes a not-a-knot cubic spline exactly through every point.
func fitInterpolating(xs, ys []float64) (curve, error) {
	var cs interp.NotAKnotCubic
	if err := cs.Fit(xs, ys); err != nil {
		return nil, err
	}
	return linearTails{inner: &cs, lo: xs[0], hi: xs[len(xs)-1]}, nil
}

// fitSmoothing fits a natural cubic smoothing spline whose residual sum of
// squares equals target. The roughness penalty alpha is found by bisection
// on log(alpha); RSS grows monotonically with alpha, from 0 at the
// interpolating spline to the residual of the least-squares line.
func fitSmoothing(xs, ys []float64, target float64) (curve, error) {
	n := len(xs)
	if n < 4 {
		return nil, errTooFewKnots
	}
	if target <= 0 {
		return fitInterpolating(xs, ys)
	}
	if lineRSS(xs, ys) <= target {
		return nil, errLinearSuffices
	}

	sys := newReinschSystem(xs, ys)

	scale := sys.scale()
	loAlpha, hiAlpha := math.Log(scale*1e-10), math.Log(scale*1e10)

	var best *reinschSolution
	for i := 0; i < penaltySearchIterations; i++ {
		mid := 0.5 * (loAlpha + hiAlpha)
		sol, err := sys.solve(math.Exp(mid))
		if err != nil {
			return nil, err
		}
		best = sol
		if math.Abs(sol.rss-target) <= residualRelTol*target {
			break
		}
		if sol.rss > target {
			hiAlpha = mid
		} else {
			loAlpha = mid
		}
	}
	return best.curve(xs)
}

// reinschSystem holds the banded matrices of the Reinsch formulation:
// Q (n x n-2) maps knot values to second differences and R (n-2 x n-2)
// is the tridiagonal Gram matrix of the natural cubic B-spline basis.
type reinschSystem struct {
	y   *mat.VecDense
	q   *mat.Dense
	r   *mat.SymDense
	qtq *mat.SymDense
	qty *mat.VecDense
}

func newReinschSystem(xs, ys []float64) *reinschSystem {
	n := len(xs)
	m := n - 2
	h := make([]float64, n-1)
	for i := range h {
		h[i] = xs[i+1] - xs[i]
	}

	q := mat.NewDense(n, m, nil)
	r := mat.NewSymDense(m, nil)
	for j := 0; j < m; j++ {
		q.Set(j, j, 1/h[j])
		q.Set(j+1, j, -1/h[j]-1/h[j+1])
		q.Set(j+2, j, 1/h[j+1])

		r.SetSym(j, j, (h[j]+h[j+1])/3)
		if j+1 < m {
			r.SetSym(j, j+1, h[j+1]/6)
		}
	}

	y := mat.NewVecDense(n, append([]float64(nil), ys...))

	var qtq mat.SymDense
	qtq.SymOuterK(1, q.T())

	var qty mat.VecDense
	qty.MulVec(q.T(), y)

	return &reinschSystem{y: y, q: q, r: r, qtq: &qtq, qty: &qty}
}

// scale balances the two terms of R + alpha*QᵀQ so the penalty search
// starts from a sensible centre regardless of strike units.
func (s *reinschSystem) scale() float64 {
	m, _ := s.r.Dims()
	var rt, qt float64
	for i := 0; i < m; i++ {
		rt += s.r.At(i, i)
		qt += s.qtq.At(i, i)
	}
	if qt == 0 {
		return 1
	}
	return rt / qt
}

type reinschSolution struct {
	fitted []float64
	gamma  []float64
	rss    float64
}

// solve computes the smoothing spline for one penalty value:
// (R + alpha*QᵀQ) gamma = Qᵀy, fitted = y - alpha*Q*gamma.
func (s *reinschSystem) solve(alpha float64) (*reinschSolution, error) {
	m, _ := s.r.Dims()
	var pen, a mat.SymDense
	pen.ScaleSym(alpha, s.qtq)
	a.AddSym(s.r, &pen)

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, errNotPositiveDef
	}
	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, s.qty); err != nil {
		return nil, err
	}

	var qg mat.VecDense
	qg.MulVec(s.q, &gamma)
	var fitted mat.VecDense
	fitted.AddScaledVec(s.y, -alpha, &qg)

	n := s.y.Len()
	sol := &reinschSolution{
		fitted: make([]float64, n),
		gamma:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		sol.fitted[i] = fitted.AtVec(i)
		d := s.y.AtVec(i) - sol.fitted[i]
		sol.rss += d * d
	}
	for j := 0; j < m; j++ {
		sol.gamma[j+1] = gamma.AtVec(j)
	}
	return sol, nil
}

// curve converts knot values and second derivatives into a piecewise cubic
// by computing the first derivative at every knot.
func (sol *reinschSolution) curve(xs []float64) (curve, error) {
	n := len(xs)
	g, gam := sol.fitted, sol.gamma
	slopes := make([]float64, n)
	for i := 0; i < n-1; i++ {
		h := xs[i+1] - xs[i]
		slopes[i] = (g[i+1]-g[i])/h - h*(2*gam[i]+gam[i+1])/6
	}
	h := xs[n-1] - xs[n-2]
	slopes[n-1] = (g[n-1]-g[n-2])/h + h*(gam[n-2]+2*gam[n-1])/6

	for i := range g {
		if math.IsNaN(g[i]) || math.IsInf(g[i], 0) || math.IsNaN(slopes[i]) || math.IsInf(slopes[i], 0) {
			return nil, errNonFiniteResult
		}
	}

	var pc interp.PiecewiseCubic
	pc.FitWithDerivatives(xs, g, slopes)
	return linearTails{inner: &pc, lo: xs[0], hi: xs[n-1]}, nil
}

// lineRSS is the residual sum of squares of the least-squares line through the points.
func lineRSS(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return math.Inf(1)
	}
	slope := (n*sxy - sx*sy) / den
	icept := (sy - slope*sx) / n
	rss := 0.0
	for i := range xs {
		d := ys[i] - (icept + slope*xs[i])
		rss += d * d
	}
	return rss
}
