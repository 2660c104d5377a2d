package calculator

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// Trapezoid integrates f sampled at x with the trapezoidal rule.
// Fewer than two samples integrate to zero.
func Trapezoid(x, f []float64) float64 {
	if len(x) < 2 || len(x) != len(f) {
		return 0
	}
	return integrate.Trapezoidal(x, f)
}

// Moment returns the trapezoidal integral of g(x)*density over the grid.
func Moment(x, density []float64, g func(float64) float64) float64 {
	vals := make([]float64, len(x))
	for i, xi := range x {
		vals[i] = g(xi) * density[i]
	}
	return Trapezoid(x, vals)
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Cumulative returns the running sum of density[i]*width[i], rescaled so the final
// entry is exactly 1. When the total mass is not positive the raw running sum is returned.
func Cumulative(density, width []float64) []float64 {
	terms := make([]float64, len(density))
	for i := range density {
		terms[i] = density[i] * width[i]
	}
	out := floats.CumSum(make([]float64, len(terms)), terms)
	if len(out) == 0 {
		return out
	}
	if last := out[len(out)-1]; last > 0 {
		floats.Scale(1/last, out)
		out[len(out)-1] = 1
	}
	return out
}

// SearchSorted returns the first index i with a[i] >= v (numpy "left" side),
// or len(a) when every element is smaller.
func SearchSorted(a []float64, v float64) int {
	return sort.SearchFloat64s(a, v)
}

// ClampIndex limits i to [0, n-1].
func ClampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
