package calculator

// Gradient returns the numerical derivative of samples spaced dx apart.
// Interior points use central differences and the two ends use one-sided
// first-order differences, matching numpy.gradient on a uniform grid.
func Gradient(f []float64, dx float64) []float64 {
	n := len(f)
	out := make([]float64, n)
	if n < 2 || dx == 0 {
		return out
	}
	out[0] = (f[1] - f[0]) / dx
	out[n-1] = (f[n-1] - f[n-2]) / dx
	for i := 1; i < n-1; i++ {
		out[i] = (f[i+1] - f[i-1]) / (2 * dx)
	}
	return out
}

// ForwardWidths returns x[i+1]-x[i] for every point, repeating the final width
// for the last point so the result has len(x) entries.
func ForwardWidths(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	for i := 0; i < n-1; i++ {
		out[i] = x[i+1] - x[i]
	}
	out[n-1] = out[n-2]
	return out
}
