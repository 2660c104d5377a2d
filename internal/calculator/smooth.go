package calculator

import (
	"math"
)

// gaussianTruncate is how many standard deviations the kernel extends to each side.
const gaussianTruncate = 4.0

// GaussianKernel returns normalized Gaussian weights for offsets -r..r,
// where r = int(4*sigma + 0.5).
func GaussianKernel(sigma float64) []float64 {
	radius := int(gaussianTruncate*sigma + 0.5)
	w := make([]float64, 2*radius+1)
	sum := 0.0
	for k := -radius; k <= radius; k++ {
		v := math.Exp(-0.5 * float64(k*k) / (sigma * sigma))
		w[k+radius] = v
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// GaussianFilter1D convolves data with a Gaussian kernel of the given standard
// deviation (in samples). Samples beyond either end are mirrored about the edge
// (d c b a | a b c d | d c b a). A non-positive sigma returns a copy.
func GaussianFilter1D(data []float64, sigma float64) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if sigma <= 0 {
		copy(out, data)
		return out
	}
	w := GaussianKernel(sigma)
	radius := len(w) / 2
	for i := 0; i < n; i++ {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			acc += w[k+radius] * data[reflectIndex(i+k, n)]
		}
		out[i] = acc
	}
	return out
}

// reflectIndex folds an out-of-range index back into [0, n) with half-sample symmetry.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// ClipNonNegative replaces negative entries with zero in place and returns s.
func ClipNonNegative(s []float64) []float64 {
	for i, v := range s {
		if v < 0 || math.IsNaN(v) {
			s[i] = 0
		}
	}
	return s
}
