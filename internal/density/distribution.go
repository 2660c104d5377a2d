package density

import (
	"math"
	"time"

	"OptionSentinel/internal/calculator"
)

// ImpliedDistribution is the risk-neutral density of one expiration on a
// uniform strike grid. Strikes, Density and CDF have equal length; Density
// integrates to 1 and CDF ends at exactly 1. Query methods never modify
// the arrays.
type ImpliedDistribution struct {
	Symbol     string
	Expiration time.Time
	Spot       float64

	Strikes []float64
	Density []float64
	CDF     []float64

	ExpectedPrice    float64
	StdDev           float64
	Skewness         float64
	Kurtosis         float64 // excess
	ATMIV            float64
	DaysToExpiration int

	// FitMethod is FitSmoothing, or FitCubic when the smoothing spline fell back.
	FitMethod string
}

// Len returns the number of grid points.
func (d *ImpliedDistribution) Len() int {
	return len(d.Strikes)
}

func (d *ImpliedDistribution) computeMoments() {
	k, pdf := d.Strikes, d.Density
	d.ExpectedPrice = calculator.Moment(k, pdf, func(x float64) float64 { return x })

	mu := d.ExpectedPrice
	variance := calculator.Moment(k, pdf, func(x float64) float64 { return (x - mu) * (x - mu) })
	d.StdDev = math.Sqrt(math.Max(0, variance))
	if d.StdDev == 0 {
		d.Skewness, d.Kurtosis = 0, 0
		return
	}

	sd := d.StdDev
	d.Skewness = calculator.Moment(k, pdf, func(x float64) float64 { return math.Pow((x-mu)/sd, 3) })
	d.Kurtosis = calculator.Moment(k, pdf, func(x float64) float64 { return math.Pow((x-mu)/sd, 4) }) - 3
}

// ProbabilityBetween sums density times forward grid width over the grid
// points that fall inside [low, high]. It returns 0 when none do.
func (d *ImpliedDistribution) ProbabilityBetween(low, high float64) float64 {
	if d.Len() == 0 {
		return 0
	}
	widths := calculator.ForwardWidths(d.Strikes)
	p := 0.0
	for i, k := range d.Strikes {
		if k >= low && k <= high {
			p += d.Density[i] * widths[i]
		}
	}
	return p
}

// ProbabilityAbove is the mass at or above price, up to the last grid point.
func (d *ImpliedDistribution) ProbabilityAbove(price float64) float64 {
	if d.Len() == 0 {
		return 0
	}
	return d.ProbabilityBetween(price, d.Strikes[d.Len()-1])
}

// ProbabilityBelow is the mass at or below price, from the first grid point.
func (d *ImpliedDistribution) ProbabilityBelow(price float64) float64 {
	if d.Len() == 0 {
		return 0
	}
	return d.ProbabilityBetween(d.Strikes[0], price)
}

// ExpectedMove returns the grid strikes bounding the central confidence mass
// of the distribution, e.g. 0.68 for roughly one standard deviation.
func (d *ImpliedDistribution) ExpectedMove(confidence float64) (lower, upper float64) {
	n := d.Len()
	if n == 0 {
		return 0, 0
	}
	tail := (1 - confidence) / 2
	lo := calculator.ClampIndex(calculator.SearchSorted(d.CDF, tail), n)
	hi := calculator.ClampIndex(calculator.SearchSorted(d.CDF, 1-tail), n)
	return d.Strikes[lo], d.Strikes[hi]
}

// Quantile returns the first grid strike whose cumulative probability reaches p.
func (d *ImpliedDistribution) Quantile(p float64) float64 {
	n := d.Len()
	if n == 0 {
		return math.NaN()
	}
	return d.Strikes[calculator.ClampIndex(calculator.SearchSorted(d.CDF, p), n)]
}

// Mode returns the grid strike with the highest density.
func (d *ImpliedDistribution) Mode() float64 {
	if d.Len() == 0 {
		return math.NaN()
	}
	best := 0
	for i, v := range d.Density {
		if v > d.Density[best] {
			best = i
		}
	}
	return d.Strikes[best]
}
