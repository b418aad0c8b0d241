package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatColumns names the statistics computed per unit, in column order
var StatColumns = []string{"mean", "std", "min", "25%", "50%", "75%", "max", "sum"}

// Describe computes StatColumns for values. std is the sample standard deviation and
// percentiles interpolate linearly between closest ranks. Empty input yields NaN for
// every statistic except sum, which is 0.
func Describe(values []float64) []float64 {
	if len(values) == 0 {
		nan := math.NaN()
		return []float64{nan, nan, nan, nan, nan, nan, nan, 0}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	std := math.NaN()
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}

	return []float64{
		stat.Mean(values, nil),
		std,
		sorted[0],
		quantile(sorted, 0.25),
		quantile(sorted, 0.50),
		quantile(sorted, 0.75),
		sorted[len(sorted)-1],
		floats.Sum(values),
	}
}

// quantile interpolates linearly at position p*(n-1) of sorted data.
// gonum's LinInterp uses a different plotting position, so the closest-rank
// interpolation is done here.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
