// Package formulas provides shared numeric helpers used by the risk and
// cash-flow engines.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Percentile returns the p-th percentile (0-1) of the data using linear
// interpolation. Data does not need to be sorted.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	p = Clamp(p, 0, 1)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Min returns the smallest value in the slice, or 0 for empty input.
func Min(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	min := data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest value in the slice, or 0 for empty input.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Sum returns the total of all values in the slice.
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}

// Clamp bounds value to the [lower, upper] range.
func Clamp(value, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, value))
}

// Round2 rounds a float64 to 2 decimal places. Used for monetary outputs.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Round4 rounds a float64 to 4 decimal places. Used for ratios and
// probabilities.
func Round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

// SafeRatio divides numerator by denominator, returning the fallback when the
// denominator is zero. Keeps degenerate inputs from producing Inf/NaN.
func SafeRatio(numerator, denominator, fallback float64) float64 {
	if denominator == 0 {
		return fallback
	}
	return numerator / denominator
}
