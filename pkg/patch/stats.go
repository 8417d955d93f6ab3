// Package patch implements per-patch statistics and the search-neighborhood
// matcher that finds, for a target patch, the best-correlated atlas patch
// within a local search window.
package patch

import "math"

// MinSigma is the floor applied to a patch's standard deviation to avoid
// division by zero in low-contrast regions.
const MinSigma = 1e-6

// Stats holds the sufficient statistics of a patch sample.
type Stats struct {
	Mean float64
	Std  float64
}

// Compute walks data at center+offset for each offset in the table and
// returns the sample mean and (bias-corrected) standard deviation, clamping
// Std to MinSigma when it is degenerate or NaN.
func Compute(data []float64, center int, offsets []int) Stats {
	n := len(offsets)
	sum, sumSq := 0.0, 0.0
	for _, off := range offsets {
		v := data[center+off]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	variance := (sumSq - float64(n)*mean*mean) / float64(n-1)
	std := math.Sqrt(variance)
	if math.IsNaN(std) || std < MinSigma {
		std = MinSigma
	}
	return Stats{Mean: mean, Std: std}
}

// Normalize fills out with (data[center+offset]-mean)/std for every offset
// in the table, producing the mean-0 std-1 target patch PatchMatcher
// expects as input.
func Normalize(out []float64, data []float64, center int, offsets []int, s Stats) {
	for i, off := range offsets {
		out[i] = (data[center+off] - s.Mean) / s.Std
	}
}
