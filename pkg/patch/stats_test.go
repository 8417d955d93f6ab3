package patch

import (
	"math"
	"testing"
)

func TestComputeMeanAndStd(t *testing.T) {
	data := []float64{0, 2, 4, 6, 8}
	offsets := []int{0, 1, 2, 3, 4}

	s := Compute(data, 0, offsets)
	if s.Mean != 4 {
		t.Errorf("Mean = %f, want 4", s.Mean)
	}
	wantStd := math.Sqrt(10)
	if math.Abs(s.Std-wantStd) > 1e-9 {
		t.Errorf("Std = %f, want %f", s.Std, wantStd)
	}
}

func TestComputeClampsDegenerateStd(t *testing.T) {
	data := []float64{5, 5, 5, 5}
	offsets := []int{0, 1, 2, 3}

	s := Compute(data, 0, offsets)
	if s.Std != MinSigma {
		t.Errorf("expected Std clamped to MinSigma for a constant patch, got %f", s.Std)
	}
}

func TestNormalizeProducesMeanZeroUnitStdSeries(t *testing.T) {
	data := []float64{1, 3, 5, 7}
	offsets := []int{0, 1, 2, 3}
	s := Compute(data, 0, offsets)

	out := make([]float64, len(offsets))
	Normalize(out, data, 0, offsets, s)

	var sum, sumSq float64
	for _, v := range out {
		sum += v
		sumSq += v * v
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("expected normalized patch to sum near zero, got %f", sum)
	}
	if variance := sumSq / float64(len(out)-1); math.Abs(variance-1) > 1e-9 {
		t.Errorf("expected normalized patch to have unit (bias-corrected) variance, got %f", variance)
	}
}
