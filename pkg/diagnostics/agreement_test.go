package diagnostics

import (
	"testing"

	"mrilabelfusion/internal/volume"
)

func TestCompareLabelsPerfectAgreement(t *testing.T) {
	a := volume.NewImage3D(2, 2, 2)
	b := volume.NewImage3D(2, 2, 2)
	for i := range a.Data {
		a.Data[i] = float64(i % 3)
		b.Data[i] = float64(i % 3)
	}

	indices := make([]int, len(a.Data))
	for i := range indices {
		indices[i] = i
	}

	result := CompareLabels(a, b, indices)
	if result.AgreementRatio != 1 {
		t.Errorf("AgreementRatio = %f, want 1", result.AgreementRatio)
	}
	if result.SSIM < 0.99 {
		t.Errorf("SSIM = %f, want close to 1 for identical signals", result.SSIM)
	}
}

func TestCompareLabelsPartialDisagreement(t *testing.T) {
	a := volume.NewImage3D(4, 1, 1)
	b := volume.NewImage3D(4, 1, 1)
	a.Data = []float64{1, 1, 1, 1}
	b.Data = []float64{1, 1, 2, 2}

	result := CompareLabels(a, b, []int{0, 1, 2, 3})
	if result.AgreementRatio != 0.5 {
		t.Errorf("AgreementRatio = %f, want 0.5", result.AgreementRatio)
	}
}

func TestCompareLabelsEmptyIndices(t *testing.T) {
	a := volume.NewImage3D(2, 2, 2)
	b := volume.NewImage3D(2, 2, 2)
	result := CompareLabels(a, b, nil)
	if result.AgreementRatio != 0 || result.SSIM != 0 {
		t.Errorf("expected zero-value result for empty indices, got %+v", result)
	}
}

func TestEdgeCorrelationIdenticalSlicesIsOne(t *testing.T) {
	et := NewEdgeTransform(2)
	slice := make([]float64, 16)
	for i := range slice {
		if i%4 == 2 {
			slice[i] = 1
		}
	}

	corr := EdgeCorrelation(et, slice, slice)
	if corr < 0.99 {
		t.Errorf("EdgeCorrelation of a slice with itself = %f, want close to 1", corr)
	}
}
