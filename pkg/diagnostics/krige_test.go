package diagnostics

import "testing"

func TestSparseWeightPreviewReconstructsFlatField(t *testing.T) {
	width, height := 20, 20
	data := make([]float64, width*height)
	for i := range data {
		data[i] = 0.5
	}

	preview := NewSparseWeightPreview(data, width, height, 4)
	full := preview.FullPreview(width, height, 8)

	for i, v := range full {
		if v < 0.4 || v > 0.6 {
			t.Fatalf("index %d: expected value near 0.5 for a flat field, got %f", i, v)
		}
	}
}

func TestSparseWeightPreviewEstimateAtSamplePoint(t *testing.T) {
	width, height := 10, 10
	data := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = float64(x)
		}
	}

	preview := NewSparseWeightPreview(data, width, height, 2)
	got := preview.EstimateAt(4, 4, 6)
	if got < 2 || got > 6 {
		t.Errorf("expected estimate near the ramp value at x=4, got %f", got)
	}
}
