package diagnostics

import (
	"testing"
)

func TestNewEdgeTransformDefaultsScales(t *testing.T) {
	et := NewEdgeTransform(0)
	if et.scales != 3 {
		t.Errorf("scales = %d, want default of 3", et.scales)
	}
}

func TestDetectEdgesWithOrientationNonSquareReturnsZeroed(t *testing.T) {
	et := NewEdgeTransform(2)
	info := et.DetectEdgesWithOrientation(make([]float64, 5))
	if len(info.Edges) != 5 || len(info.Orientations) != 5 {
		t.Fatalf("expected zeroed output sized to input length, got edges=%d orientations=%d", len(info.Edges), len(info.Orientations))
	}
	for _, e := range info.Edges {
		if e != 0 {
			t.Error("expected all-zero edges for non-square input")
		}
	}
}

func TestDetectEdgesWithOrientationFlatFieldHasNoStrongEdges(t *testing.T) {
	et := NewEdgeTransform(2)
	flat := make([]float64, 64) // 8x8, all zero
	info := et.DetectEdgesWithOrientation(flat)

	for i, e := range info.Edges {
		if e != 0 {
			t.Fatalf("Edges[%d] = %f, want 0 for a constant field", i, e)
		}
	}
}

func TestDetectEdgesWithOrientationStepEdgeIsStrongerThanFlatRegion(t *testing.T) {
	et := NewEdgeTransform(2)
	const size = 8
	data := make([]float64, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if j >= size/2 {
				data[i*size+j] = 1
			}
		}
	}

	info := et.DetectEdgesWithOrientation(data)

	boundary := info.Edges[3*size+size/2]
	corner := info.Edges[0]
	if boundary <= corner {
		t.Errorf("expected the step boundary (%f) to have a stronger response than a far flat corner (%f)", boundary, corner)
	}
}
