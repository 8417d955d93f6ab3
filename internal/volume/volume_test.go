package volume

import "testing"

func TestNewImage3DStrides(t *testing.T) {
	img := NewImage3D(4, 5, 6)
	if len(img.Data) != 4*5*6 {
		t.Fatalf("expected %d samples, got %d", 4*5*6, len(img.Data))
	}
	if img.StrideX != 1 || img.StrideY != 4 || img.StrideZ != 20 {
		t.Errorf("unexpected strides: %d %d %d", img.StrideX, img.StrideY, img.StrideZ)
	}
	if img.Orientation != IdentityOrientation {
		t.Error("expected identity orientation by default")
	}
}

func TestImage3DIndexAtSet(t *testing.T) {
	img := NewImage3D(3, 3, 3)
	img.Set(1, 2, 0, 7.5)
	if got := img.At(1, 2, 0); got != 7.5 {
		t.Errorf("At(1,2,0) = %f, want 7.5", got)
	}
	if got := img.Index(1, 2, 0); got != 1+2*3 {
		t.Errorf("Index(1,2,0) = %d, want %d", got, 1+2*3)
	}
}

func TestImage3DInBounds(t *testing.T) {
	img := NewImage3D(2, 2, 2)
	cases := []struct {
		x, y, z int
		want    bool
	}{
		{0, 0, 0, true},
		{1, 1, 1, true},
		{2, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, c := range cases {
		if got := img.InBounds(c.x, c.y, c.z); got != c.want {
			t.Errorf("InBounds(%d,%d,%d) = %v, want %v", c.x, c.y, c.z, got, c.want)
		}
	}
}

func TestSameGrid(t *testing.T) {
	a := NewImage3D(4, 4, 4)
	b := NewImage3D(4, 4, 4)
	if !a.SameGrid(b) {
		t.Error("expected identical fresh grids to match")
	}

	b.SpacingX = 2
	if a.SameGrid(b) {
		t.Error("expected mismatched spacing to fail SameGrid")
	}

	c := NewImage3D(4, 4, 5)
	if a.SameGrid(c) {
		t.Error("expected mismatched extents to fail SameGrid")
	}
}

func TestValidateGrids(t *testing.T) {
	target := NewImage3D(3, 3, 3)
	good := AtlasPair{Intensity: NewImage3D(3, 3, 3), Label: NewImage3D(3, 3, 3)}
	if err := ValidateGrids(target, []AtlasPair{good}); err != nil {
		t.Fatalf("expected matching grids to validate, got %v", err)
	}

	bad := AtlasPair{Intensity: NewImage3D(3, 3, 4), Label: NewImage3D(3, 3, 3)}
	if err := ValidateGrids(target, []AtlasPair{bad}); err == nil {
		t.Error("expected mismatched atlas grid to error")
	}

	missing := AtlasPair{Intensity: nil, Label: NewImage3D(3, 3, 3)}
	if err := ValidateGrids(target, []AtlasPair{missing}); err == nil {
		t.Error("expected missing intensity image to error")
	}
}

func TestLabelSet(t *testing.T) {
	l1 := NewImage3D(2, 2, 1)
	l1.Data = []float64{0, 1, 2, 1}
	l2 := NewImage3D(2, 2, 1)
	l2.Data = []float64{0, 0, 3, 1}

	labels := LabelSet([]AtlasPair{{Label: l1}, {Label: l2}})
	want := []float64{0, 1, 2, 3}
	if len(labels) != len(want) {
		t.Fatalf("got %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %f, want %f", i, labels[i], want[i])
		}
	}
}

func TestNewPosteriorMapAndWeightMapArray(t *testing.T) {
	labels := []float64{0, 1, 5}
	pm := NewPosteriorMap(labels, 2, 2, 2)
	if len(pm) != 3 {
		t.Fatalf("expected 3 posterior buffers, got %d", len(pm))
	}
	for _, l := range labels {
		buf, ok := pm[l]
		if !ok {
			t.Fatalf("missing posterior buffer for label %f", l)
		}
		if len(buf.Data) != 8 {
			t.Errorf("label %f buffer has %d samples, want 8", l, len(buf.Data))
		}
	}

	wm := NewWeightMapArray(4, 2, 2, 2)
	if len(wm) != 4 {
		t.Fatalf("expected 4 weight maps, got %d", len(wm))
	}
}
