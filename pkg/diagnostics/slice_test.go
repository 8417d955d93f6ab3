package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mrilabelfusion/internal/volume"
)

func TestSliceExporterExtractSlice(t *testing.T) {
	vol := volume.NewImage3D(4, 5, 6)
	for i := range vol.Data {
		vol.Data[i] = float64(i)
	}

	exp := NewSliceExporter(vol)

	img, err := exp.ExtractSlice("z", 2)
	if err != nil {
		t.Fatalf("ExtractSlice: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != vol.X || bounds.Dy() != vol.Y {
		t.Errorf("unexpected slice dims: %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), vol.X, vol.Y)
	}

	if _, err := exp.ExtractSlice("z", vol.Z); err == nil {
		t.Error("expected error for out-of-range position")
	}
	if _, err := exp.ExtractSlice("q", 0); err == nil {
		t.Error("expected error for invalid axis")
	}
}

func TestSliceExporterSaveSliceSequence(t *testing.T) {
	vol := volume.NewImage3D(3, 3, 3)
	for i := range vol.Data {
		vol.Data[i] = float64(i % 3)
	}
	exp := NewSliceExporter(vol)

	dir := t.TempDir()
	if err := exp.SaveSliceSequence("z", dir); err != nil {
		t.Fatalf("SaveSliceSequence: %v", err)
	}

	for pos := 0; pos < vol.Z; pos++ {
		path := filepath.Join(dir, fmt.Sprintf("slice_z_%03d.png", pos))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected slice file %s: %v", path, err)
		}
	}
}
