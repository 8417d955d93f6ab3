package driver

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/fusion"
	"mrilabelfusion/pkg/geometry"
)

func buildTestVolumes(size int) (*volume.Image3D, []volume.AtlasPair) {
	target := volume.NewImage3D(size, size, size)
	rng := rand.New(rand.NewSource(7))
	for i := range target.Data {
		target.Data[i] = rng.Float64()
	}

	intensity := volume.NewImage3D(size, size, size)
	copy(intensity.Data, target.Data)

	label := volume.NewImage3D(size, size, size)
	for i := range label.Data {
		label.Data[i] = 9
	}

	return target, []volume.AtlasPair{{Intensity: intensity, Label: label}}
}

func TestEstimateMemoryBytes(t *testing.T) {
	got := EstimateMemoryBytes(10, 10, 10, 3, 2, false)
	want := int64(10*10*10) * int64(2+3) * bytesPerSample
	if got != want {
		t.Errorf("EstimateMemoryBytes = %d, want %d", got, want)
	}

	withMaps := EstimateMemoryBytes(10, 10, 10, 3, 2, true)
	if withMaps <= got {
		t.Error("expected enabling weight maps to increase the estimate")
	}
}

func TestRunUniformLabelsShortcutsWholeVolume(t *testing.T) {
	target, atlases := buildTestVolumes(8)
	params := Params{
		Fusion: fusion.Params{
			PatchRadius:  geometry.Radius{X: 1, Y: 1, Z: 1},
			SearchRadius: geometry.Radius{X: 1, Y: 1, Z: 1},
			Alpha:        0.1,
			Beta:         2,
		},
		NumWorkers: 2,
	}

	result, err := Run(context.Background(), target, atlases, nil, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, v := range result.Output.Data {
		if v != 9 {
			t.Fatalf("Output.Data[%d] = %f, want 9 (all atlases agree everywhere)", i, v)
		}
	}
}

func TestRunWritesEveryVoxelIncludingTheBoundaryShell(t *testing.T) {
	// Two atlases disagree everywhere (labels 1 and 2, never 0), and
	// patchRadius (1) exceeds what searchRadius (1) alone would keep
	// safely bufferable, so voxels right at the volume boundary have no
	// safely-buffered patch+search neighborhood unless the driver widens
	// its working region for them. Any voxel left at its zero-initialized
	// value (label 0, present in neither atlas) fails this directly.
	size := 6
	target := volume.NewImage3D(size, size, size)
	rng := rand.New(rand.NewSource(11))
	for i := range target.Data {
		target.Data[i] = rng.Float64()
	}

	intensity1 := volume.NewImage3D(size, size, size)
	copy(intensity1.Data, target.Data)
	label1 := volume.NewImage3D(size, size, size)
	for i := range label1.Data {
		label1.Data[i] = 1
	}

	intensity2 := volume.NewImage3D(size, size, size)
	copy(intensity2.Data, target.Data)
	label2 := volume.NewImage3D(size, size, size)
	for i := range label2.Data {
		label2.Data[i] = 2
	}

	atlases := []volume.AtlasPair{
		{Intensity: intensity1, Label: label1},
		{Intensity: intensity2, Label: label2},
	}

	params := Params{
		Fusion: fusion.Params{
			PatchRadius:  geometry.Radius{X: 1, Y: 1, Z: 1},
			SearchRadius: geometry.Radius{X: 1, Y: 1, Z: 1},
			Alpha:        0.1,
			Beta:         2,
		},
		NumWorkers: 2,
	}

	result, err := Run(context.Background(), target, atlases, nil, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Output.Data) != size*size*size {
		t.Fatalf("Output has %d samples, want %d", len(result.Output.Data), size*size*size)
	}
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				v := result.Output.At(x, y, z)
				if v != 1 && v != 2 {
					t.Fatalf("Output.At(%d,%d,%d) = %f, want 1 or 2 (never the zero-initialized default)", x, y, z, v)
				}
			}
		}
	}
}

func TestRunReturnsResourceExhaustionForTinyBudget(t *testing.T) {
	target, atlases := buildTestVolumes(8)
	params := Params{
		Fusion: fusion.Params{
			PatchRadius:  geometry.Radius{X: 1, Y: 1, Z: 1},
			SearchRadius: geometry.Radius{X: 1, Y: 1, Z: 1},
		},
		MemoryBudgetBytes: 1,
	}

	_, err := Run(context.Background(), target, atlases, nil, params)
	if !errors.Is(err, ErrResourceExhaustion) {
		t.Fatalf("expected ErrResourceExhaustion, got %v", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	target, atlases := buildTestVolumes(12)
	// Break the unanimous-label shortcut for most voxels so the main loop
	// has real work to cancel mid-flight.
	for i := range atlases[0].Label.Data {
		if i%2 == 0 {
			atlases[0].Label.Data[i] = 1
		} else {
			atlases[0].Label.Data[i] = 2
		}
	}

	params := Params{
		Fusion: fusion.Params{
			PatchRadius:  geometry.Radius{X: 1, Y: 1, Z: 1},
			SearchRadius: geometry.Radius{X: 1, Y: 1, Z: 1},
			Alpha:        0.1,
			Beta:         2,
		},
		NumWorkers: 1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, target, atlases, nil, params)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled for an already-cancelled context, got %v", err)
	}
}

func TestRunRetainPosteriorsControlsResultField(t *testing.T) {
	target, atlases := buildTestVolumes(6)
	base := fusion.Params{
		PatchRadius:  geometry.Radius{X: 1, Y: 1, Z: 1},
		SearchRadius: geometry.Radius{X: 1, Y: 1, Z: 1},
		Alpha:        0.1,
		Beta:         2,
	}

	withoutRetain, err := Run(context.Background(), target, atlases, nil, Params{Fusion: base})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if withoutRetain.Posteriors != nil {
		t.Error("expected Posteriors to be nil when RetainPosteriors is false")
	}

	retainParams := base
	retainParams.RetainPosteriors = true
	withRetain, err := Run(context.Background(), target, atlases, nil, Params{Fusion: retainParams})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if withRetain.Posteriors == nil {
		t.Error("expected Posteriors to be populated when RetainPosteriors is true")
	}
}
