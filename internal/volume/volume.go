// Package volume defines the shared data model for the label-fusion engine:
// dense 3D sample grids, atlas pairs, and the label/posterior/weight buffers
// the fusion pipeline reads and writes.
package volume

import (
	"fmt"
	"sort"
)

// Image3D is a dense 3D array of scalar samples sharing one grid definition.
// Intensity images use float64 samples; label images store label values as
// float64 as well so the same buffer type serves both roles.
type Image3D struct {
	Data []float64

	X, Y, Z int

	// StrideX, StrideY, StrideZ are the linear-index strides for each axis.
	// For a row-major volume, StrideX=1, StrideY=X, StrideZ=X*Y.
	StrideX, StrideY, StrideZ int

	OriginX, OriginY, OriginZ    float64
	SpacingX, SpacingY, SpacingZ float64

	// Orientation is a flattened 3x3 direction cosine matrix, identity by
	// default. Two images are grid-compatible only if this matches.
	Orientation [9]float64
}

// IdentityOrientation is the default direction-cosine matrix.
var IdentityOrientation = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NewImage3D allocates a zero-filled Image3D with row-major strides and an
// identity orientation.
func NewImage3D(x, y, z int) *Image3D {
	return &Image3D{
		Data:        make([]float64, x*y*z),
		X:           x,
		Y:           y,
		Z:           z,
		StrideX:     1,
		StrideY:     x,
		StrideZ:     x * y,
		SpacingX:    1,
		SpacingY:    1,
		SpacingZ:    1,
		Orientation: IdentityOrientation,
	}
}

// Index converts a 3D voxel coordinate to a flat linear index.
func (img *Image3D) Index(x, y, z int) int {
	return z*img.StrideZ + y*img.StrideY + x*img.StrideX
}

// InBounds reports whether the coordinate lies inside the image extents.
func (img *Image3D) InBounds(x, y, z int) bool {
	return x >= 0 && x < img.X && y >= 0 && y < img.Y && z >= 0 && z < img.Z
}

// At returns the sample at (x,y,z).
func (img *Image3D) At(x, y, z int) float64 {
	return img.Data[img.Index(x, y, z)]
}

// Set stores a sample at (x,y,z).
func (img *Image3D) Set(x, y, z int, v float64) {
	img.Data[img.Index(x, y, z)] = v
}

const spacingTolerance = 1e-6

// SameGrid reports whether two images share identical extents, voxel
// spacing (within tolerance), and orientation.
func (img *Image3D) SameGrid(other *Image3D) bool {
	if img.X != other.X || img.Y != other.Y || img.Z != other.Z {
		return false
	}
	if absDiff(img.SpacingX, other.SpacingX) > spacingTolerance ||
		absDiff(img.SpacingY, other.SpacingY) > spacingTolerance ||
		absDiff(img.SpacingZ, other.SpacingZ) > spacingTolerance {
		return false
	}
	for i := range img.Orientation {
		if absDiff(img.Orientation[i], other.Orientation[i]) > spacingTolerance {
			return false
		}
	}
	return true
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

// AtlasPair pairs a co-registered intensity image with its label image.
type AtlasPair struct {
	Intensity *Image3D
	Label     *Image3D
}

// ValidateGrids checks that the target and every atlas pair share the same
// grid. Returns a descriptive error naming the offending atlas index on
// mismatch.
func ValidateGrids(target *Image3D, atlases []AtlasPair) error {
	for i, a := range atlases {
		if a.Intensity == nil || a.Label == nil {
			return fmt.Errorf("atlas %d: intensity and label images are required", i)
		}
		if !target.SameGrid(a.Intensity) {
			return fmt.Errorf("atlas %d: intensity image grid does not match target grid", i)
		}
		if !target.SameGrid(a.Label) {
			return fmt.Errorf("atlas %d: label image grid does not match target grid", i)
		}
	}
	return nil
}

// ExclusionMap maps a label value to a mask image (nonzero = excluded at
// that voxel). Keys are unique by construction (a Go map).
type ExclusionMap map[float64]*Image3D

// PosteriorMap maps a label value to its per-voxel weight-accumulation
// buffer. Created lazily by scanning atlas label images for unique values;
// keys are fixed after LabelSet is called once.
type PosteriorMap map[float64]*Image3D

// LabelSet returns the sorted set of unique label values found across all
// atlas label images, restricted to no region in particular (callers pass
// already-cropped images if a region restriction is desired).
func LabelSet(atlases []AtlasPair) []float64 {
	seen := make(map[float64]struct{})
	for _, a := range atlases {
		for _, v := range a.Label.Data {
			seen[v] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)
	return labels
}

// NewPosteriorMap allocates one accumulator Image3D per label in labels,
// all sharing the target grid.
func NewPosteriorMap(labels []float64, x, y, z int) PosteriorMap {
	pm := make(PosteriorMap, len(labels))
	for _, l := range labels {
		pm[l] = NewImage3D(x, y, z)
	}
	return pm
}

// WeightMapArray holds one diagnostic spatial weight buffer per atlas.
// Only allocated when diagnostics are enabled.
type WeightMapArray []*Image3D

// NewWeightMapArray allocates n weight buffers on the target grid.
func NewWeightMapArray(n, x, y, z int) WeightMapArray {
	wm := make(WeightMapArray, n)
	for i := range wm {
		wm[i] = NewImage3D(x, y, z)
	}
	return wm
}
