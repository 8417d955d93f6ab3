// Package fusion implements the core multi-atlas weighted-voting label
// fusion algorithm: per-voxel patch matching, SPD weight solving, and
// neighborhood-voting posterior accumulation.
package fusion

import (
	"errors"
	"fmt"

	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/geometry"
	"mrilabelfusion/pkg/patch"
)

// ErrInvalidInput is returned for configuration-time failures: mismatched
// grids, an empty atlas list, negative radii, or a negative ridge.
var ErrInvalidInput = errors.New("fusion: invalid input")

// Params holds the engine's fixed-form estimator parameters.
type Params struct {
	PatchRadius  geometry.Radius
	SearchRadius geometry.Radius
	Alpha        float64
	Beta         float64

	GenerateWeightMaps bool
	RetainPosteriors   bool
	MaskMode           bool

	SignMode patch.SignMode
}

// Engine owns the read-only inputs and precomputed geometry for one fusion
// run. The output, mask, posterior and weight-map buffers are allocated by
// the caller and passed to its methods.
type Engine struct {
	Target     *volume.Image3D
	Atlases    []volume.AtlasPair
	Exclusions volume.ExclusionMap
	Params     Params

	PatchTable  *geometry.Table
	SearchTable *geometry.Table
	Labels      []float64
}

// NewEngine validates inputs, builds the patch and search offset tables
// against the target's strides, and discovers the label set. It performs no
// per-voxel work.
func NewEngine(target *volume.Image3D, atlases []volume.AtlasPair, exclusions volume.ExclusionMap, params Params) (*Engine, error) {
	if len(atlases) == 0 {
		return nil, fmt.Errorf("%w: at least one atlas is required", ErrInvalidInput)
	}
	if params.Alpha < 0 {
		return nil, fmt.Errorf("%w: alpha must be nonnegative, got %v", ErrInvalidInput, params.Alpha)
	}
	if params.Beta < 0 {
		return nil, fmt.Errorf("%w: beta must be nonnegative, got %v", ErrInvalidInput, params.Beta)
	}
	if err := volume.ValidateGrids(target, atlases); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	patchTable, err := geometry.Build(params.PatchRadius, target.StrideX, target.StrideY, target.StrideZ)
	if err != nil {
		return nil, fmt.Errorf("%w: patch radius: %v", ErrInvalidInput, err)
	}
	searchTable, err := geometry.Build(params.SearchRadius, target.StrideX, target.StrideY, target.StrideZ)
	if err != nil {
		return nil, fmt.Errorf("%w: search radius: %v", ErrInvalidInput, err)
	}

	return &Engine{
		Target:      target,
		Atlases:     atlases,
		Exclusions:  exclusions,
		Params:      params,
		PatchTable:  patchTable,
		SearchTable: searchTable,
		Labels:      volume.LabelSet(atlases),
	}, nil
}

// SafeBounds returns the per-axis [lo,hi] voxel-coordinate range for which a
// center keeps both the patch and the search neighborhood entirely inside
// the buffered image, on every axis. Only voxels within this box are
// eligible for the main loop: voxels the buffer can't support are simply
// never processed there. ComputeUniqueMask bounds its own pass by the
// search radius alone.
func (e *Engine) SafeBounds() (loX, hiX, loY, hiY, loZ, hiZ int) {
	rx := e.Params.PatchRadius.X + e.Params.SearchRadius.X
	ry := e.Params.PatchRadius.Y + e.Params.SearchRadius.Y
	rz := e.Params.PatchRadius.Z + e.Params.SearchRadius.Z
	loX, hiX = geometry.SafeInterior(e.Target.X, rx)
	loY, hiY = geometry.SafeInterior(e.Target.Y, ry)
	loZ, hiZ = geometry.SafeInterior(e.Target.Z, rz)
	return
}

// VoxelWork holds the reusable patch scratch buffers ProcessVoxel needs,
// sized once per worker so the target and atlas patch samples are not
// reallocated per voxel. The per-voxel candidate list, apd vectors and
// solver matrices are still allocated on every call.
type VoxelWork struct {
	u   []float64
	v   []float64
	apd [][]float64
}

// NewVoxelWork allocates scratch buffers for an engine with n atlases and a
// patch table of the given length.
func NewVoxelWork(n, patchLen int) *VoxelWork {
	return &VoxelWork{
		u:   make([]float64, patchLen),
		v:   make([]float64, patchLen),
		apd: make([][]float64, n),
	}
}

// ProcessVoxel runs one iteration of the main loop for target voxel at
// linear index idx: normalize the target patch, match every atlas, solve
// for weights, optionally record the weight map, and vote into acc. It
// requires idx to lie within SafeBounds.
func (e *Engine) ProcessVoxel(idx int, work *VoxelWork, acc *Accumulator, sink WeightMapSink, histogram []int) error {
	stats := patch.Compute(e.Target.Data, idx, e.PatchTable.Offsets)
	patch.Normalize(work.u, e.Target.Data, idx, e.PatchTable.Offsets, stats)

	candidates := make([]patch.Candidate, len(e.Atlases))
	for i, a := range e.Atlases {
		cand := patch.Match(work.u, a.Intensity.Data, idx, e.SearchTable.Offsets, e.PatchTable.Offsets, e.Params.SignMode)
		candidates[i] = cand
		if histogram != nil {
			histogram[e.SearchTable.Manhattan[cand.SearchOffsetIndex]]++
		}

		for m, po := range e.PatchTable.Offsets {
			work.v[m] = a.Intensity.Data[cand.Center+po]
		}
		work.apd[i] = BuildAPD(work.u, work.v)
	}

	result, err := Solve(work.apd, e.Params.Alpha, e.Params.Beta, idx)
	if err != nil {
		return err
	}

	sink.Record(idx, result.Weights)

	for _, po := range e.PatchTable.Offsets {
		y := idx + po
		for i, a := range e.Atlases {
			label := a.Label.Data[candidates[i].Center+po]
			acc.Vote(y, label, result.Weights[i])
		}
	}

	return nil
}

// Finalize runs the argmax pass over every voxel index in indices, writing
// the winning label to Output respecting exclusions, or 0 if every label is
// excluded there.
func (e *Engine) Finalize(pm volume.PosteriorMap, output *volume.Image3D, indices []int) {
	for _, idx := range indices {
		label, _ := Argmax(pm, idx, e.Labels, e.Exclusions)
		output.Data[idx] = label
	}
}
