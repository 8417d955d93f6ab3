// Package driver allocates the fusion engine's buffers, discovers the label
// set, and schedules the parallel per-tile main loop.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/fusion"
)

// ErrResourceExhaustion is returned when the estimated buffer footprint
// exceeds a caller-supplied memory budget, surfaced before processing
// begins.
var ErrResourceExhaustion = errors.New("driver: estimated memory exceeds budget")

// ErrCancelled is returned when the caller's context is cancelled between
// voxels. It is a non-error termination in the sense that partial buffers
// are simply discarded by the caller, but it is still surfaced as an error
// value so callers can distinguish it from success.
var ErrCancelled = errors.New("driver: cancelled")

// bytesPerSample is the memory footprint of one float64 voxel sample.
const bytesPerSample = 8

// ProgressCallback reports coarse progress through the main loop as
// (completed, total, message).
type ProgressCallback func(completed, total int, message string)

// Params bundles the fusion engine's estimator parameters with the
// resource and scheduling knobs that are the driver's own concern.
type Params struct {
	Fusion fusion.Params

	// MemoryBudgetBytes caps estimated buffer memory; zero means unlimited.
	MemoryBudgetBytes int64

	// NumWorkers is the number of contiguous voxel-index chunks processed
	// concurrently; if <= 0, a single worker is used.
	NumWorkers int

	Progress ProgressCallback
}

// Result holds the driver's outputs.
type Result struct {
	Output     *volume.Image3D
	Posteriors volume.PosteriorMap
	WeightMaps volume.WeightMapArray
	Histogram  []int
}

// EstimateMemoryBytes reports the approximate buffer footprint for a run:
// one Output buffer, one Mask buffer, one posterior buffer per label, and
// (if diagnostics are enabled) one weight-map buffer per atlas.
func EstimateMemoryBytes(x, y, z, numLabels, numAtlases int, generateWeightMaps bool) int64 {
	voxels := int64(x) * int64(y) * int64(z)
	buffers := int64(2 + numLabels) // Output + Mask + posteriors
	if generateWeightMaps {
		buffers += int64(numAtlases)
	}
	return voxels * buffers * bytesPerSample
}

// Run allocates outputs, computes the unique-label shortcut, and runs the
// parallel main loop over the remaining voxels.
//
// The target and every atlas are first grown by patchRadius+searchRadius on
// every side via edge-replicate padding, so every voxel in the caller's
// original volume keeps a fully buffered patch and search neighborhood no
// matter how close it sits to the volume boundary. Outputs are cropped back
// to the original extents before being returned, so this padding is
// invisible to the caller.
func Run(ctx context.Context, target *volume.Image3D, atlases []volume.AtlasPair, exclusions volume.ExclusionMap, params Params) (*Result, error) {
	origX, origY, origZ := target.X, target.Y, target.Z
	rx := params.Fusion.PatchRadius.X + params.Fusion.SearchRadius.X
	ry := params.Fusion.PatchRadius.Y + params.Fusion.SearchRadius.Y
	rz := params.Fusion.PatchRadius.Z + params.Fusion.SearchRadius.Z

	paddedTarget := padReplicate(target, rx, ry, rz)
	paddedAtlases := make([]volume.AtlasPair, len(atlases))
	for i, a := range atlases {
		paddedAtlases[i] = volume.AtlasPair{
			Intensity: padReplicate(a.Intensity, rx, ry, rz),
			Label:     padReplicate(a.Label, rx, ry, rz),
		}
	}
	paddedExclusions := padExclusions(exclusions, rx, ry, rz)

	engine, err := fusion.NewEngine(paddedTarget, paddedAtlases, paddedExclusions, params.Fusion)
	if err != nil {
		return nil, err
	}

	if params.MemoryBudgetBytes > 0 {
		estimate := EstimateMemoryBytes(paddedTarget.X, paddedTarget.Y, paddedTarget.Z, len(engine.Labels), len(atlases), params.Fusion.GenerateWeightMaps)
		if estimate > params.MemoryBudgetBytes {
			return nil, fmt.Errorf("%w: estimated %d bytes, budget %d", ErrResourceExhaustion, estimate, params.MemoryBudgetBytes)
		}
	}

	output := volume.NewImage3D(paddedTarget.X, paddedTarget.Y, paddedTarget.Z)
	mask := volume.NewImage3D(paddedTarget.X, paddedTarget.Y, paddedTarget.Z)
	fusion.ComputeUniqueMask(paddedAtlases, engine.SearchTable, output, mask)

	posteriors := volume.NewPosteriorMap(engine.Labels, paddedTarget.X, paddedTarget.Y, paddedTarget.Z)

	var sink fusion.WeightMapSink = fusion.NoopSink{}
	var weightMaps volume.WeightMapArray
	if params.Fusion.GenerateWeightMaps {
		weightMaps = volume.NewWeightMapArray(len(atlases), paddedTarget.X, paddedTarget.Y, paddedTarget.Z)
		sink = fusion.NewBufferSink(weightMaps)
	}

	histogram := make([]int, engine.SearchTable.MaxManhattan()+1)

	numWorkers := params.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	loX, hiX, loY, hiY, loZ, hiZ := engine.SafeBounds()

	var toProcess []int
	for z := loZ; z <= hiZ; z++ {
		for y := loY; y <= hiY; y++ {
			for x := loX; x <= hiX; x++ {
				idx := paddedTarget.Index(x, y, z)
				if mask.Data[idx] != 0 {
					toProcess = append(toProcess, idx)
				}
			}
		}
	}

	if err := runTiles(ctx, engine, toProcess, posteriors, sink, histogram, numWorkers, params.Progress); err != nil {
		return nil, err
	}

	engine.Finalize(posteriors, output, toProcess)

	result := &Result{
		Output:    cropInterior(output, rx, ry, rz, origX, origY, origZ),
		Histogram: histogram,
	}
	if weightMaps != nil {
		croppedMaps := make(volume.WeightMapArray, len(weightMaps))
		for i, wm := range weightMaps {
			croppedMaps[i] = cropInterior(wm, rx, ry, rz, origX, origY, origZ)
		}
		result.WeightMaps = croppedMaps
	}
	if params.Fusion.RetainPosteriors {
		croppedPosteriors := make(volume.PosteriorMap, len(posteriors))
		for label, p := range posteriors {
			croppedPosteriors[label] = cropInterior(p, rx, ry, rz, origX, origY, origZ)
		}
		result.Posteriors = croppedPosteriors
	}
	return result, nil
}

type tileOutcome struct {
	acc *fusion.Accumulator
	hist []int
	err  error
}

// runTiles partitions toProcess into numWorkers contiguous chunks, each
// processed by a goroutine with a private Accumulator, avoiding a shared
// posterior write conflict. Chunks (not Z slabs) are used because the
// unique-label pre-pass already removed unanimous voxels non-uniformly
// across the volume, so a fixed-count split balances load better than a
// fixed-geometry one.
func runTiles(ctx context.Context, engine *fusion.Engine, toProcess []int, globalPosteriors volume.PosteriorMap, sink fusion.WeightMapSink, histogram []int, numWorkers int, progress ProgressCallback) error {
	total := len(toProcess)
	if total == 0 {
		return nil
	}
	if numWorkers > total {
		numWorkers = total
	}

	chunkSize := (total + numWorkers - 1) / numWorkers
	outcomes := make(chan tileOutcome, numWorkers)

	var wg sync.WaitGroup
	var completed int
	var completedMu sync.Mutex

	patchLen := engine.PatchTable.Len()

	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(indices []int) {
			defer wg.Done()

			acc := fusion.NewAccumulator(engine.Labels, engine.Target.X, engine.Target.Y, engine.Target.Z)
			localHist := make([]int, len(histogram))
			work := fusion.NewVoxelWork(len(engine.Atlases), patchLen)

			for _, idx := range indices {
				if ctx != nil {
					select {
					case <-ctx.Done():
						outcomes <- tileOutcome{err: fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())}
						return
					default:
					}
				}

				if err := engine.ProcessVoxel(idx, work, acc, sink, localHist); err != nil {
					outcomes <- tileOutcome{err: err}
					return
				}
			}

			completedMu.Lock()
			completed += len(indices)
			if progress != nil {
				progress(completed, total, "fusing voxels")
			}
			completedMu.Unlock()

			outcomes <- tileOutcome{acc: acc, hist: localHist}
		}(toProcess[start:end])
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var firstErr error
	for o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		fusion.Merge(globalPosteriors, o.acc.Posteriors)
		for i, c := range o.hist {
			histogram[i] += c
		}
	}

	return firstErr
}
