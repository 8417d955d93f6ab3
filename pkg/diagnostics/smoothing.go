package diagnostics

import (
	"math"
	"sort"

	"mrilabelfusion/internal/volume"
)

// edgeThreshold marks a pixel as an edge once its normalized shearlet
// response exceeds this value.
const edgeThreshold = 0.2

// ApplyEdgePreservedSmoothing runs mean-median smoothing on the 3x3
// neighborhoods of flagged edge pixels of a square slice whose surrounding
// edge orientations are incoherent. Pixels around coherent edges and
// pixels away from any flagged edge are left unchanged. data must be a
// perfect square in length; non-square input is returned unchanged.
func (t *EdgeTransform) ApplyEdgePreservedSmoothing(data []float64) []float64 {
	n := len(data)
	result := make([]float64, n)
	copy(result, data)

	size := int(math.Sqrt(float64(n)))
	if size*size != n {
		return result
	}

	info := t.DetectEdgesWithOrientation(data)
	edgePixels := make([]bool, n)
	for i, e := range info.Edges {
		edgePixels[i] = e > edgeThreshold
	}

	for i := 1; i < size-1; i++ {
		for j := 1; j < size-1; j++ {
			idx := i*size + j
			if !edgePixels[idx] {
				continue
			}
			orientations, changed := processEdgeWindow(i, j, size, edgePixels, info.Orientations)
			if changed {
				applyMeanMedianLogic(result, i, j, size, orientations[idx])
			}
		}
	}

	return result
}

func processEdgeWindow(x, y, size int, edgePixels []bool, orientations []float64) ([]float64, bool) {
	const windowSize = 16
	indices := make([]int, 0, windowSize)

	for i := x - 2; i <= x+2 && len(indices) < windowSize; i++ {
		for j := y - 2; j <= y+2 && len(indices) < windowSize; j++ {
			if i < 0 || i >= size || j < 0 || j >= size {
				continue
			}
			idx := i*size + j
			if edgePixels[idx] {
				indices = append(indices, idx)
			}
		}
	}

	if len(indices) < 3 {
		return orientations, false
	}

	changes := 0
	for i := 1; i < len(indices); i++ {
		if math.Abs(orientations[indices[i]]-orientations[indices[i-1]]) > 0.2 {
			changes++
		}
	}

	if float64(changes)/float64(len(indices)) <= 0.3 {
		return orientations, false
	}

	sum := 0.0
	for _, idx := range indices {
		sum += orientations[idx]
	}
	mean := sum / float64(len(indices))

	out := make([]float64, len(orientations))
	copy(out, orientations)
	for _, idx := range indices {
		out[idx] = mean
	}
	return out, true
}

func applyMeanMedianLogic(data []float64, x, y, size int, orientation float64) {
	horizontal := orientation >= -math.Pi/4 && orientation < math.Pi/4

	var left, right []float64
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			if i == 0 && j == 0 {
				continue
			}
			ni, nj := x+i, y+j
			if ni < 0 || ni >= size || nj < 0 || nj >= size {
				continue
			}
			var onLeft bool
			if horizontal {
				if i == 0 {
					continue
				}
				onLeft = i < 0
			} else {
				if j == 0 {
					continue
				}
				onLeft = j < 0
			}
			if onLeft {
				left = append(left, data[ni*size+nj])
			} else {
				right = append(right, data[ni*size+nj])
			}
		}
	}

	if len(left)+len(right) < 6 {
		return
	}

	leftMedian, rightMedian := median(left), median(right)

	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			if i == 0 && j == 0 {
				continue
			}
			ni, nj := x+i, y+j
			if ni < 0 || ni >= size || nj < 0 || nj >= size {
				continue
			}
			var onLeft bool
			if horizontal {
				onLeft = i < 0
			} else {
				onLeft = j < 0
			}
			if onLeft {
				data[ni*size+nj] = leftMedian
			} else {
				data[ni*size+nj] = rightMedian
			}
		}
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// SmoothWeightMapSlice pads a width x height slice up to the next perfect
// square (edge-replicated), runs edge-preserving smoothing, and crops back,
// so ApplyEdgePreservedSmoothing's square-slice assumption can be reused on
// the rectangular slices real volumes actually have.
func SmoothWeightMapSlice(t *EdgeTransform, data []float64, width, height int) []float64 {
	side := width
	if height > side {
		side = height
	}
	padded := make([]float64, side*side)
	for y := 0; y < side; y++ {
		sy := clamp(y, height)
		for x := 0; x < side; x++ {
			sx := clamp(x, width)
			padded[y*side+x] = data[sy*width+sx]
		}
	}

	smoothed := t.ApplyEdgePreservedSmoothing(padded)

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = smoothed[y*side+x]
		}
	}
	return out
}

func clamp(v, n int) int {
	if v >= n {
		return n - 1
	}
	return v
}

// SmoothWeightVolume smooths every Z slice of a weight map into a new
// volume, leaving wm unchanged, using the shearlet edge-preserving filter. It never changes the
// values that feed the argmax decision: it operates only on a diagnostic
// copy the caller chooses to export.
func SmoothWeightVolume(t *EdgeTransform, wm *volume.Image3D) *volume.Image3D {
	out := volume.NewImage3D(wm.X, wm.Y, wm.Z)
	out.SpacingX, out.SpacingY, out.SpacingZ = wm.SpacingX, wm.SpacingY, wm.SpacingZ

	sliceLen := wm.X * wm.Y
	slice := make([]float64, sliceLen)
	for z := 0; z < wm.Z; z++ {
		base := z * wm.StrideZ
		copy(slice, wm.Data[base:base+sliceLen])
		smoothed := SmoothWeightMapSlice(t, slice, wm.X, wm.Y)
		copy(out.Data[base:base+sliceLen], smoothed)
	}
	return out
}
