// Package diagnostics adapts the label-fusion engine's read-only outputs
// into optional, output-preserving instrumentation: smoothed weight-map
// visualizations, spectral summaries, agreement metrics against a
// reference labeling, and boundary-surface export. None of it feeds back
// into fusion.Engine; it only consumes what the engine already produced.
package diagnostics

import (
	"math"
	"math/cmplx"
)

// defaultWeightMapSigma is the Mexican-hat radial scale used when a caller
// doesn't pick one explicitly. Solved weight maps are far smoother than raw
// MRI intensity slices: neighboring voxels compete for similar patches, so
// a weight field varies gradually except right at a label boundary, where
// it can still step sharply. A narrow radial scale (tuned for MRI texture,
// where genuine edges sit at much higher spatial frequency) would flag
// every small ripple in a weight map as an edge and defeat the whole point
// of edge-preserving smoothing; widening it lets the filter bank respond
// mainly to the boundary-sized steps this package actually cares about.
const defaultWeightMapSigma = 0.85

// EdgeTransform implements a discrete shearlet transform over square 2D
// slices, used to find edges in a weight map so smoothing can avoid
// blurring across a label boundary.
type EdgeTransform struct {
	scales int
	sigma  float64
	psi    [][]complex128
}

// EdgeInfo holds per-pixel edge strength and dominant orientation.
type EdgeInfo struct {
	Edges        []float64
	Orientations []float64
}

// NewEdgeTransform builds the shearlet generator bank for the given number
// of scales, at the radial scale tuned for smoothing per-atlas weight maps
// (see defaultWeightMapSigma). Use NewEdgeTransformWithSigma to override it.
func NewEdgeTransform(scales int) *EdgeTransform {
	return NewEdgeTransformWithSigma(scales, defaultWeightMapSigma)
}

// NewEdgeTransformWithSigma builds the generator bank with an explicit
// Mexican-hat radial scale. Smaller values make the filter bank sensitive
// to finer, higher-frequency structure (appropriate for raw MRI slice
// intensities); larger values respond only to coarser steps (appropriate
// for the smoother fields this package usually processes).
func NewEdgeTransformWithSigma(scales int, sigma float64) *EdgeTransform {
	if scales <= 0 {
		scales = 3
	}
	if sigma <= 0 {
		sigma = defaultWeightMapSigma
	}
	t := &EdgeTransform{scales: scales, sigma: sigma}
	t.initializeGenerators(32)
	return t
}

func (t *EdgeTransform) initializeGenerators(size int) {
	t.psi = make([][]complex128, t.scales)
	for j := 0; j < t.scales; j++ {
		t.psi[j] = t.createShearletGenerator(size, j)
	}
}

func (t *EdgeTransform) createShearletGenerator(size int, scale int) []complex128 {
	psi := make([]complex128, size*size)

	a := math.Pow(2, float64(scale))
	s := 1.0

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			w1 := float64(j-size/2) / float64(size/2)
			w2 := float64(i-size/2) / float64(size/2)

			w1s := w1 + s*w2
			radial := mexicanHat(math.Sqrt(w1s*w1s+w2*w2), t.sigma)
			angular := math.Exp(-0.5 * (w2 * w2) / a)

			psi[i*size+j] = complex(radial*angular, 0)
		}
	}
	return psi
}

func mexicanHat(radius, sigma float64) float64 {
	norm := 1.0 / (math.Sqrt(2*math.Pi) * math.Pow(sigma, 5))
	r2 := radius * radius
	val := (1 - r2/(2*sigma*sigma)) * math.Exp(-r2/(2*sigma*sigma))
	return norm * val
}

func (t *EdgeTransform) getShearRange(maxShear int) []int {
	shearRange := make([]int, 2*maxShear+1)
	for i := 0; i <= 2*maxShear; i++ {
		shearRange[i] = i - maxShear
	}
	return shearRange
}

func (t *EdgeTransform) applyShearletFilter(data []float64, scale, shear, size int) []complex128 {
	result := make([]complex128, len(data))

	psi := t.psi[scale]
	psiSize := len(psi)
	genSize := int(math.Sqrt(float64(psiSize)))

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			jSheared := j + shear*i
			idx := i*size + j
			if idx >= len(data) {
				continue
			}
			if jSheared < 0 || jSheared >= size || i >= size {
				continue
			}

			iGen := i * genSize / size
			jGen := jSheared * genSize / size
			if iGen < genSize && jGen < genSize {
				idxGen := iGen*genSize + jGen
				if idxGen < psiSize {
					result[idx] = complex(data[idx], 0) * psi[idxGen]
				}
			}
		}
	}
	return result
}

// DetectEdgesWithOrientation applies the shearlet filter bank across every
// scale/shear pair and reports, per pixel, the strongest response and its
// orientation. data must represent a square image (len(data) a perfect
// square); non-square input returns zeroed output.
func (t *EdgeTransform) DetectEdgesWithOrientation(data []float64) EdgeInfo {
	n := len(data)
	size := int(math.Sqrt(float64(n)))
	if size*size != n {
		return EdgeInfo{Edges: make([]float64, n), Orientations: make([]float64, n)}
	}

	edges := make([]float64, n)
	orientations := make([]float64, n)

	coeffsMap := make([][][]complex128, t.scales)
	for scale := 0; scale < t.scales; scale++ {
		maxShear := int(math.Pow(2, float64(scale)))
		shearRange := t.getShearRange(maxShear)
		coeffsMap[scale] = make([][]complex128, len(shearRange))
		for shearIdx, shear := range shearRange {
			coeffsMap[scale][shearIdx] = t.applyShearletFilter(data, scale, shear, size)
		}
	}

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			pixelIdx := i*size + j
			maxCoeff := 0.0
			maxScale := 0
			maxShearIdx := 0

			for scale := 0; scale < t.scales; scale++ {
				maxShear := int(math.Pow(2, float64(scale)))
				shearRange := t.getShearRange(maxShear)
				for shearIdx := range shearRange {
					coeff := cmplx.Abs(coeffsMap[scale][shearIdx][pixelIdx])
					if coeff > maxCoeff {
						maxCoeff = coeff
						maxScale = scale
						maxShearIdx = shearIdx
					}
				}
			}

			edges[pixelIdx] = maxCoeff
			maxShear := int(math.Pow(2, float64(maxScale)))
			shear := t.getShearRange(maxShear)[maxShearIdx]
			orientations[pixelIdx] = math.Atan2(float64(shear), 1.0)
		}
	}

	maxEdge := 0.0
	for _, e := range edges {
		if e > maxEdge {
			maxEdge = e
		}
	}
	if maxEdge > 0 {
		for i := range edges {
			edges[i] /= maxEdge
		}
	}

	return EdgeInfo{Edges: edges, Orientations: orientations}
}
