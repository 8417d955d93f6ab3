package diagnostics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// VariogramModel selects the structural component of the ordinary-kriging
// covariance model.
type VariogramModel int

const (
	Spherical VariogramModel = iota
	Exponential
	Gaussian
)

// VariogramParams parameterizes the variogram model: Nugget is the
// discontinuity at h=0, Sill is the variance at which the variogram
// plateaus, and Range is the distance at which it reaches the sill.
type VariogramParams struct {
	Model  VariogramModel
	Nugget float64
	Sill   float64
	Range  float64
}

// samplePoint is a labeled 3D location used as kriging input.
type samplePoint struct {
	x, y, z float64
	value   float64
}

// SparseWeightPreview reconstructs a full-resolution preview of a weight
// map slice from a strided sparse sample of it via ordinary kriging, so a
// caller can see how much spatial structure a coarse sample keeps. It is
// built from the complete slice, so the weight map must already exist.
type SparseWeightPreview struct {
	samples []samplePoint
	params  VariogramParams
}

// NewSparseWeightPreview samples data (width x height, row-major) every
// stride voxels along each axis and fits a spherical variogram with a
// range proportional to the sample spacing.
func NewSparseWeightPreview(data []float64, width, height, stride int) *SparseWeightPreview {
	if stride < 1 {
		stride = 1
	}
	var samples []samplePoint
	for y := 0; y < height; y += stride {
		for x := 0; x < width; x += stride {
			samples = append(samples, samplePoint{x: float64(x), y: float64(y), value: data[y*width+x]})
		}
	}

	return &SparseWeightPreview{
		samples: samples,
		params: VariogramParams{
			Model:  Spherical,
			Nugget: 0,
			Sill:   sampleVariance(samples),
			Range:  float64(stride) * 2,
		},
	}
}

func sampleVariance(samples []samplePoint) float64 {
	if len(samples) == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s.value
	}
	mean /= float64(len(samples))

	var v float64
	for _, s := range samples {
		d := s.value - mean
		v += d * d
	}
	return v / float64(len(samples))
}

func (p *SparseWeightPreview) variogram(h float64) float64 {
	if h == 0 {
		return 0
	}
	gamma := p.params.Nugget
	switch p.params.Model {
	case Spherical:
		if h < p.params.Range {
			r := h / p.params.Range
			gamma += p.params.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += p.params.Sill
		}
	case Exponential:
		gamma += p.params.Sill * (1 - math.Exp(-3*h/p.params.Range))
	case Gaussian:
		gamma += p.params.Sill * (1 - math.Exp(-3*h*h/(p.params.Range*p.params.Range)))
	}
	return gamma
}

func distance2D(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return math.Sqrt(dx*dx + dy*dy)
}

// EstimateAt interpolates the value at (x, y) using the nearest maxNeighbors
// samples, solving the ordinary-kriging system (variogram matrix bordered
// by a Lagrange multiplier row/column enforcing weights summing to one)
// with a QR decomposition.
func (p *SparseWeightPreview) EstimateAt(x, y float64, maxNeighbors int) float64 {
	neighbors := p.nearest(x, y, maxNeighbors)
	n := len(neighbors)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return neighbors[0].value
	}

	size := n + 1
	flat := make([]float64, size*size)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			h := distance2D(neighbors[i].x, neighbors[i].y, neighbors[j].x, neighbors[j].y)
			flat[i*size+j] = p.variogram(h)
		}
		flat[i*size+n] = 1
		flat[n*size+i] = 1
	}

	target := make([]float64, size)
	for i := 0; i < n; i++ {
		target[i] = p.variogram(distance2D(x, y, neighbors[i].x, neighbors[i].y))
	}
	target[n] = 1

	weights := solveKrigingSystem(flat, target, size)

	var estimate float64
	for i := 0; i < n; i++ {
		estimate += weights[i] * neighbors[i].value
	}
	return estimate
}

func (p *SparseWeightPreview) nearest(x, y float64, maxNeighbors int) []samplePoint {
	if maxNeighbors <= 0 || maxNeighbors > len(p.samples) {
		maxNeighbors = len(p.samples)
	}
	sorted := append([]samplePoint(nil), p.samples...)
	sort.Slice(sorted, func(i, j int) bool {
		return distance2D(x, y, sorted[i].x, sorted[i].y) < distance2D(x, y, sorted[j].x, sorted[j].y)
	})
	return sorted[:maxNeighbors]
}

// solveKrigingSystem solves the n x n bordered variogram system with a
// small ridge added to the diagonal for numerical stability, falling back
// to the unweighted mean of the non-Lagrange rows if the QR solve fails.
func solveKrigingSystem(flat []float64, target []float64, size int) []float64 {
	a := mat.NewDense(size, size, flat)
	for i := 0; i < size-1; i++ {
		a.Set(i, i, a.At(i, i)+1e-6)
	}
	b := mat.NewVecDense(size, target)

	var qr mat.QR
	qr.Factorize(a)

	x := mat.NewDense(size, 1, nil)
	if err := qr.SolveTo(x, false, b); err != nil {
		weights := make([]float64, size)
		for i := 0; i < size-1; i++ {
			weights[i] = 1.0 / float64(size-1)
		}
		return weights
	}

	weights := make([]float64, size)
	for i := 0; i < size; i++ {
		weights[i] = x.At(i, 0)
	}
	return weights
}

// FullPreview reconstructs an interpolated width x height grid from the
// sparse samples, using up to maxNeighbors nearest samples per voxel.
func (p *SparseWeightPreview) FullPreview(width, height, maxNeighbors int) []float64 {
	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = p.EstimateAt(float64(x), float64(y), maxNeighbors)
		}
	}
	return out
}
