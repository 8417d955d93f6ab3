package fusion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNumericFailure is returned when both the Cholesky and SVD solve paths
// fail for a voxel's weight system. The engine has no valid fallback at
// that point: the voxel cannot be silently skipped.
var ErrNumericFailure = errors.New("fusion: numeric failure solving weight system")

// apdMinSigmaSq is the floor applied to the winning patch's variance before
// taking its square root.
const apdMinSigmaSq = 1e-12

// svdMinSingularRatio is the smallest singular-value-to-largest ratio kept
// when the SVD fallback solves a rank-deficient system; smaller values are
// treated as zero (pseudo-inverse truncation).
const svdMinSingularRatio = 1e-12

// BuildAPD computes the absolute-patch-difference vector for one atlas from
// its winning patch's raw samples v and the pre-normalized target patch u:
//
//	m̄ = Σv/N, σ̄² clamped to ≥ 1e-12, apd[m] = |u_m - (v_m - m̄)/σ̄|
func BuildAPD(u []float64, v []float64) []float64 {
	n := float64(len(v))
	var sum, sumSq float64
	for _, x := range v {
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	variance := (sumSq - n*mean*mean) / (n - 1)
	if variance < apdMinSigmaSq {
		variance = apdMinSigmaSq
	}
	sigma := math.Sqrt(variance)

	apd := make([]float64, len(v))
	for m, x := range v {
		apd[m] = math.Abs(u[m] - (x-mean)/sigma)
	}
	return apd
}

// SolveResult carries the fused weights and which numeric path produced
// them, useful for diagnostics.
type SolveResult struct {
	Weights   []float64
	UsedSVD   bool
	RCond     float64
}

// Solve forms Mx from the per-atlas apd vectors, adds ridge alpha, solves
// M'w = 1 via Cholesky with an SVD fallback on poor conditioning, and
// renormalizes w to sum to 1. voxelIndex is only used to annotate a
// NumericFailure error with the offending voxel.
func Solve(apd [][]float64, alpha, beta float64, voxelIndex int) (SolveResult, error) {
	n := len(apd)
	if n == 0 {
		return SolveResult{}, fmt.Errorf("fusion: Solve requires at least one atlas")
	}
	npatch := float64(len(apd[0]))

	mxData := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var dot float64
			for m := range apd[i] {
				dot += apd[i][m] * apd[j][m]
			}
			v := dot / (npatch - 1)
			v = applyBeta(v, beta)
			mxData[i*n+j] = v
			mxData[j*n+i] = v
		}
	}

	for i := 0; i < n; i++ {
		mxData[i*n+i] += alpha
	}

	sym := mat.NewSymDense(n, mxData)

	var chol mat.Cholesky
	ok := chol.Factorize(sym)

	ones := onesVec(n)

	if ok {
		rcond := 1 / chol.Cond()
		if rcond > math.Sqrt(eps) {
			var x mat.VecDense
			if err := chol.SolveVecTo(&x, ones); err == nil {
				w := normalize(x.RawVector().Data[:n])
				return SolveResult{Weights: w, RCond: rcond}, nil
			}
		}
	}

	dense := mat.NewDense(n, n, mxData)
	var svd mat.SVD
	if !svd.Factorize(dense, mat.SVDFull) {
		return SolveResult{}, fmt.Errorf("%w: voxel %d: Cholesky and SVD both failed", ErrNumericFailure, voxelIndex)
	}

	rank := svd.Rank(svdMinSingularRatio)
	if rank < 1 {
		return SolveResult{}, fmt.Errorf("%w: voxel %d: SVD rank is zero", ErrNumericFailure, voxelIndex)
	}

	var x mat.Dense
	svd.SolveTo(&x, ones, rank)

	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = x.At(i, 0)
	}
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SolveResult{}, fmt.Errorf("%w: voxel %d: SVD solution is non-finite", ErrNumericFailure, voxelIndex)
		}
	}

	w := normalize(raw)
	return SolveResult{Weights: w, UsedSVD: true}, nil
}

// eps is the machine epsilon for float64, used for the sqrt(eps) rcond
// threshold above.
const eps = 2.220446049250313e-16

func applyBeta(v, beta float64) float64 {
	if beta == 2 {
		return v * v
	}
	return math.Pow(v, beta)
}

func onesVec(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewVecDense(n, data)
}

func normalize(w []float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		sum = 1
	}
	for i, v := range w {
		out[i] = v / sum
	}
	return out
}
