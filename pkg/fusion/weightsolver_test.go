package fusion

import (
	"math"
	"testing"
)

func TestBuildAPDExactMatchIsZero(t *testing.T) {
	u := []float64{-1, 0, 1}
	// v is an affine transform of a mean-0 std-1 ramp, so after
	// standardizing v it should reproduce u exactly.
	v := []float64{2, 5, 8}

	apd := BuildAPD(u, v)
	for i, a := range apd {
		if math.Abs(a) > 1e-9 {
			t.Errorf("apd[%d] = %f, want ~0 for an affine-equivalent patch", i, a)
		}
	}
}

func TestSolveWeightsSumToOne(t *testing.T) {
	apd := [][]float64{
		{0.1, 0.2, 0.1},
		{0.5, 0.4, 0.6},
		{0.05, 0.1, 0.05},
	}

	result, err := Solve(apd, 0.1, 2, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	var sum float64
	for _, w := range result.Weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %f, want 1", sum)
	}
}

func TestSolveFavorsLowerDifferenceAtlas(t *testing.T) {
	// Atlas 0 has near-zero patch difference (a strong match); atlas 1 is
	// far off. The better atlas should get the larger weight.
	apd := [][]float64{
		{0.01, 0.01, 0.02},
		{0.9, 1.1, 1.0},
	}

	result, err := Solve(apd, 0.05, 2, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if result.Weights[0] <= result.Weights[1] {
		t.Errorf("expected the lower-difference atlas to get more weight, got %v", result.Weights)
	}
}

func TestSolveRejectsEmptyAPD(t *testing.T) {
	_, err := Solve(nil, 0.1, 2, 0)
	if err == nil {
		t.Error("expected an error for an empty apd slice")
	}
}

func TestSolveSingleAtlasGetsFullWeight(t *testing.T) {
	apd := [][]float64{{0.3, 0.1, 0.2}}
	result, err := Solve(apd, 0.1, 2, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(result.Weights) != 1 || math.Abs(result.Weights[0]-1) > 1e-9 {
		t.Errorf("expected a single atlas to receive weight 1, got %v", result.Weights)
	}
}

func TestSolveFallsBackToSVDWhenMxIsNearSingular(t *testing.T) {
	// Three atlases whose apd vectors are exact scalar multiples of one
	// another: every row of Mx is proportional to every other row, so with
	// no ridge the Gram matrix is rank-1 and Cholesky's conditioning check
	// must reject it in favor of the SVD path.
	base := []float64{0.2, 0.4, 0.1, 0.3, 0.25}
	apd := make([][]float64, 3)
	for i, scale := range []float64{1.0, 2.0, 0.5} {
		row := make([]float64, len(base))
		for m, v := range base {
			row[m] = v * scale
		}
		apd[i] = row
	}

	result, err := Solve(apd, 0, 2, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !result.UsedSVD {
		t.Errorf("expected the near-singular Mx to trigger the SVD fallback, got UsedSVD=false (rcond=%g)", result.RCond)
	}

	var sum float64
	for _, w := range result.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			t.Fatalf("weight %v is not finite", result.Weights)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %f, want 1", sum)
	}
}
