package diagnostics

import (
	"gonum.org/v1/gonum/stat"

	"mrilabelfusion/internal/volume"
)

// LabelAgreement reports what fraction of voxels in region agree between
// two label images (typically the fused Output and a single held-out
// atlas), and the SSIM-style structural similarity of their label fields
// treated as scalar signals.
type LabelAgreement struct {
	AgreementRatio float64
	SSIM           float64
}

// CompareLabels computes LabelAgreement over the given linear voxel
// indices of a and b, which must share a's grid.
func CompareLabels(a, b *volume.Image3D, indices []int) LabelAgreement {
	if len(indices) == 0 {
		return LabelAgreement{}
	}

	av := make([]float64, len(indices))
	bv := make([]float64, len(indices))
	agree := 0
	for i, idx := range indices {
		av[i] = a.Data[idx]
		bv[i] = b.Data[idx]
		if av[i] == bv[i] {
			agree++
		}
	}

	return LabelAgreement{
		AgreementRatio: float64(agree) / float64(len(indices)),
		SSIM:           ssim(av, bv),
	}
}

// ssim computes a single-window structural similarity index between two
// equal-length scalar signals.
func ssim(a, b []float64) float64 {
	const l = 1.0
	const k1, k2 = 0.01, 0.03
	c1, c2 := (k1*l)*(k1*l), (k2*l)*(k2*l)

	n := len(a)
	if n != len(b) || n == 0 {
		return 0
	}

	muA := stat.Mean(a, nil)
	muB := stat.Mean(b, nil)
	varA := stat.Variance(a, nil)
	varB := stat.Variance(b, nil)
	covAB := stat.Covariance(a, b, nil)

	num := (2*muA*muB + c1) * (2*covAB + c2)
	den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	if den == 0 {
		return 0
	}
	return num / den
}

// EdgeCorrelation compares the shearlet edge maps of two same-shape square
// slices, useful for checking that a smoothed weight map hasn't washed out
// the structure of the original.
func EdgeCorrelation(t *EdgeTransform, a, b []float64) float64 {
	edgesA := t.DetectEdgesWithOrientation(a).Edges
	edgesB := t.DetectEdgesWithOrientation(b).Edges
	return stat.Correlation(edgesA, edgesB, nil)
}
