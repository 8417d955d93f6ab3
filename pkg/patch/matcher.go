package patch

// Candidate is the result of a search-neighborhood match: the chosen
// search offset, the resulting candidate center's flat index, and the raw
// sum and sum of squares of the winning patch's samples.
type Candidate struct {
	SearchOffsetIndex int
	Center            int
	SumV              float64
	SumVSq            float64
}

// varFloor is the minimum unnormalized variance used to avoid division by
// zero when scoring a flat candidate patch.
const varFloor = 1e-6

// SignMode selects between two sign conventions for handling negative
// correlation during patch matching.
type SignMode int

const (
	// PenalizeAnticorrelation reproduces the shipped behavior: scores for
	// S<=0 are positive (worse), scores for S>0 are negative (better), so
	// anticorrelated candidates are actively avoided rather than merely
	// not preferred.
	PenalizeAnticorrelation SignMode = iota
	// SymmetricCorrelation implements the metric implied by the source
	// comment, -(S)^2/var unconditionally, so sign of S never flips which
	// candidates look attractive relative to each other beyond magnitude.
	SymmetricCorrelation
)

// Match scans every offset in the search table, evaluates the candidate
// center it addresses in atlasData, and returns the offset index minimizing
// the similarity score. Ties resolve to the first offset encountered
// (stable, deterministic iteration order).
//
// u is the pre-normalized target patch (mean 0, std 1, length equal to
// patchOffsets). searchCenter is the flat index of the search
// neighborhood's own center (i.e. the target voxel's corresponding position
// in the atlas). The caller must guarantee that every searchCenter+searchOffset
// plus every patchOffset addresses a buffered sample; PatchGeometry's
// safe-interior helper exists precisely to make that guarantee cheap to
// establish once, up front.
func Match(u []float64, atlasData []float64, searchCenter int, searchOffsets []int, patchOffsets []int, mode SignMode) Candidate {
	best := Candidate{SearchOffsetIndex: -1}
	bestScore := 0.0

	n := float64(len(patchOffsets))

	for k, so := range searchOffsets {
		candidateCenter := searchCenter + so

		var s, sumV, sumVSq float64
		for i, po := range patchOffsets {
			v := atlasData[candidateCenter+po]
			s += u[i] * v
			sumV += v
			sumVSq += v * v
		}

		varUnnorm := sumVSq - sumV*sumV/n
		if varUnnorm < varFloor {
			varUnnorm = varFloor
		}

		score := s * s / varUnnorm
		switch mode {
		case SymmetricCorrelation:
			score = -score
		default: // PenalizeAnticorrelation
			if s > 0 {
				score = -score
			}
		}

		if best.SearchOffsetIndex == -1 || score < bestScore {
			bestScore = score
			best = Candidate{
				SearchOffsetIndex: k,
				Center:            candidateCenter,
				SumV:              sumV,
				SumVSq:            sumVSq,
			}
		}
	}

	return best
}
