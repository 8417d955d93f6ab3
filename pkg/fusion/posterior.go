package fusion

import "mrilabelfusion/internal/volume"

// Accumulator is a private per-worker posterior buffer: each parallel tile
// owns one Accumulator and votes into it undisturbed, and the driver merges
// tiles into the shared PosteriorMap once every tile completes. This trades
// a merge pass at the end for zero synchronization in the hot loop.
type Accumulator struct {
	Posteriors volume.PosteriorMap
}

// NewAccumulator allocates one zero-filled buffer per label in labels, all
// on the target grid.
func NewAccumulator(labels []float64, x, y, z int) *Accumulator {
	return &Accumulator{Posteriors: volume.NewPosteriorMap(labels, x, y, z)}
}

// Vote adds weight w into the accumulator for label at linear index y,
// implementing one term of the neighborhood-voting sum. Labels outside the
// fixed label set discovered at engine start are ignored: the set is closed
// after discovery.
func (a *Accumulator) Vote(y int, label float64, w float64) {
	if buf, ok := a.Posteriors[label]; ok {
		buf.Data[y] += w
	}
}

// Merge folds src into dst in place, elementwise, across every label
// present in dst. Used once per tile after the parallel main loop
// completes.
func Merge(dst, src volume.PosteriorMap) {
	for label, dstBuf := range dst {
		srcBuf, ok := src[label]
		if !ok {
			continue
		}
		for i, v := range srcBuf.Data {
			dstBuf.Data[i] += v
		}
	}
}

// Argmax selects the label (in the fixed, sorted label-set order) with the
// highest posterior at x, skipping any label excluded at x by excl. Ties
// resolve to the first label encountered in iteration order, matching the
// sorted LabelSet ordering. If every label is excluded, it returns (0,
// true) so the caller writes Output(x)=0.
func Argmax(pm volume.PosteriorMap, x int, labels []float64, excl volume.ExclusionMap) (float64, bool) {
	best := 0.0
	bestLabel := 0.0
	found := false

	for _, label := range labels {
		if Excluded(excl, label, x) {
			continue
		}
		v := pm[label].Data[x]
		if !found || v > best {
			best = v
			bestLabel = label
			found = true
		}
	}

	return bestLabel, true
}

// Excluded reports whether excl vetoes label at linear index x.
func Excluded(excl volume.ExclusionMap, label float64, x int) bool {
	m, ok := excl[label]
	if !ok {
		return false
	}
	return m.Data[x] != 0
}
