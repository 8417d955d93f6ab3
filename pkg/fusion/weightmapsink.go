package fusion

import "mrilabelfusion/internal/volume"

// WeightMapSink receives the per-atlas weight vector solved at each voxel.
// It has no effect on Output; it exists purely for diagnostics.
type WeightMapSink interface {
	Record(voxel int, weights []float64)
}

// NoopSink discards every weight vector, used when GenerateWeightMaps is
// false so the main loop pays no bookkeeping cost.
type NoopSink struct{}

// Record implements WeightMapSink.
func (NoopSink) Record(int, []float64) {}

// BufferSink writes weights into a WeightMapArray, one buffer per atlas, so
// that the recorded weights at every voxel sum to 1.
type BufferSink struct {
	Maps volume.WeightMapArray
}

// NewBufferSink wraps an already-allocated WeightMapArray.
func NewBufferSink(maps volume.WeightMapArray) *BufferSink {
	return &BufferSink{Maps: maps}
}

// Record implements WeightMapSink.
func (s *BufferSink) Record(voxel int, weights []float64) {
	for i, w := range weights {
		s.Maps[i].Data[voxel] = w
	}
}
