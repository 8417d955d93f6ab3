package fusion

import (
	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/geometry"
)

// ComputeUniqueMask runs the unanimous-label pre-pass: for every target
// voxel, if every atlas label sample across the search neighborhood is the
// unanimous same value, the voxel is written directly to output and
// excluded from the costly main loop (mask=0). Voxels whose search
// neighborhood would exit any atlas' buffered region are conservatively
// treated as non-unique (mask=1).
//
// output and mask must already be allocated on the target grid; output is
// zero-filled on entry.
func ComputeUniqueMask(atlases []volume.AtlasPair, searchTable *geometry.Table, output, mask *volume.Image3D) {
	loX, hiX := geometry.SafeInterior(output.X, searchTable.Radius.X)
	loY, hiY := geometry.SafeInterior(output.Y, searchTable.Radius.Y)
	loZ, hiZ := geometry.SafeInterior(output.Z, searchTable.Radius.Z)

	for z := 0; z < output.Z; z++ {
		for y := 0; y < output.Y; y++ {
			for x := 0; x < output.X; x++ {
				idx := output.Index(x, y, z)

				if x < loX || x > hiX || y < loY || y > hiY || z < loZ || z > hiZ {
					mask.Data[idx] = 1
					continue
				}

				unanimous, label := scanUnanimous(atlases, searchTable, idx)
				if unanimous {
					output.Data[idx] = label
					mask.Data[idx] = 0
				} else {
					mask.Data[idx] = 1
				}
			}
		}
	}
}

func scanUnanimous(atlases []volume.AtlasPair, searchTable *geometry.Table, center int) (bool, float64) {
	first := atlases[0].Label.Data[center+searchTable.Offsets[0]]
	for _, a := range atlases {
		for _, off := range searchTable.Offsets {
			if a.Label.Data[center+off] != first {
				return false, 0
			}
		}
	}
	return true, first
}
