package driver

import "mrilabelfusion/internal/volume"

// padReplicate returns a copy of img grown by (rx, ry, rz) on every side,
// filling the border with the nearest interior sample (edge replication).
// This is the "widen the buffered region" side of the edge policy: once
// every axis is padded by patchRadius+searchRadius, no voxel in the
// original volume can ever have its patch or search neighborhood exit the
// buffer, so the unique-mask pass and the main loop can safely cover every
// original voxel with no unreachable boundary shell.
func padReplicate(img *volume.Image3D, rx, ry, rz int) *volume.Image3D {
	out := volume.NewImage3D(img.X+2*rx, img.Y+2*ry, img.Z+2*rz)
	out.OriginX, out.OriginY, out.OriginZ = img.OriginX, img.OriginY, img.OriginZ
	out.SpacingX, out.SpacingY, out.SpacingZ = img.SpacingX, img.SpacingY, img.SpacingZ
	out.Orientation = img.Orientation

	for z := 0; z < out.Z; z++ {
		sz := clampToRange(z-rz, img.Z)
		for y := 0; y < out.Y; y++ {
			sy := clampToRange(y-ry, img.Y)
			for x := 0; x < out.X; x++ {
				sx := clampToRange(x-rx, img.X)
				out.Set(x, y, z, img.At(sx, sy, sz))
			}
		}
	}
	return out
}

// clampToRange folds v into [0, extent-1], the edge-replication rule
// padReplicate applies on every axis.
func clampToRange(v, extent int) int {
	if v < 0 {
		return 0
	}
	if v >= extent {
		return extent - 1
	}
	return v
}

// padExclusions pads every mask in excl the same way padReplicate pads an
// intensity or label volume, keeping the exclusion map's linear indices
// aligned with the padded target grid the engine actually runs against.
func padExclusions(excl volume.ExclusionMap, rx, ry, rz int) volume.ExclusionMap {
	if excl == nil {
		return nil
	}
	out := make(volume.ExclusionMap, len(excl))
	for label, mask := range excl {
		out[label] = padReplicate(mask, rx, ry, rz)
	}
	return out
}

// cropInterior extracts the (x, y, z)-sized region starting at offset
// (rx, ry, rz) from a padded image, undoing padReplicate to recover a
// result on the caller's original grid.
func cropInterior(img *volume.Image3D, rx, ry, rz, x, y, z int) *volume.Image3D {
	out := volume.NewImage3D(x, y, z)
	out.OriginX, out.OriginY, out.OriginZ = img.OriginX, img.OriginY, img.OriginZ
	out.SpacingX, out.SpacingY, out.SpacingZ = img.SpacingX, img.SpacingY, img.SpacingZ
	out.Orientation = img.Orientation

	for cz := 0; cz < z; cz++ {
		for cy := 0; cy < y; cy++ {
			for cx := 0; cx < x; cx++ {
				out.Set(cx, cy, cz, img.At(cx+rx, cy+ry, cz+rz))
			}
		}
	}
	return out
}
