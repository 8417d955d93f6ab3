// Package geometry precomputes the flat linear-offset tables that let the
// fusion pipeline address cubic neighborhoods around a voxel in O(1)
// instead of recomputing them on every lookup.
package geometry

import "fmt"

// Radius is a 3-tuple of nonnegative per-axis radii describing a cubic
// neighborhood.
type Radius struct {
	X, Y, Z int
}

// Table is an ordered offset table over a cubic neighborhood: Offsets[i] is
// a signed linear-index delta from a center voxel, and Manhattan[i] is the
// Manhattan distance of the corresponding relative position. Both slices
// have equal length N = (2Rx+1)(2Ry+1)(2Rz+1).
type Table struct {
	Offsets   []int
	Manhattan []int
	Radius    Radius
}

// Build produces the offset table for a cubic neighborhood of the given
// radius over an image with the given per-axis linear strides. Offsets are
// generated in lexicographic order over (dz, dy, dx) so iteration is
// deterministic across runs.
func Build(r Radius, strideX, strideY, strideZ int) (*Table, error) {
	if r.X < 0 || r.Y < 0 || r.Z < 0 {
		return nil, fmt.Errorf("geometry: radius components must be nonnegative, got %+v", r)
	}

	n := (2*r.X + 1) * (2*r.Y + 1) * (2*r.Z + 1)
	t := &Table{
		Offsets:   make([]int, 0, n),
		Manhattan: make([]int, 0, n),
		Radius:    r,
	}

	for dz := -r.Z; dz <= r.Z; dz++ {
		for dy := -r.Y; dy <= r.Y; dy++ {
			for dx := -r.X; dx <= r.X; dx++ {
				offset := dx*strideX + dy*strideY + dz*strideZ
				t.Offsets = append(t.Offsets, offset)
				t.Manhattan = append(t.Manhattan, absInt(dx)+absInt(dy)+absInt(dz))
			}
		}
	}

	return t, nil
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.Offsets)
}

// MaxManhattan returns the largest Manhattan distance present in the table,
// used to size a diagnostic histogram of length MaxManhattan()+1.
func (t *Table) MaxManhattan() int {
	max := 0
	for _, m := range t.Manhattan {
		if m > max {
			max = m
		}
	}
	return max
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SafeInterior reports the range of voxel coordinates, on each axis, for
// which a center at that coordinate keeps the entire radius r neighborhood
// inside an image of the given extent.
func SafeInterior(extent int, r int) (lo, hi int) {
	lo = r
	hi = extent - 1 - r
	return lo, hi
}
