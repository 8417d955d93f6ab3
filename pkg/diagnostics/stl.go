package diagnostics

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"

	"mrilabelfusion/internal/volume"
)

// SaveToSTL writes triangles as a binary STL file: an 80-byte header, a
// little-endian uint32 triangle count, then 50 bytes per triangle (a
// float32 normal, three float32 vertices, and a 2-byte attribute count).
func SaveToSTL(filename string, triangles []Triangle) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	var header [80]byte
	copy(header[:], "mrilabelfusion boundary mesh")
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}

	for _, t := range triangles {
		if err := writeVec3(w, t.Normal); err != nil {
			return err
		}
		if err := writeVec3(w, t.Vertex1); err != nil {
			return err
		}
		if err := writeVec3(w, t.Vertex2); err != nil {
			return err
		}
		if err := writeVec3(w, t.Vertex3); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeVec3(w *bufio.Writer, v [3]float32) error {
	for _, c := range v {
		if err := binary.Write(w, binary.LittleEndian, c); err != nil {
			return err
		}
	}
	return nil
}

// BoundaryMesh extracts the isosurface of a single fused label from output,
// treating output as a binary field for label at isoLevel 0.5: voxels equal
// to label become 1, everything else 0. The mesh is scaled by the volume's
// physical voxel spacing.
func BoundaryMesh(output *volume.Image3D, label float64) []Triangle {
	field := make([]float64, len(output.Data))
	for i, v := range output.Data {
		if v == label {
			field[i] = 1
		}
	}

	mc := NewMarchingCubes(field, output.X, output.Y, output.Z, 0.5)
	mc.SetScale(float32(output.SpacingX), float32(output.SpacingY), float32(output.SpacingZ))
	return mc.GenerateTriangles()
}

// MeshSurfaceArea sums the area of every triangle, a cheap sanity check on
// exported boundary meshes (an empty label region should yield zero area).
func MeshSurfaceArea(triangles []Triangle) float64 {
	var total float64
	for _, t := range triangles {
		ux, uy, uz := t.Vertex2[0]-t.Vertex1[0], t.Vertex2[1]-t.Vertex1[1], t.Vertex2[2]-t.Vertex1[2]
		vx, vy, vz := t.Vertex3[0]-t.Vertex1[0], t.Vertex3[1]-t.Vertex1[1], t.Vertex3[2]-t.Vertex1[2]
		cx := uy*vz - uz*vy
		cy := uz*vx - ux*vz
		cz := ux*vy - uy*vx
		total += 0.5 * math.Sqrt(float64(cx*cx+cy*cy+cz*cz))
	}
	return total
}
