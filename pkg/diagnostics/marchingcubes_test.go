package diagnostics

import (
	"math"
	"os"
	"testing"

	"mrilabelfusion/internal/volume"
)

func TestMarchingCubesSphere(t *testing.T) {
	size := 20
	data := make([]float64, size*size*size)

	radius := float64(size) / 4.0
	center := float64(size) / 2.0

	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
				if dist < radius {
					data[z*size*size+y*size+x] = 1.0
				}
			}
		}
	}

	mc := NewMarchingCubes(data, size, size, size, 0.5)
	triangles := mc.GenerateTriangles()

	if len(triangles) < 100 {
		t.Errorf("expected at least 100 triangles for sphere, got %d", len(triangles))
	}

	for _, tri := range triangles[:10] {
		cx := (tri.Vertex1[0] + tri.Vertex2[0] + tri.Vertex3[0]) / 3
		cy := (tri.Vertex1[1] + tri.Vertex2[1] + tri.Vertex3[1]) / 3
		cz := (tri.Vertex1[2] + tri.Vertex2[2] + tri.Vertex3[2]) / 3

		vx := cx - float32(center)
		vy := cy - float32(center)
		vz := cz - float32(center)
		mag := float32(math.Sqrt(float64(vx*vx + vy*vy + vz*vz)))
		if mag > 0 {
			vx, vy, vz = vx/mag, vy/mag, vz/mag
		}

		dot := vx*tri.Normal[0] + vy*tri.Normal[1] + vz*tri.Normal[2]
		if dot < -0.5 {
			t.Errorf("triangle normal appears to point inward, dot=%f", dot)
		}
	}
}

func TestMarchingCubesSetScale(t *testing.T) {
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}

	mc := NewMarchingCubes(data, 2, 2, 2, 0.5)
	mc.SetScale(2.5, 1.5, 3.0)
	scaled := mc.GenerateTriangles()
	if len(scaled) == 0 {
		t.Fatal("no triangles generated")
	}

	mc2 := NewMarchingCubes(data, 2, 2, 2, 0.5)
	unscaled := mc2.GenerateTriangles()
	if len(unscaled) == 0 {
		t.Fatal("no triangles generated for unscaled instance")
	}

	if scaled[0].Vertex1 == unscaled[0].Vertex1 &&
		scaled[0].Vertex2 == unscaled[0].Vertex2 &&
		scaled[0].Vertex3 == unscaled[0].Vertex3 {
		t.Error("scaling had no effect on triangle vertices")
	}
}

func TestSaveToSTL(t *testing.T) {
	triangles := []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
	}

	tmp, err := os.CreateTemp("", "mesh-*.stl")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.Close()

	if err := SaveToSTL(tmp.Name(), triangles); err != nil {
		t.Fatalf("SaveToSTL: %v", err)
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		t.Fatalf("stat output file: %v", err)
	}

	minSize := int64(80 + 4 + 50)
	if info.Size() < minSize {
		t.Errorf("stl file too small: got %d bytes, want at least %d", info.Size(), minSize)
	}
}

func TestMarchingCubesInterpolation(t *testing.T) {
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}

	mc := NewMarchingCubes(data, 2, 2, 2, 0.5)
	triangles := mc.GenerateTriangles()
	if len(triangles) == 0 {
		t.Fatal("no triangles generated, cannot test interpolation")
	}

	tri := triangles[0]
	hasInterpolated := false
	for _, v := range [][3]float32{tri.Vertex1, tri.Vertex2, tri.Vertex3} {
		for _, c := range v {
			if !isIntegerCoordinate(c) {
				hasInterpolated = true
			}
		}
	}
	if !hasInterpolated {
		t.Error("no interpolated vertices found in the triangle")
	}

	if tri.Normal[0] == 0 && tri.Normal[1] == 0 && tri.Normal[2] == 0 {
		t.Error("triangle normal is zero")
	}
}

func isIntegerCoordinate(c float32) bool {
	return math.Abs(float64(c)-math.Round(float64(c))) < 0.001
}

func TestBoundaryMesh(t *testing.T) {
	vol := volume.NewImage3D(6, 6, 6)
	vol.SpacingX, vol.SpacingY, vol.SpacingZ = 1, 1, 1
	for z := 1; z <= 3; z++ {
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 3; x++ {
				vol.Data[z*vol.StrideZ+y*vol.StrideY+x] = 7
			}
		}
	}

	triangles := BoundaryMesh(vol, 7)
	if len(triangles) == 0 {
		t.Fatal("expected a nonempty boundary mesh for a solid label block")
	}
	if MeshSurfaceArea(triangles) <= 0 {
		t.Error("expected positive surface area for a nonempty mesh")
	}

	empty := BoundaryMesh(vol, 99)
	if len(empty) != 0 {
		t.Errorf("expected no triangles for a label absent from the volume, got %d", len(empty))
	}
}

func BenchmarkMarchingCubes(b *testing.B) {
	width, height, depth := 16, 16, 16
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := float64(x - width/2)
				dy := float64(y - height/2)
				dz := float64(z - depth/2)
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < float64(width)/4 {
					data[z*width*height+y*width+x] = 1.0
				}
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mc := NewMarchingCubes(data, width, height, depth, 0.5)
		mc.GenerateTriangles()
	}
}
