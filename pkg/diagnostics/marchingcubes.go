package diagnostics

import "math"

// MarchingCubes extracts an isosurface from a dense scalar field, used here
// to render the boundary of a fused label's region as a triangle mesh for
// visual inspection.
type MarchingCubes struct {
	data                   []float64
	width, height, depth   int
	isoLevel               float64
	scaleX, scaleY, scaleZ float32
}

// Triangle is one facet of a triangle mesh in binary-STL's own layout.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// NewMarchingCubes wraps a width*height*depth scalar field (row-major,
// x fastest) for isosurface extraction at isoLevel, with unit voxel scale.
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data: data, width: width, height: height, depth: depth,
		isoLevel: isoLevel,
		scaleX:   1, scaleY: 1, scaleZ: 1,
	}
}

// SetScale sets the physical size of one voxel along each axis, applied to
// every emitted vertex.
func (mc *MarchingCubes) SetScale(x, y, z float32) {
	mc.scaleX, mc.scaleY, mc.scaleZ = x, y, z
}

func (mc *MarchingCubes) at(x, y, z int) float64 {
	return mc.data[(z*mc.height+y)*mc.width+x]
}

// GenerateTriangles walks every unit cube in the field and emits the
// standard marching-cubes triangulation for cubes the isosurface passes
// through.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	var triangles []Triangle

	var cubeVal [8]float64
	var cubePos [8][3]float32

	for z := 0; z < mc.depth-1; z++ {
		for y := 0; y < mc.height-1; y++ {
			for x := 0; x < mc.width-1; x++ {
				for i, off := range cornerOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					cubeVal[i] = mc.at(cx, cy, cz)
					cubePos[i] = [3]float32{
						float32(cx) * mc.scaleX,
						float32(cy) * mc.scaleY,
						float32(cz) * mc.scaleZ,
					}
				}

				cubeIndex := 0
				for i := 0; i < 8; i++ {
					if cubeVal[i] < mc.isoLevel {
						cubeIndex |= 1 << uint(i)
					}
				}

				if edgeTable[cubeIndex] == 0 {
					continue
				}

				var vertOnEdge [12][3]float32
				for e := 0; e < 12; e++ {
					if edgeTable[cubeIndex]&(1<<uint(e)) == 0 {
						continue
					}
					a, b := edgeCorners[e][0], edgeCorners[e][1]
					vertOnEdge[e] = interpolateVertex(mc.isoLevel, cubePos[a], cubePos[b], cubeVal[a], cubeVal[b])
				}

				for t := 0; triTable[cubeIndex][t] != -1; t += 3 {
					v1 := vertOnEdge[triTable[cubeIndex][t]]
					v2 := vertOnEdge[triTable[cubeIndex][t+1]]
					v3 := vertOnEdge[triTable[cubeIndex][t+2]]
					triangles = append(triangles, Triangle{
						Normal:  faceNormal(v1, v2, v3),
						Vertex1: v1,
						Vertex2: v2,
						Vertex3: v3,
					})
				}
			}
		}
	}

	return triangles
}

var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var edgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func interpolateVertex(iso float64, p1, p2 [3]float32, v1, v2 float64) [3]float32 {
	if math.Abs(v1-v2) < 1e-9 {
		return p1
	}
	t := float32((iso - v1) / (v2 - v1))
	return [3]float32{
		p1[0] + t*(p2[0]-p1[0]),
		p1[1] + t*(p2[1]-p1[1]),
		p1[2] + t*(p2[2]-p1[2]),
	}
}

func faceNormal(a, b, c [3]float32) [3]float32 {
	ux, uy, uz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	vx, vy, vz := c[0]-a[0], c[1]-a[1], c[2]-a[2]

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx

	length := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))
	if length == 0 {
		return [3]float32{0, 0, 0}
	}
	return [3]float32{nx / length, ny / length, nz / length}
}
