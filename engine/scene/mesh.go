package scene

import (
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/chewxy/math32"
)

// Mesh is indexed geometry with a LOD ladder over its index list.
type Mesh struct {
	Positions []float32
	Indices   []uint32
	Ranges    []scene_object.LodRange
}

// GridMesh builds a square patch of resolution×resolution quads in the XZ plane, centred
// on the origin with the given side length and a gentle height bump. LOD k triangulates
// every 2^k-th vertex, so all levels share one vertex list. The index runs of the levels
// are concatenated finest first and described by Ranges.
//
// levels is reduced until 2^(levels-1) divides resolution.
//
// Parameters:
//   - resolution: quads per side at LOD 0
//   - levels: requested number of LOD levels
//   - size: side length in world units
//
// Returns:
//   - Mesh: the patch
func GridMesh(resolution, levels int, size float32) Mesh {
	resolution = max(resolution, 1)
	levels = max(levels, 1)
	for levels > 1 && resolution%(1<<(levels-1)) != 0 {
		levels--
	}

	side := resolution + 1
	positions := make([]float32, 0, side*side*3)
	step := size / float32(resolution)
	half := size / 2
	for row := range side {
		for col := range side {
			x := float32(col)*step - half
			z := float32(row)*step - half
			y := 0.25 * math32.Sin(x/half*math32.Pi) * math32.Cos(z/half*math32.Pi)
			positions = append(positions, x, y, z)
		}
	}

	var indices []uint32
	ranges := make([]scene_object.LodRange, 0, levels)
	for level := range levels {
		s := 1 << level
		start := uint32(len(indices))
		for row := 0; row < resolution; row += s {
			for col := 0; col < resolution; col += s {
				v00 := uint32(row*side + col)
				v10 := v00 + uint32(s)
				v01 := v00 + uint32(s*side)
				v11 := v01 + uint32(s)
				indices = append(indices, v00, v01, v10, v10, v01, v11)
			}
		}
		ranges = append(ranges, scene_object.LodRange{Start: start, Count: uint32(len(indices)) - start})
	}
	return Mesh{Positions: positions, Indices: indices, Ranges: ranges}
}
