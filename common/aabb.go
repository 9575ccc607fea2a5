package common

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box described by its min and max corners.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// EmptyAABB returns an inverted box that any Extend call will overwrite.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box has not been extended by any point.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows the box to contain p.
func (b *AABB) Extend(p [3]float32) {
	for k := 0; k < 3; k++ {
		b.Min[k] = math32.Min(b.Min[k], p[k])
		b.Max[k] = math32.Max(b.Max[k], p[k])
	}
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
	return b
}

// Center returns the midpoint of the box.
func (b AABB) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) * 0.5,
		(b.Min[1] + b.Max[1]) * 0.5,
		(b.Min[2] + b.Max[2]) * 0.5,
	}
}

// AABBFromPositions builds the box containing every xyz triple in positions.
//
// Parameters:
//   - positions: flat xyz vertex positions
//
// Returns:
//   - AABB: the enclosing box, empty if positions holds fewer than three floats
func AABBFromPositions(positions []float32) AABB {
	b := EmptyAABB()
	for i := 0; i+2 < len(positions); i += 3 {
		b.Extend([3]float32{positions[i], positions[i+1], positions[i+2]})
	}
	return b
}

// Transform returns the world-space box enclosing b after it is transformed by the
// column-major matrix m. All eight corners are transformed so rotations are
// handled conservatively.
//
// Parameters:
//   - m: the 4x4 column-major transform
//
// Returns:
//   - AABB: the transformed enclosing box
func (b AABB) Transform(m []float32) AABB {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := [3]float32{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out.Extend(TransformPoint(m, corner))
	}
	return out
}
