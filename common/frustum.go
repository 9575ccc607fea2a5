package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// SignedDistance returns the signed distance of p from the plane. Positive values
// lie on the inside of a frustum plane.
func (p Plane) SignedDistance(pt [3]float32) float32 {
	return p.Normal[0]*pt[0] + p.Normal[1]*pt[1] + p.Normal[2]*pt[2] + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// FrustumPlanesSize is the byte size of the six-plane GPU layout (6 x vec4<f32>).
const FrustumPlanesSize = 6 * 4 * 4

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix
// (projection * view) using the Gribb/Hartmann method: plane_i = row3 ± row_i,
// each normalized by the inverse length of its normal.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// Column-major: element (row, col) lives at col*4 + row.
	row := func(r int) [4]float32 {
		return [4]float32{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r3 := row(3)
	for axis := 0; axis < 3; axis++ {
		ri := row(axis)
		plus, minus := &f.Planes[axis*2], &f.Planes[axis*2+1]
		for k := 0; k < 3; k++ {
			plus.Normal[k] = r3[k] + ri[k]
			minus.Normal[k] = r3[k] - ri[k]
		}
		plus.Distance = r3[3] + ri[3]
		minus.Distance = r3[3] - ri[3]
	}

	for i := range f.Planes {
		f.normalizePlane(i)
	}
	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math32.Sqrt(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])
	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}

// BoxOutside reports whether the box lies entirely on the negative side of at
// least one plane. Boxes that intersect or sit inside every plane return false.
//
// Parameters:
//   - box: the world-space axis-aligned box to test
//
// Returns:
//   - bool: true if the box is outside the frustum
func (f Frustum) BoxOutside(box AABB) bool {
	for _, p := range f.Planes {
		if PlaneRejectsBox(p.Normal, p.Distance, box.Min, box.Max) {
			return true
		}
	}
	return false
}

// PlaneRejectsBox tests the box's positive vertex (the corner furthest along the
// normal) against the plane. If even that corner is behind the plane the whole
// box is.
func PlaneRejectsBox(normal [3]float32, distance float32, minV, maxV [3]float32) bool {
	var pv [3]float32
	for k := 0; k < 3; k++ {
		if normal[k] >= 0 {
			pv[k] = maxV[k]
		} else {
			pv[k] = minV[k]
		}
	}
	return normal[0]*pv[0]+normal[1]*pv[1]+normal[2]*pv[2]+distance < 0
}

// Marshal serializes the planes into the GPU layout: six vec4<f32> values of
// (normal.xyz, distance), little-endian.
//
// Returns:
//   - []byte: a 96-byte buffer
func (f Frustum) Marshal() []byte {
	buf := make([]byte, FrustumPlanesSize)
	for i, p := range f.Planes {
		o := i * 16
		binary.LittleEndian.PutUint32(buf[o:], math.Float32bits(p.Normal[0]))
		binary.LittleEndian.PutUint32(buf[o+4:], math.Float32bits(p.Normal[1]))
		binary.LittleEndian.PutUint32(buf[o+8:], math.Float32bits(p.Normal[2]))
		binary.LittleEndian.PutUint32(buf[o+12:], math.Float32bits(p.Distance))
	}
	return buf
}
