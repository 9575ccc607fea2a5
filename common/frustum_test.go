package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViewProj() [16]float32 {
	var view, proj, vp [16]float32
	LookAt(view[:], [3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	Perspective(proj[:], math32.Pi/2, 1, 0.1, 100)
	Mul4(vp[:], proj[:], view[:])
	return vp
}

func TestExtractFrustumMatchesRowSums(t *testing.T) {
	vp := testViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	row := func(r int) [4]float32 { return [4]float32{vp[r], vp[4+r], vp[8+r], vp[12+r]} }
	expected := func(sign float32, r int) Plane {
		a, b := row(3), row(r)
		p := [4]float32{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2], a[3] + sign*b[3]}
		l := math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
		return Plane{Normal: [3]float32{p[0] / l, p[1] / l, p[2] / l}, Distance: p[3] / l}
	}
	cases := []struct {
		idx  int
		sign float32
		row  int
	}{
		{FrustumLeft, 1, 0}, {FrustumRight, -1, 0},
		{FrustumBottom, 1, 1}, {FrustumTop, -1, 1},
		{FrustumNear, 1, 2}, {FrustumFar, -1, 2},
	}
	for _, c := range cases {
		want := expected(c.sign, c.row)
		got := f.Planes[c.idx]
		for k := 0; k < 3; k++ {
			assert.InDelta(t, want.Normal[k], got.Normal[k], 1e-5, "plane %d normal[%d]", c.idx, k)
		}
		assert.InDelta(t, want.Distance, got.Distance, 1e-4, "plane %d distance", c.idx)
		n := got.Normal
		assert.InDelta(t, 1.0, math32.Sqrt(n[0]*n[0]+n[1]*n[1]+n[2]*n[2]), 1e-5)
	}
}

func TestFrustumBoxOutside(t *testing.T) {
	vp := testViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	inside := AABB{Min: [3]float32{-0.5, -0.5, -0.5}, Max: [3]float32{0.5, 0.5, 0.5}}
	straddling := AABB{Min: [3]float32{4, -0.5, -0.5}, Max: [3]float32{8, 0.5, 0.5}}
	leftOf := AABB{Min: [3]float32{-50, -0.5, -0.5}, Max: [3]float32{-40, 0.5, 0.5}}
	behind := AABB{Min: [3]float32{-1, -1, 10}, Max: [3]float32{1, 1, 12}}

	assert.False(t, f.BoxOutside(inside))
	assert.False(t, f.BoxOutside(straddling))
	assert.True(t, f.BoxOutside(leftOf))
	assert.True(t, f.BoxOutside(behind))
}

func TestFrustumMarshalLayout(t *testing.T) {
	vp := testViewProj()
	f := ExtractFrustumFromMatrix(vp[:])
	b := Words(f.Marshal())
	require.Len(t, b, FrustumPlanesSize)
	assert.Equal(t, f.Planes[FrustumTop].Normal[1], b.Float32At(FrustumTop*4+1))
	assert.Equal(t, f.Planes[FrustumFar].Distance, b.Float32At(FrustumFar*4+3))
}
