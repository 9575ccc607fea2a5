package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert4RoundTrip(t *testing.T) {
	var m, inv, prod [16]float32
	BuildModelMatrix(m[:], [3]float32{1, 2, 3}, [3]float32{0.3, 0.7, -0.2}, [3]float32{2, 1, 0.5})
	require.True(t, Invert4(inv[:], m[:]))
	Mul4(prod[:], m[:], inv[:])

	var id [16]float32
	Identity(id[:])
	for i := range id {
		assert.InDelta(t, id[i], prod[i], 1e-5, "element %d", i)
	}
}

func TestInvert4Singular(t *testing.T) {
	var zero, out [16]float32
	out[0] = 42
	assert.False(t, Invert4(out[:], zero[:]))
	assert.Equal(t, float32(42), out[0])
}

func TestNormalMatrixIsInverseTranspose(t *testing.T) {
	var m [16]float32
	BuildModelMatrix(m[:], [3]float32{5, 0, 0}, [3]float32{0, math32.Pi / 4, 0}, [3]float32{2, 3, 4})

	var n [9]float32
	NormalMatrix(n[:], m[:])

	// N^T * A = I for the upper 3x3 block A.
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float32
			for k := 0; k < 3; k++ {
				// N^T(r,k) = N(k,r) = n[r*3+k]; A(k,c) = m[c*4+k]
				sum += n[r*3+k] * m[c*4+k]
			}
			want := float32(0)
			if r == c {
				want = 1
			}
			assert.InDelta(t, want, sum, 1e-5, "(%d,%d)", r, c)
		}
	}
}

func TestTransformPointAndAABB(t *testing.T) {
	var m [16]float32
	BuildModelMatrix(m[:], [3]float32{10, 0, 0}, [3]float32{}, [3]float32{2, 2, 2})
	assert.Equal(t, [3]float32{12, 2, 2}, TransformPoint(m[:], [3]float32{1, 1, 1}))

	box := AABBFromPositions([]float32{-1, -1, -1, 1, 1, 1, 0, 0, 0})
	world := box.Transform(m[:])
	assert.Equal(t, [3]float32{8, -2, -2}, world.Min)
	assert.Equal(t, [3]float32{12, 2, 2}, world.Max)
	assert.True(t, EmptyAABB().IsEmpty())
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint32(0), CeilDiv(0, 32))
	assert.Equal(t, uint32(1), CeilDiv(1, 32))
	assert.Equal(t, uint32(1), CeilDiv(32, 32))
	assert.Equal(t, uint32(2), CeilDiv(33, 32))
}
