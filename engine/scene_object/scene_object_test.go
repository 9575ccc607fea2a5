package scene_object

import (
	"context"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitTriangle() []float32 {
	return []float32{
		-1, -1, 0,
		1, -1, 0,
		0, 1, 0,
	}
}

func TestNewSceneObjectDefaults(t *testing.T) {
	a := NewSceneObject()
	b := NewSceneObject()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.NeedsUpdate())
	assert.Equal(t, [3]float32{1, 1, 1}, a.Scale())
	assert.Nil(t, a.Parent())

	_, ok := a.LodSelectionThreshold()
	assert.False(t, ok)
	_, ok = a.BoundingBox()
	assert.False(t, ok)

	c := NewSceneObject(WithID(42), WithLodSelectionThreshold(10))
	assert.Equal(t, 42, c.ID())
	th, ok := c.LodSelectionThreshold()
	assert.True(t, ok)
	assert.Equal(t, float32(10), th)
}

func TestUpdateWorldMatrixComposesParent(t *testing.T) {
	root := NewSceneObject(WithTranslation(10, 0, 0))
	child := NewSceneObject(WithTranslation(0, 5, 0))
	root.AddChild(child)
	assert.Same(t, root, child.Parent())

	root.UpdateWorldMatrix()
	assert.False(t, root.NeedsUpdate())
	assert.False(t, child.NeedsUpdate())
	assert.Equal(t, [3]float32{10, 5, 0}, child.WorldPosition())

	root.SetTranslation(0, 0, -3)
	assert.True(t, root.NeedsUpdate())
	assert.True(t, child.NeedsUpdate(), "dirtiness propagates to descendants")

	root.UpdateWorldMatrix()
	assert.Equal(t, [3]float32{0, 5, -3}, child.WorldPosition())
}

func TestCleanRootStillUpdatesDirtyChildren(t *testing.T) {
	root := NewSceneObject()
	child := NewSceneObject()
	root.AddChild(child)
	root.UpdateWorldMatrix()

	child.SetTranslation(1, 2, 3)
	assert.False(t, root.NeedsUpdate())
	root.UpdateWorldMatrix()
	assert.False(t, child.NeedsUpdate())
	assert.Equal(t, [3]float32{1, 2, 3}, child.WorldPosition())
}

func TestNormalMatrixUndoesScale(t *testing.T) {
	obj := NewSceneObject(WithScale(2, 4, 8))
	obj.UpdateWorldMatrix()
	n := obj.NormalMatrix()
	assert.InDelta(t, 0.5, n[0], 1e-6)
	assert.InDelta(t, 0.25, n[4], 1e-6)
	assert.InDelta(t, 0.125, n[8], 1e-6)
}

func TestComputeBoundingBox(t *testing.T) {
	prim := NewPrimitive(unitTriangle())
	obj := NewSceneObject(WithTranslation(0, 0, -5), WithPrimitives(prim))
	obj.UpdateWorldMatrix()

	box := obj.ComputeBoundingBox()
	assert.Equal(t, [3]float32{-1, -1, -5}, box.Min)
	assert.Equal(t, [3]float32{1, 1, -5}, box.Max)

	cached, ok := obj.BoundingBox()
	require.True(t, ok)
	assert.Equal(t, box, cached)

	obj.SetRotation(0, float32(math.Pi/2), 0)
	obj.UpdateWorldMatrix()
	rotated := obj.PrimitiveBoundingBox(0)
	assert.InDelta(t, 0, rotated.Max[0]-rotated.Min[0], 1e-5, "a quarter turn about Y flattens x")
	assert.InDelta(t, 2, rotated.Max[2]-rotated.Min[2], 1e-5)
}

func TestPrimitiveElementCount(t *testing.T) {
	plain := NewPrimitive(unitTriangle())
	assert.False(t, plain.Indexed())
	assert.Equal(t, uint32(3), plain.ElementCount())

	indexed := NewPrimitive(unitTriangle(), WithIndices([]uint32{0, 1, 2, 2, 1, 0}))
	assert.True(t, indexed.Indexed())
	assert.Equal(t, uint32(6), indexed.ElementCount())
}

func TestPrimitiveOffsetsCarryVersion(t *testing.T) {
	p := NewPrimitive(unitTriangle(), WithPipeline(SideFront, "lit"))
	_, _, ok := p.IndirectOffset()
	assert.False(t, ok)

	p.SetIndirectOffset(40, 3)
	off, ver, ok := p.IndirectOffset()
	assert.True(t, ok)
	assert.Equal(t, uint64(40), off)
	assert.Equal(t, uint64(3), ver)

	key, ok := p.Pipeline(SideFront)
	assert.True(t, ok)
	assert.Equal(t, "lit", key)
	_, ok = p.Pipeline(SideBack)
	assert.False(t, ok)
}

func TestNewPrimitivePanicsOnBadPositions(t *testing.T) {
	assert.Panics(t, func() { NewPrimitive(nil) })
	assert.Panics(t, func() { NewPrimitive([]float32{1, 2}) })
}

func TestTransformBufferReceivesWorldMatrix(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	usage := renderer.BufferUsageUniform | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc
	world, err := r.CreateBuffer("world", usage, make([]byte, 64))
	require.NoError(t, err)
	normal, err := r.CreateBuffer("normal", usage, make([]byte, 48))
	require.NoError(t, err)

	obj := NewSceneObject(WithTranslation(7, 8, 9), WithTransformBuffer(r, world, normal))
	obj.UpdateWorldMatrix()

	out, err := r.ReadBuffer(context.Background(), world)
	require.NoError(t, err)
	words := common.Words(out)
	assert.Equal(t, float32(7), words.Float32At(12))
	assert.Equal(t, float32(8), words.Float32At(13))
	assert.Equal(t, float32(9), words.Float32At(14))

	out, err = r.ReadBuffer(context.Background(), normal)
	require.NoError(t, err)
	words = common.Words(out)
	assert.Equal(t, float32(1), words.Float32At(0))
	assert.Equal(t, float32(1), words.Float32At(5))
	assert.Equal(t, float32(1), words.Float32At(10))
}

func TestVertexBuffersUploadOnce(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	p := NewPrimitive(unitTriangle())
	first, err := p.VertexBuffers(r)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, uint64(36), first[0].Size())

	second, err := p.VertexBuffers(r)
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])
}

func TestExplicitIDIsNotReissued(t *testing.T) {
	base := NewSceneObject().ID()
	explicit := NewSceneObject(WithID(base + 5))
	assert.Equal(t, base+5, explicit.ID())

	for range 10 {
		assert.NotEqual(t, explicit.ID(), NewSceneObject().ID())
	}
}
