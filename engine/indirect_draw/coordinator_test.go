package indirect_draw

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vs = `@vertex fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(p, 1.0); }`
const fs = `@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`

func quad() []float32 {
	return []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}
}

func newContext(t *testing.T) buffer_registry.RendererContext {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	for _, side := range []struct {
		key  string
		cull wgpu.CullMode
	}{{"front", wgpu.CullModeBack}, {"back", wgpu.CullModeFront}} {
		p := pipeline.NewPipeline(side.key, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shader.NewShader(side.key+"_vs", shader.ShaderTypeVertex, vs)),
			pipeline.WithFragmentShader(shader.NewShader(side.key+"_fs", shader.ShaderTypeFragment, fs)),
			pipeline.WithCullMode(side.cull),
		)
		require.NoError(t, r.RegisterPipelines(p))
	}
	return buffer_registry.NewRendererContext(r)
}

func indexedObject(indices ...uint32) scene_object.SceneObject {
	return scene_object.NewSceneObject(scene_object.WithPrimitives(
		scene_object.NewPrimitive(quad(),
			scene_object.WithIndices(indices),
			scene_object.WithPipeline(scene_object.SideFront, "front"),
			scene_object.WithPipeline(scene_object.SideBack, "back"),
		),
	))
}

func TestRebuildIndirectAssignsSequentialOffsets(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	b := indexedObject(0, 1, 2, 2, 3, 0)
	cc := indexedObject(0, 1, 2, 0, 2, 3, 1, 2, 3)
	for _, obj := range []scene_object.SceneObject{a, b, cc} {
		c.AppendIndirect(obj)
	}
	require.NoError(t, c.RebuildIndirect())

	version := ctx.Version(buffer_registry.BufferIndirect)
	for i, obj := range []scene_object.SceneObject{a, b, cc} {
		off, ver, ok := obj.Primitives()[0].IndirectOffset()
		require.True(t, ok)
		assert.Equal(t, uint64(i*IndirectArgsSize), off)
		assert.Equal(t, version, ver)
	}

	staging := common.Words(ctx.Get(buffer_registry.BufferIndirect).Staging())
	require.Equal(t, 15, staging.Len())
	assert.Equal(t, []uint32{3, 1, 0, 0, 0, 6, 1, 0, 0, 0, 9, 1, 0, 0, 0}, common.BytesToUint32s(staging))
}

func TestAppendIndirectIsIdempotent(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	c.AppendIndirect(a)
	require.NoError(t, c.RebuildIndirect())
	version := ctx.Version(buffer_registry.BufferIndirect)

	c.AppendIndirect(a)
	assert.False(t, ctx.Get(buffer_registry.BufferIndirect).NeedsUpdate(), "re-appending does not dirty the buffer")
	require.NoError(t, c.Prepare())
	assert.Equal(t, version, ctx.Version(buffer_registry.BufferIndirect))
	assert.Len(t, c.Primitives(), 1)
	assert.Equal(t, 5, common.Words(ctx.Get(buffer_registry.BufferIndirect).Staging()).Len())
}

func TestExplicitAndAutomaticIDsAreBothTracked(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	next := scene_object.NewSceneObject().ID() + 2
	explicit := scene_object.NewSceneObject(scene_object.WithID(next),
		scene_object.WithPrimitives(scene_object.NewPrimitive(quad())))
	auto := scene_object.NewSceneObject(scene_object.WithPrimitives(scene_object.NewPrimitive(quad())))
	require.NotEqual(t, explicit.ID(), auto.ID())

	c.AppendIndirect(explicit)
	c.AppendIndirect(auto)
	require.NoError(t, c.RebuildIndirect())
	assert.Len(t, c.Objects(), 2)
	_, _, ok := auto.Primitives()[0].IndirectOffset()
	assert.True(t, ok)
}

func TestNonIndexedCountsVertices(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	obj := scene_object.NewSceneObject(scene_object.WithPrimitives(scene_object.NewPrimitive(quad())))
	c.AppendIndirect(obj)
	require.NoError(t, c.RebuildIndirect())
	assert.Equal(t, uint32(4), common.Words(ctx.Get(buffer_registry.BufferIndirect).Staging()).Uint32At(0))
}

func TestRebuildIndexMergesRuns(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	b := indexedObject(3, 2, 1, 0)
	c.AppendIndex(a)
	c.AppendIndex(b)
	require.NoError(t, c.RebuildIndex())

	off, _, ok := b.Primitives()[0].IndexOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(12), off)
	assert.Equal(t, []uint32{0, 1, 2, 3, 2, 1, 0}, common.BytesToUint32s(ctx.Get(buffer_registry.BufferIndex).Staging()))
}

func TestRebuildIndexRejectsPrimitiveWithoutIndices(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	obj := scene_object.NewSceneObject(scene_object.WithID(77), scene_object.WithPrimitives(scene_object.NewPrimitive(quad())))
	c.AppendIndex(obj)

	err := c.RebuildIndex()
	assert.ErrorIs(t, err, buffer_registry.ErrMissingIndices)
	var cfg *buffer_registry.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, 77, cfg.ObjectID)
	assert.Equal(t, 0, cfg.PrimitiveIndex)
}

func TestRenderLoopDrawsEveryPrimitivePerSide(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	b := indexedObject(0, 1, 2, 2, 3, 0)
	for _, obj := range []scene_object.SceneObject{a, b} {
		c.AppendIndirect(obj)
		c.AppendIndex(obj)
	}

	r := ctx.Renderer()
	require.NoError(t, r.BeginFrame())
	require.NoError(t, c.RenderLoop(c.Primitives(), []scene_object.Side{scene_object.SideFront, scene_object.SideBack}))
	r.EndFrame()

	log := r.DrawLog()
	require.Len(t, log, 4)
	assert.Equal(t, "front", log[0].PipelineKey)
	assert.Equal(t, "back", log[1].PipelineKey)
	assert.Equal(t, uint64(20), log[2].IndirectOffset)
	assert.Equal(t, uint64(12), log[2].IndexOffset)
	assert.Equal(t, [5]uint32{6, 1, 0, 0, 0}, log[3].Args)
	for _, rec := range log {
		assert.True(t, rec.Indexed)
	}
}

func TestRenderLoopMissingPipeline(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	c.AppendIndirect(a)
	c.AppendIndex(a)

	require.NoError(t, ctx.Renderer().BeginFrame())
	err := c.RenderLoop(c.Primitives(), []scene_object.Side{scene_object.SideDouble})
	assert.ErrorIs(t, err, buffer_registry.ErrMissingPipeline)
}

func TestRestoreUndoesGPUEdits(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	c.AppendIndirect(indexedObject(0, 1, 2))
	require.NoError(t, c.Prepare())
	version := ctx.Version(buffer_registry.BufferIndirect)

	r := ctx.Renderer()
	require.NoError(t, r.WriteBuffer(c.IndirectBuffer(), 0, common.Uint32sToBytes([]uint32{0})))
	require.NoError(t, c.Prepare())

	out, err := r.ReadBuffer(context.Background(), c.IndirectBuffer())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), DecodeIndirectArgs(out)[0].IndexCount)
	assert.Equal(t, version, ctx.Version(buffer_registry.BufferIndirect))
}

func TestRemoveReassignsOffsets(t *testing.T) {
	ctx := newContext(t)
	c := NewCoordinator(ctx)
	a := indexedObject(0, 1, 2)
	b := indexedObject(0, 1, 2)
	c.AppendIndirect(a)
	c.AppendIndirect(b)
	require.NoError(t, c.Prepare())

	c.RemoveIndirect(a)
	assert.True(t, ctx.Get(buffer_registry.BufferIndirect).NeedsUpdate())
	require.NoError(t, c.Prepare())

	off, ver, ok := b.Primitives()[0].IndirectOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)
	assert.Equal(t, ctx.Version(buffer_registry.BufferIndirect), ver)
	assert.Len(t, c.Objects(), 1)
}

func TestGPUIndirectArgsRoundTrip(t *testing.T) {
	args := GPUIndirectArgs{IndexCount: 36, InstanceCount: 1, FirstIndex: 6, BaseVertex: -4, FirstInstance: 2}
	assert.Equal(t, IndirectArgsSize, args.Size())
	decoded := DecodeIndirectArgs(append(args.Marshal(), 0xff))
	require.Len(t, decoded, 1)
	assert.Equal(t, args, decoded[0])
	assert.Contains(t, GPUIndirectArgsSource, "struct IndirectArgs")
}
