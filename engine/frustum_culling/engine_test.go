package frustum_culling

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/indirect_draw"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader/shadertest"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBindings serves kernel tests without a renderer.
type fakeBindings map[int][]byte

func (f fakeBindings) Buffer(group, binding int) []byte { return f[binding] }

func camera() (view, projection [16]float32) {
	common.LookAt(view[:], [3]float32{0, 0, 10}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	common.Perspective(projection[:], math32.Pi/3, 1, 0.1, 100)
	return view, projection
}

func quadAt(x float32) scene_object.SceneObject {
	return scene_object.NewSceneObject(
		scene_object.WithTranslation(x, 0, 0),
		scene_object.WithPrimitives(scene_object.NewPrimitive(
			[]float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0},
			scene_object.WithIndices([]uint32{0, 1, 2, 2, 3, 0}),
		)),
	)
}

type fixture struct {
	ctx      buffer_registry.RendererContext
	indirect indirect_draw.Coordinator
	cull     Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := buffer_registry.NewRendererContext(renderer.NewRenderer(renderer.BackendTypeSoftware, nil))
	return &fixture{
		ctx:      ctx,
		indirect: indirect_draw.NewCoordinator(ctx),
		cull:     NewEngine(ctx, WithWorkers(2)),
	}
}

func (f *fixture) add(t *testing.T, objects ...scene_object.SceneObject) {
	t.Helper()
	for _, obj := range objects {
		f.indirect.AppendIndirect(obj)
		f.cull.AppendFrustumCulling(obj)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.cull.Barrier().Wait(ctx))
}

// frame runs one compute frame and returns the resulting draw counts.
func (f *fixture) frame(t *testing.T) []uint32 {
	t.Helper()
	view, projection := camera()
	r := f.ctx.Renderer()
	require.NoError(t, r.BeginComputeFrame())
	require.NoError(t, f.indirect.Prepare())
	require.NoError(t, f.cull.RenderLoop(view, projection))
	r.EndComputeFrame()

	out, err := r.ReadBuffer(context.Background(), f.indirect.IndirectBuffer())
	require.NoError(t, err)
	var counts []uint32
	for _, rec := range indirect_draw.DecodeIndirectArgs(out)[:len(f.indirect.Primitives())] {
		counts = append(counts, rec.IndexCount)
	}
	return counts
}

func TestCullZeroesOnlyOutsidePrimitives(t *testing.T) {
	f := newFixture(t)
	f.add(t, quadAt(-100), quadAt(0), quadAt(100))

	assert.Equal(t, []uint32{0, 6, 0}, f.frame(t))
	assert.Equal(t, 3, f.cull.PrimitiveCount())
	assert.Equal(t, uint32(1), f.cull.Dispatch())

	// Counts come back from staging every frame before culling runs again.
	assert.Equal(t, []uint32{0, 6, 0}, f.frame(t))
}

func TestNothingDispatchedBeforeFirstFlip(t *testing.T) {
	f := newFixture(t)
	f.indirect.AppendIndirect(quadAt(100))

	assert.Equal(t, []uint32{6}, f.frame(t))
	assert.Equal(t, uint32(0), f.cull.Dispatch())
	assert.Equal(t, 0, f.cull.PrimitiveCount())
}

func TestPlanesUploadedEveryFrame(t *testing.T) {
	f := newFixture(t)
	f.frame(t)

	view, projection := camera()
	var vp [16]float32
	common.Mul4(vp[:], projection[:], view[:])
	want := common.ExtractFrustumFromMatrix(vp[:])
	assert.Equal(t, want, f.cull.Frustum())
	assert.Equal(t, want.Marshal(), f.ctx.Get(buffer_registry.BufferFrustumPlanes).Staging())
}

func TestRemoveFlipsToSmallerSet(t *testing.T) {
	f := newFixture(t)
	a, b := quadAt(-100), quadAt(0)
	f.add(t, a, b)
	f.frame(t)
	require.Equal(t, 2, f.cull.PrimitiveCount())

	f.cull.RemoveFrustumCulling(a)
	assert.True(t, f.cull.Ready(), "remaining boxes are already known")
	assert.Equal(t, []uint32{6, 6}, f.frame(t), "a is no longer culled")
	assert.Equal(t, 1, f.cull.PrimitiveCount())
}

func TestOffsetsFollowIndirectVersion(t *testing.T) {
	f := newFixture(t)
	f.add(t, quadAt(-100), quadAt(0))
	f.frame(t)
	offsetsVersion := f.ctx.Version(buffer_registry.BufferFrustumOffsets)

	// A new draw record reallocates the indirect buffer; culling keeps its set but
	// re-reads every offset against the new version.
	f.indirect.AppendIndirect(quadAt(100))
	assert.Equal(t, []uint32{0, 6, 6}, f.frame(t))
	assert.Equal(t, offsetsVersion+1, f.ctx.Version(buffer_registry.BufferFrustumOffsets))
	assert.Equal(t, []uint32{0, 5}, common.BytesToUint32s(f.ctx.Get(buffer_registry.BufferFrustumOffsets).Staging()))
	assert.Equal(t, 2, f.cull.PrimitiveCount())
}

func TestRemovalFromBothReassignsOffsets(t *testing.T) {
	f := newFixture(t)
	a, b := quadAt(-100), quadAt(0)
	f.add(t, a, b)
	f.frame(t)

	f.indirect.RemoveIndirect(a)
	f.cull.RemoveFrustumCulling(a)
	f.indirect.AppendIndirect(quadAt(100))
	assert.Equal(t, []uint32{6, 6}, f.frame(t))
	assert.Equal(t, []uint32{0}, common.BytesToUint32s(f.ctx.Get(buffer_registry.BufferFrustumOffsets).Staging()))
}

func TestUntrackedPrimitiveIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	f.indirect.AppendIndirect(quadAt(0))
	orphan := scene_object.NewSceneObject(scene_object.WithID(42), scene_object.WithPrimitives(scene_object.NewPrimitive([]float32{0, 0, 0})))
	f.cull.AppendFrustumCulling(orphan)
	require.NoError(t, f.cull.Barrier().Wait(context.Background()))

	view, projection := camera()
	require.NoError(t, f.indirect.Prepare())
	err := f.cull.RenderLoop(view, projection)
	assert.ErrorIs(t, err, buffer_registry.ErrMissingIndirectRecord)
	var cfg *buffer_registry.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, 42, cfg.ObjectID)
	assert.Equal(t, 0, cfg.PrimitiveIndex)
}

func TestAppendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	obj := quadAt(0)
	f.add(t, obj)
	epoch := f.cull.Barrier().Epoch()

	f.cull.AppendFrustumCulling(obj)
	assert.Equal(t, epoch, f.cull.Barrier().Epoch())
	f.frame(t)
	assert.Equal(t, 1, f.cull.PrimitiveCount())
}

func TestBoxBarrierWaitHonoursContext(t *testing.T) {
	b := newBoxBarrier(1)
	assert.False(t, b.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)

	b.resolve()
	b.resolve()
	assert.True(t, b.Ready())
	assert.NoError(t, b.Wait(context.Background()))
}

func TestCullKernel(t *testing.T) {
	// A single plane x >= 0; the remaining five accept everything.
	var f common.Frustum
	f.Planes[0] = common.Plane{Normal: [3]float32{1, 0, 0}}
	for i := 1; i < 6; i++ {
		f.Planes[i] = common.Plane{Normal: [3]float32{0, 1, 0}, Distance: 1000}
	}

	minmax := common.Words(nil)
	minmax = appendMinMax(minmax, common.AABB{Min: [3]float32{-3, 0, 0}, Max: [3]float32{-1, 1, 1}})
	minmax = appendMinMax(minmax, common.AABB{Min: [3]float32{-1, 0, 0}, Max: [3]float32{1, 1, 1}})
	params := GPUCullParams{PrimitiveCount: 2}

	indirect := common.Uint32sToBytes([]uint32{36, 1, 0, 0, 0, 12, 1, 0, 0, 0})
	b := fakeBindings{
		bindingIndirect: indirect,
		bindingMinMax:   minmax,
		bindingOffsets:  common.Uint32sToBytes([]uint32{0, 5}),
		bindingPlanes:   f.Marshal(),
		bindingParams:   params.Marshal(),
	}
	for id := uint32(0); id < WorkgroupSize; id++ {
		cullKernel(id, b)
	}

	assert.Equal(t, []uint32{0, 1, 0, 0, 0, 12, 1, 0, 0, 0}, common.BytesToUint32s(indirect))
}

func TestFrustumCullShaderCompiles(t *testing.T) {
	shadertest.RequireCompiles(t, FrustumCullSource)
}
