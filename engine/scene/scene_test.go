package scene

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/camera"
	"github.com/Carmen-Shannon/oxy-draw/engine/compute_manager"
	"github.com/Carmen-Shannon/oxy-draw/engine/frustum_culling"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader/shadertest"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridMeshLodLadder(t *testing.T) {
	mesh := GridMesh(4, 3, 2)
	assert.Len(t, mesh.Positions, 5*5*3)
	require.Len(t, mesh.Ranges, 3)
	assert.Equal(t, scene_object.LodRange{Start: 0, Count: 96}, mesh.Ranges[0])
	assert.Equal(t, scene_object.LodRange{Start: 96, Count: 24}, mesh.Ranges[1])
	assert.Equal(t, scene_object.LodRange{Start: 120, Count: 6}, mesh.Ranges[2])
	assert.Len(t, mesh.Indices, 126)

	// The coarsest level spans the corners of the patch.
	assert.Equal(t, []uint32{0, 20, 4, 4, 20, 24}, mesh.Indices[120:])
	for _, idx := range mesh.Indices {
		assert.Less(t, idx, uint32(25))
	}
}

func TestGridMeshReducesLevels(t *testing.T) {
	assert.Len(t, GridMesh(6, 3, 1).Ranges, 2, "6 is not divisible by 4")
	assert.Len(t, GridMesh(1, 5, 1).Ranges, 1)
}

func newTestScene(t *testing.T) Scene {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	manager := compute_manager.NewComputeManager(buffer_registry.NewRendererContext(r),
		compute_manager.WithCullingOptions(frustum_culling.WithWorkers(2)))
	cam := camera.NewCamera(
		camera.WithController(camera.NewOrbitController(camera.WithEye([3]float32{0, 0, 10}))),
		camera.WithFov(math32.Pi/3),
		camera.WithFar(100),
	)
	s := NewScene("test", cam, manager, WithOrbit(false))
	t.Cleanup(s.Release)
	return s
}

func waitForBoxes(t *testing.T, s Scene) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Manager().Culling().Barrier().Wait(ctx))
}

func TestFrameCullsAndSelectsLod(t *testing.T) {
	s := newTestScene(t)
	mesh := GridMesh(4, 3, 2)
	left, err := s.AddMesh(mesh, [3]float32{-100, 0, 0}, 4)
	require.NoError(t, err)
	centre, err := s.AddMesh(mesh, [3]float32{0, 0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, [3]float32{-100, 0, 0}, left.WorldPosition())
	waitForBoxes(t, s)

	s.Update(0)
	require.NoError(t, s.Frame(context.Background()))

	records, err := s.Manager().ReadIndirect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint32(0), records[0].IndexCount)
	assert.Equal(t, uint32(6), records[1].IndexCount, "distance 10 exceeds both steps of 4")
	assert.Equal(t, uint32(120), records[1].FirstIndex)

	draws := s.Manager().Context().Renderer().DrawLog()
	require.Len(t, draws, 2)
	assert.Equal(t, MeshPipelineKey, draws[1].PipelineKey)
	assert.True(t, draws[1].Indexed)

	uniform := s.Camera().Uniform()
	assert.Equal(t, uniform.Marshal(), s.Manager().Context().Get(buffer_registry.BufferCameraUniform).Staging())
	assert.Same(t, centre, s.Get(centre.ID()))
}

func TestObjectsWithoutThresholdSkipLod(t *testing.T) {
	s := newTestScene(t)
	_, err := s.AddMesh(GridMesh(4, 3, 2), [3]float32{}, 0)
	require.NoError(t, err)
	waitForBoxes(t, s)

	s.Update(0)
	require.NoError(t, s.Frame(context.Background()))
	records, err := s.Manager().ReadIndirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(126), records[0].IndexCount)
	assert.Equal(t, 0, s.Manager().Lod().PrimitiveCount())
}

func TestAddGridAndRemove(t *testing.T) {
	s := newTestScene(t)
	objects, err := s.AddGrid(GridMesh(2, 2, 1), 3, 10, 5)
	require.NoError(t, err)
	require.Len(t, objects, 9)
	assert.Equal(t, [3]float32{-10, 0, -10}, objects[0].WorldPosition())
	assert.Equal(t, [3]float32{10, 0, 10}, objects[8].WorldPosition())

	// Adding an existing object is a no-op.
	s.Add(objects[4])
	assert.Equal(t, 9, s.Count())

	s.Remove(objects[0].ID())
	assert.Equal(t, 8, s.Count())
	assert.Nil(t, s.Get(objects[0].ID()))
	assert.Len(t, s.Manager().Indirect().Objects(), 8)

	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Manager().Indirect().Objects())
}

func TestUpdateAdvancesOrbit(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	manager := compute_manager.NewComputeManager(buffer_registry.NewRendererContext(r))
	cam := camera.NewCamera(camera.WithController(camera.NewOrbitController(
		camera.WithEye([3]float32{0, 0, 10}), camera.WithOrbitSpeed(math32.Pi/2))))
	s := NewScene("orbit", cam, manager)
	defer s.Release()

	s.Update(1)
	pos := cam.Position()
	assert.InDeltaSlice(t, []float32{10, 0, 0}, pos[:], 1e-3)
}

func TestMeshShaderCompiles(t *testing.T) {
	shadertest.RequireCompiles(t, MeshShaderSource)
}

func TestUpdateRefreshesChildOfCleanParent(t *testing.T) {
	s := newTestScene(t)
	parent, err := s.AddMesh(GridMesh(2, 1, 1), [3]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	child := scene_object.NewSceneObject()
	parent.AddChild(child)
	s.Update(0)
	require.False(t, parent.NeedsUpdate())

	child.SetTranslation(5, 0, 0)
	s.Update(0)
	assert.False(t, child.NeedsUpdate())
	assert.Equal(t, [3]float32{6, 0, 0}, child.WorldPosition())
}
