package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/config"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/camera"
	"github.com/Carmen-Shannon/oxy-draw/engine/compute_manager"
	"github.com/Carmen-Shannon/oxy-draw/engine/profiler"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newHeadless builds a software-backed scene with one patch in view and one far to the
// left, seen from (0,0,10) with a LOD step of 4.
func newHeadless(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil)
	manager := compute_manager.NewComputeManager(buffer_registry.NewRendererContext(r))
	cam := camera.NewCamera(
		camera.WithController(camera.NewOrbitController(camera.WithEye([3]float32{0, 0, 10}))),
		camera.WithFar(100),
	)
	s := scene.NewScene("engine", cam, manager, scene.WithOrbit(false))
	t.Cleanup(s.Release)

	mesh := scene.GridMesh(4, 3, 2)
	_, err := s.AddMesh(mesh, [3]float32{-100, 0, 0}, 4)
	require.NoError(t, err)
	_, err = s.AddMesh(mesh, [3]float32{}, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, manager.Culling().Barrier().Wait(ctx))

	return NewEngine(s, options...)
}

func TestRunFramesCullsAndSelectsLod(t *testing.T) {
	e := newHeadless(t)
	require.NoError(t, e.RunFrames(context.Background(), 3))

	records, err := e.DumpIndirect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Zero(t, records[0].IndexCount)
	assert.Equal(t, uint32(6), records[1].IndexCount)
	assert.Equal(t, uint32(120), records[1].FirstIndex)
}

func TestKeysToggleCullingAndLod(t *testing.T) {
	e := newHeadless(t)

	e.HandleKey(common.KeyC)
	e.HandleKey(common.KeyL)
	require.NoError(t, e.RunFrames(context.Background(), 1))
	records, err := e.DumpIndirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(126), records[0].IndexCount, "culling off leaves the full ladder")
	assert.Equal(t, uint32(126), records[1].IndexCount)

	e.HandleKey(common.KeyC)
	require.NoError(t, e.RunFrames(context.Background(), 1))
	records, err = e.DumpIndirect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, records[0].IndexCount)
	assert.Equal(t, uint32(126), records[1].IndexCount)
}

func TestSpaceTogglesOrbit(t *testing.T) {
	e := newHeadless(t)
	ctrl := e.Scene().Camera().Controller()
	pos := ctrl.Position()

	e.HandleKey(common.KeySpace)
	ctrl.Advance(1)
	assert.Equal(t, pos, ctrl.Position(), "paused orbit does not move")

	e.HandleKey(common.KeySpace)
	ctrl.Advance(1)
	assert.NotEqual(t, pos, ctrl.Position())
}

func TestApplyConfig(t *testing.T) {
	e := newHeadless(t)
	cfg := config.Default()
	cfg.Culling.Enabled = false
	cfg.Lod.Enabled = false
	e.ApplyConfig(cfg)

	require.NoError(t, e.RunFrames(context.Background(), 1))
	records, err := e.DumpIndirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(126), records[0].IndexCount)
}

func TestRunFramesStopsOnCancel(t *testing.T) {
	e := newHeadless(t, WithProfiling(profiler.WithMemStats(false)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.RunFrames(ctx, 5), context.Canceled)
}

func TestNewEngineRequiresScene(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil) })
}

func TestRunRequiresWindow(t *testing.T) {
	e := newHeadless(t)
	assert.Panics(t, e.Run)
}
