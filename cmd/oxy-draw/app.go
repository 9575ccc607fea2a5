package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-draw/config"
	"github.com/Carmen-Shannon/oxy-draw/engine"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/camera"
	"github.com/Carmen-Shannon/oxy-draw/engine/compute_manager"
	"github.com/Carmen-Shannon/oxy-draw/engine/frustum_culling"
	"github.com/Carmen-Shannon/oxy-draw/engine/lod_selection"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/chewxy/math32"
)

// quadsPerLevel is the LOD 0 resolution of one grid patch per coarse level.
const quadsPerLevel = 4

// installLogger builds the slog handler named by cfg and installs it for every package.
// The returned LevelVar lets a config reload change the level in place.
func installLogger(w io.Writer, cfg config.LogConfig) *slog.LevelVar {
	level := &slog.LevelVar{}
	if l, err := cfg.SlogLevel(); err == nil {
		level.Set(l)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger.SetLogger(slog.New(handler))
	return level
}

// app holds the populated scene and the engine driving it.
type app struct {
	scene  scene.Scene
	engine engine.Engine
}

// newApp assembles the application from cfg. A nil window selects a headless engine.
//
// Parameters:
//   - cfg: a validated configuration
//   - w: the window to present into, or nil
//
// Returns:
//   - *app: the assembled application
//   - error: a scene population error
func newApp(cfg config.Config, w window.Window) (*app, error) {
	backend := renderer.BackendTypeWGPU
	if cfg.Renderer.Backend == config.BackendSoftware {
		backend = renderer.BackendTypeSoftware
	}
	presentMode := renderer.PresentModeUncapped
	if cfg.Window.VSync {
		presentMode = renderer.PresentModeVSync
	}

	var surface renderer.Surface
	if w != nil {
		surface = w
	}
	r := renderer.NewRenderer(backend, surface,
		renderer.WithPresentMode(presentMode),
		renderer.WithForceFallbackAdapter(cfg.Renderer.ForceFallback),
	)

	manager := compute_manager.NewComputeManager(buffer_registry.NewRendererContext(r),
		compute_manager.WithCullingOptions(
			frustum_culling.WithWorkers(cfg.Culling.Workers),
			frustum_culling.WithQueueSize(cfg.Culling.QueueSize),
		),
		compute_manager.WithLodOptions(lod_selection.WithBaseVertex(cfg.Lod.BaseVertex)),
		compute_manager.WithCullingEnabled(cfg.Culling.Enabled),
		compute_manager.WithLodEnabled(cfg.Lod.Enabled),
	)

	aspect := float32(cfg.Window.Width) / float32(cfg.Window.Height)
	cam := camera.NewCamera(
		camera.WithFov(cfg.Camera.Fov*math32.Pi/180),
		camera.WithAspect(aspect),
		camera.WithNear(cfg.Camera.Near),
		camera.WithFar(cfg.Camera.Far),
		camera.WithController(camera.NewOrbitController(
			camera.WithTarget(cfg.Camera.Target),
			camera.WithEye(cfg.Camera.Position),
			camera.WithRadiusBounds(1, cfg.Camera.Far),
		)),
	)

	s := scene.NewScene("grid", cam, manager, scene.WithOrbit(cfg.Camera.Orbit))
	mesh := scene.GridMesh(quadsPerLevel<<(cfg.Scene.LodLevels-1), cfg.Scene.LodLevels, cfg.Scene.Spacing*0.8)
	if _, err := s.AddGrid(mesh, cfg.Scene.GridSize, cfg.Scene.Spacing, cfg.Scene.LodThreshold); err != nil {
		s.Release()
		return nil, fmt.Errorf("populate scene: %w", err)
	}

	options := []engine.EngineBuilderOption{
		engine.WithProfiling(),
		engine.WithCulling(cfg.Culling.Enabled),
		engine.WithLod(cfg.Lod.Enabled),
		engine.WithReadbackKey(cfg.Debug.ReadbackKeyCode()),
	}
	if w != nil {
		options = append(options, engine.WithWindow(w))
	}

	logger.Component("app").Info("scene ready", "objects", s.Count(), "lod_levels", len(mesh.Ranges),
		"backend", cfg.Renderer.Backend)
	return &app{scene: s, engine: engine.NewEngine(s, options...)}, nil
}

// close releases the scene's GPU resources.
func (a *app) close() {
	a.scene.Release()
}
