package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/config"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/indirect_draw"
	"github.com/Carmen-Shannon/oxy-draw/engine/profiler"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

const component = "engine"

// headlessFrameTime is the camera step used by RunFrames.
const headlessFrameTime = float32(1.0 / 60.0)

// engine implements the Engine interface.
// Coordinates the tick, render and quit goroutines around one scene.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window
	scene  scene.Scene

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration

	cullingEnabled bool
	lodEnabled     bool
	readbackKey    int

	// title is set by the render goroutine and applied on the window's thread
	pendingTitle string
}

// Engine drives a scene frame by frame, either in a window or headless. It maps the
// diagnostic keys onto the frame orchestrator: culling and LOD toggles, orbit pause and
// the indirect-buffer dump.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Scene returns the scene being drawn.
	Scene() scene.Scene

	// EnableProfiler turns on per-second frame statistics.
	EnableProfiler()

	// DisableProfiler turns off frame statistics.
	DisableProfiler()

	// SetTickRate sets the camera and logic update rate.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers a function called after the scene update of every tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers a function called after every rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// ApplyConfig applies the live-reloadable parts of cfg: the culling and LOD toggles
	// and the readback key.
	//
	// Parameters:
	//   - cfg: the new configuration
	ApplyConfig(cfg config.Config)

	// HandleKey runs the action bound to keyCode. Unbound keys are ignored.
	//
	// Parameters:
	//   - keyCode: a common.Key* code
	HandleKey(keyCode int)

	// SetCullingEnabled turns the frustum-culling pass on or off.
	SetCullingEnabled(enabled bool)

	// SetLodEnabled turns the LOD-selection pass on or off.
	SetLodEnabled(enabled bool)

	// DumpIndirect reads the indirect buffer back and logs every draw record.
	//
	// Parameters:
	//   - ctx: cancels the wait for the device
	//
	// Returns:
	//   - []indirect_draw.GPUIndirectArgs: the records
	//   - error: the readback error
	DumpIndirect(ctx context.Context) ([]indirect_draw.GPUIndirectArgs, error)

	// RenderFrame runs one frame of the scene and presents it when a window is attached.
	//
	// Parameters:
	//   - ctx: cancels the frame before any work is encoded
	//
	// Returns:
	//   - error: the scene's frame error
	RenderFrame(ctx context.Context) error

	// RunFrames updates and renders n frames on the calling goroutine with a fixed
	// 1/60 s step, then dumps the indirect buffer. It stops at the first frame error.
	//
	// Parameters:
	//   - ctx: cancels the run between frames
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error wrapped with its index, or ctx.Err()
	RunFrames(ctx context.Context, n int) error

	// Run starts the tick and render goroutines and runs the window message loop on the
	// calling goroutine. Blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an engine for s. A nil scene panics.
//
// Parameters:
//   - s: the scene to draw
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(s scene.Scene, options ...EngineBuilderOption) Engine {
	if s == nil {
		panic("engine: scene is required")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scene:           s,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		cullingEnabled:  true,
		lodEnabled:      true,
		readbackKey:     common.KeyR,
	}
	for _, opt := range options {
		opt(e)
	}
	s.Manager().SetCullingEnabled(e.cullingEnabled)
	s.Manager().SetLodEnabled(e.lodEnabled)

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			s.Manager().Context().Renderer().Resize(width, height)
			s.Camera().SetAspect(e.window.Aspect())
		})
		e.window.SetScrollCallback(func(delta float32) {
			s.Camera().Controller().Zoom(delta)
		})
		e.window.SetKeyDownCallback(func(keyCode int) {
			go e.HandleKey(keyCode)
		})
		e.window.SetUpdateCallback(e.applyTitle)
		s.Camera().SetAspect(e.window.Aspect())
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) ApplyConfig(cfg config.Config) {
	e.SetCullingEnabled(cfg.Culling.Enabled)
	e.SetLodEnabled(cfg.Lod.Enabled)
	e.mu.Lock()
	e.readbackKey = cfg.Debug.ReadbackKeyCode()
	e.mu.Unlock()
	logger.Component(component).Info("config applied", "culling", cfg.Culling.Enabled, "lod", cfg.Lod.Enabled, "readback_key", cfg.Debug.ReadbackKey)
}

func (e *engine) HandleKey(keyCode int) {
	e.mu.Lock()
	readback := e.readbackKey
	culling, lod := e.cullingEnabled, e.lodEnabled
	e.mu.Unlock()

	log := logger.Component(component)
	switch keyCode {
	case readback:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := e.DumpIndirect(ctx); err != nil {
			log.Warn("indirect buffer dump failed", "error", err)
		}
	case common.KeyC:
		e.SetCullingEnabled(!culling)
	case common.KeyL:
		e.SetLodEnabled(!lod)
	case common.KeySpace:
		paused := e.scene.Camera().Controller().TogglePause()
		log.Info("camera orbit toggled", "paused", paused)
	}
}

func (e *engine) SetCullingEnabled(enabled bool) {
	e.mu.Lock()
	e.cullingEnabled = enabled
	e.mu.Unlock()
	e.scene.Manager().SetCullingEnabled(enabled)
	logger.Component(component).Info("frustum culling toggled", "enabled", enabled)
}

func (e *engine) SetLodEnabled(enabled bool) {
	e.mu.Lock()
	e.lodEnabled = enabled
	e.mu.Unlock()
	e.scene.Manager().SetLodEnabled(enabled)
	logger.Component(component).Info("LOD selection toggled", "enabled", enabled)
}

func (e *engine) DumpIndirect(ctx context.Context) ([]indirect_draw.GPUIndirectArgs, error) {
	records, err := e.scene.Manager().ReadIndirect(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.Component(component)
	var visible int
	for i, rec := range records {
		if rec.IndexCount > 0 {
			visible++
		}
		log.Info("draw record", "index", i, "count", rec.IndexCount, "instances", rec.InstanceCount,
			"first", rec.FirstIndex, "base_vertex", rec.BaseVertex, "first_instance", rec.FirstInstance)
	}
	log.Info("indirect buffer dumped", "records", len(records), "visible", visible)
	return records, nil
}

func (e *engine) RenderFrame(ctx context.Context) error {
	if err := e.scene.Frame(ctx); err != nil {
		return err
	}
	if e.window != nil {
		e.scene.Manager().Context().Renderer().Present()
	}
	return nil
}

func (e *engine) RunFrames(ctx context.Context, n int) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.scene.Update(headlessFrameTime)
		start := time.Now()
		err := e.RenderFrame(ctx)
		if e.profilingEnabled {
			e.profiler.Tick(time.Since(start), err)
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	_, err := e.DumpIndirect(ctx)
	return err
}

func (e *engine) Run() {
	if e.window == nil {
		panic("engine: Run needs a window, use RunFrames headless")
	}
	e.running = true
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		_ = e.window.Close()
	}
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop. Each tick advances the scene camera and
// world matrices before the tick callback fires.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.scene.Update(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop. A frame that fails with a configuration error is
// logged by the orchestrator and skipped; the loop keeps going so a live config fix can
// recover it. Any other error or a panic stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Component(component).Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-e.quitChannel
		cancel()
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		err := e.RenderFrame(ctx)
		if err != nil && !e.skippable(err) {
			logger.Component(component).Error("render loop stopped", "error", err)
			e.signalQuit()
			return
		}

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}
		if e.profilingEnabled && e.profiler.Tick(time.Since(now), err) {
			e.setTitle(e.profiler.Last())
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// skippable reports whether the render loop may continue after err.
func (e *engine) skippable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var cfg *buffer_registry.ConfigurationError
	return errors.As(err, &cfg)
}

func (e *engine) setTitle(s profiler.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingTitle = fmt.Sprintf("oxy-draw | %.0f fps | culling %s | lod %s | %d aborted",
		s.FPS, onOff(e.cullingEnabled), onOff(e.lodEnabled), s.Aborted)
}

// applyTitle runs on the window's thread.
func (e *engine) applyTitle() {
	e.mu.Lock()
	title := e.pendingTitle
	e.pendingTitle = ""
	e.mu.Unlock()
	if title != "" {
		e.window.SetTitle(title)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running {
		e.engineTickRate = newRate
		return
	}
	// Replace any pending update that the tick loop has not picked up yet.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
