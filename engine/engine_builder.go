package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-draw/engine/profiler"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables the frame profiler. Extra profiler options replace the defaults.
//
// Parameters:
//   - options: profiler options such as profiler.WithInterval
//
// Returns:
//   - EngineBuilderOption: a function that applies the profiling option to an engine
func WithProfiling(options ...profiler.ProfilerOption) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = true
		if len(options) > 0 {
			e.profiler = profiler.NewProfiler(options...)
		}
	}
}

// WithTickRate sets the tick rate in ticks per second. Non-positive rates are ignored.
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps > 0 {
			e.engineTickRate = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithWindow attaches a window. Without one the engine only runs headless.
//
// Parameters:
//   - w: the window to present into
//
// Returns:
//   - EngineBuilderOption: a function that applies the window option to an engine
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderFrameLimit caps the render loop. Zero or less means uncapped.
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps > 0 {
			e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithCulling sets the initial state of the frustum-culling pass.
func WithCulling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.cullingEnabled = enabled
	}
}

// WithLod sets the initial state of the LOD-selection pass.
func WithLod(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.lodEnabled = enabled
	}
}

// WithReadbackKey binds the indirect-buffer dump to keyCode.
func WithReadbackKey(keyCode int) EngineBuilderOption {
	return func(e *engine) {
		e.readbackKey = keyCode
	}
}
