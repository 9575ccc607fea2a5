package compute_manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/frustum_culling"
	"github.com/Carmen-Shannon/oxy-draw/engine/indirect_draw"
	"github.com/Carmen-Shannon/oxy-draw/engine/lod_selection"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

const component = "compute_manager"

type computeManager struct {
	mu  *sync.Mutex
	ctx buffer_registry.RendererContext

	indirect indirect_draw.Coordinator
	culling  frustum_culling.Engine
	lod      lod_selection.Engine

	cullingEnabled bool
	lodEnabled     bool

	// options forwarded to the engines at construction
	indirectOptions []indirect_draw.CoordinatorBuilderOption
	cullingOptions  []frustum_culling.EngineBuilderOption
	lodOptions      []lod_selection.EngineBuilderOption

	frames uint64
}

// ComputeManager sequences one frame of GPU-driven drawing: camera upload, indirect
// restore, frustum culling, LOD selection, then the indirect draws. It owns the camera
// position uniform and the three engines, all sharing one renderer context.
type ComputeManager interface {
	// AppendIndirect gives obj a draw record per primitive.
	AppendIndirect(obj scene_object.SceneObject)

	// AppendIndex merges obj's indices into the shared index buffer.
	AppendIndex(obj scene_object.SceneObject)

	// AppendFrustumCulling registers obj with the culling engine.
	AppendFrustumCulling(obj scene_object.SceneObject)

	// AppendLodSelection registers obj with the LOD engine.
	AppendLodSelection(obj scene_object.SceneObject)

	// Remove drops obj from every engine.
	//
	// Parameters:
	//   - obj: the scene object to drop
	Remove(obj scene_object.SceneObject)

	// Frame runs one full frame. Compute passes are submitted before the render pass in
	// the fixed order upload, restore, cull, LOD, draw. A configuration error ends the
	// open encoders without drawing and is returned wrapped. Without a presentation
	// surface only the compute passes run.
	//
	// Parameters:
	//   - ctx: checked for cancellation before any work is encoded
	//   - view: the column-major view matrix
	//   - projection: the column-major projection matrix
	//   - cameraPos: the eye position used for LOD distances
	//   - sides: the sides every primitive is drawn with
	//
	// Returns:
	//   - error: ctx.Err(), a wrapped *buffer_registry.ConfigurationError, or a renderer error
	Frame(ctx context.Context, view, projection [16]float32, cameraPos [3]float32, sides []scene_object.Side) error

	// ReadIndirect copies the indirect buffer back from the device and decodes it. It is a
	// diagnostic and does not change any state.
	//
	// Parameters:
	//   - ctx: cancels the wait for the device
	//
	// Returns:
	//   - []indirect_draw.GPUIndirectArgs: one record per tracked primitive
	//   - error: the renderer's readback error
	ReadIndirect(ctx context.Context) ([]indirect_draw.GPUIndirectArgs, error)

	// SetCullingEnabled turns the culling pass on or off from the next frame.
	SetCullingEnabled(enabled bool)

	// SetLodEnabled turns the LOD pass on or off from the next frame.
	SetLodEnabled(enabled bool)

	// Context returns the shared buffer registry.
	Context() buffer_registry.RendererContext

	// Indirect returns the indirect-draw coordinator.
	Indirect() indirect_draw.Coordinator

	// Culling returns the frustum-culling engine.
	Culling() frustum_culling.Engine

	// Lod returns the LOD selection engine.
	Lod() lod_selection.Engine

	// Frames returns the number of frames that completed without error.
	Frames() uint64

	// Release frees the engines' resources and every shared buffer.
	Release()
}

var _ ComputeManager = &computeManager{}

// NewComputeManager creates the three engines on ctx and the camera position uniform.
// A nil context panics.
//
// Parameters:
//   - ctx: the shared buffer registry
//   - options: variadic list of ComputeManagerBuilderOption functions
//
// Returns:
//   - ComputeManager: the frame orchestrator
func NewComputeManager(ctx buffer_registry.RendererContext, options ...ComputeManagerBuilderOption) ComputeManager {
	if ctx == nil {
		panic("compute_manager: renderer context is required")
	}
	m := &computeManager{
		mu:             &sync.Mutex{},
		ctx:            ctx,
		cullingEnabled: true,
		lodEnabled:     true,
	}
	for _, opt := range options {
		opt(m)
	}

	ctx.Ensure(buffer_registry.BufferCameraPosition, renderer.BufferUsageUniform|renderer.BufferUsageCopyDst)
	m.indirect = indirect_draw.NewCoordinator(ctx, m.indirectOptions...)
	m.culling = frustum_culling.NewEngine(ctx, m.cullingOptions...)
	m.lod = lod_selection.NewEngine(ctx, m.lodOptions...)
	return m
}

func (m *computeManager) AppendIndirect(obj scene_object.SceneObject) {
	m.indirect.AppendIndirect(obj)
}

func (m *computeManager) AppendIndex(obj scene_object.SceneObject) {
	m.indirect.AppendIndex(obj)
}

func (m *computeManager) AppendFrustumCulling(obj scene_object.SceneObject) {
	m.culling.AppendFrustumCulling(obj)
}

func (m *computeManager) AppendLodSelection(obj scene_object.SceneObject) {
	m.lod.AppendLodSelection(obj)
}

func (m *computeManager) Remove(obj scene_object.SceneObject) {
	m.indirect.RemoveIndirect(obj)
	m.indirect.RemoveIndex(obj)
	m.culling.RemoveFrustumCulling(obj)
	m.lod.RemoveLodSelection(obj)
}

func (m *computeManager) Frame(ctx context.Context, view, projection [16]float32, cameraPos [3]float32, sides []scene_object.Side) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.ctx.Renderer()
	if err := r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("begin compute frame: %w", err)
	}
	if err := m.computeLocked(view, projection, cameraPos); err != nil {
		r.EndComputeFrame()
		return m.abort("compute", err)
	}
	r.EndComputeFrame()

	primitives := m.indirect.Primitives()
	if err := validatePipelines(m.indirect.Objects(), sides); err != nil {
		return m.abort("draw", err)
	}

	if err := r.BeginFrame(); err != nil {
		if errors.Is(err, renderer.ErrNoSurface) {
			m.frames++
			return nil
		}
		return fmt.Errorf("begin frame: %w", err)
	}
	if err := m.indirect.RenderLoop(primitives, sides); err != nil {
		r.EndFrame()
		return m.abort("draw", err)
	}
	r.EndFrame()
	m.frames++
	return nil
}

// computeLocked encodes the compute half of a frame. mu must be held.
func (m *computeManager) computeLocked(view, projection [16]float32, cameraPos [3]float32) error {
	camera := GPUCameraPosition{Position: cameraPos}
	if err := m.ctx.Upload(buffer_registry.BufferCameraPosition, camera.Marshal(), buffer_registry.ElementFormatFloat32); err != nil {
		return err
	}
	if err := m.indirect.Prepare(); err != nil {
		return err
	}
	if m.cullingEnabled {
		if err := m.culling.RenderLoop(view, projection); err != nil {
			return err
		}
	}
	if m.lodEnabled {
		if err := m.lod.RenderLoop(); err != nil {
			return err
		}
	}
	return nil
}

// validatePipelines rejects a frame before the render pass opens if any primitive
// lacks a pipeline for a requested side.
func validatePipelines(objects []scene_object.SceneObject, sides []scene_object.Side) error {
	for _, obj := range objects {
		for i, prim := range obj.Primitives() {
			for _, side := range sides {
				if _, ok := prim.Pipeline(side); !ok {
					return &buffer_registry.ConfigurationError{
						Component:      "indirect_draw",
						ObjectID:       obj.ID(),
						PrimitiveIndex: i,
						Err:            fmt.Errorf("%w %s", buffer_registry.ErrMissingPipeline, side),
					}
				}
			}
		}
	}
	return nil
}

func (m *computeManager) abort(stage string, err error) error {
	var cfg *buffer_registry.ConfigurationError
	if errors.As(err, &cfg) {
		logger.Component(component).Error("frame aborted", "stage", stage, "component", cfg.Component,
			"object", cfg.ObjectID, "primitive", cfg.PrimitiveIndex, "error", cfg.Err)
	}
	return fmt.Errorf("frame %d %s: %w", m.frames, stage, err)
}

func (m *computeManager) ReadIndirect(ctx context.Context) ([]indirect_draw.GPUIndirectArgs, error) {
	buf := m.indirect.IndirectBuffer()
	if buf == nil {
		return nil, nil
	}
	out, err := m.ctx.Renderer().ReadBuffer(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("read indirect buffer: %w", err)
	}
	records := indirect_draw.DecodeIndirectArgs(out)
	if n := len(m.indirect.Primitives()); n < len(records) {
		records = records[:n]
	}
	logger.Component(component).Info("indirect buffer read back", "records", len(records))
	return records, nil
}

func (m *computeManager) SetCullingEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cullingEnabled = enabled
}

func (m *computeManager) SetLodEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lodEnabled = enabled
}

func (m *computeManager) Context() buffer_registry.RendererContext {
	return m.ctx
}

func (m *computeManager) Indirect() indirect_draw.Coordinator {
	return m.indirect
}

func (m *computeManager) Culling() frustum_culling.Engine {
	return m.culling
}

func (m *computeManager) Lod() lod_selection.Engine {
	return m.lod
}

func (m *computeManager) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *computeManager) Release() {
	m.culling.Release()
	m.lod.Release()
	m.ctx.Release()
}
