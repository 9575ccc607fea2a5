package renderer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// Surface is the presentation target a windowed renderer draws into.
type Surface interface {
	// SurfaceDescriptor returns the platform surface descriptor for WebGPU.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	// Width returns the framebuffer width in pixels.
	Width() int
	// Height returns the framebuffer height in pixels.
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// drawLog records every draw encoded since the last BeginFrame
	drawLog []DrawRecord

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the pipeline cache and fronts a backend so that the draw
// coordination engines never touch backend types directly. Buffer handles and bind
// groups are opaque Buffer and BindGroup values.
type Renderer interface {
	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines creates the backend objects for one or more pipelines and caches
	// them by PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// Resize reconfigures the presentation surface.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// CreateBuffer allocates a buffer sized to contents (rounded up to a 4-byte word,
	// minimum one word) and uploads contents into it.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: the usage bit set
	//   - contents: initial data, may be empty
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: the backend allocation error, unchanged
	CreateBuffer(label string, usage BufferUsage, contents []byte) (Buffer, error)

	// WriteBuffer uploads data into an existing buffer at the byte offset. Writes are
	// ordered before any work submitted afterwards.
	//
	// Parameters:
	//   - buf: destination buffer
	//   - offset: byte offset, multiple of 4
	//   - data: bytes to write, length multiple of 4
	//
	// Returns:
	//   - error: an error if the write falls outside the buffer
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// ReadBuffer copies the buffer's current GPU contents back to the CPU, blocking until
	// the device has finished all submitted work. Diagnostic use only.
	//
	// Parameters:
	//   - ctx: cancels the wait
	//   - buf: the buffer to read, must have BufferUsageCopySrc
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: an error if mapping fails or ctx is done
	ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error)

	// CreateBindGroup creates a bind group for the given group index of a registered pipeline.
	//
	// Parameters:
	//   - pipelineKey: the registered pipeline whose layout is used
	//   - group: the group index
	//   - entries: buffers by binding
	//   - label: debug label
	//
	// Returns:
	//   - BindGroup: the bind group
	//   - error: an error if the pipeline is unknown or creation fails
	CreateBindGroup(pipelineKey string, group int, entries []BindGroupEntry, label string) (BindGroup, error)

	// BeginComputeFrame opens the command encoder that batches this frame's dispatches.
	BeginComputeFrame() error

	// DispatchCompute records one compute pass in the open compute frame.
	//
	// Parameters:
	//   - pipelineKey: the registered compute pipeline
	//   - bindGroups: bind groups for group indices 0..n-1
	//   - workGroupCount: the workgroup counts along x, y, z
	//
	// Returns:
	//   - error: an error if no compute frame is open or the pipeline is unknown
	DispatchCompute(pipelineKey string, bindGroups []BindGroup, workGroupCount [3]uint32) error

	// EndComputeFrame submits the compute frame's command buffer.
	EndComputeFrame()

	// BeginFrame acquires the surface texture and opens the main render pass.
	BeginFrame() error

	// DrawIndirect records one indirect draw in the open render pass.
	//
	// Parameters:
	//   - cmd: the draw description
	//
	// Returns:
	//   - error: an error if no frame is open or the pipeline is unknown
	DrawIndirect(cmd DrawCommand) error

	// EndFrame ends the render pass and submits it.
	EndFrame()

	// Present presents the acquired surface texture.
	Present()

	// DrawLog returns the draws recorded since the last BeginFrame.
	//
	// Returns:
	//   - []DrawRecord: a copy of the draw log
	DrawLog() []DrawRecord

	// Release frees the backend device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend.
// A nil surface creates a headless renderer: compute and readback work, BeginFrame
// returns ErrNoSurface on the WebGPU backend.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - surface: the presentation surface, or nil
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
	}

	// Options run first so adapter selection sees forceFallbackAdapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend()
	case BackendTypeWGPU:
		fallthrough
	default:
		var desc *wgpu.SurfaceDescriptor
		if surface != nil {
			desc = surface.SurfaceDescriptor()
		}
		r.backend = newWGPURendererBackend(desc, r.forceFallbackAdapter)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if surface != nil {
		r.backend.ConfigureSurface(surface.Width(), surface.Height())
	}

	logger.Component("renderer").Info("renderer created", "backend", backendType.String(), "headless", surface == nil)
	return r
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("register compute pipeline %q: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("register render pipeline %q: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) CreateBuffer(label string, usage BufferUsage, contents []byte) (Buffer, error) {
	size := uint64(len(contents)+3) &^ 3
	if size == 0 {
		size = 4
	}
	return r.backend.CreateBuffer(label, usage, size, contents)
}

func (r *renderer) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return fmt.Errorf("renderer: write to nil buffer")
	}
	if offset+uint64(len(data)) > buf.Size() {
		return fmt.Errorf("renderer: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, buf.Label(), buf.Size())
	}
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error) {
	return r.backend.ReadBuffer(ctx, buf)
}

func (r *renderer) CreateBindGroup(pipelineKey string, group int, entries []BindGroupEntry, label string) (BindGroup, error) {
	p := r.Pipeline(pipelineKey)
	if p == nil {
		return nil, fmt.Errorf("pipeline %q not found in cache", pipelineKey)
	}
	return r.backend.CreateBindGroup(p, group, entries, label)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, bindGroups []BindGroup, workGroupCount [3]uint32) error {
	p := r.Pipeline(pipelineKey)
	if p == nil {
		return fmt.Errorf("compute pipeline %q not found in cache", pipelineKey)
	}
	return r.backend.DispatchCompute(p, bindGroups, workGroupCount)
}

func (r *renderer) EndComputeFrame() {
	r.backend.EndComputeFrame()
}

func (r *renderer) BeginFrame() error {
	if err := r.backend.BeginFrame(); err != nil {
		return err
	}
	r.mu.Lock()
	r.drawLog = r.drawLog[:0]
	r.mu.Unlock()
	return nil
}

func (r *renderer) DrawIndirect(cmd DrawCommand) error {
	p := r.Pipeline(cmd.PipelineKey)
	if p == nil {
		return fmt.Errorf("render pipeline %q not found in cache", cmd.PipelineKey)
	}
	rec, err := r.backend.DrawIndirect(p, cmd)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.drawLog = append(r.drawLog, rec)
	r.mu.Unlock()
	return nil
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) DrawLog() []DrawRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DrawRecord, len(r.drawLog))
	copy(out, r.drawLog)
	return out
}

func (r *renderer) Release() {
	r.backend.Release()
}
