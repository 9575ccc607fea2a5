package renderer

import (
	"context"
	"errors"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU reference backend. Compute pipelines run their
	// Kernel in Go and draws are recorded instead of rasterized.
	BackendTypeSoftware
)

// String returns the configuration name of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeSoftware:
		return "software"
	default:
		return "wgpu"
	}
}

// ParseBackendType maps a configuration name ("wgpu", "software") to a backend type.
func ParseBackendType(name string) (RendererBackendType, error) {
	switch name {
	case "", "wgpu":
		return BackendTypeWGPU, nil
	case "software":
		return BackendTypeSoftware, nil
	}
	return 0, errors.New("renderer: unknown backend " + name)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// BufferUsage is a bit set describing how a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Has reports whether every bit of flag is set.
func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

// wgpu converts the usage set to WebGPU buffer usage flags.
func (u BufferUsage) wgpu() wgpu.BufferUsage {
	var out wgpu.BufferUsage
	pairs := []struct {
		in  BufferUsage
		out wgpu.BufferUsage
	}{
		{BufferUsageVertex, wgpu.BufferUsageVertex},
		{BufferUsageIndex, wgpu.BufferUsageIndex},
		{BufferUsageUniform, wgpu.BufferUsageUniform},
		{BufferUsageStorage, wgpu.BufferUsageStorage},
		{BufferUsageIndirect, wgpu.BufferUsageIndirect},
		{BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
	}
	for _, p := range pairs {
		if u.Has(p.in) {
			out |= p.out
		}
	}
	return out
}

// Buffer is a backend-owned GPU buffer handle.
type Buffer interface {
	// Label returns the debug label given at creation.
	Label() string

	// Size returns the allocated size in bytes.
	Size() uint64

	// Usage returns the usage the buffer was created with.
	Usage() BufferUsage

	// Release frees the GPU allocation. Further use of the handle is invalid.
	Release()
}

// BindGroupEntry binds one buffer at a binding index.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
}

// BindGroup is a backend-owned set of bound resources for one group index of a pipeline.
type BindGroup interface {
	// Label returns the debug label given at creation.
	Label() string

	// Group returns the group index the bind group was created for.
	Group() int

	// Entries returns the buffers bound in this group.
	Entries() []BindGroupEntry

	// Release frees the backend bind group object. Bound buffers are not released.
	Release()
}

// DrawCommand describes one indirect draw inside the frame's render pass.
type DrawCommand struct {
	// PipelineKey selects a registered render pipeline.
	PipelineKey string
	// BindGroups are bound at group indices 0..n-1.
	BindGroups []BindGroup
	// VertexBuffers are bound at slots 0..n-1.
	VertexBuffers []Buffer
	// IndexBuffer is the merged u32 index buffer, nil for non-indexed draws.
	IndexBuffer Buffer
	// IndexOffset is the byte offset of this primitive's indices in IndexBuffer.
	IndexOffset uint64
	// IndirectBuffer holds the draw arguments.
	IndirectBuffer Buffer
	// IndirectOffset is the byte offset of this draw's record in IndirectBuffer.
	IndirectOffset uint64
}

// Indexed reports whether the command issues an indexed indirect draw.
func (c DrawCommand) Indexed() bool {
	return c.IndexBuffer != nil
}

// DrawRecord is the log entry kept for every draw encoded in the current or last frame.
type DrawRecord struct {
	PipelineKey    string
	Indexed        bool
	IndexOffset    uint64
	IndirectOffset uint64
	// Args holds the five argument words as they were when the draw executed. Only
	// the software backend can observe them; the WebGPU backend leaves them zero.
	Args [5]uint32
}

// ErrNoSurface is returned by BeginFrame when the renderer was created without a surface.
var ErrNoSurface = errors.New("renderer: no presentation surface configured")

// ErrNoFrame is returned when a draw or dispatch is issued outside an open frame.
var ErrNoFrame = errors.New("renderer: no frame is open")

// RendererBackend is the backend interface the Renderer delegates to.
type RendererBackend interface {
	ConfigureSurface(width, height int)
	SetPresentMode(mode PresentMode)

	RegisterRenderPipeline(p pipeline.Pipeline) error
	RegisterComputePipeline(p pipeline.Pipeline) error

	CreateBuffer(label string, usage BufferUsage, size uint64, contents []byte) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error)
	CreateBindGroup(p pipeline.Pipeline, group int, entries []BindGroupEntry, label string) (BindGroup, error)

	BeginComputeFrame() error
	DispatchCompute(p pipeline.Pipeline, bindGroups []BindGroup, workGroupCount [3]uint32) error
	EndComputeFrame()

	BeginFrame() error
	DrawIndirect(p pipeline.Pipeline, cmd DrawCommand) (DrawRecord, error)
	EndFrame()
	Present()

	Release()
}
