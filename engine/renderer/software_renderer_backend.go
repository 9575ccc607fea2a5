package renderer

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
)

type softwareBuffer struct {
	label    string
	usage    BufferUsage
	data     []byte
	released bool
}

var _ Buffer = &softwareBuffer{}

func (b *softwareBuffer) Label() string      { return b.label }
func (b *softwareBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *softwareBuffer) Usage() BufferUsage { return b.usage }
func (b *softwareBuffer) Release()           { b.released = true }

type softwareBindGroup struct {
	label   string
	group   int
	entries []BindGroupEntry
}

var _ BindGroup = &softwareBindGroup{}

func (g *softwareBindGroup) Label() string             { return g.label }
func (g *softwareBindGroup) Group() int                { return g.group }
func (g *softwareBindGroup) Entries() []BindGroupEntry { return g.entries }
func (g *softwareBindGroup) Release()                  {}

// softwareBindings resolves group/binding pairs to buffer bytes for one dispatch.
type softwareBindings map[int]map[int][]byte

func (s softwareBindings) Buffer(group, binding int) []byte {
	return s[group][binding]
}

// softwareRendererBackendImpl executes compute pipelines through their Go kernels and
// records draws instead of rasterizing them. Every queue operation completes before
// the call returns, so submission order is program order.
type softwareRendererBackendImpl struct {
	mu *sync.Mutex

	computeOpen bool
	frameOpen   bool
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend() *softwareRendererBackendImpl {
	return &softwareRendererBackendImpl{mu: &sync.Mutex{}}
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {}

func (b *softwareRendererBackendImpl) SetPresentMode(mode PresentMode) {}

func (b *softwareRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
		return fmt.Errorf("both vertex and fragment shaders must be set to create a render pipeline")
	}
	return nil
}

func (b *softwareRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Kernel() == nil {
		return fmt.Errorf("compute pipeline %q has no kernel for the software backend", p.PipelineKey())
	}
	return nil
}

func (b *softwareRendererBackendImpl) CreateBuffer(label string, usage BufferUsage, size uint64, contents []byte) (Buffer, error) {
	data := make([]byte, size)
	copy(data, contents)
	return &softwareBuffer{label: label, usage: usage, data: data}, nil
}

func (b *softwareRendererBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	sb, err := b.live(buf)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(sb.data[offset:], data)
	return nil
}

func (b *softwareRendererBackendImpl) ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sb, err := b.live(buf)
	if err != nil {
		return nil, err
	}
	if !sb.usage.Has(BufferUsageCopySrc) {
		return nil, fmt.Errorf("buffer %q was not created with copy-src usage", sb.label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(sb.data))
	copy(out, sb.data)
	return out, nil
}

func (b *softwareRendererBackendImpl) CreateBindGroup(p pipeline.Pipeline, group int, entries []BindGroupEntry, label string) (BindGroup, error) {
	for _, e := range entries {
		if _, err := b.live(e.Buffer); err != nil {
			return nil, fmt.Errorf("bind group %q binding %d: %w", label, e.Binding, err)
		}
	}
	kept := make([]BindGroupEntry, len(entries))
	copy(kept, entries)
	return &softwareBindGroup{label: label, group: group, entries: kept}, nil
}

func (b *softwareRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.computeOpen = true
	return nil
}

func (b *softwareRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, bindGroups []BindGroup, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.computeOpen {
		return ErrNoFrame
	}
	kernel := p.Kernel()
	if kernel == nil {
		return fmt.Errorf("compute pipeline %q has no kernel", p.PipelineKey())
	}

	bindings := softwareBindings{}
	for i, bg := range bindGroups {
		group := map[int][]byte{}
		for _, e := range bg.Entries() {
			group[int(e.Binding)] = e.Buffer.(*softwareBuffer).data
		}
		bindings[i] = group
	}

	size := uint32(1)
	if cs := p.Shader(shader.ShaderTypeCompute); cs != nil && cs.WorkgroupSize()[0] > 0 {
		size = cs.WorkgroupSize()[0]
	}
	invocations := workGroupCount[0] * size
	for id := uint32(0); id < invocations; id++ {
		kernel(id, bindings)
	}
	return nil
}

func (b *softwareRendererBackendImpl) EndComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.computeOpen = false
}

func (b *softwareRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameOpen = true
	return nil
}

func (b *softwareRendererBackendImpl) DrawIndirect(p pipeline.Pipeline, cmd DrawCommand) (DrawRecord, error) {
	rec := DrawRecord{
		PipelineKey:    cmd.PipelineKey,
		Indexed:        cmd.Indexed(),
		IndexOffset:    cmd.IndexOffset,
		IndirectOffset: cmd.IndirectOffset,
	}

	indirect, err := b.live(cmd.IndirectBuffer)
	if err != nil {
		return rec, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.frameOpen {
		return rec, ErrNoFrame
	}

	words := 4
	if rec.Indexed {
		words = 5
	}
	end := cmd.IndirectOffset + uint64(words*4)
	if end > uint64(len(indirect.data)) {
		return rec, fmt.Errorf("indirect record at %d overruns %q (%d bytes)", cmd.IndirectOffset, indirect.label, len(indirect.data))
	}
	for i := 0; i < words; i++ {
		o := cmd.IndirectOffset + uint64(i*4)
		rec.Args[i] = binary.LittleEndian.Uint32(indirect.data[o:])
	}
	return rec, nil
}

func (b *softwareRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameOpen = false
}

func (b *softwareRendererBackendImpl) Present() {}

func (b *softwareRendererBackendImpl) Release() {}

func (b *softwareRendererBackendImpl) live(buf Buffer) (*softwareBuffer, error) {
	sb, ok := buf.(*softwareBuffer)
	if !ok || sb == nil {
		return nil, fmt.Errorf("buffer is not a software buffer")
	}
	if sb.released {
		return nil, fmt.Errorf("buffer %q has been released", sb.label)
	}
	return sb, nil
}
