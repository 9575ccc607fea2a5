package renderer

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doubleSource = `
@group(0) @binding(0) var<storage, read_write> values: array<u32>;

@compute @workgroup_size(4)
fn double_main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= arrayLength(&values)) { return; }
    values[id.x] = values[id.x] * 2u;
}
`

const drawVS = `@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }`
const drawFS = `@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`

func doubleKernel(id uint32, b pipeline.Bindings) {
	values := b.Buffer(0, 0)
	if int(id)*4+4 > len(values) {
		return
	}
	v := binary.LittleEndian.Uint32(values[id*4:])
	binary.LittleEndian.PutUint32(values[id*4:], v*2)
}

func u32s(vals ...uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func newSoftware(t *testing.T) Renderer {
	t.Helper()
	r := NewRenderer(BackendTypeSoftware, nil)
	compute := pipeline.NewPipeline("double", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader("double", shader.ShaderTypeCompute, doubleSource)),
		pipeline.WithKernel(doubleKernel),
	)
	draw := pipeline.NewPipeline("draw", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.NewShader("draw_vs", shader.ShaderTypeVertex, drawVS)),
		pipeline.WithFragmentShader(shader.NewShader("draw_fs", shader.ShaderTypeFragment, drawFS)),
	)
	require.NoError(t, r.RegisterPipelines(compute, draw))
	return r
}

func TestCreateBufferRoundsToWords(t *testing.T) {
	r := newSoftware(t)

	empty, err := r.CreateBuffer("empty", BufferUsageStorage, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), empty.Size())

	odd, err := r.CreateBuffer("odd", BufferUsageStorage, []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), odd.Size())
}

func TestWriteBufferRejectsOverflow(t *testing.T) {
	r := newSoftware(t)
	buf, err := r.CreateBuffer("small", BufferUsageStorage|BufferUsageCopyDst, u32s(0))
	require.NoError(t, err)
	assert.Error(t, r.WriteBuffer(buf, 0, u32s(1, 2)))
	assert.NoError(t, r.WriteBuffer(buf, 0, u32s(7)))
}

func TestReadBufferRequiresCopySrc(t *testing.T) {
	r := newSoftware(t)
	buf, err := r.CreateBuffer("private", BufferUsageStorage, u32s(1))
	require.NoError(t, err)
	_, err = r.ReadBuffer(context.Background(), buf)
	assert.Error(t, err)
}

func TestDispatchRunsKernelPerInvocation(t *testing.T) {
	r := newSoftware(t)
	buf, err := r.CreateBuffer("values", BufferUsageStorage|BufferUsageCopySrc, u32s(1, 2, 3, 4, 5))
	require.NoError(t, err)
	bg, err := r.CreateBindGroup("double", 0, []BindGroupEntry{{Binding: 0, Buffer: buf}}, "values")
	require.NoError(t, err)

	assert.ErrorIs(t, r.DispatchCompute("double", []BindGroup{bg}, [3]uint32{2, 1, 1}), ErrNoFrame)

	require.NoError(t, r.BeginComputeFrame())
	// Two workgroups of four cover the five values; the extra ids fall off the end.
	require.NoError(t, r.DispatchCompute("double", []BindGroup{bg}, [3]uint32{2, 1, 1}))
	r.EndComputeFrame()

	out, err := r.ReadBuffer(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, u32s(2, 4, 6, 8, 10), out)
}

func TestDrawIndirectRecordsArgs(t *testing.T) {
	r := newSoftware(t)
	indirect, err := r.CreateBuffer("indirect", BufferUsageIndirect, u32s(3, 1, 0, 0, 0, 6, 1, 3, 0, 0))
	require.NoError(t, err)
	index, err := r.CreateBuffer("index", BufferUsageIndex, u32s(0, 1, 2, 2, 1, 0, 0, 1, 2))
	require.NoError(t, err)

	assert.ErrorIs(t, r.DrawIndirect(DrawCommand{PipelineKey: "draw", IndirectBuffer: indirect}), ErrNoFrame)

	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.DrawIndirect(DrawCommand{PipelineKey: "draw", IndexBuffer: index, IndirectBuffer: indirect, IndirectOffset: 20, IndexOffset: 12}))
	require.NoError(t, r.DrawIndirect(DrawCommand{PipelineKey: "draw", IndirectBuffer: indirect}))
	r.EndFrame()
	r.Present()

	log := r.DrawLog()
	require.Len(t, log, 2)
	assert.True(t, log[0].Indexed)
	assert.Equal(t, [5]uint32{6, 1, 3, 0, 0}, log[0].Args)
	assert.Equal(t, uint64(12), log[0].IndexOffset)
	assert.False(t, log[1].Indexed)
	assert.Equal(t, [5]uint32{3, 1, 0, 0, 0}, log[1].Args)

	require.NoError(t, r.BeginFrame())
	assert.Empty(t, r.DrawLog(), "BeginFrame resets the draw log")
}

func TestUnknownPipeline(t *testing.T) {
	r := newSoftware(t)
	_, err := r.CreateBindGroup("missing", 0, nil, "x")
	assert.Error(t, err)
	assert.Nil(t, r.Pipeline("missing"))
	assert.NotNil(t, r.Pipeline("double"))
}

func TestSoftwareRejectsComputePipelineWithoutKernel(t *testing.T) {
	r := NewRenderer(BackendTypeSoftware, nil)
	p := pipeline.NewPipeline("bare", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader("bare", shader.ShaderTypeCompute, doubleSource)),
	)
	assert.Error(t, r.RegisterPipelines(p))
	assert.Nil(t, r.Pipeline("bare"))
}

func TestParseBackendType(t *testing.T) {
	bt, err := ParseBackendType("software")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeSoftware, bt)
	assert.Equal(t, "software", bt.String())

	bt, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, bt)

	_, err = ParseBackendType("vulkan")
	assert.Error(t, err)
}
