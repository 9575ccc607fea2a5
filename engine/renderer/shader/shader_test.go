package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCompute = `
struct Params { count: u32 }

// @group(9) @binding(9) var<uniform> commented: Params;
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(2) var<storage, read_write> records: array<u32>;
@group(0) @binding(1) var<storage, read> boxes: array<f32>;
@group(1) @binding(0) var tex: texture_2d<f32>;

/* block /* nested */ comment */
@compute @workgroup_size(32)
fn cull_main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestNewShaderParsesCompute(t *testing.T) {
	s := NewShader("test", ShaderTypeCompute, testCompute)
	assert.Equal(t, "cull_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{32, 1, 1}, s.WorkgroupSize())

	layouts := s.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 1, "texture-only group and commented declarations are skipped")
	entries := layouts[0].Entries
	require.Len(t, entries, 3)
	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[1].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[2].Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, entries[2].Visibility)
	assert.Equal(t, "records", s.BindGroupVarName(0, 2))
	assert.Equal(t, "", s.BindGroupVarName(3, 0))
}

func TestNewShaderVertexHasNoWorkgroup(t *testing.T) {
	s := NewShader("vs", ShaderTypeVertex, "@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }")
	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{0, 0, 0}, s.WorkgroupSize())
}

func TestNewShaderPanicsOnEmptySource(t *testing.T) {
	assert.Panics(t, func() { NewShader("empty", ShaderTypeCompute, "") })
}
