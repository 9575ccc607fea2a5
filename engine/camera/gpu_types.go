package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-draw/common"
)

// GPUCameraUniformSource is the WGSL definition of the CameraUniform struct.
// Render shaders prepend it to their own source.
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniformSize is the byte size of CameraUniform.
const GPUCameraUniformSize = 80

// GPUCameraUniform matches the WGSL CameraUniform struct (see GPUCameraUniformSource).
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset  0: mat4x4<f32>
	CameraPosition [3]float32  // offset 64: vec3<f32>
	_              float32     // offset 76: pad to 80 bytes
}

// Marshal serializes the uniform into GPUCameraUniformSize little-endian bytes.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g GPUCameraUniform) Marshal() []byte {
	buf := make(common.Words, 0, GPUCameraUniformSize)
	buf = buf.AppendFloat32(g.ViewProj[:]...)
	return buf.AppendFloat32(g.CameraPosition[0], g.CameraPosition[1], g.CameraPosition[2], 0)
}
