package compute_manager

import (
	"encoding/binary"
	"math"
)

// GPUCameraPosition is the camera position uniform read by the LOD kernel.
// Size: 16 bytes (vec4<f32>, w unused).
type GPUCameraPosition struct {
	Position [3]float32 // offset 0
	_        float32    // offset 12: padding to 16 bytes
}

// Marshal serializes the camera position into a 16-byte little-endian buffer.
//
// Returns:
//   - []byte: the uniform contents
func (g *GPUCameraPosition) Marshal() []byte {
	buf := make([]byte, 16)
	for i, v := range g.Position {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
