package frustum_culling

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-draw/common"
)

// FrustumCullSource is the WGSL culling kernel. Its bindings match the tables built
// by the engine: indirect, minmax, offsets, planes, params.
//
//go:embed assets/frustum_cull.wgsl
var FrustumCullSource string

// PipelineKey is the compute pipeline the engine registers and dispatches.
const PipelineKey = "frustum_cull"

// WorkgroupSize is the @workgroup_size of FrustumCullSource.
const WorkgroupSize = 32

// MinMaxWords is the number of f32 words stored per primitive in the min/max table.
const MinMaxWords = 6

// Bindings of FrustumCullSource in group 0.
const (
	bindingIndirect = iota
	bindingMinMax
	bindingOffsets
	bindingPlanes
	bindingParams
)

// GPUCullParams is the params uniform of the culling kernel.
// Size: 16 bytes (count + 3 pad words).
type GPUCullParams struct {
	PrimitiveCount uint32 // offset 0
	_              [3]uint32
}

// Marshal serializes the params into a 16-byte little-endian buffer.
//
// Returns:
//   - []byte: the uniform contents
func (g *GPUCullParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.PrimitiveCount)
	return buf
}

// appendMinMax appends box as [min.xyz, max.xyz].
func appendMinMax(w common.Words, box common.AABB) common.Words {
	return w.AppendFloat32(box.Min[0], box.Min[1], box.Min[2], box.Max[0], box.Max[1], box.Max[2])
}
