package lod_selection

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
)

// LodSelectSource is the WGSL LOD selection kernel.
//
//go:embed assets/lod_select.wgsl
var LodSelectSource string

// PipelineKey is the compute pipeline the engine registers and dispatches.
const PipelineKey = "lod_select"

// WorkgroupSize is the @workgroup_size of LodSelectSource.
const WorkgroupSize = 32

// headerWords is the fixed prefix of a blob entry: world position, threshold, range count.
const headerWords = 5

// Range strides in words.
const (
	strideStartCount           = 2
	strideStartCountBaseVertex = 3
)

const (
	bindingIndirect = iota
	bindingOffsets
	bindingData
	bindingParams
	bindingCamera
)

// GPULodParams is the params uniform of the LOD kernel.
// Size: 16 bytes.
type GPULodParams struct {
	PrimitiveCount uint32 // offset 0
	RangeStride    uint32 // offset 4: 2 for (start, count), 3 with base vertex
	_              [2]uint32
}

// Marshal serializes the params into a 16-byte little-endian buffer.
//
// Returns:
//   - []byte: the uniform contents
func (g *GPULodParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.PrimitiveCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.RangeStride)
	return buf
}

// appendEntry appends one primitive's blob entry:
// [worldPos.xyz f32, threshold f32, count u32, (start, count[, baseVertex]) u32 × count].
func appendEntry(w common.Words, worldPos [3]float32, threshold float32, ranges []scene_object.LodRange, stride int) common.Words {
	w = w.AppendFloat32(worldPos[0], worldPos[1], worldPos[2], threshold)
	w = w.AppendUint32(uint32(len(ranges)))
	for _, r := range ranges {
		w = w.AppendUint32(r.Start, r.Count)
		if stride == strideStartCountBaseVertex {
			w = w.AppendUint32(r.BaseVertex)
		}
	}
	return w
}

// SelectRange returns the LOD index for a camera distance: the number of ladder steps
// k·threshold (k = 1..rangeCount-1) the distance strictly exceeds.
//
// Parameters:
//   - distance: camera distance to the object
//   - threshold: the distance between ladder steps
//   - rangeCount: the number of LOD ranges, at least 1
//
// Returns:
//   - int: the selected range index in [0, rangeCount-1]
func SelectRange(distance, threshold float32, rangeCount int) int {
	selected := 0
	for k := 1; k < rangeCount; k++ {
		if distance > float32(k)*threshold {
			selected++
		}
	}
	return selected
}
