package lod_selection

import (
	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
)

// lodKernel is the software backend's rendition of lod_main.
func lodKernel(id uint32, b pipeline.Bindings) {
	params := common.Words(b.Buffer(0, bindingParams))
	if params.Len() < 2 || id >= params.Uint32At(0) {
		return
	}
	stride := int(params.Uint32At(1))
	indirect := common.Words(b.Buffer(0, bindingIndirect))
	offsets := common.Words(b.Buffer(0, bindingOffsets))
	data := common.Words(b.Buffer(0, bindingData))
	camera := common.Words(b.Buffer(0, bindingCamera))

	blob := int(offsets.Uint32At(int(id) * 2))
	record := int(offsets.Uint32At(int(id)*2 + 1))
	if indirect.Uint32At(record) == 0 {
		return
	}

	worldPos := [3]float32{data.Float32At(blob), data.Float32At(blob + 1), data.Float32At(blob + 2)}
	threshold := data.Float32At(blob + 3)
	rangeCount := int(data.Uint32At(blob + 4))
	if rangeCount == 0 {
		return
	}

	eye := [3]float32{camera.Float32At(0), camera.Float32At(1), camera.Float32At(2)}
	selected := SelectRange(common.Distance(eye, worldPos), threshold, rangeCount)

	r := blob + headerWords + selected*stride
	indirect.PutUint32At(record, data.Uint32At(r+1))
	indirect.PutUint32At(record+2, data.Uint32At(r))
	if stride == strideStartCountBaseVertex {
		indirect.PutUint32At(record+3, data.Uint32At(r+2))
	}
}
