package frustum_culling

import (
	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
)

// cullKernel is the software backend's rendition of cull_main.
func cullKernel(id uint32, b pipeline.Bindings) {
	params := common.Words(b.Buffer(0, bindingParams))
	if params.Len() == 0 || id >= params.Uint32At(0) {
		return
	}
	indirect := common.Words(b.Buffer(0, bindingIndirect))
	minmax := common.Words(b.Buffer(0, bindingMinMax))
	offsets := common.Words(b.Buffer(0, bindingOffsets))
	planes := common.Words(b.Buffer(0, bindingPlanes))

	base := int(id) * MinMaxWords
	mn := [3]float32{minmax.Float32At(base), minmax.Float32At(base + 1), minmax.Float32At(base + 2)}
	mx := [3]float32{minmax.Float32At(base + 3), minmax.Float32At(base + 4), minmax.Float32At(base + 5)}

	for p := 0; p < 6; p++ {
		o := p * 4
		normal := [3]float32{planes.Float32At(o), planes.Float32At(o + 1), planes.Float32At(o + 2)}
		if common.PlaneRejectsBox(normal, planes.Float32At(o+3), mn, mx) {
			indirect.PutUint32At(int(offsets.Uint32At(int(id))), 0)
			return
		}
	}
}
