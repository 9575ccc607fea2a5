package scene_object

import (
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
)

// PrimitiveBuilderOption is a functional option for configuring a Primitive during construction.
type PrimitiveBuilderOption func(*primitive)

// WithIndices sets the u32 index data, making the primitive indexed.
//
// Parameters:
//   - indices: the index data
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the indices
func WithIndices(indices []uint32) PrimitiveBuilderOption {
	return func(p *primitive) {
		p.indices = indices
	}
}

// WithLodRanges sets the ordered detail levels, most detailed first.
//
// Parameters:
//   - ranges: the LOD ranges
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the LOD ranges
func WithLodRanges(ranges ...LodRange) PrimitiveBuilderOption {
	return func(p *primitive) {
		p.lodRanges = ranges
	}
}

// WithPipeline sets the render pipeline key used to draw one side of the primitive.
//
// Parameters:
//   - side: the side the pipeline draws
//   - pipelineKey: the registered render pipeline key
//
// Returns:
//   - PrimitiveBuilderOption: functional option to set the pipeline
func WithPipeline(side Side, pipelineKey string) PrimitiveBuilderOption {
	return func(p *primitive) {
		p.pipelines[side] = pipelineKey
	}
}

// WithBindGroups sets the per-primitive bind groups, bound at group 0..n-1.
func WithBindGroups(providers ...bind_group_provider.BindGroupProvider) PrimitiveBuilderOption {
	return func(p *primitive) {
		p.bindGroups = providers
	}
}

// WithVertexBuffers appends extra vertex attribute buffers bound after the positions.
func WithVertexBuffers(buffers ...renderer.Buffer) PrimitiveBuilderOption {
	return func(p *primitive) {
		p.extraVertexBuffers = append(p.extraVertexBuffers, buffers...)
	}
}
