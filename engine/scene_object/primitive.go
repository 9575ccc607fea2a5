package scene_object

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
)

// Side selects which faces a draw rasterizes. Each side maps to its own render pipeline.
type Side int

const (
	// SideFront draws front faces (back-face culling).
	SideFront Side = iota

	// SideBack draws back faces (front-face culling).
	SideBack

	// SideDouble draws both faces (no culling).
	SideDouble
)

// String returns the configuration name of the side.
func (s Side) String() string {
	switch s {
	case SideBack:
		return "back"
	case SideDouble:
		return "double"
	default:
		return "front"
	}
}

// LodRange is one detail level of a primitive: a contiguous run of the primitive's
// index (or vertex) data. Ranges are ordered from most to least detailed.
type LodRange struct {
	Start      uint32
	Count      uint32
	BaseVertex uint32
}

// assignment is a buffer offset together with the buffer version it was assigned under.
type assignment struct {
	offset  uint64
	version uint64
	set     bool
}

// primitive is the implementation of the Primitive interface.
type primitive struct {
	mu *sync.Mutex

	positions []float32
	indices   []uint32
	lodRanges []LodRange

	// pipelines holds the render pipeline key used for each side
	pipelines map[Side]string

	bindGroups []bind_group_provider.BindGroupProvider

	// extraVertexBuffers are bound after the position buffer at slots 1..n
	extraVertexBuffers []renderer.Buffer
	positionBuffer     renderer.Buffer

	localBounds common.AABB

	indexOffset    assignment
	indirectOffset assignment
}

// Primitive is one drawable sub-mesh: a position stream, optional u32 indices, an
// ordered list of LOD ranges, and one render pipeline per side. The indirect-draw
// coordinator stamps it with the byte offsets of its index run and draw record.
type Primitive interface {
	// Positions returns the vertex positions as xyz triples.
	//
	// Returns:
	//   - []float32: the positions
	Positions() []float32

	// Indices returns the u32 index data, or nil for a non-indexed primitive.
	//
	// Returns:
	//   - []uint32: the indices or nil
	Indices() []uint32

	// Indexed reports whether the primitive carries indices.
	Indexed() bool

	// ElementCount returns the number of elements a full draw covers: the index count for
	// indexed primitives, otherwise the vertex count.
	//
	// Returns:
	//   - uint32: the element count
	ElementCount() uint32

	// LodRanges returns the detail levels, most detailed first.
	//
	// Returns:
	//   - []LodRange: the ranges, possibly empty
	LodRanges() []LodRange

	// Pipeline returns the render pipeline key for a side.
	//
	// Parameters:
	//   - side: the side to draw
	//
	// Returns:
	//   - string: the pipeline key
	//   - bool: false if no pipeline is configured for the side
	Pipeline(side Side) (string, bool)

	// BindGroups returns the per-primitive bind group providers, bound at group 0..n-1.
	//
	// Returns:
	//   - []bind_group_provider.BindGroupProvider: the providers
	BindGroups() []bind_group_provider.BindGroupProvider

	// VertexBuffers returns the buffers bound at vertex slots 0..n-1. Slot 0 holds the
	// positions and is uploaded on first use.
	//
	// Parameters:
	//   - r: the renderer used to upload the position buffer
	//
	// Returns:
	//   - []renderer.Buffer: the vertex buffers
	//   - error: an error if the position upload fails
	VertexBuffers(r renderer.Renderer) ([]renderer.Buffer, error)

	// LocalBounds returns the object-space bounds of the positions.
	//
	// Returns:
	//   - common.AABB: the bounds, empty if there are no positions
	LocalBounds() common.AABB

	// IndexOffset returns the byte offset of the primitive's indices in the merged index
	// buffer together with the buffer version it is valid for.
	//
	// Returns:
	//   - uint64: the byte offset
	//   - uint64: the index buffer version
	//   - bool: false if no offset has been assigned
	IndexOffset() (uint64, uint64, bool)

	// SetIndexOffset records the index byte offset assigned under a buffer version.
	//
	// Parameters:
	//   - offset: the byte offset
	//   - version: the index buffer version the offset belongs to
	SetIndexOffset(offset, version uint64)

	// IndirectOffset returns the byte offset of the primitive's draw record in the
	// indirect buffer together with the buffer version it is valid for.
	//
	// Returns:
	//   - uint64: the byte offset
	//   - uint64: the indirect buffer version
	//   - bool: false if no offset has been assigned
	IndirectOffset() (uint64, uint64, bool)

	// SetIndirectOffset records the indirect byte offset assigned under a buffer version.
	//
	// Parameters:
	//   - offset: the byte offset
	//   - version: the indirect buffer version the offset belongs to
	SetIndirectOffset(offset, version uint64)

	// Release frees the position buffer if one was uploaded.
	Release()
}

var _ Primitive = &primitive{}

// NewPrimitive creates a Primitive from xyz positions. Positions are required; a
// primitive without vertices cannot be drawn.
//
// Parameters:
//   - positions: xyz triples
//   - options: functional options to configure the primitive
//
// Returns:
//   - Primitive: the new primitive
func NewPrimitive(positions []float32, options ...PrimitiveBuilderOption) Primitive {
	if len(positions) == 0 || len(positions)%3 != 0 {
		panic(fmt.Sprintf("primitive positions must be non-empty xyz triples, got %d floats", len(positions)))
	}
	p := &primitive{
		mu:          &sync.Mutex{},
		positions:   positions,
		pipelines:   make(map[Side]string),
		localBounds: common.AABBFromPositions(positions),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *primitive) Positions() []float32 {
	return p.positions
}

func (p *primitive) Indices() []uint32 {
	return p.indices
}

func (p *primitive) Indexed() bool {
	return len(p.indices) > 0
}

func (p *primitive) ElementCount() uint32 {
	if p.Indexed() {
		return uint32(len(p.indices))
	}
	return uint32(len(p.positions) / 3)
}

func (p *primitive) LodRanges() []LodRange {
	return p.lodRanges
}

func (p *primitive) Pipeline(side Side) (string, bool) {
	key, ok := p.pipelines[side]
	return key, ok
}

func (p *primitive) BindGroups() []bind_group_provider.BindGroupProvider {
	return p.bindGroups
}

func (p *primitive) VertexBuffers(r renderer.Renderer) ([]renderer.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.positionBuffer == nil {
		buf, err := r.CreateBuffer("primitive positions", renderer.BufferUsageVertex|renderer.BufferUsageCopyDst, common.SliceToBytes(p.positions))
		if err != nil {
			return nil, fmt.Errorf("upload positions: %w", err)
		}
		p.positionBuffer = buf
	}
	out := make([]renderer.Buffer, 0, 1+len(p.extraVertexBuffers))
	out = append(out, p.positionBuffer)
	return append(out, p.extraVertexBuffers...), nil
}

func (p *primitive) LocalBounds() common.AABB {
	return p.localBounds
}

func (p *primitive) IndexOffset() (uint64, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexOffset.offset, p.indexOffset.version, p.indexOffset.set
}

func (p *primitive) SetIndexOffset(offset, version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexOffset = assignment{offset: offset, version: version, set: true}
}

func (p *primitive) IndirectOffset() (uint64, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indirectOffset.offset, p.indirectOffset.version, p.indirectOffset.set
}

func (p *primitive) SetIndirectOffset(offset, version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indirectOffset = assignment{offset: offset, version: version, set: true}
}

func (p *primitive) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.positionBuffer != nil {
		p.positionBuffer.Release()
		p.positionBuffer = nil
	}
}
