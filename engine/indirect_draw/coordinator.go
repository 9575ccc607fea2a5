package indirect_draw

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

const (
	indirectUsage = renderer.BufferUsageStorage | renderer.BufferUsageIndirect | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc
	indexUsage    = renderer.BufferUsageIndex | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc
)

// trackedSet is an insertion-ordered set of scene objects keyed by ID.
type trackedSet struct {
	order []scene_object.SceneObject
	index map[int]int
}

func newTrackedSet() *trackedSet {
	return &trackedSet{index: make(map[int]int)}
}

// add appends obj if absent and reports whether it was added.
func (s *trackedSet) add(obj scene_object.SceneObject) bool {
	if _, ok := s.index[obj.ID()]; ok {
		return false
	}
	s.index[obj.ID()] = len(s.order)
	s.order = append(s.order, obj)
	return true
}

// remove drops obj if present and reports whether it was removed.
func (s *trackedSet) remove(obj scene_object.SceneObject) bool {
	i, ok := s.index[obj.ID()]
	if !ok {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, obj.ID())
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j].ID()] = j
	}
	return true
}

type coordinator struct {
	mu  *sync.Mutex
	ctx buffer_registry.RendererContext

	indirect *trackedSet
	index    *trackedSet

	instanceCount uint32
}

// Coordinator owns the merged indirect-argument and index buffers. Every tracked
// primitive gets one 20-byte draw record and, when indexed, one contiguous index run;
// the byte offsets of both are stamped onto the primitive together with the buffer
// version they belong to.
type Coordinator interface {
	// AppendIndirect tracks obj's primitives in the indirect buffer. Appending an object
	// that is already tracked does nothing.
	//
	// Parameters:
	//   - obj: the scene object to track
	AppendIndirect(obj scene_object.SceneObject)

	// AppendIndex tracks obj's primitives in the merged index buffer. Appending an object
	// that is already tracked does nothing.
	//
	// Parameters:
	//   - obj: the scene object to track
	AppendIndex(obj scene_object.SceneObject)

	// RemoveIndirect stops tracking obj in the indirect buffer. Remaining offsets are
	// reassigned on the next rebuild.
	//
	// Parameters:
	//   - obj: the scene object to drop
	RemoveIndirect(obj scene_object.SceneObject)

	// RemoveIndex stops tracking obj in the merged index buffer.
	//
	// Parameters:
	//   - obj: the scene object to drop
	RemoveIndex(obj scene_object.SceneObject)

	// RebuildIndirect writes one [count, instances, 0, 0, 0] record per tracked primitive
	// and reallocates the indirect buffer.
	//
	// Returns:
	//   - error: the registry's allocation error
	RebuildIndirect() error

	// RebuildIndex concatenates every tracked primitive's indices and reallocates the
	// index buffer.
	//
	// Returns:
	//   - error: a *buffer_registry.ConfigurationError for a primitive without indices,
	//     or the registry's allocation error
	RebuildIndex() error

	// Prepare brings both buffers up to date for a new frame: dirty buffers are rebuilt
	// and a clean indirect buffer is restored from staging.
	//
	// Returns:
	//   - error: the first rebuild or restore error
	Prepare() error

	// Restore uploads the staged draw records over the GPU copy, undoing any counts a
	// compute pass zeroed or rewrote during the previous frame. The version is unchanged.
	//
	// Returns:
	//   - error: the registry's write error
	Restore() error

	// RenderLoop issues one indirect draw per primitive and side into the open render frame.
	// Dirty buffers are rebuilt first.
	//
	// Parameters:
	//   - primitives: the primitives to draw, each previously tracked
	//   - sides: the sides to draw every primitive with
	//
	// Returns:
	//   - error: a rebuild error, a *buffer_registry.ConfigurationError for a missing
	//     pipeline, or the renderer's draw error
	RenderLoop(primitives []scene_object.Primitive, sides []scene_object.Side) error

	// Objects returns the objects tracked in the indirect buffer, in insertion order.
	Objects() []scene_object.SceneObject

	// Primitives returns every primitive tracked in the indirect buffer, in insertion order.
	Primitives() []scene_object.Primitive

	// IndirectBuffer returns the indirect buffer's current handle, or nil before the first rebuild.
	IndirectBuffer() renderer.Buffer

	// IndexBuffer returns the index buffer's current handle, or nil before the first rebuild.
	IndexBuffer() renderer.Buffer
}

var _ Coordinator = &coordinator{}

// NewCoordinator creates a Coordinator that allocates through ctx. A nil context panics.
//
// Parameters:
//   - ctx: the shared buffer registry
//   - options: variadic list of CoordinatorBuilderOption functions
//
// Returns:
//   - Coordinator: the coordinator
func NewCoordinator(ctx buffer_registry.RendererContext, options ...CoordinatorBuilderOption) Coordinator {
	if ctx == nil {
		panic("indirect_draw: renderer context is required")
	}
	c := &coordinator{
		mu:            &sync.Mutex{},
		ctx:           ctx,
		indirect:      newTrackedSet(),
		index:         newTrackedSet(),
		instanceCount: 1,
	}
	ctx.Ensure(buffer_registry.BufferIndirect, indirectUsage)
	ctx.Ensure(buffer_registry.BufferIndex, indexUsage)
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *coordinator) AppendIndirect(obj scene_object.SceneObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indirect.add(obj) {
		c.ctx.MarkDirty(buffer_registry.BufferIndirect)
	}
}

func (c *coordinator) AppendIndex(obj scene_object.SceneObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index.add(obj) {
		c.ctx.MarkDirty(buffer_registry.BufferIndex)
	}
}

func (c *coordinator) RemoveIndirect(obj scene_object.SceneObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indirect.remove(obj) {
		c.ctx.MarkDirty(buffer_registry.BufferIndirect)
	}
}

func (c *coordinator) RemoveIndex(obj scene_object.SceneObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index.remove(obj) {
		c.ctx.MarkDirty(buffer_registry.BufferIndex)
	}
}

func (c *coordinator) RebuildIndirect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildIndirectLocked()
}

func (c *coordinator) rebuildIndirectLocked() error {
	var words common.Words
	type stamp struct {
		prim   scene_object.Primitive
		offset uint64
	}
	stamps := make([]stamp, 0, len(c.indirect.order))

	for _, obj := range c.indirect.order {
		for _, prim := range obj.Primitives() {
			stamps = append(stamps, stamp{prim: prim, offset: uint64(len(words))})
			args := GPUIndirectArgs{IndexCount: prim.ElementCount(), InstanceCount: c.instanceCount}
			words = append(words, args.Marshal()...)
		}
	}

	c.ctx.MarkDirty(buffer_registry.BufferIndirect)
	if err := c.ctx.Rebuild(buffer_registry.BufferIndirect, words, buffer_registry.ElementFormatUint32); err != nil {
		return fmt.Errorf("rebuild indirect buffer: %w", err)
	}
	version := c.ctx.Version(buffer_registry.BufferIndirect)
	for _, s := range stamps {
		s.prim.SetIndirectOffset(s.offset, version)
	}

	logger.Component("indirect_draw").Debug("indirect buffer rebuilt",
		"records", len(stamps), "words", words.Len(), "version", version)
	return nil
}

func (c *coordinator) RebuildIndex() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildIndexLocked()
}

func (c *coordinator) rebuildIndexLocked() error {
	var words common.Words
	type stamp struct {
		prim   scene_object.Primitive
		offset uint64
	}
	var stamps []stamp

	for _, obj := range c.index.order {
		for i, prim := range obj.Primitives() {
			if !prim.Indexed() {
				return &buffer_registry.ConfigurationError{
					Component:      "indirect_draw",
					ObjectID:       obj.ID(),
					PrimitiveIndex: i,
					Err:            buffer_registry.ErrMissingIndices,
				}
			}
			stamps = append(stamps, stamp{prim: prim, offset: uint64(len(words))})
			words = words.AppendUint32(prim.Indices()...)
		}
	}

	c.ctx.MarkDirty(buffer_registry.BufferIndex)
	if err := c.ctx.Rebuild(buffer_registry.BufferIndex, words, buffer_registry.ElementFormatUint32); err != nil {
		return fmt.Errorf("rebuild index buffer: %w", err)
	}
	version := c.ctx.Version(buffer_registry.BufferIndex)
	for _, s := range stamps {
		s.prim.SetIndexOffset(s.offset, version)
	}

	logger.Component("indirect_draw").Debug("index buffer rebuilt",
		"primitives", len(stamps), "indices", words.Len(), "version", version)
	return nil
}

func (c *coordinator) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepareLocked(true)
}

// prepareLocked rebuilds dirty buffers; restore additionally refreshes a clean indirect buffer.
func (c *coordinator) prepareLocked(restore bool) error {
	if c.ctx.Get(buffer_registry.BufferIndirect).NeedsUpdate() {
		if err := c.rebuildIndirectLocked(); err != nil {
			return err
		}
	} else if restore {
		if err := c.ctx.Flush(buffer_registry.BufferIndirect); err != nil {
			return fmt.Errorf("restore indirect buffer: %w", err)
		}
	}
	if c.ctx.Get(buffer_registry.BufferIndex).NeedsUpdate() {
		if err := c.rebuildIndexLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (c *coordinator) Restore() error {
	if err := c.ctx.Flush(buffer_registry.BufferIndirect); err != nil {
		return fmt.Errorf("restore indirect buffer: %w", err)
	}
	return nil
}

func (c *coordinator) RenderLoop(primitives []scene_object.Primitive, sides []scene_object.Side) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.prepareLocked(false); err != nil {
		return err
	}

	r := c.ctx.Renderer()
	indirectBuf := c.ctx.Handle(buffer_registry.BufferIndirect)
	indirectVersion := c.ctx.Version(buffer_registry.BufferIndirect)
	indexBuf := c.ctx.Handle(buffer_registry.BufferIndex)
	indexVersion := c.ctx.Version(buffer_registry.BufferIndex)

	for pi, prim := range primitives {
		indirectOffset, version, ok := prim.IndirectOffset()
		if !ok || version != indirectVersion {
			return fmt.Errorf("primitive %d has no draw record in indirect buffer version %d", pi, indirectVersion)
		}

		cmd := renderer.DrawCommand{
			IndirectBuffer: indirectBuf,
			IndirectOffset: indirectOffset,
		}
		if prim.Indexed() {
			indexOffset, version, ok := prim.IndexOffset()
			if !ok || version != indexVersion {
				return fmt.Errorf("primitive %d has no index run in index buffer version %d", pi, indexVersion)
			}
			cmd.IndexBuffer = indexBuf
			cmd.IndexOffset = indexOffset
		}

		vertexBuffers, err := prim.VertexBuffers(r)
		if err != nil {
			return err
		}
		cmd.VertexBuffers = vertexBuffers

		for _, provider := range prim.BindGroups() {
			bg, err := provider.BindGroup(r)
			if err != nil {
				return err
			}
			cmd.BindGroups = append(cmd.BindGroups, bg)
		}

		for _, side := range sides {
			key, ok := prim.Pipeline(side)
			if !ok {
				return &buffer_registry.ConfigurationError{
					Component:      "indirect_draw",
					ObjectID:       -1,
					PrimitiveIndex: pi,
					Err:            fmt.Errorf("%w %s", buffer_registry.ErrMissingPipeline, side),
				}
			}
			cmd.PipelineKey = key
			if err := r.DrawIndirect(cmd); err != nil {
				return fmt.Errorf("draw primitive %d (%s): %w", pi, side, err)
			}
		}
	}
	return nil
}

func (c *coordinator) Objects() []scene_object.SceneObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scene_object.SceneObject(nil), c.indirect.order...)
}

func (c *coordinator) Primitives() []scene_object.Primitive {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []scene_object.Primitive
	for _, obj := range c.indirect.order {
		out = append(out, obj.Primitives()...)
	}
	return out
}

func (c *coordinator) IndirectBuffer() renderer.Buffer {
	return c.ctx.Handle(buffer_registry.BufferIndirect)
}

func (c *coordinator) IndexBuffer() renderer.Buffer {
	return c.ctx.Handle(buffer_registry.BufferIndex)
}
