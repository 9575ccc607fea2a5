package lod_selection

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

const component = "lod_selection"

// tableEntry is one primitive in the built tables.
type tableEntry struct {
	prim      scene_object.Primitive
	objectID  int
	primIndex int
	blob      uint32
}

type engine struct {
	mu  *sync.Mutex
	ctx buffer_registry.RendererContext

	registered []scene_object.SceneObject
	dirty      bool
	baseVertex bool

	entries          []tableEntry
	observedIndirect uint64
	dispatch         uint32

	provider bind_group_provider.BindGroupProvider
}

// Engine rewrites each registered primitive's draw record to the LOD range chosen by
// camera distance. Range selection runs on the GPU; the engine keeps the per-primitive
// LOD blob and the (blob, record) offset pairs the kernel reads.
type Engine interface {
	// AppendLodSelection registers obj and marks the tables dirty. Registering an object
	// twice does nothing.
	//
	// Parameters:
	//   - obj: the scene object, which needs a threshold and LOD ranges on every primitive
	AppendLodSelection(obj scene_object.SceneObject)

	// RemoveLodSelection drops obj and marks the tables dirty.
	//
	// Parameters:
	//   - obj: the scene object to drop
	RemoveLodSelection(obj scene_object.SceneObject)

	// MarkDirty forces a rebuild on the next frame, e.g. after registered objects moved.
	MarkDirty()

	// Rebuild writes the LOD blob, the offsets table and the params uniform from the
	// registered objects. Each primitive's draw record must belong to the current
	// version of the indirect buffer.
	//
	// Returns:
	//   - error: a *buffer_registry.ConfigurationError wrapping ErrMissingLodRanges,
	//     ErrMissingLodThreshold or ErrMissingIndirectRecord, or the registry's error
	Rebuild() error

	// RenderLoop rebuilds dirty tables, refreshes the offsets when the indirect buffer
	// was reallocated, and encodes the LOD dispatch into the open compute frame. The
	// camera position uniform must already hold this frame's eye position.
	//
	// Returns:
	//   - error: a rebuild error or the renderer's error
	RenderLoop() error

	// PrimitiveCount returns the number of primitives in the built tables.
	PrimitiveCount() int

	// Dispatch returns the workgroup count of the built tables.
	Dispatch() uint32

	// Release frees the engine's bind group. Shared buffers belong to the registry.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a LOD selection engine on ctx and registers the lod_select compute
// pipeline. A nil context panics, as does a renderer that rejects the pipeline.
//
// Parameters:
//   - ctx: the shared buffer registry
//   - options: variadic list of EngineBuilderOption functions
//
// Returns:
//   - Engine: the LOD engine
func NewEngine(ctx buffer_registry.RendererContext, options ...EngineBuilderOption) Engine {
	if ctx == nil {
		panic("lod_selection: renderer context is required")
	}
	e := &engine{
		mu:  &sync.Mutex{},
		ctx: ctx,
	}
	for _, opt := range options {
		opt(e)
	}

	lod := pipeline.NewPipeline(PipelineKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader(PipelineKey, shader.ShaderTypeCompute, LodSelectSource)),
		pipeline.WithKernel(lodKernel),
	)
	if err := ctx.Renderer().RegisterPipelines(lod); err != nil {
		panic(fmt.Sprintf("lod_selection: %v", err))
	}

	storage := renderer.BufferUsageStorage | renderer.BufferUsageCopyDst
	uniform := renderer.BufferUsageUniform | renderer.BufferUsageCopyDst
	e.provider = bind_group_provider.NewBindGroupProvider(component, PipelineKey, 0,
		bind_group_provider.WithBinding(bindingIndirect, ctx.Ensure(buffer_registry.BufferIndirect,
			storage|renderer.BufferUsageIndirect|renderer.BufferUsageCopySrc)),
		bind_group_provider.WithBinding(bindingOffsets, ctx.Ensure(buffer_registry.BufferLodOffsets, storage)),
		bind_group_provider.WithBinding(bindingData, ctx.Ensure(buffer_registry.BufferLodData, storage)),
		bind_group_provider.WithBinding(bindingParams, ctx.Ensure(buffer_registry.BufferLodParams, uniform)),
		bind_group_provider.WithBinding(bindingCamera, ctx.Ensure(buffer_registry.BufferCameraPosition, uniform)),
	)
	return e
}

func (e *engine) AppendLodSelection(obj scene_object.SceneObject) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.registered {
		if o.ID() == obj.ID() {
			return
		}
	}
	e.registered = append(e.registered, obj)
	e.dirty = true
}

func (e *engine) RemoveLodSelection(obj scene_object.SceneObject) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.registered {
		if o.ID() == obj.ID() {
			e.registered = append(e.registered[:i], e.registered[i+1:]...)
			e.dirty = true
			return
		}
	}
}

func (e *engine) MarkDirty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
}

func (e *engine) Rebuild() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked()
}

func (e *engine) rebuildLocked() error {
	stride := strideStartCount
	if e.baseVertex {
		stride = strideStartCountBaseVertex
	}

	var entries []tableEntry
	blob := common.Words(nil)
	for _, obj := range e.registered {
		threshold, ok := obj.LodSelectionThreshold()
		if !ok {
			return e.reject(&buffer_registry.ConfigurationError{Component: component, ObjectID: obj.ID(), PrimitiveIndex: -1, Err: buffer_registry.ErrMissingLodThreshold})
		}
		if obj.NeedsUpdate() {
			obj.UpdateWorldMatrix()
		}
		worldPos := obj.WorldPosition()
		for i, prim := range obj.Primitives() {
			ranges := prim.LodRanges()
			if len(ranges) == 0 {
				return e.reject(&buffer_registry.ConfigurationError{Component: component, ObjectID: obj.ID(), PrimitiveIndex: i, Err: buffer_registry.ErrMissingLodRanges})
			}
			entries = append(entries, tableEntry{prim: prim, objectID: obj.ID(), primIndex: i, blob: uint32(blob.Len())})
			blob = appendEntry(blob, worldPos, threshold, ranges, stride)
		}
	}

	indirectVersion := e.ctx.Version(buffer_registry.BufferIndirect)
	offsets, err := offsetTable(entries, indirectVersion)
	if err != nil {
		return e.reject(err)
	}
	params := GPULodParams{PrimitiveCount: uint32(len(entries)), RangeStride: uint32(stride)}

	for _, t := range []struct {
		name   string
		data   []byte
		format buffer_registry.ElementFormat
	}{
		{buffer_registry.BufferLodData, blob, buffer_registry.ElementFormatMixed},
		{buffer_registry.BufferLodOffsets, offsets, buffer_registry.ElementFormatUint32},
		{buffer_registry.BufferLodParams, params.Marshal(), buffer_registry.ElementFormatUint32},
	} {
		e.ctx.MarkDirty(t.name)
		if err := e.ctx.Rebuild(t.name, t.data, t.format); err != nil {
			return err
		}
	}

	e.entries = entries
	e.observedIndirect = indirectVersion
	e.dirty = false
	e.dispatch = common.CeilDiv(uint32(len(entries)), WorkgroupSize)
	logger.Component(component).Info("LOD tables rebuilt",
		"objects", len(e.registered), "primitives", len(entries), "blob_words", blob.Len(), "stride", stride, "workgroups", e.dispatch)
	return nil
}

func (e *engine) reject(err error) error {
	logger.Component(component).Error("LOD tables rejected", "error", err)
	return err
}

// offsetTable pairs each entry's blob word offset with its draw record's word index.
func offsetTable(entries []tableEntry, indirectVersion uint64) ([]byte, error) {
	out := common.Words(nil)
	for _, en := range entries {
		off, ver, ok := en.prim.IndirectOffset()
		if !ok || ver != indirectVersion {
			return nil, &buffer_registry.ConfigurationError{Component: component, ObjectID: en.objectID, PrimitiveIndex: en.primIndex, Err: buffer_registry.ErrMissingIndirectRecord}
		}
		out = out.AppendUint32(en.blob, uint32(off/4))
	}
	return out, nil
}

func (e *engine) RenderLoop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	indirectVersion := e.ctx.Version(buffer_registry.BufferIndirect)
	switch {
	case e.dirty:
		if err := e.rebuildLocked(); err != nil {
			return err
		}
	case indirectVersion != e.observedIndirect && len(e.entries) > 0:
		offsets, err := offsetTable(e.entries, indirectVersion)
		if err != nil {
			return e.reject(err)
		}
		e.ctx.MarkDirty(buffer_registry.BufferLodOffsets)
		if err := e.ctx.Rebuild(buffer_registry.BufferLodOffsets, offsets, buffer_registry.ElementFormatUint32); err != nil {
			return err
		}
		e.observedIndirect = indirectVersion
	}
	if e.dispatch == 0 {
		return nil
	}

	r := e.ctx.Renderer()
	bg, err := e.provider.BindGroup(r)
	if err != nil {
		return fmt.Errorf("LOD selection bind group: %w", err)
	}
	if err := r.DispatchCompute(PipelineKey, []renderer.BindGroup{bg}, [3]uint32{e.dispatch, 1, 1}); err != nil {
		return fmt.Errorf("LOD selection dispatch: %w", err)
	}
	logger.Component(component).Debug("LOD selection dispatched", "primitives", len(e.entries), "workgroups", e.dispatch)
	return nil
}

func (e *engine) PrimitiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *engine) Dispatch() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch
}

func (e *engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider.Release()
	e.dispatch = 0
}
