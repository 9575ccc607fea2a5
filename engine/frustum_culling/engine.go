package frustum_culling

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

const component = "frustum_culling"

// objectBoxes is the result of one bounding-box task.
type objectBoxes struct {
	primitives []common.AABB
	object     common.AABB
}

type engine struct {
	// mu guards the frame-side state: tables, dispatch size and the bind group.
	mu  *sync.Mutex
	ctx buffer_registry.RendererContext

	// boxMu guards everything bounding-box workers touch.
	boxMu      *sync.Mutex
	registered []scene_object.SceneObject
	boxes      map[int]objectBoxes
	epoch      uint64
	barrier    *BoxBarrier
	taskID     int

	// computePool runs bounding-box tasks off the frame goroutine.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
	queueSize      int

	dirty            bool
	flippedEpoch     uint64
	tablePrimitives  []scene_object.Primitive
	observedIndirect uint64
	dispatch         uint32
	frustum          common.Frustum

	provider bind_group_provider.BindGroupProvider
}

// Engine zeroes the draw count of primitives whose world-space bounds fall outside the
// camera frustum. Bounding boxes are computed asynchronously on a worker pool; the
// culling tables flip to a new registration set only once every box for that set is
// available, so a frame either culls against a complete set or against the previous one.
type Engine interface {
	// AppendFrustumCulling registers obj for culling, opens a new registration epoch and
	// submits obj's bounding-box task. Registering an object twice does nothing.
	//
	// Parameters:
	//   - obj: the scene object to cull
	AppendFrustumCulling(obj scene_object.SceneObject)

	// RemoveFrustumCulling drops obj from culling and opens a new registration epoch.
	//
	// Parameters:
	//   - obj: the scene object to drop
	RemoveFrustumCulling(obj scene_object.SceneObject)

	// RenderLoop uploads the planes of projection × view, flips the culling tables if the
	// current epoch's boxes are ready, and encodes the culling dispatch into the open
	// compute frame. Before the first flip nothing is dispatched.
	//
	// Parameters:
	//   - view: the column-major view matrix
	//   - projection: the column-major projection matrix
	//
	// Returns:
	//   - error: a *buffer_registry.ConfigurationError for a primitive without a current
	//     draw record, or the registry's or renderer's error
	RenderLoop(view, projection [16]float32) error

	// Barrier returns the barrier of the current registration epoch.
	//
	// Returns:
	//   - *BoxBarrier: resolves when every registered object has its boxes
	Barrier() *BoxBarrier

	// Ready reports whether the current epoch's boxes are all available. It never blocks.
	Ready() bool

	// PrimitiveCount returns the number of primitives in the flipped tables.
	PrimitiveCount() int

	// Dispatch returns the workgroup count used by the last RenderLoop, 0 when nothing was dispatched.
	Dispatch() uint32

	// Frustum returns the planes uploaded by the last RenderLoop.
	Frustum() common.Frustum

	// Release frees the engine's bind group. Shared buffers belong to the registry.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a culling engine on ctx and registers the frustum_cull compute
// pipeline with ctx's renderer. A nil context panics, as does a renderer that rejects
// the pipeline.
//
// Parameters:
//   - ctx: the shared buffer registry
//   - options: variadic list of EngineBuilderOption functions
//
// Returns:
//   - Engine: the culling engine
func NewEngine(ctx buffer_registry.RendererContext, options ...EngineBuilderOption) Engine {
	if ctx == nil {
		panic("frustum_culling: renderer context is required")
	}
	e := &engine{
		mu:             &sync.Mutex{},
		ctx:            ctx,
		boxMu:          &sync.Mutex{},
		boxes:          make(map[int]objectBoxes),
		computeWorkers: 4,
		queueSize:      256,
	}
	for _, opt := range options {
		opt(e)
	}
	e.barrier = newBoxBarrier(0)
	e.barrier.resolve()
	e.computePool = worker.NewDynamicWorkerPool(e.computeWorkers, e.queueSize, 1*time.Second)

	cull := pipeline.NewPipeline(PipelineKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShader(PipelineKey, shader.ShaderTypeCompute, FrustumCullSource)),
		pipeline.WithKernel(cullKernel),
	)
	if err := ctx.Renderer().RegisterPipelines(cull); err != nil {
		panic(fmt.Sprintf("frustum_culling: %v", err))
	}

	storage := renderer.BufferUsageStorage | renderer.BufferUsageCopyDst
	uniform := renderer.BufferUsageUniform | renderer.BufferUsageCopyDst
	e.provider = bind_group_provider.NewBindGroupProvider(component, PipelineKey, 0,
		bind_group_provider.WithBinding(bindingIndirect, ctx.Ensure(buffer_registry.BufferIndirect,
			storage|renderer.BufferUsageIndirect|renderer.BufferUsageCopySrc)),
		bind_group_provider.WithBinding(bindingMinMax, ctx.Ensure(buffer_registry.BufferFrustumMinMax, storage)),
		bind_group_provider.WithBinding(bindingOffsets, ctx.Ensure(buffer_registry.BufferFrustumOffsets, storage)),
		bind_group_provider.WithBinding(bindingPlanes, ctx.Ensure(buffer_registry.BufferFrustumPlanes, uniform)),
		bind_group_provider.WithBinding(bindingParams, ctx.Ensure(buffer_registry.BufferFrustumParams, uniform)),
	)
	return e
}

func (e *engine) AppendFrustumCulling(obj scene_object.SceneObject) {
	e.boxMu.Lock()
	for _, o := range e.registered {
		if o.ID() == obj.ID() {
			e.boxMu.Unlock()
			return
		}
	}
	e.registered = append(e.registered, obj)
	delete(e.boxes, obj.ID())
	e.openEpochLocked()
	id := e.taskID
	e.taskID++
	e.boxMu.Unlock()

	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()

	e.computePool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			e.storeBoxes(obj, computeBoxes(obj))
			return nil, nil
		},
	})
}

func (e *engine) RemoveFrustumCulling(obj scene_object.SceneObject) {
	e.boxMu.Lock()
	idx := -1
	for i, o := range e.registered {
		if o.ID() == obj.ID() {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.boxMu.Unlock()
		return
	}
	e.registered = append(e.registered[:idx], e.registered[idx+1:]...)
	delete(e.boxes, obj.ID())
	e.openEpochLocked()
	e.resolveIfCompleteLocked()
	e.boxMu.Unlock()

	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// openEpochLocked replaces the barrier. boxMu must be held.
func (e *engine) openEpochLocked() {
	e.epoch++
	e.barrier = newBoxBarrier(e.epoch)
}

// resolveIfCompleteLocked closes the barrier once every registered object has boxes.
// boxMu must be held.
func (e *engine) resolveIfCompleteLocked() {
	if len(e.boxes) == len(e.registered) {
		e.barrier.resolve()
	}
}

// computeBoxes brings obj's world matrix up to date and returns its world-space boxes.
func computeBoxes(obj scene_object.SceneObject) objectBoxes {
	if obj.NeedsUpdate() {
		obj.UpdateWorldMatrix()
	}
	out := objectBoxes{primitives: make([]common.AABB, len(obj.Primitives()))}
	for i := range out.primitives {
		out.primitives[i] = obj.PrimitiveBoundingBox(i)
	}
	out.object = obj.ComputeBoundingBox()
	return out
}

func (e *engine) storeBoxes(obj scene_object.SceneObject, boxes objectBoxes) {
	e.boxMu.Lock()
	defer e.boxMu.Unlock()

	registered := false
	for _, o := range e.registered {
		if o.ID() == obj.ID() {
			registered = true
			break
		}
	}
	if !registered {
		return
	}
	e.boxes[obj.ID()] = boxes
	e.resolveIfCompleteLocked()
}

func (e *engine) RenderLoop(view, projection [16]float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var viewProj [16]float32
	common.Mul4(viewProj[:], projection[:], view[:])
	e.frustum = common.ExtractFrustumFromMatrix(viewProj[:])
	if err := e.ctx.Upload(buffer_registry.BufferFrustumPlanes, e.frustum.Marshal(), buffer_registry.ElementFormatFloat32); err != nil {
		return err
	}

	indirectVersion := e.ctx.Version(buffer_registry.BufferIndirect)
	if err := e.refreshTablesLocked(indirectVersion); err != nil {
		return err
	}
	if e.dispatch == 0 {
		return nil
	}

	r := e.ctx.Renderer()
	bg, err := e.provider.BindGroup(r)
	if err != nil {
		return fmt.Errorf("frustum culling bind group: %w", err)
	}
	if err := r.DispatchCompute(PipelineKey, []renderer.BindGroup{bg}, [3]uint32{e.dispatch, 1, 1}); err != nil {
		return fmt.Errorf("frustum culling dispatch: %w", err)
	}
	logger.Component(component).Debug("culling dispatched", "primitives", len(e.tablePrimitives), "workgroups", e.dispatch)
	return nil
}

// refreshTablesLocked flips the tables when the current epoch is ready and otherwise
// keeps the offsets of the flipped set in step with the indirect buffer. mu must be held.
func (e *engine) refreshTablesLocked(indirectVersion uint64) error {
	e.boxMu.Lock()
	ready := e.barrier.Ready()
	epoch := e.epoch
	var objects []scene_object.SceneObject
	var boxes map[int]objectBoxes
	if e.dirty && ready {
		objects = append(objects, e.registered...)
		boxes = make(map[int]objectBoxes, len(e.boxes))
		for id, b := range e.boxes {
			boxes[id] = b
		}
	}
	e.boxMu.Unlock()

	switch {
	case e.dirty && ready:
		return e.flipLocked(objects, boxes, epoch, indirectVersion)
	case indirectVersion != e.observedIndirect && len(e.tablePrimitives) > 0:
		offsets, err := offsetTable(e.tablePrimitives, nil, indirectVersion)
		if err != nil {
			// The flipped set no longer matches the indirect buffer; wait for the next flip.
			e.dispatch = 0
			if e.dirty {
				return nil
			}
			return err
		}
		e.ctx.MarkDirty(buffer_registry.BufferFrustumOffsets)
		if err := e.ctx.Rebuild(buffer_registry.BufferFrustumOffsets, offsets, buffer_registry.ElementFormatUint32); err != nil {
			return err
		}
		e.observedIndirect = indirectVersion
		e.dispatch = common.CeilDiv(uint32(len(e.tablePrimitives)), WorkgroupSize)
	}
	return nil
}

// flipLocked rebuilds all three tables from a complete registration set. mu must be held.
func (e *engine) flipLocked(objects []scene_object.SceneObject, boxes map[int]objectBoxes, epoch, indirectVersion uint64) error {
	var primitives []scene_object.Primitive
	var owners []scene_object.SceneObject
	minmax := common.Words(nil)
	for _, obj := range objects {
		b := boxes[obj.ID()]
		for i, prim := range obj.Primitives() {
			primitives = append(primitives, prim)
			owners = append(owners, obj)
			minmax = appendMinMax(minmax, b.primitives[i])
		}
	}

	offsets, err := offsetTable(primitives, owners, indirectVersion)
	if err != nil {
		logger.Component(component).Error("culling tables rejected", "error", err)
		return err
	}
	params := GPUCullParams{PrimitiveCount: uint32(len(primitives))}

	for _, t := range []struct {
		name   string
		data   []byte
		format buffer_registry.ElementFormat
	}{
		{buffer_registry.BufferFrustumMinMax, minmax, buffer_registry.ElementFormatFloat32},
		{buffer_registry.BufferFrustumOffsets, offsets, buffer_registry.ElementFormatUint32},
		{buffer_registry.BufferFrustumParams, params.Marshal(), buffer_registry.ElementFormatUint32},
	} {
		e.ctx.MarkDirty(t.name)
		if err := e.ctx.Rebuild(t.name, t.data, t.format); err != nil {
			return err
		}
	}

	e.tablePrimitives = primitives
	e.observedIndirect = indirectVersion
	e.flippedEpoch = epoch
	e.dirty = false
	e.dispatch = common.CeilDiv(uint32(len(primitives)), WorkgroupSize)
	logger.Component(component).Info("culling epoch flipped",
		"epoch", epoch, "objects", len(objects), "primitives", len(primitives), "workgroups", e.dispatch)
	return nil
}

// offsetTable returns the u32 word index of each primitive's draw record. owners, when
// given, names the object of each primitive for error reporting.
func offsetTable(primitives []scene_object.Primitive, owners []scene_object.SceneObject, indirectVersion uint64) ([]byte, error) {
	out := common.Words(nil)
	for i, prim := range primitives {
		off, ver, ok := prim.IndirectOffset()
		if !ok || ver != indirectVersion {
			cfg := &buffer_registry.ConfigurationError{Component: component, ObjectID: -1, PrimitiveIndex: i, Err: buffer_registry.ErrMissingIndirectRecord}
			if owners != nil {
				cfg.ObjectID = owners[i].ID()
				cfg.PrimitiveIndex = primitiveIndex(owners[i], prim)
			}
			return nil, cfg
		}
		out = out.AppendUint32(uint32(off / 4))
	}
	return out, nil
}

func primitiveIndex(obj scene_object.SceneObject, prim scene_object.Primitive) int {
	for i, p := range obj.Primitives() {
		if p == prim {
			return i
		}
	}
	return -1
}

func (e *engine) Barrier() *BoxBarrier {
	e.boxMu.Lock()
	defer e.boxMu.Unlock()
	return e.barrier
}

func (e *engine) Ready() bool {
	return e.Barrier().Ready()
}

func (e *engine) PrimitiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tablePrimitives)
}

func (e *engine) Dispatch() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch
}

func (e *engine) Frustum() common.Frustum {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frustum
}

func (e *engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider.Release()
	e.dispatch = 0
}
