package scene_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

var nextID atomic.Int64

type sceneObject struct {
	mu *sync.Mutex

	id int

	translation [3]float32
	rotation    [3]float32
	scale       [3]float32

	world  [16]float32
	normal [9]float32
	dirty  bool

	parent   SceneObject
	children []SceneObject

	primitives []Primitive

	lodThreshold    float32
	hasLodThreshold bool

	bounds    common.AABB
	hasBounds bool

	// Optional GPU targets the world and normal matrices are written to on update.
	transformRenderer renderer.Renderer
	worldBuffer       renderer.Buffer
	normalBuffer      renderer.Buffer
}

// SceneObject is a node of the scene graph. It owns a local transform, derives a world
// transform from its parent chain, and carries the primitives the draw engines consume.
//
// Changing any local transform component marks the node and every descendant dirty;
// UpdateWorldMatrix brings the subtree back in step.
type SceneObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - int: the object ID
	ID() int

	// Translation returns the local translation.
	Translation() [3]float32

	// Rotation returns the local Euler rotation in radians.
	Rotation() [3]float32

	// Scale returns the local scale.
	Scale() [3]float32

	// SetTranslation updates the local translation and marks the subtree dirty.
	//
	// Parameters:
	//   - x, y, z: new translation components
	SetTranslation(x, y, z float32)

	// SetRotation updates the local Euler rotation (radians, applied Y then X then Z)
	// and marks the subtree dirty.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetScale updates the local scale and marks the subtree dirty.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// WorldMatrix returns the column-major world matrix as of the last update.
	//
	// Returns:
	//   - [16]float32: the world matrix
	WorldMatrix() [16]float32

	// NormalMatrix returns the inverse-transpose of the world matrix's upper 3x3 block,
	// column-major.
	//
	// Returns:
	//   - [9]float32: the normal matrix
	NormalMatrix() [9]float32

	// WorldPosition returns the translation column of the world matrix.
	//
	// Returns:
	//   - [3]float32: the world-space origin of the object
	WorldPosition() [3]float32

	// NeedsUpdate reports whether the world matrix is stale.
	//
	// Returns:
	//   - bool: true if UpdateWorldMatrix must run before the world matrix is read
	NeedsUpdate() bool

	// MarkDirty flags this node and all descendants as needing a world matrix update.
	MarkDirty()

	// UpdateWorldMatrix recomputes the world and normal matrices for this node and
	// recurses into every child. A clean root skips its own recomputation. If transform
	// buffers are attached the new matrices are written to them.
	UpdateWorldMatrix()

	// Parent returns the parent node, or nil for a root.
	//
	// Returns:
	//   - SceneObject: the parent or nil
	Parent() SceneObject

	// Children returns the direct children in insertion order.
	//
	// Returns:
	//   - []SceneObject: the children
	Children() []SceneObject

	// AddChild attaches child below this node and marks the child's subtree dirty.
	//
	// Parameters:
	//   - child: the node to attach
	AddChild(child SceneObject)

	// Primitives returns the drawable primitives of this object.
	//
	// Returns:
	//   - []Primitive: the primitives
	Primitives() []Primitive

	// LodSelectionThreshold returns the distance step between detail levels.
	//
	// Returns:
	//   - float32: the threshold
	//   - bool: false if none was configured
	LodSelectionThreshold() (float32, bool)

	// BoundingBox returns the last computed world-space bounds.
	//
	// Returns:
	//   - common.AABB: the cached bounds
	//   - bool: false if ComputeBoundingBox has not run
	BoundingBox() (common.AABB, bool)

	// ComputeBoundingBox transforms every primitive's local bounds by the world matrix,
	// caches the union, and returns it.
	//
	// Returns:
	//   - common.AABB: the world-space bounds of the object
	ComputeBoundingBox() common.AABB

	// PrimitiveBoundingBox returns the world-space bounds of one primitive.
	//
	// Parameters:
	//   - index: the primitive index
	//
	// Returns:
	//   - common.AABB: the world-space bounds
	PrimitiveBoundingBox(index int) common.AABB

	// setParent sets the non-owning back-reference. Only AddChild calls it.
	setParent(parent SceneObject)
}

var _ SceneObject = &sceneObject{}

// reserveID moves the automatic ID counter to at least id.
func reserveID(id int64) {
	for {
		cur := nextID.Load()
		if cur >= id || nextID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// NewSceneObject creates a root SceneObject configured with the given options.
// Objects start dirty with an identity scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - SceneObject: the newly created object
func NewSceneObject(options ...SceneObjectBuilderOption) SceneObject {
	obj := &sceneObject{
		mu:    &sync.Mutex{},
		id:    int(nextID.Add(1)),
		scale: [3]float32{1, 1, 1},
		dirty: true,
	}
	common.Identity(obj.world[:])
	obj.normal = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (o *sceneObject) ID() int {
	return o.id
}

func (o *sceneObject) Translation() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.translation
}

func (o *sceneObject) Rotation() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rotation
}

func (o *sceneObject) Scale() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scale
}

func (o *sceneObject) SetTranslation(x, y, z float32) {
	o.mu.Lock()
	o.translation = [3]float32{x, y, z}
	o.mu.Unlock()
	o.MarkDirty()
}

func (o *sceneObject) SetRotation(rx, ry, rz float32) {
	o.mu.Lock()
	o.rotation = [3]float32{rx, ry, rz}
	o.mu.Unlock()
	o.MarkDirty()
}

func (o *sceneObject) SetScale(sx, sy, sz float32) {
	o.mu.Lock()
	o.scale = [3]float32{sx, sy, sz}
	o.mu.Unlock()
	o.MarkDirty()
}

func (o *sceneObject) WorldMatrix() [16]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.world
}

func (o *sceneObject) NormalMatrix() [9]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.normal
}

func (o *sceneObject) WorldPosition() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return [3]float32{o.world[12], o.world[13], o.world[14]}
}

func (o *sceneObject) NeedsUpdate() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirty
}

func (o *sceneObject) MarkDirty() {
	o.mu.Lock()
	o.dirty = true
	children := append([]SceneObject(nil), o.children...)
	o.mu.Unlock()

	for _, c := range children {
		c.MarkDirty()
	}
}

func (o *sceneObject) UpdateWorldMatrix() {
	o.mu.Lock()
	parent := o.parent
	skip := !o.dirty && parent == nil
	o.mu.Unlock()

	if !skip {
		o.recompute(parent)
	}

	for _, c := range o.Children() {
		c.UpdateWorldMatrix()
	}
}

// recompute rebuilds the world and normal matrices from the local transform and the
// parent's world matrix, then writes them to any attached transform buffers.
func (o *sceneObject) recompute(parent SceneObject) {
	var parentWorld [16]float32
	if parent != nil {
		parentWorld = parent.WorldMatrix()
	}

	o.mu.Lock()
	var local [16]float32
	common.BuildModelMatrix(local[:], o.translation, o.rotation, o.scale)
	if parent != nil {
		common.Mul4(o.world[:], parentWorld[:], local[:])
	} else {
		o.world = local
	}
	common.NormalMatrix(o.normal[:], o.world[:])
	o.dirty = false

	r, worldBuf, normalBuf := o.transformRenderer, o.worldBuffer, o.normalBuffer
	world, normal := o.world, o.normal
	o.mu.Unlock()

	if r == nil {
		return
	}
	if worldBuf != nil {
		if err := r.WriteBuffer(worldBuf, 0, common.SliceToBytes(world[:])); err != nil {
			logger.Component("scene_object").Warn("world matrix upload failed", "object", o.id, "error", err)
		}
	}
	if normalBuf != nil {
		// mat3x3<f32> columns are padded to vec4 in uniform and storage layouts.
		var padded [12]float32
		for col := 0; col < 3; col++ {
			copy(padded[col*4:col*4+3], normal[col*3:col*3+3])
		}
		if err := r.WriteBuffer(normalBuf, 0, common.SliceToBytes(padded[:])); err != nil {
			logger.Component("scene_object").Warn("normal matrix upload failed", "object", o.id, "error", err)
		}
	}
}

func (o *sceneObject) Parent() SceneObject {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.parent
}

func (o *sceneObject) Children() []SceneObject {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]SceneObject(nil), o.children...)
}

func (o *sceneObject) AddChild(child SceneObject) {
	o.mu.Lock()
	o.children = append(o.children, child)
	o.mu.Unlock()

	child.setParent(o)
	child.MarkDirty()
}

func (o *sceneObject) setParent(parent SceneObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.parent = parent
}

func (o *sceneObject) Primitives() []Primitive {
	return o.primitives
}

func (o *sceneObject) LodSelectionThreshold() (float32, bool) {
	return o.lodThreshold, o.hasLodThreshold
}

func (o *sceneObject) BoundingBox() (common.AABB, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bounds, o.hasBounds
}

func (o *sceneObject) ComputeBoundingBox() common.AABB {
	box := common.EmptyAABB()
	for i := range o.primitives {
		box = box.Union(o.PrimitiveBoundingBox(i))
	}

	o.mu.Lock()
	o.bounds = box
	o.hasBounds = true
	o.mu.Unlock()
	return box
}

func (o *sceneObject) PrimitiveBoundingBox(index int) common.AABB {
	world := o.WorldMatrix()
	local := o.primitives[index].LocalBounds()
	if local.IsEmpty() {
		return local
	}
	return local.Transform(world[:])
}
