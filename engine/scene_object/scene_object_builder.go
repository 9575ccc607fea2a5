package scene_object

import "github.com/Carmen-Shannon/oxy-draw/engine/renderer"

// SceneObjectBuilderOption is a functional option for configuring a SceneObject during construction.
type SceneObjectBuilderOption func(*sceneObject)

// WithID overrides the automatically assigned ID. Later automatic IDs are allocated
// above id, so they never collide with it; two explicit IDs must still differ.
//
// Parameters:
//   - id: unique identifier for the SceneObject
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the ID
func WithID(id int) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.id = id
		reserveID(int64(id))
	}
}

// WithTranslation sets the initial local translation.
//
// Parameters:
//   - x, y, z: translation components
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the translation
func WithTranslation(x, y, z float32) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.translation = [3]float32{x, y, z}
	}
}

// WithRotation sets the initial local Euler rotation in radians.
//
// Parameters:
//   - rx, ry, rz: rotation angles
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the rotation
func WithRotation(rx, ry, rz float32) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.rotation = [3]float32{rx, ry, rz}
	}
}

// WithScale sets the initial local scale.
//
// Parameters:
//   - sx, sy, sz: scale factors
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the scale
func WithScale(sx, sy, sz float32) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.scale = [3]float32{sx, sy, sz}
	}
}

// WithPrimitives sets the drawable primitives of the object.
//
// Parameters:
//   - primitives: the primitives in draw order
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the primitives
func WithPrimitives(primitives ...Primitive) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.primitives = primitives
	}
}

// WithLodSelectionThreshold sets the distance step between detail levels. Objects
// registered for LOD selection must have one.
//
// Parameters:
//   - threshold: the distance step in world units
//
// Returns:
//   - SceneObjectBuilderOption: functional option to set the threshold
func WithLodSelectionThreshold(threshold float32) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.lodThreshold = threshold
		obj.hasLodThreshold = true
	}
}

// WithTransformBuffer attaches GPU buffers that receive the world matrix (64 bytes) and
// the padded normal matrix (48 bytes) every time the world matrix is recomputed.
// Either buffer may be nil.
//
// Parameters:
//   - r: the renderer used for the writes
//   - world: the world matrix target
//   - normal: the normal matrix target
//
// Returns:
//   - SceneObjectBuilderOption: functional option to attach the buffers
func WithTransformBuffer(r renderer.Renderer, world, normal renderer.Buffer) SceneObjectBuilderOption {
	return func(obj *sceneObject) {
		obj.transformRenderer = r
		obj.worldBuffer = world
		obj.normalBuffer = normal
	}
}
