package scene

import "github.com/Carmen-Shannon/oxy-draw/engine/scene_object"

// SceneBuilderOption is a functional option applied to a scene during construction via NewScene.
type SceneBuilderOption func(*scene)

// WithOrbit sets whether Update advances the camera's orbit controller.
//
// Parameters:
//   - enabled: true to orbit every update
//
// Returns:
//   - SceneBuilderOption: a function that applies the setting to a scene
func WithOrbit(enabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.orbit = enabled
	}
}

// WithSides sets the sides every primitive is drawn with. Each side needs a pipeline on
// every primitive. Defaults to the front side only.
//
// Parameters:
//   - sides: the sides to draw
//
// Returns:
//   - SceneBuilderOption: a function that applies the sides to a scene
func WithSides(sides ...scene_object.Side) SceneBuilderOption {
	return func(s *scene) {
		s.sides = sides
	}
}
