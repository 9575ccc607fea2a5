package camera

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*orbitControllerImpl)

// WithTarget sets the orbit pivot.
//
// Parameters:
//   - target: world-space pivot
//
// Returns:
//   - OrbitControllerOption: functional option to set the target
func WithTarget(target [3]float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.target = target
	}
}

// WithEye places the eye at a world position. Radius, azimuth and elevation are derived
// from it once every option has been applied, so the target may be given in any order.
//
// Parameters:
//   - eye: world-space eye position
//
// Returns:
//   - OrbitControllerOption: functional option to set the eye
func WithEye(eye [3]float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.eye = &eye
	}
}

// WithRadius sets the initial distance from the target.
func WithRadius(radius float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.radius = radius
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - min: closest distance to the target
//   - max: farthest distance from the target
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius bounds
func WithRadiusBounds(min, max float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.minRadius = min
		cc.maxRadius = max
	}
}

// WithOrbitSpeed sets the rotation rate used by Advance in radians per second.
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the distance moved per unit of scroll.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithPaused starts the controller paused.
func WithPaused(paused bool) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.paused = paused
	}
}
