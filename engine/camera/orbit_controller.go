package camera

import (
	"sync"

	"github.com/chewxy/math32"
)

// orbitControllerImpl keeps the eye on a sphere around the target. Position is always
// derived from the spherical coordinates, never stored independently.
type orbitControllerImpl struct {
	mu *sync.Mutex

	target [3]float32

	radius    float32
	azimuth   float32 // around +Y, 0 looks down -Z from +Z
	elevation float32 // above the XZ plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	// radians per second for Advance
	orbitSpeed float32
	zoomSpeed  float32
	paused     bool

	eye *[3]float32
}

// OrbitController moves a camera around a fixed target. The frustum-culling demo advances
// it every frame so primitives cross the frustum planes; scrolling zooms it.
type OrbitController interface {
	// Position returns the eye position derived from the spherical coordinates.
	//
	// Returns:
	//   - [3]float32: world-space eye position
	Position() [3]float32

	// Target returns the look-at point.
	//
	// Returns:
	//   - [3]float32: world-space target
	Target() [3]float32

	// SetTarget moves the pivot and keeps the spherical offset.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target [3]float32)

	// Zoom moves the eye toward the target by delta scaled by the zoom speed,
	// clamped to the radius bounds. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: scroll amount
	Zoom(delta float32)

	// Advance rotates the eye around the target by the orbit speed times dt.
	// It does nothing while paused.
	//
	// Parameters:
	//   - dt: elapsed seconds
	Advance(dt float32)

	// TogglePause stops or resumes Advance.
	//
	// Returns:
	//   - bool: true when the orbit is now paused
	TogglePause() bool

	Radius() float32
	SetRadius(radius float32)
	Azimuth() float32
	SetAzimuth(azimuth float32)
	Elevation() float32
	SetElevation(elevation float32)
}

var _ OrbitController = &orbitControllerImpl{}

// NewOrbitController creates an orbit controller. With WithEye the spherical coordinates
// are derived from the eye position after every other option is applied.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - OrbitController: the newly created controller
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	cc := &orbitControllerImpl{
		mu:           &sync.Mutex{},
		radius:       60,
		elevation:    math32.Pi / 6,
		minRadius:    1,
		maxRadius:    2000,
		minElevation: -math32.Pi/2 + 0.05,
		maxElevation: math32.Pi/2 - 0.05,
		orbitSpeed:   0.25,
		zoomSpeed:    2,
	}
	for _, option := range options {
		option(cc)
	}
	if cc.eye != nil {
		cc.fromEye(*cc.eye)
		cc.eye = nil
	}
	cc.radius = clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	return cc
}

// fromEye sets radius, azimuth and elevation so that the derived position equals eye.
// Caller must hold the mutex or own the controller exclusively.
func (cc *orbitControllerImpl) fromEye(eye [3]float32) {
	dx := eye[0] - cc.target[0]
	dy := eye[1] - cc.target[1]
	dz := eye[2] - cc.target[2]
	r := math32.Sqrt(dx*dx + dy*dy + dz*dz)
	if r < 1e-6 {
		return
	}
	cc.radius = r
	cc.elevation = math32.Asin(dy / r)
	cc.azimuth = math32.Atan2(dx, dz)
}

// positionLocked computes the eye from the spherical coordinates. Caller must hold the mutex.
func (cc *orbitControllerImpl) positionLocked() [3]float32 {
	cosElev, sinElev := math32.Cos(cc.elevation), math32.Sin(cc.elevation)
	cosAzim, sinAzim := math32.Cos(cc.azimuth), math32.Sin(cc.azimuth)
	return [3]float32{
		cc.target[0] + cc.radius*cosElev*sinAzim,
		cc.target[1] + cc.radius*sinElev,
		cc.target[2] + cc.radius*cosElev*cosAzim,
	}
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

func (cc *orbitControllerImpl) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.positionLocked()
}

func (cc *orbitControllerImpl) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *orbitControllerImpl) SetTarget(target [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
}

func (cc *orbitControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
}

func (cc *orbitControllerImpl) Advance(dt float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.paused {
		return
	}
	cc.azimuth = math32.Mod(cc.azimuth+cc.orbitSpeed*dt, 2*math32.Pi)
}

func (cc *orbitControllerImpl) TogglePause() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.paused = !cc.paused
	return cc.paused
}

func (cc *orbitControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *orbitControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(radius, cc.minRadius, cc.maxRadius)
}

func (cc *orbitControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *orbitControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
}

func (cc *orbitControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *orbitControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = clamp(elevation, cc.minElevation, cc.maxElevation)
}
