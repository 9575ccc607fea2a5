package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitControllerFromEye(t *testing.T) {
	cc := NewOrbitController(WithEye([3]float32{0, 0, 10}), WithTarget([3]float32{0, 0, 0}))
	assert.InDelta(t, 10, cc.Radius(), 1e-5)
	assert.InDelta(t, 0, cc.Azimuth(), 1e-5)
	assert.InDelta(t, 0, cc.Elevation(), 1e-5)

	pos := cc.Position()
	assert.InDeltaSlice(t, []float32{0, 0, 10}, pos[:], 1e-4)
}

func TestOrbitControllerAdvanceAndPause(t *testing.T) {
	cc := NewOrbitController(WithEye([3]float32{0, 0, 10}), WithOrbitSpeed(math32.Pi/2))
	cc.Advance(1)
	pos := cc.Position()
	assert.InDeltaSlice(t, []float32{10, 0, 0}, pos[:], 1e-4)

	require.True(t, cc.TogglePause())
	cc.Advance(1)
	assert.InDelta(t, math32.Pi/2, cc.Azimuth(), 1e-5)
	require.False(t, cc.TogglePause())
}

func TestOrbitControllerZoomClamps(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithRadiusBounds(5, 20), WithZoomSpeed(1))
	cc.Zoom(3)
	assert.Equal(t, float32(7), cc.Radius())
	cc.Zoom(100)
	assert.Equal(t, float32(5), cc.Radius())
	cc.Zoom(-100)
	assert.Equal(t, float32(20), cc.Radius())
}

func TestCameraMatchesLookAt(t *testing.T) {
	cc := NewOrbitController(WithEye([3]float32{0, 0, 10}))
	cam := NewCamera(WithController(cc), WithFov(math32.Pi/3), WithNear(0.1), WithFar(100))

	var view, proj, vp [16]float32
	common.LookAt(view[:], [3]float32{0, 0, 10}, [3]float32{}, [3]float32{0, 1, 0})
	common.Perspective(proj[:], math32.Pi/3, 1, 0.1, 100)
	common.Mul4(vp[:], proj[:], view[:])

	got := cam.ViewProjectionMatrix()
	assert.InDeltaSlice(t, vp[:], got[:], 1e-4)
	pos := cam.Position()
	assert.InDeltaSlice(t, []float32{0, 0, 10}, pos[:], 1e-4)
}

func TestCameraUpdateFollowsController(t *testing.T) {
	cc := NewOrbitController(WithEye([3]float32{0, 0, 10}), WithOrbitSpeed(math32.Pi))
	cam := NewCamera(WithController(cc))
	before := cam.ViewMatrix()

	cc.Advance(1)
	assert.Equal(t, before, cam.ViewMatrix(), "matrices change only on Update")
	cam.Update()
	assert.NotEqual(t, before, cam.ViewMatrix())

	pos := cam.Position()
	assert.InDeltaSlice(t, []float32{0, 0, -10}, pos[:], 1e-3)
}

func TestSetAspectIgnoresMinimisedWindow(t *testing.T) {
	cam := NewCamera(WithAspect(2))
	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect())
	cam.SetAspect(1.5)
	assert.Equal(t, float32(1.5), cam.Aspect())
}

func TestUniformLayout(t *testing.T) {
	cam := NewCamera(WithController(NewOrbitController(WithEye([3]float32{1, 2, 3}))))
	buf := common.Words(cam.Uniform().Marshal())
	require.Equal(t, GPUCameraUniformSize, len(buf))

	vp := cam.ViewProjectionMatrix()
	assert.Equal(t, vp[5], buf.Float32At(5))
	assert.InDelta(t, 1, buf.Float32At(16), 1e-4)
	assert.InDelta(t, 2, buf.Float32At(17), 1e-4)
	assert.InDelta(t, 3, buf.Float32At(18), 1e-4)
	assert.Equal(t, float32(0), buf.Float32At(19))
}
