package buffer_registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutOfMemory = errors.New("out of device memory")

// failingRenderer fails every allocation while fail is set.
type failingRenderer struct {
	renderer.Renderer
	fail bool
}

func (f *failingRenderer) CreateBuffer(label string, usage renderer.BufferUsage, contents []byte) (renderer.Buffer, error) {
	if f.fail {
		return nil, errOutOfMemory
	}
	return f.Renderer.CreateBuffer(label, usage, contents)
}

const rw = renderer.BufferUsageStorage | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc

func newContext() RendererContext {
	return NewRendererContext(renderer.NewRenderer(renderer.BackendTypeSoftware, nil))
}

func TestEnsureCreatesDirtyEntry(t *testing.T) {
	c := newContext()
	b := c.Ensure("indirect", rw)
	assert.Equal(t, "indirect", b.Name())
	assert.True(t, b.NeedsUpdate())
	assert.Equal(t, StateDirty, b.State())
	assert.Nil(t, b.Handle())
	assert.Equal(t, uint64(0), b.Version())
	assert.Same(t, b, c.Ensure("indirect", renderer.BufferUsageStorage))
	assert.Nil(t, c.Get("missing"))
}

func TestRebuildBumpsVersionOncePerReallocation(t *testing.T) {
	c := newContext()
	c.Ensure("index", rw)

	require.NoError(t, c.Rebuild("index", common.Uint32sToBytes([]uint32{1, 2, 3}), ElementFormatUint32))
	assert.Equal(t, uint64(1), c.Version("index"))
	assert.False(t, c.Get("index").NeedsUpdate())

	// Clean: a rebuild is a no-op.
	require.NoError(t, c.Rebuild("index", common.Uint32sToBytes([]uint32{9}), ElementFormatUint32))
	assert.Equal(t, uint64(1), c.Version("index"))
	assert.Equal(t, common.Uint32sToBytes([]uint32{1, 2, 3}), c.Get("index").Staging())

	c.MarkDirty("index")
	assert.True(t, c.Get("index").NeedsUpdate())
	require.NoError(t, c.Rebuild("index", common.Uint32sToBytes([]uint32{4, 5, 6, 7}), ElementFormatUint32))
	assert.Equal(t, uint64(2), c.Version("index"))
}

func TestRebuildNeverShrinks(t *testing.T) {
	c := newContext()
	c.Ensure("indirect", rw)
	require.NoError(t, c.Rebuild("indirect", common.Uint32sToBytes([]uint32{1, 2, 3, 4}), ElementFormatUint32))
	c.MarkDirty("indirect")
	require.NoError(t, c.Rebuild("indirect", common.Uint32sToBytes([]uint32{8}), ElementFormatUint32))

	b := c.Get("indirect")
	assert.Equal(t, uint64(16), b.Capacity())
	out, err := c.Renderer().ReadBuffer(context.Background(), b.Handle())
	require.NoError(t, err)
	assert.Equal(t, []uint32{8, 0, 0, 0}, common.BytesToUint32s(out))
}

func TestRebuildEmptyAllocatesOneWord(t *testing.T) {
	c := newContext()
	c.Ensure("lod_data", rw)
	require.NoError(t, c.Rebuild("lod_data", nil, ElementFormatMixed))
	assert.Equal(t, uint64(4), c.Handle("lod_data").Size())
}

func TestRebuildFailureLeavesDirtyAndPassesErrorThrough(t *testing.T) {
	fr := &failingRenderer{Renderer: renderer.NewRenderer(renderer.BackendTypeSoftware, nil)}
	c := NewRendererContext(fr)
	c.Ensure("indirect", rw)
	require.NoError(t, c.Rebuild("indirect", common.Uint32sToBytes([]uint32{1}), ElementFormatUint32))
	c.MarkDirty("indirect")

	fr.fail = true
	err := c.Rebuild("indirect", common.Uint32sToBytes([]uint32{2}), ElementFormatUint32)
	assert.Same(t, errOutOfMemory, err)
	assert.Equal(t, StateDirty, c.Get("indirect").State())
	assert.Equal(t, uint64(1), c.Version("indirect"))

	fr.fail = false
	require.NoError(t, c.Rebuild("indirect", common.Uint32sToBytes([]uint32{2}), ElementFormatUint32))
	assert.Equal(t, uint64(2), c.Version("indirect"))
}

func TestFlushAndWriteKeepVersion(t *testing.T) {
	c := newContext()
	c.Ensure("indirect", rw)
	assert.ErrorIs(t, c.Flush("indirect"), ErrNotAllocated)
	assert.ErrorIs(t, c.Flush("nope"), ErrUnknownBuffer)

	require.NoError(t, c.Rebuild("indirect", common.Uint32sToBytes([]uint32{5, 1, 0, 0, 0}), ElementFormatUint32))
	handle := c.Handle("indirect")

	// Simulate a compute pass zeroing the count on the GPU copy.
	require.NoError(t, c.Renderer().WriteBuffer(handle, 0, common.Uint32sToBytes([]uint32{0})))
	require.NoError(t, c.Flush("indirect"))
	out, err := c.Renderer().ReadBuffer(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), common.Words(out).Uint32At(0))

	require.NoError(t, c.Write("indirect", 4, common.Uint32sToBytes([]uint32{2})))
	assert.Equal(t, uint32(2), common.Words(c.Get("indirect").Staging()).Uint32At(1))
	assert.Error(t, c.Write("indirect", 20, common.Uint32sToBytes([]uint32{1})))

	assert.Equal(t, uint64(1), c.Version("indirect"))
	assert.Same(t, handle, c.Handle("indirect"))
}

func TestUploadWritesInPlaceUntilSizeChanges(t *testing.T) {
	c := newContext()
	c.Ensure("frustum_planes", renderer.BufferUsageUniform|renderer.BufferUsageCopyDst|renderer.BufferUsageCopySrc)

	require.NoError(t, c.Upload("frustum_planes", common.Uint32sToBytes([]uint32{1, 2}), ElementFormatFloat32))
	assert.Equal(t, uint64(1), c.Version("frustum_planes"))
	handle := c.Handle("frustum_planes")

	require.NoError(t, c.Upload("frustum_planes", common.Uint32sToBytes([]uint32{3, 4}), ElementFormatFloat32))
	assert.Equal(t, uint64(1), c.Version("frustum_planes"))
	assert.Same(t, handle, c.Handle("frustum_planes"))
	out, err := c.Renderer().ReadBuffer(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 4}, common.BytesToUint32s(out))

	require.NoError(t, c.Upload("frustum_planes", common.Uint32sToBytes([]uint32{5, 6, 7}), ElementFormatFloat32))
	assert.Equal(t, uint64(2), c.Version("frustum_planes"))
	assert.ErrorIs(t, c.Upload("nope", nil, ElementFormatUint32), ErrUnknownBuffer)
}

func TestNamesAndRelease(t *testing.T) {
	c := newContext()
	c.Ensure("lod_data", rw)
	c.Ensure("index", rw)
	assert.Equal(t, []string{"index", "lod_data"}, c.Names())
	c.Release()
	assert.Empty(t, c.Names())
}

func TestConfigurationError(t *testing.T) {
	var err error = &ConfigurationError{Component: "lod_selection", ObjectID: 7, PrimitiveIndex: 2, Err: ErrMissingLodRanges}
	wrapped := fmt.Errorf("frame: %w", err)

	assert.ErrorIs(t, wrapped, ErrMissingLodRanges)
	var cfg *ConfigurationError
	require.ErrorAs(t, wrapped, &cfg)
	assert.Equal(t, 7, cfg.ObjectID)
	assert.Equal(t, "lod_selection: object 7 primitive 2: primitive has no LOD ranges", err.Error())

	objectLevel := &ConfigurationError{Component: "lod_selection", ObjectID: 3, PrimitiveIndex: -1, Err: ErrMissingLodThreshold}
	assert.Equal(t, "lod_selection: object 3: object has no LOD selection threshold", objectLevel.Error())
}

func TestNewRendererContextPanicsWithoutRenderer(t *testing.T) {
	assert.Panics(t, func() { NewRendererContext(nil) })
}
