package buffer_registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/logger"
)

// Well-known shared buffer names.
const (
	BufferIndirect       = "indirect"
	BufferIndex          = "index"
	BufferFrustumMinMax  = "frustum_minmax"
	BufferFrustumOffsets = "frustum_offsets"
	BufferFrustumPlanes  = "frustum_planes"
	BufferFrustumParams  = "frustum_params"
	BufferLodOffsets     = "lod_offsets"
	BufferLodData        = "lod_data"
	BufferLodParams      = "lod_params"
	BufferCameraPosition = "camera_position"
	BufferCameraUniform  = "camera_uniform"
)

type rendererContext struct {
	mu       *sync.Mutex
	renderer renderer.Renderer
	buffers  map[string]*SharedBuffer
}

// RendererContext is the registry of named shared GPU buffers. One context is created
// per renderer and handed to every engine, so the indirect-draw, culling and LOD engines
// all see the same "indirect" buffer.
//
// Each buffer moves Clean -> Dirty -> Rebuilding -> Clean. Consumers remember the
// version they built against and compare before use; a reallocation bumps the version
// by exactly one.
type RendererContext interface {
	// Renderer returns the renderer buffers are allocated on.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Ensure returns the named buffer, creating an empty dirty entry with the given usage
	// if it does not exist yet. The usage of an existing entry is widened to include usage.
	//
	// Parameters:
	//   - name: the buffer name
	//   - usage: usage bits the caller needs
	//
	// Returns:
	//   - *SharedBuffer: the entry
	Ensure(name string, usage renderer.BufferUsage) *SharedBuffer

	// Get returns the named buffer, or nil.
	//
	// Parameters:
	//   - name: the buffer name
	//
	// Returns:
	//   - *SharedBuffer: the entry or nil
	Get(name string) *SharedBuffer

	// MarkDirty flags the named buffer for rebuild. It never touches the GPU.
	//
	// Parameters:
	//   - name: the buffer name
	MarkDirty(name string)

	// Rebuild reallocates a dirty buffer from data and bumps its version by one. A clean
	// buffer is left alone. On allocation failure the buffer returns to dirty, its version
	// is unchanged and the renderer's error is returned as is.
	//
	// Parameters:
	//   - name: the buffer name
	//   - data: the new contents, a whole number of words
	//   - format: how the words are interpreted
	//
	// Returns:
	//   - error: ErrUnknownBuffer or the renderer's allocation error
	Rebuild(name string, data []byte, format ElementFormat) error

	// Flush uploads the staging bytes into the existing handle. The version is unchanged.
	//
	// Parameters:
	//   - name: the buffer name
	//
	// Returns:
	//   - error: ErrUnknownBuffer, ErrNotAllocated or the renderer's write error
	Flush(name string) error

	// Write overwrites part of the staging bytes and uploads them into the existing
	// handle. The version is unchanged.
	//
	// Parameters:
	//   - name: the buffer name
	//   - offset: the byte offset
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: ErrUnknownBuffer, ErrNotAllocated, an out of range error or the renderer's write error
	Write(name string, offset uint64, data []byte) error

	// Upload replaces the whole contents of a per-frame buffer. When the buffer is dirty,
	// unallocated or the data changes size it is rebuilt (bumping its version); otherwise
	// the bytes are written into the existing handle.
	//
	// Parameters:
	//   - name: the buffer name
	//   - data: the new contents
	//   - format: how the words are interpreted
	//
	// Returns:
	//   - error: ErrUnknownBuffer or the renderer's error
	Upload(name string, data []byte, format ElementFormat) error

	// Version returns the named buffer's version, or 0 if it does not exist.
	Version(name string) uint64

	// Handle returns the named buffer's GPU handle, or nil.
	Handle(name string) renderer.Buffer

	// Names returns every registered buffer name, sorted.
	Names() []string

	// Release frees every GPU handle and empties the registry.
	Release()
}

var _ RendererContext = &rendererContext{}

// NewRendererContext creates an empty registry bound to r. A nil renderer panics.
//
// Parameters:
//   - r: the renderer that allocates shared buffers
//
// Returns:
//   - RendererContext: the registry
func NewRendererContext(r renderer.Renderer) RendererContext {
	if r == nil {
		panic("buffer_registry: renderer is required")
	}
	return &rendererContext{
		mu:       &sync.Mutex{},
		renderer: r,
		buffers:  make(map[string]*SharedBuffer),
	}
}

func (c *rendererContext) Renderer() renderer.Renderer {
	return c.renderer
}

func (c *rendererContext) Ensure(name string, usage renderer.BufferUsage) *SharedBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.buffers[name]; ok {
		if !b.usage.Has(usage) {
			b.usage |= usage
			b.state = StateDirty
		}
		return b
	}
	b := &SharedBuffer{name: name, usage: usage, state: StateDirty}
	c.buffers[name] = b
	return b
}

func (c *rendererContext) Get(name string) *SharedBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[name]
}

func (c *rendererContext) MarkDirty(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buffers[name]; ok {
		b.state = StateDirty
	}
}

func (c *rendererContext) Rebuild(name string, data []byte, format ElementFormat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buffers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if b.state == StateClean {
		return nil
	}
	return c.rebuild(b, data, format)
}

func (c *rendererContext) Upload(name string, data []byte, format ElementFormat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buffers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if b.handle == nil || b.state != StateClean || len(data) != len(b.staging) {
		return c.rebuild(b, data, format)
	}
	copy(b.staging, data)
	b.format = format
	return c.renderer.WriteBuffer(b.handle, 0, data)
}

// rebuild must be called with mu held.
func (c *rendererContext) rebuild(b *SharedBuffer, data []byte, format ElementFormat) error {
	name := b.name
	b.state = StateRebuilding

	// Capacity never shrinks; the tail past the staging bytes stays zero.
	contents := data
	if uint64(len(data)) < b.capacity {
		contents = make([]byte, b.capacity)
		copy(contents, data)
	}

	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
	}
	handle, err := c.renderer.CreateBuffer(name, b.usage, contents)
	if err != nil {
		b.state = StateDirty
		return err
	}

	b.handle = handle
	b.capacity = handle.Size()
	b.staging = append(b.staging[:0], data...)
	b.format = format
	b.version++
	b.state = StateClean

	logger.Component("buffer_registry").Debug("shared buffer rebuilt",
		"name", name, "version", b.version, "bytes", len(data), "capacity", b.capacity, "format", format.String())
	return nil
}

func (c *rendererContext) Flush(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buffers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if b.handle == nil {
		return fmt.Errorf("%w: %q", ErrNotAllocated, name)
	}
	if len(b.staging) == 0 {
		return nil
	}
	return c.renderer.WriteBuffer(b.handle, 0, b.staging)
}

func (c *rendererContext) Write(name string, offset uint64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buffers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if b.handle == nil {
		return fmt.Errorf("%w: %q", ErrNotAllocated, name)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(b.staging)) {
		return fmt.Errorf("write of %d bytes at %d exceeds %q staging (%d bytes)", len(data), offset, name, len(b.staging))
	}
	copy(b.staging[offset:end], data)
	return c.renderer.WriteBuffer(b.handle, offset, data)
}

func (c *rendererContext) Version(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buffers[name]; ok {
		return b.version
	}
	return 0
}

func (c *rendererContext) Handle(name string) renderer.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buffers[name]; ok {
		return b.handle
	}
	return nil
}

func (c *rendererContext) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.buffers))
	for name := range c.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *rendererContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buffers {
		if b.handle != nil {
			b.handle.Release()
			b.handle = nil
		}
	}
	c.buffers = make(map[string]*SharedBuffer)
}
