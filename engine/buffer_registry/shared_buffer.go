package buffer_registry

import "github.com/Carmen-Shannon/oxy-draw/engine/renderer"

// ElementFormat describes how the words of a shared buffer are interpreted.
type ElementFormat int

const (
	// ElementFormatUint32 means every word is a u32.
	ElementFormatUint32 ElementFormat = iota

	// ElementFormatFloat32 means every word is an f32.
	ElementFormatFloat32

	// ElementFormatMixed means the buffer is a record table mixing u32 and f32 words.
	ElementFormatMixed
)

// String returns the format name used in logs.
func (f ElementFormat) String() string {
	switch f {
	case ElementFormatFloat32:
		return "f32"
	case ElementFormatMixed:
		return "mixed"
	default:
		return "u32"
	}
}

// State is the lifecycle state of a shared buffer.
type State int

const (
	// StateClean means the GPU handle matches the staging data.
	StateClean State = iota

	// StateDirty means the staging data or the buffer's users changed and a rebuild is due.
	StateDirty

	// StateRebuilding is held while the registry reallocates the handle.
	StateRebuilding
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "clean"
	}
}

// SharedBuffer is a named GPU buffer shared between engines, together with its CPU
// staging copy and a version that increases by one every time the handle is reallocated.
// Fields are read through methods and mutated only by the owning RendererContext.
type SharedBuffer struct {
	name     string
	staging  []byte
	format   ElementFormat
	usage    renderer.BufferUsage
	handle   renderer.Buffer
	capacity uint64
	version  uint64
	state    State
}

// Name returns the registry key.
func (b *SharedBuffer) Name() string { return b.name }

// Staging returns the CPU copy of the buffer's contents as last rebuilt or written.
func (b *SharedBuffer) Staging() []byte { return b.staging }

// Format returns the element format given at the last rebuild.
func (b *SharedBuffer) Format() ElementFormat { return b.format }

// Usage returns the usage the buffer is allocated with.
func (b *SharedBuffer) Usage() renderer.BufferUsage { return b.usage }

// Handle returns the current GPU buffer, or nil before the first rebuild.
func (b *SharedBuffer) Handle() renderer.Buffer { return b.handle }

// Capacity returns the allocated size in bytes. It never shrinks.
func (b *SharedBuffer) Capacity() uint64 { return b.capacity }

// Version returns the number of successful reallocations.
func (b *SharedBuffer) Version() uint64 { return b.version }

// State returns the lifecycle state.
func (b *SharedBuffer) State() State { return b.state }

// NeedsUpdate reports whether a rebuild is pending.
func (b *SharedBuffer) NeedsUpdate() bool { return b.state != StateClean }
