package bind_group_provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
)

// Resource is anything that can sit behind a binding: it exposes its current buffer
// handle and a version that changes whenever the handle is replaced.
type Resource interface {
	// Handle returns the current GPU buffer, or nil if none has been allocated.
	Handle() renderer.Buffer

	// Version returns a counter that increases each time the handle is replaced.
	Version() uint64
}

type staticResource struct {
	buf renderer.Buffer
}

func (s staticResource) Handle() renderer.Buffer { return s.buf }
func (s staticResource) Version() uint64         { return 0 }

// Static wraps a buffer that is never reallocated so it can be used as a Resource.
//
// Parameters:
//   - buf: the buffer
//
// Returns:
//   - Resource: a Resource whose version is always zero
func Static(buf renderer.Buffer) Resource {
	return staticResource{buf: buf}
}

type observation struct {
	handle  renderer.Buffer
	version uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string

	pipelineKey string
	group       int

	// bindings holds the resource bound at each binding index.
	bindings map[int]Resource

	// observed records the handle and version each binding had when bindGroup was built.
	observed map[int]observation

	// bindGroup is the backend bind group, or nil until first requested.
	bindGroup renderer.BindGroup

	rebuilds int
}

// BindGroupProvider owns one bind group of one pipeline and keeps it in step with the
// buffers it binds. Each binding is a Resource; when any Resource's handle or version
// differs from what the current bind group was built against, the next call to
// BindGroup creates a fresh one.
//
// Usage pattern:
//  1. An engine creates a provider for its pipeline and group with WithBinding options
//  2. Each frame it calls BindGroup(renderer) before dispatching or drawing
//  3. Shared buffers that were reallocated in between are picked up automatically
type BindGroupProvider interface {
	// Release releases the backend bind group. Bound buffers are left alone.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// PipelineKey returns the key of the pipeline whose layout the bind group uses.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// Group returns the bind group index.
	//
	// Returns:
	//   - int: the group index
	Group() int

	// SetBinding binds a resource at a binding index, replacing any earlier one.
	// The bind group is rebuilt on the next BindGroup call.
	//
	// Parameters:
	//   - binding: the binding index
	//   - res: the resource to bind
	SetBinding(binding int, res Resource)

	// Buffer returns the current handle of the resource at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - renderer.Buffer: the buffer or nil
	Buffer(binding int) renderer.Buffer

	// Stale reports whether the next BindGroup call will rebuild.
	//
	// Returns:
	//   - bool: true if any binding changed since the bind group was built
	Stale() bool

	// BindGroup returns a bind group that references every binding's current handle,
	// rebuilding it first if it is stale.
	//
	// Parameters:
	//   - r: the renderer that creates the bind group
	//
	// Returns:
	//   - renderer.BindGroup: the up to date bind group
	//   - error: an error if a binding has no handle or creation fails
	BindGroup(r renderer.Renderer) (renderer.BindGroup, error)

	// Rebuilds returns how many times the bind group has been created.
	//
	// Returns:
	//   - int: the rebuild count
	Rebuilds() int
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider for one group of a registered pipeline.
//
// Parameters:
//   - label: a debug label
//   - pipelineKey: the pipeline whose bind group layout is used
//   - group: the bind group index
//   - options: variadic list of BindGroupProviderOption functions
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label, pipelineKey string, group int, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:          &sync.Mutex{},
		label:       label,
		pipelineKey: pipelineKey,
		group:       group,
		bindings:    make(map[int]Resource),
		observed:    make(map[int]observation),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) PipelineKey() string {
	return p.pipelineKey
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) SetBinding(binding int, res Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings[binding] = res
}

func (p *bindGroupProvider) Buffer(binding int) renderer.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.bindings[binding]
	if !ok {
		return nil
	}
	return res.Handle()
}

func (p *bindGroupProvider) Stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staleLocked()
}

func (p *bindGroupProvider) staleLocked() bool {
	if p.bindGroup == nil || len(p.observed) != len(p.bindings) {
		return true
	}
	for binding, res := range p.bindings {
		seen, ok := p.observed[binding]
		if !ok || seen.version != res.Version() || seen.handle != res.Handle() {
			return true
		}
	}
	return false
}

func (p *bindGroupProvider) BindGroup(r renderer.Renderer) (renderer.BindGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.staleLocked() {
		return p.bindGroup, nil
	}

	entries := make([]renderer.BindGroupEntry, 0, len(p.bindings))
	observed := make(map[int]observation, len(p.bindings))
	for _, binding := range slices.Sorted(maps.Keys(p.bindings)) {
		if binding < 0 {
			return nil, fmt.Errorf("bind group %q has negative binding %d", p.label, binding)
		}
		res := p.bindings[binding]
		handle := res.Handle()
		if handle == nil {
			return nil, fmt.Errorf("bind group %q binding %d has no buffer", p.label, binding)
		}
		entries = append(entries, renderer.BindGroupEntry{Binding: uint32(binding), Buffer: handle})
		observed[binding] = observation{handle: handle, version: res.Version()}
	}

	bg, err := r.CreateBindGroup(p.pipelineKey, p.group, entries, p.label)
	if err != nil {
		return nil, fmt.Errorf("bind group %q: %w", p.label, err)
	}
	if p.bindGroup != nil {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.observed = observed
	p.rebuilds++
	return bg, nil
}

func (p *bindGroupProvider) Rebuilds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuilds
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	p.observed = make(map[int]observation)
}
