package bind_group_provider

import "github.com/Carmen-Shannon/oxy-draw/engine/renderer"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBinding binds a versioned resource at a binding index.
//
// Parameters:
//   - binding: the binding index for this resource
//   - res: the resource to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the resource for the specified binding
func WithBinding(binding int, res Resource) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindings[binding] = res
	}
}

// WithBuffer binds a buffer that is never reallocated at a binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf renderer.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindings[binding] = Static(buf)
	}
}
