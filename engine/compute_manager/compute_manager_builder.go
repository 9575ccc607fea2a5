package compute_manager

import (
	"github.com/Carmen-Shannon/oxy-draw/engine/frustum_culling"
	"github.com/Carmen-Shannon/oxy-draw/engine/indirect_draw"
	"github.com/Carmen-Shannon/oxy-draw/engine/lod_selection"
)

// ComputeManagerBuilderOption is a functional option applied to a compute manager during construction via NewComputeManager.
type ComputeManagerBuilderOption func(*computeManager)

// WithIndirectOptions forwards options to the indirect-draw coordinator.
//
// Parameters:
//   - options: coordinator options
//
// Returns:
//   - ComputeManagerBuilderOption: a function that stores the options on a compute manager
func WithIndirectOptions(options ...indirect_draw.CoordinatorBuilderOption) ComputeManagerBuilderOption {
	return func(m *computeManager) {
		m.indirectOptions = append(m.indirectOptions, options...)
	}
}

// WithCullingOptions forwards options to the frustum-culling engine.
//
// Parameters:
//   - options: culling engine options
//
// Returns:
//   - ComputeManagerBuilderOption: a function that stores the options on a compute manager
func WithCullingOptions(options ...frustum_culling.EngineBuilderOption) ComputeManagerBuilderOption {
	return func(m *computeManager) {
		m.cullingOptions = append(m.cullingOptions, options...)
	}
}

// WithLodOptions forwards options to the LOD selection engine.
//
// Parameters:
//   - options: LOD engine options
//
// Returns:
//   - ComputeManagerBuilderOption: a function that stores the options on a compute manager
func WithLodOptions(options ...lod_selection.EngineBuilderOption) ComputeManagerBuilderOption {
	return func(m *computeManager) {
		m.lodOptions = append(m.lodOptions, options...)
	}
}

// WithCullingEnabled sets whether the culling pass runs. The default is true.
func WithCullingEnabled(enabled bool) ComputeManagerBuilderOption {
	return func(m *computeManager) {
		m.cullingEnabled = enabled
	}
}

// WithLodEnabled sets whether the LOD pass runs. The default is true.
func WithLodEnabled(enabled bool) ComputeManagerBuilderOption {
	return func(m *computeManager) {
		m.lodEnabled = enabled
	}
}
