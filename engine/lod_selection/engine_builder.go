package lod_selection

// EngineBuilderOption is a functional option applied to an engine during construction via NewEngine.
type EngineBuilderOption func(*engine)

// WithBaseVertex stores LOD ranges as (start, count, baseVertex) triples so the kernel
// also rewrites the base vertex of indexed draw records. The default stores
// (start, count) pairs and leaves the base vertex alone.
//
// Parameters:
//   - enabled: whether base-vertex rewriting is on
//
// Returns:
//   - EngineBuilderOption: a function that applies the setting to an engine
func WithBaseVertex(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.baseVertex = enabled
	}
}
