package frustum_culling

// EngineBuilderOption is a functional option applied to an engine during construction via NewEngine.
type EngineBuilderOption func(*engine)

// WithWorkers sets the number of goroutines computing bounding boxes. The default is 4.
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - EngineBuilderOption: a function that applies the worker count to an engine
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.computeWorkers = n
		}
	}
}

// WithQueueSize sets how many bounding-box tasks may wait for a worker. The default is 256.
//
// Parameters:
//   - n: the queue capacity
//
// Returns:
//   - EngineBuilderOption: a function that applies the queue size to an engine
func WithQueueSize(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}
