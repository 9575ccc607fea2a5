package indirect_draw

// CoordinatorBuilderOption is a functional option applied to a coordinator during construction via NewCoordinator.
type CoordinatorBuilderOption func(*coordinator)

// WithInstanceCount sets the instance count written into every draw record. The default is 1.
//
// Parameters:
//   - count: instances per draw, at least 1
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the instance count to a coordinator
func WithInstanceCount(count uint32) CoordinatorBuilderOption {
	return func(c *coordinator) {
		if count > 0 {
			c.instanceCount = count
		}
	}
}
