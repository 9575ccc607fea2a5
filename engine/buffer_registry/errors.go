package buffer_registry

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingIndices is returned when an indexed draw path meets a primitive without indices.
	ErrMissingIndices = errors.New("primitive has no indices")

	// ErrMissingLodRanges is returned when a primitive registered for LOD selection has no ranges.
	ErrMissingLodRanges = errors.New("primitive has no LOD ranges")

	// ErrMissingLodThreshold is returned when an object registered for LOD selection has no threshold.
	ErrMissingLodThreshold = errors.New("object has no LOD selection threshold")

	// ErrMissingPipeline is returned when a primitive has no render pipeline for a requested side.
	ErrMissingPipeline = errors.New("primitive has no pipeline for side")

	// ErrMissingIndirectRecord is returned when a compute table references a primitive that has
	// no draw record in the current version of the indirect buffer.
	ErrMissingIndirectRecord = errors.New("primitive has no current indirect record")

	// ErrUnknownBuffer is returned for operations on a name that was never ensured.
	ErrUnknownBuffer = errors.New("unknown shared buffer")

	// ErrNotAllocated is returned when writing to a shared buffer that has no GPU handle yet.
	ErrNotAllocated = errors.New("shared buffer has not been allocated")
)

// ConfigurationError reports a scene object whose data cannot be turned into GPU tables.
// It wraps one of the Err* sentinels so callers can match with errors.Is.
type ConfigurationError struct {
	// Component is the engine that rejected the object, e.g. "indirect_draw".
	Component string
	// ObjectID is the scene object's ID.
	ObjectID int
	// PrimitiveIndex is the offending primitive, or -1 when the object itself is at fault.
	PrimitiveIndex int
	// Err is the sentinel describing what is missing.
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.PrimitiveIndex < 0 {
		return fmt.Sprintf("%s: object %d: %v", e.Component, e.ObjectID, e.Err)
	}
	return fmt.Sprintf("%s: object %d primitive %d: %v", e.Component, e.ObjectID, e.PrimitiveIndex, e.Err)
}

// Unwrap returns the wrapped sentinel.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
