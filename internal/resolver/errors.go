package resolver

import (
	"fmt"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
)

// DependencyProcessorError is attached to a node whose declarations could
// not be obtained.
type DependencyProcessorError struct {
	Coordinates artifact.Coordinates
	Err         error
}

func (e *DependencyProcessorError) Error() string {
	return fmt.Sprintf("get dependencies of %s: %v", e.Coordinates, e.Err)
}

func (e *DependencyProcessorError) Unwrap() error {
	return e.Err
}
