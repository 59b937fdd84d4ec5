package resolver

import (
	"context"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/graph"
)

// Resolver expands root artifacts into a dependency tree.
//
// The returned tree is always usable: nodes whose own lookups failed carry
// the error and keep no children, while the rest of the tree resolves.
type Resolver interface {
	Resolve(ctx context.Context, roots []artifact.Coordinates) (*graph.Tree, error)
}

// DependencyProcessor returns the direct dependency declarations of an
// artifact, along with the scope the artifact itself was declared in (empty
// if unknown).
type DependencyProcessor interface {
	GetDependencies(ctx context.Context, c artifact.Coordinates) (artifact.Scope, []artifact.Metadata, error)
}

// ProcessorFunc adapts a function to DependencyProcessor.
type ProcessorFunc func(ctx context.Context, c artifact.Coordinates) (artifact.Scope, []artifact.Metadata, error)

func (f ProcessorFunc) GetDependencies(ctx context.Context, c artifact.Coordinates) (artifact.Scope, []artifact.Metadata, error) {
	return f(ctx, c)
}
