package resolver

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
	"github.com/bayleafwalker/artifact-resolver/internal/graph"
	"github.com/bayleafwalker/artifact-resolver/internal/metrics"
	"github.com/bayleafwalker/artifact-resolver/internal/snapshot"
	"github.com/bayleafwalker/artifact-resolver/internal/version"
)

// DefaultResolver builds dependency trees by recursively asking a
// DependencyProcessor for each node's direct dependencies.
//
// Version conflicts are settled only among the direct children of one node;
// different branches may keep different versions of the same GA.
type DefaultResolver struct {
	processor    DependencyProcessor
	comparator   version.Comparator
	snapshots    *snapshot.Store
	skipOptional bool

	concurrency int
	sem         *semaphore.Weighted
}

var _ Resolver = (*DefaultResolver)(nil)

func NewDefault(processor DependencyProcessor, opts ...Option) (*DefaultResolver, error) {
	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if processor == nil {
		return nil, &errdefs.ConfigurationError{Component: "resolver", Field: "processor", Reason: "must not be nil"}
	}
	if o.concurrency < 1 {
		return nil, &errdefs.ConfigurationError{Component: "resolver", Field: "concurrency", Reason: "must be at least 1"}
	}

	r := &DefaultResolver{
		processor:    processor,
		comparator:   o.comparator,
		snapshots:    o.snapshots,
		skipOptional: o.skipOptional,
		concurrency:  o.concurrency,
	}
	if o.concurrency > 1 {
		r.sem = semaphore.NewWeighted(int64(o.concurrency))
	}
	return r, nil
}

func (r *DefaultResolver) Resolve(ctx context.Context, roots []artifact.Coordinates) (*graph.Tree, error) {
	mds := make([]artifact.Metadata, 0, len(roots))
	for _, c := range roots {
		mds = append(mds, artifact.NewMetadata(c))
	}
	return r.ResolveMetadata(ctx, mds)
}

// ResolveMetadata is Resolve for roots that carry their own scope or
// inclusion/exclusion filters.
//
// The error is non-nil only when ctx ends before the tree is complete; the
// partial tree is returned alongside it.
func (r *DefaultResolver) ResolveMetadata(ctx context.Context, roots []artifact.Metadata) (*graph.Tree, error) {
	start := time.Now()
	defer func() {
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	logger := log.FromContext(ctx).WithValues("roots", len(roots))

	tree := graph.NewTree()
	ids := make([]graph.NodeID, 0, len(roots))
	for _, md := range roots {
		ids = append(ids, tree.AddRoot(md))
	}

	if err := r.expandAll(ctx, tree, ids); err != nil {
		logger.Error(err, "resolution interrupted", "nodes", tree.Len())
		return tree, err
	}

	logger.Info("resolved dependency tree", "nodes", tree.Len(), "failedNodes", len(tree.Errors()))
	return tree, nil
}

func (r *DefaultResolver) expandAll(ctx context.Context, tree *graph.Tree, ids []graph.NodeID) error {
	if r.concurrency == 1 || len(ids) < 2 {
		for _, id := range ids {
			if err := r.expand(ctx, tree, id); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return r.expand(gctx, tree, id)
		})
	}
	return g.Wait()
}

// expand drives one node from Pending to Resolved or CyclePruned. It only
// returns an error when ctx is done.
func (r *DefaultResolver) expand(ctx context.Context, tree *graph.Tree, id graph.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := tree.Node(id)
	n.State = graph.StateExpanding
	logger := log.FromContext(ctx).WithValues("artifact", n.Metadata.Coordinates.String())

	if tree.HasAncestor(id, n.Metadata.GA()) {
		n.State = graph.StateCyclePruned
		metrics.NodesTotal.WithLabelValues(n.State.String()).Inc()
		logger.V(1).Info("pruned cycle")
		return nil
	}

	scope, decls, err := r.dependencies(ctx, n.Metadata.Coordinates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n.Err = errors.Join(n.Err, &DependencyProcessorError{Coordinates: n.Metadata.Coordinates, Err: err})
		n.State = graph.StateResolved
		metrics.ProcessorErrorsTotal.Inc()
		metrics.NodesTotal.WithLabelValues(n.State.String()).Inc()
		logger.Error(err, "failed to get dependencies")
		return nil
	}
	if n.Metadata.Scope == "" && scope != "" {
		n.Metadata = n.Metadata.InScope(scope)
	}

	admitted := r.admit(ctx, n, decls)
	children := make([]graph.NodeID, 0, len(admitted))
	for _, a := range admitted {
		cid := tree.AddChild(id, a.md)
		tree.Node(cid).Err = a.err
		children = append(children, cid)
	}
	logger.V(1).Info("expanding", "declared", len(decls), "admitted", len(children))

	if err := r.expandAll(ctx, tree, children); err != nil {
		return err
	}
	n.State = graph.StateResolved
	metrics.NodesTotal.WithLabelValues(n.State.String()).Inc()
	return nil
}

func (r *DefaultResolver) dependencies(ctx context.Context, c artifact.Coordinates) (artifact.Scope, []artifact.Metadata, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return "", nil, err
		}
		defer r.sem.Release(1)
	}
	return r.processor.GetDependencies(ctx, c)
}

type admitted struct {
	md  artifact.Metadata
	err error
}

// admit filters parent's declarations, pins snapshot versions and settles
// same-GA conflicts, keeping the position of the first declaration.
func (r *DefaultResolver) admit(ctx context.Context, parent *graph.Node, decls []artifact.Metadata) []admitted {
	logger := log.FromContext(ctx).WithValues("artifact", parent.Metadata.Coordinates.String())

	out := make([]admitted, 0, len(decls))
	index := make(map[artifact.GA]int, len(decls))
	for _, d := range decls {
		if !parent.Metadata.IsAllowed(d.Coordinates) {
			logger.V(1).Info("filtered dependency", "dependency", d.Coordinates.String())
			continue
		}
		if r.skipOptional && d.Optional && !parent.IsRoot() {
			continue
		}
		d = d.InScope(artifact.NarrowScope(parent.Metadata.Scope, d.Scope))

		var err error
		if r.snapshots != nil && version.IsSnapshot(d.Version) {
			var v string
			v, err = r.snapshots.Resolve(ctx, d.GA(), d.Version)
			d = d.WithVersion(v)
		}

		if i, ok := index[d.GA()]; ok {
			if r.comparator.Compare(d.Coordinates, out[i].md.Coordinates) > 0 {
				logger.V(1).Info("version conflict", "kept", d.Version, "dropped", out[i].md.Version)
				out[i] = admitted{md: d, err: err}
			}
			continue
		}
		index[d.GA()] = len(out)
		out = append(out, admitted{md: d, err: err})
	}
	return out
}
