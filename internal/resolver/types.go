package resolver

import (
	"github.com/bayleafwalker/artifact-resolver/internal/snapshot"
	"github.com/bayleafwalker/artifact-resolver/internal/version"
)

type options struct {
	comparator   version.Comparator
	concurrency  int
	snapshots    *snapshot.Store
	skipOptional bool
}

// Option configures a DefaultResolver.
type Option func(*options)

// WithComparator picks the conflict direction used among a node's direct
// children. The default is newest-wins.
func WithComparator(c version.Comparator) Option {
	return func(o *options) {
		o.comparator = c
	}
}

// WithConcurrency expands sibling subtrees in parallel and allows up to n
// dependency processor calls at once. 1, the default, walks the tree
// depth-first on the calling goroutine.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithSnapshotStore resolves "-SNAPSHOT" declarations to concrete builds.
// Without a store they are kept symbolic.
func WithSnapshotStore(s *snapshot.Store) Option {
	return func(o *options) {
		o.snapshots = s
	}
}

// WithSkipOptional drops optional declarations below the roots.
func WithSkipOptional(skip bool) Option {
	return func(o *options) {
		o.skipOptional = skip
	}
}
