package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/cache"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
	"github.com/bayleafwalker/artifact-resolver/internal/metrics"
	"github.com/bayleafwalker/artifact-resolver/internal/version"
)

const (
	// DefaultTTL is how long a GA's snapshot list is trusted before it is
	// fetched again.
	DefaultTTL = 30 * time.Minute
	// DefaultRefreshTimeout bounds a single fetch from the Source.
	DefaultRefreshTimeout = 30 * time.Second
)

// Listing is what a Source publishes for one GA.
type Listing struct {
	Builds      []string `json:"builds"`
	Classifiers []string `json:"classifiers,omitempty"`
}

// Source lists the timestamped snapshot builds published for a GA.
type Source interface {
	Snapshots(ctx context.Context, ga artifact.GA) (Listing, error)
}

type Options struct {
	// TTL after which a GA is refreshed. Zero disables expiry.
	TTL time.Duration
	// RefreshTimeout bounds each Source call. Zero means DefaultRefreshTimeout.
	RefreshTimeout time.Duration
	Clock          clock.Clock
}

// Store resolves symbolic snapshot versions to concrete builds. It keeps one
// GAVMetadata per GA in a bounded cache and owns the expiry policy for them.
type Store struct {
	source         Source
	cache          *cache.Cache[artifact.GA, *GAVMetadata]
	ttl            time.Duration
	refreshTimeout time.Duration
	clock          clock.Clock

	// mu guards every GAVMetadata reachable through cache.
	mu    sync.Mutex
	group singleflight.Group
}

func NewStore(source Source, c *cache.Cache[artifact.GA, *GAVMetadata], opts Options) (*Store, error) {
	if source == nil {
		return nil, &errdefs.ConfigurationError{Component: "snapshot store", Field: "source", Reason: "must not be nil"}
	}
	if c == nil {
		return nil, &errdefs.ConfigurationError{Component: "snapshot store", Field: "cache", Reason: "must not be nil"}
	}
	if opts.TTL < 0 {
		return nil, &errdefs.ConfigurationError{Component: "snapshot store", Field: "ttl", Reason: "must not be negative"}
	}
	if opts.RefreshTimeout < 0 {
		return nil, &errdefs.ConfigurationError{Component: "snapshot store", Field: "refreshTimeout", Reason: "must not be negative"}
	}
	if opts.RefreshTimeout == 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Store{
		source:         source,
		cache:          c,
		ttl:            opts.TTL,
		refreshTimeout: opts.RefreshTimeout,
		clock:          opts.Clock,
	}, nil
}

// Resolve maps a symbolic snapshot version ("1.0-SNAPSHOT") to the newest
// known timestamped build of ga. Non-snapshot versions, and snapshots with
// no known build, are returned unchanged.
//
// When the source cannot be read the best version known so far is returned
// together with a *errdefs.MetadataReadError. If ctx ends while a refresh is
// in flight, Resolve returns ctx.Err() and the refresh completes for later
// callers.
func (s *Store) Resolve(ctx context.Context, ga artifact.GA, v string) (string, error) {
	if !version.IsSnapshot(v) {
		return v, nil
	}

	if latest, fresh := s.lookup(ga, v); fresh {
		return latest, nil
	}

	ch := s.group.DoChan(ga.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return nil, s.refresh(fctx, ga)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		latest, _ := s.lookup(ga, v)
		return latest, ctx.Err()
	}

	latest, _ := s.lookup(ga, v)
	if err != nil {
		var readErr *errdefs.MetadataReadError
		if !errors.As(err, &readErr) {
			err = &errdefs.MetadataReadError{Coordinates: ga.String(), Err: err}
		}
		return latest, err
	}
	return latest, nil
}

// refresh fetches ga from the source and stores the result. An empty build
// list does not replace known builds; the entry stays expired and is retried.
func (s *Store) refresh(ctx context.Context, ga artifact.GA) error {
	logger := log.FromContext(ctx).WithValues("ga", ga.String())

	l, err := s.source.Snapshots(ctx, ga)
	if err != nil {
		metrics.SnapshotRefreshTotal.WithLabelValues("error").Inc()
		logger.V(1).Info("snapshot refresh failed", "error", err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.cache.Get(ga)
	if !ok {
		m = NewGAVMetadata(ga, s.clock)
	}
	if len(l.Builds) == 0 && len(m.snapshots) > 0 {
		metrics.SnapshotRefreshTotal.WithLabelValues("empty").Inc()
		logger.V(1).Info("ignoring empty snapshot refresh", "known", len(m.snapshots))
	} else {
		m.UpdateSnapshots(l.Builds)
		m.SetExpired(false)
		metrics.SnapshotRefreshTotal.WithLabelValues("updated").Inc()
	}
	if len(l.Classifiers) > 0 {
		m.UpdateClassifiers(l.Classifiers)
	}
	s.cache.Put(ga, m)
	return nil
}

// lookup returns the best version for v from the cached entry and whether
// that entry is fresh. It marks entries older than the TTL as expired.
func (s *Store) lookup(ga artifact.GA, v string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.cache.Get(ga)
	if !ok {
		return v, false
	}
	if s.ttl > 0 && s.clock.Since(time.UnixMilli(m.lastCheck)) >= s.ttl {
		m.SetExpired(true)
	}
	latest, found := m.LatestSnapshotFor(v)
	if !found {
		latest = v
	}
	return latest, !m.IsExpired()
}

// Metadata returns a copy of the known builds for ga without refreshing.
func (s *Store) Metadata(ga artifact.GA) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.cache.Get(ga)
	if !ok {
		return nil, false
	}
	return m.Snapshots(), true
}

// Classifiers returns the classifiers last published for ga without
// refreshing.
func (s *Store) Classifiers(ga artifact.GA) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.cache.Get(ga)
	if !ok {
		return nil, false
	}
	return m.Classifiers(), true
}
