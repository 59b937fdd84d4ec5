package snapshot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/cache"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
)

var ga = artifact.GA{Group: "org.example", Name: "lib"}

type fakeSource struct {
	mu          sync.Mutex
	builds      map[artifact.GA][]string
	classifiers []string
	err         error
	calls       int
}

func (f *fakeSource) Snapshots(_ context.Context, ga artifact.GA) (Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Listing{}, f.err
	}
	return Listing{Builds: f.builds[ga], Classifiers: f.classifiers}, nil
}

// blockingSource holds every fetch until release is closed and records
// whether the fetch context was canceled meanwhile.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	builds  []string

	mu       sync.Mutex
	calls    int
	canceled bool
}

func (b *blockingSource) Snapshots(ctx context.Context, _ artifact.GA) (Listing, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}

	select {
	case <-b.release:
	case <-ctx.Done():
		b.mu.Lock()
		b.canceled = true
		b.mu.Unlock()
		return Listing{}, ctx.Err()
	}
	return Listing{Builds: b.builds}, nil
}

func (f *fakeSource) set(builds []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds[ga] = builds
	f.err = err
}

func newStore(t *testing.T, src Source, ttl time.Duration) (*Store, *clocktesting.FakeClock) {
	t.Helper()
	c, err := cache.New[artifact.GA, *GAVMetadata](8, cache.WithName("snapshot-test"))
	require.NoError(t, err)
	clk := clocktesting.NewFakeClock(time.Date(2009, 2, 13, 18, 38, 24, 0, time.UTC))
	s, err := NewStore(src, c, Options{TTL: ttl, Clock: clk})
	require.NoError(t, err)
	return s, clk
}

func TestGAVMetadata_UpdateReplacesAndRestamps(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.UnixMilli(1234550304000))
	m := NewGAVMetadata(ga, clk)

	m.UpdateSnapshots([]string{"1.0-20080920.015600-12", "1.0-20080920.015600-7", "1.0-20080920.015600-7"})
	assert.Equal(t, []string{"1.0-20080920.015600-7", "1.0-20080920.015600-12"}, m.Snapshots())
	assert.Equal(t, int64(1234550304000), m.LastCheck())

	latest, ok := m.LatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, "1.0-20080920.015600-12", latest)

	clk.Step(time.Minute)
	m.UpdateSnapshots([]string{"2.0-20090101.000000-1"})
	assert.Equal(t, []string{"2.0-20090101.000000-1"}, m.Snapshots())
	assert.Equal(t, int64(1234550364000), m.LastCheck())

	m.UpdateSnapshots(nil)
	assert.Empty(t, m.Snapshots())
	_, ok = m.LatestSnapshot()
	assert.False(t, ok)
}

func TestGAVMetadata_LatestSnapshotFor(t *testing.T) {
	m := NewGAVMetadata(ga, clocktesting.NewFakeClock(time.Now()))
	m.UpdateSnapshots([]string{
		"1.0-20080920.015600-7",
		"1.0-20080921.101010-8",
		"2.0-20080901.000000-1",
	})

	v, ok := m.LatestSnapshotFor("1.0-SNAPSHOT")
	require.True(t, ok)
	assert.Equal(t, "1.0-20080921.101010-8", v)

	v, ok = m.LatestSnapshotFor("2.0-SNAPSHOT")
	require.True(t, ok)
	assert.Equal(t, "2.0-20080901.000000-1", v)

	_, ok = m.LatestSnapshotFor("3.0-SNAPSHOT")
	assert.False(t, ok)
}

func TestGAVMetadata_ExpiredIsAPlainFlag(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	m := NewGAVMetadata(ga, clk)
	m.UpdateClassifiers([]string{"sources", "javadoc", "sources"})
	assert.Equal(t, []string{"javadoc", "sources"}, m.Classifiers())

	clk.Step(24 * time.Hour)
	assert.False(t, m.IsExpired())
	m.SetExpired(true)
	assert.True(t, m.IsExpired())
}

func TestNewStore_Configuration(t *testing.T) {
	c, err := cache.New[artifact.GA, *GAVMetadata](1)
	require.NoError(t, err)

	var cfgErr *errdefs.ConfigurationError
	_, err = NewStore(nil, c, Options{})
	assert.True(t, errors.As(err, &cfgErr))
	_, err = NewStore(&fakeSource{}, nil, Options{})
	assert.True(t, errors.As(err, &cfgErr))
	_, err = NewStore(&fakeSource{}, c, Options{TTL: -time.Second})
	assert.True(t, errors.As(err, &cfgErr))
	_, err = NewStore(&fakeSource{}, c, Options{RefreshTimeout: -time.Second})
	assert.True(t, errors.As(err, &cfgErr))
}

func TestStore_ResolvePassesThroughReleases(t *testing.T) {
	src := &fakeSource{builds: map[artifact.GA][]string{}}
	s, _ := newStore(t, src, time.Minute)

	v, err := s.Resolve(context.Background(), ga, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", v)
	assert.Zero(t, src.calls)
}

func TestStore_ResolveUsesCacheUntilTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{builds: map[artifact.GA][]string{
		ga: {"1.0-20080920.015600-7", "1.0-20080920.015600-9"},
	}}
	s, clk := newStore(t, src, time.Minute)

	v, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "1.0-20080920.015600-9", v)
	assert.Equal(t, 1, src.calls)

	src.set([]string{"1.0-20080920.015600-9", "1.0-20080921.000000-10"}, nil)

	clk.Step(30 * time.Second)
	v, err = s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "1.0-20080920.015600-9", v, "still within TTL")
	assert.Equal(t, 1, src.calls)

	clk.Step(30 * time.Second)
	v, err = s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "1.0-20080921.000000-10", v)
	assert.Equal(t, 2, src.calls)
}

func TestStore_EmptyRefreshKeepsKnownBuilds(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{builds: map[artifact.GA][]string{ga: {"1.0-20080920.015600-7"}}}
	s, clk := newStore(t, src, time.Minute)

	_, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)

	src.set(nil, nil)
	clk.Step(2 * time.Minute)

	v, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "1.0-20080920.015600-7", v)

	known, ok := s.Metadata(ga)
	require.True(t, ok)
	assert.Equal(t, []string{"1.0-20080920.015600-7"}, known)
}

func TestStore_SourceFailureIsAnnotated(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{builds: map[artifact.GA][]string{ga: {"1.0-20080920.015600-7"}}}
	s, clk := newStore(t, src, time.Minute)

	_, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	require.NoError(t, err)

	boom := errors.New("unreachable")
	src.set(nil, boom)
	clk.Step(time.Hour)

	v, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
	var readErr *errdefs.MetadataReadError
	require.True(t, errors.As(err, &readErr))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "1.0-20080920.015600-7", v, "stale build is still offered")

	_, err = s.Resolve(ctx, artifact.GA{Group: "x", Name: "y"}, "2.0-SNAPSHOT")
	require.Error(t, err)
}

func TestStore_UnknownBaseStaysSymbolic(t *testing.T) {
	src := &fakeSource{builds: map[artifact.GA][]string{ga: {"1.0-20080920.015600-7"}}}
	s, _ := newStore(t, src, 0)

	v, err := s.Resolve(context.Background(), ga, "2.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "2.0-SNAPSHOT", v)

	v, err = s.Resolve(context.Background(), ga, "2.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "2.0-SNAPSHOT", v)
	assert.Equal(t, 1, src.calls, "a fresh entry is not refetched")
}

func TestStore_ReadErrorsAreNotWrappedTwice(t *testing.T) {
	readErr := &errdefs.MetadataReadError{Coordinates: ga.String(), Err: errors.New("configmap not found")}
	src := &fakeSource{builds: map[artifact.GA][]string{}, err: readErr}
	s, _ := newStore(t, src, time.Minute)

	_, err := s.Resolve(context.Background(), ga, "1.0-SNAPSHOT")
	require.ErrorIs(t, err, readErr)
	assert.Equal(t, 1, strings.Count(err.Error(), "read metadata for"), err.Error())
}

func TestStore_RefreshRecordsClassifiers(t *testing.T) {
	src := &fakeSource{
		builds:      map[artifact.GA][]string{ga: {"1.0-20080920.015600-7"}},
		classifiers: []string{"sources", "javadoc"},
	}
	s, _ := newStore(t, src, time.Minute)

	_, ok := s.Classifiers(ga)
	assert.False(t, ok)

	_, err := s.Resolve(context.Background(), ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	classifiers, ok := s.Classifiers(ga)
	require.True(t, ok)
	assert.Equal(t, []string{"javadoc", "sources"}, classifiers)
}

func TestStore_CanceledCallerDoesNotAbortRefresh(t *testing.T) {
	src := &blockingSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
		builds:  []string{"1.0-20080920.015600-7"},
	}
	s, _ := newStore(t, src, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Resolve(ctx, ga, "1.0-SNAPSHOT")
		done <- err
	}()

	<-src.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(src.release)
	require.Eventually(t, func() bool {
		_, ok := s.Metadata(ga)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	v, err := s.Resolve(context.Background(), ga, "1.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "1.0-20080920.015600-7", v)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.False(t, src.canceled)
	assert.Equal(t, 1, src.calls)
}
