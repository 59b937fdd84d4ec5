package snapshot

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/version"
)

// GAVMetadata is the repository's last known view of one GA: which
// timestamped snapshot builds exist and which classifiers were seen.
//
// Updates replace the whole state rather than merging into it. GAVMetadata
// does not synchronise itself; Store serialises access.
type GAVMetadata struct {
	GA artifact.GA

	clock       clock.PassiveClock
	snapshots   []string
	classifiers sets.Set[string]
	lastCheck   int64
	expired     bool
}

func NewGAVMetadata(ga artifact.GA, clk clock.PassiveClock) *GAVMetadata {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &GAVMetadata{
		GA:          ga,
		clock:       clk,
		classifiers: sets.New[string](),
	}
}

// Snapshots returns the known builds in ascending version order.
func (m *GAVMetadata) Snapshots() []string {
	return slices.Clone(m.snapshots)
}

// UpdateSnapshots replaces the known builds with versions and stamps the
// check time. An empty update clears everything known; callers that only
// want to refresh must not pass an empty list.
func (m *GAVMetadata) UpdateSnapshots(versions []string) {
	uniq := sets.New(versions...).UnsortedList()
	slices.SortFunc(uniq, version.Compare)
	m.snapshots = uniq
	m.lastCheck = m.clock.Now().UnixMilli()
}

func (m *GAVMetadata) Classifiers() []string {
	return sets.List(m.classifiers)
}

// UpdateClassifiers replaces the known classifiers and stamps the check time.
func (m *GAVMetadata) UpdateClassifiers(classifiers []string) {
	m.classifiers = sets.New(classifiers...)
	m.lastCheck = m.clock.Now().UnixMilli()
}

// LastCheck is the time of the last update in epoch milliseconds, UTC.
func (m *GAVMetadata) LastCheck() int64 {
	return m.lastCheck
}

func (m *GAVMetadata) IsExpired() bool {
	return m.expired
}

func (m *GAVMetadata) SetExpired(expired bool) {
	m.expired = expired
}

// LatestSnapshot returns the greatest known build.
func (m *GAVMetadata) LatestSnapshot() (string, bool) {
	if len(m.snapshots) == 0 {
		return "", false
	}
	return m.snapshots[len(m.snapshots)-1], true
}

// LatestSnapshotFor returns the greatest known build whose snapshot base
// is base, e.g. "1.0-SNAPSHOT".
func (m *GAVMetadata) LatestSnapshotFor(base string) (string, bool) {
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if version.SnapshotBaseVersion(m.snapshots[i]) == base {
			return m.snapshots[i], true
		}
	}
	return "", false
}
