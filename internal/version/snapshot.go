package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// SnapshotMarker is the symbolic version qualifier that stands for the
	// latest timestamped build.
	SnapshotMarker = "SNAPSHOT"

	// TimestampLayout is yyyyMMdd.HHmmss in UTC.
	TimestampLayout = "20060102.150405"
)

var (
	// <base>-yyyyMMdd.HHmmss-<build>
	reTimestamped = regexp.MustCompile(`^(.+)-(\d{8}\.\d{6})-(\d+)$`)
	// yyyyMMdd.HHmmss with an optional -<build>
	reTimestamp = regexp.MustCompile(`^(\d{8}\.\d{6})(?:-(\d+))?$`)
)

// TimestampFormatError reports a snapshot timestamp that does not have the
// yyyyMMdd.HHmmss[-build] shape.
type TimestampFormatError struct {
	Input string
	Err   error
}

func (e *TimestampFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("version: invalid snapshot timestamp %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("version: invalid snapshot timestamp %q", e.Input)
}

func (e *TimestampFormatError) Unwrap() error {
	return e.Err
}

// IsSnapshot reports whether v is a symbolic snapshot version such as
// "1.0-SNAPSHOT".
func IsSnapshot(v string) bool {
	return v == SnapshotMarker || strings.HasSuffix(v, "-"+SnapshotMarker)
}

// IsTimestamped reports whether v ends in -yyyyMMdd.HHmmss-build.
func IsTimestamped(v string) bool {
	return reTimestamped.MatchString(v)
}

// ChopTimestamp strips a trailing -yyyyMMdd.HHmmss-build suffix and returns
// the remaining base ("3.0-alpha-1-20080920.015600-7" -> "3.0-alpha-1").
// Anything that does not end in exactly that shape is returned unchanged.
func ChopTimestamp(v string) string {
	m := reTimestamped.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	return m[1]
}

// SnapshotBaseVersion replaces a trailing timestamp suffix with the snapshot
// marker ("3.0-20080920.015600-7" -> "3.0-SNAPSHOT"). Like ChopTimestamp it
// leaves anything else untouched.
func SnapshotBaseVersion(v string) string {
	m := reTimestamped.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	return m[1] + "-" + SnapshotMarker
}

// ParseBuild returns the build number of a timestamped version.
func ParseBuild(v string) (int, bool) {
	m := reTimestamped.FindStringSubmatch(v)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseTimestamp decodes yyyyMMdd.HHmmss or yyyyMMdd.HHmmss-build into epoch
// milliseconds, UTC. The build number is validated but ignored.
func ParseTimestamp(s string) (int64, error) {
	m := reTimestamp.FindStringSubmatch(s)
	if m == nil {
		return 0, &TimestampFormatError{Input: s}
	}
	t, err := time.ParseInLocation(TimestampLayout, m[1], time.UTC)
	if err != nil {
		return 0, &TimestampFormatError{Input: s, Err: err}
	}
	return t.UnixMilli(), nil
}

// FormatTimestamp encodes epoch milliseconds as yyyyMMdd.HHmmss in UTC.
func FormatTimestamp(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(TimestampLayout)
}

// TimestampedVersion builds <base>-yyyyMMdd.HHmmss-<build> from a snapshot
// base version such as "1.0-SNAPSHOT" or "1.0".
func TimestampedVersion(base string, millis int64, build int) string {
	base = strings.TrimSuffix(base, "-"+SnapshotMarker)
	return fmt.Sprintf("%s-%s-%d", base, FormatTimestamp(millis), build)
}
