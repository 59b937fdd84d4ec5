package version

import (
	"strings"

	mm "github.com/Masterminds/semver/v3"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
)

// Compare orders two version strings, returning:
// -1 if a is older than b
//
//	0 if a and b are equivalent
//	1 if a is newer than b
//
// Versions are split on '.' and '-' and compared segment by segment, numeric
// segments by value and qualifiers lexically. Up to the first qualifier a
// version is in its release part: there a qualifier sorts before any number
// and a longer version is newer only if its next segment is numeric
// ("1.0.1" > "1.0" > "3.0-alpha" style). Once a qualifier has been seen the
// rules follow semver pre-release precedence: numbers sort before qualifiers
// and the longer version is newer ("1.0-alpha" < "1.0-alpha.beta").
//
// Plain major.minor.patch versions are compared with
// github.com/Masterminds/semver/v3, which orders them the same way.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	if va, ok := release(a); ok {
		if vb, ok := release(b); ok {
			return va.Compare(vb)
		}
	}
	return compareSegments(split(a), split(b))
}

// release parses v if it is a strict semantic version without pre-release
// or build metadata.
func release(v string) (*mm.Version, bool) {
	sv, err := mm.StrictNewVersion(v)
	if err != nil || sv.Prerelease() != "" || sv.Metadata() != "" {
		return nil, false
	}
	return sv, true
}

func split(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-'
	})
}

func compareSegments(a, b []string) int {
	n := min(len(a), len(b))
	qualified := false
	for i := 0; i < n; i++ {
		if c := compareSegment(a[i], b[i], qualified); c != 0 {
			return c
		}
		if !isNumeric(a[i]) {
			qualified = true
		}
	}
	switch {
	case len(a) == len(b):
		return 0
	case len(a) > len(b):
		return tail(a[n], qualified)
	default:
		return -tail(b[n], qualified)
	}
}

// tail decides a prefix tie from the first extra segment of the longer side.
func tail(extra string, qualified bool) int {
	if qualified || isNumeric(extra) {
		return 1
	}
	return -1
}

func compareSegment(a, b string, qualified bool) int {
	an, bn := isNumeric(a), isNumeric(b)
	switch {
	case an && bn:
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case an != bn:
		// After a qualifier numbers come first; before it, qualifiers do.
		if an == qualified {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Comparator arbitrates between two candidates of the same GA. The zero
// value is newest-wins.
type Comparator struct {
	OldestWins bool
}

func NewestWins() Comparator {
	return Comparator{}
}

func OldestWins() Comparator {
	return Comparator{OldestWins: true}
}

// Compare returns a positive number when a is preferred over b, negative
// when b is preferred and 0 when neither is.
func (c Comparator) Compare(a, b artifact.Coordinates) int {
	r := Compare(a.Version, b.Version)
	if c.OldestWins {
		return -r
	}
	return r
}

// Select returns the preferred of a and b, keeping a on ties.
func (c Comparator) Select(a, b artifact.Coordinates) artifact.Coordinates {
	if c.Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Max returns the preferred entry of versions under Compare, or false when
// versions is empty. On ties the first one encountered wins.
func Max(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if Compare(v, best) > 0 {
			best = v
		}
	}
	return best, true
}
