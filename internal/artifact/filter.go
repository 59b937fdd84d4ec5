package artifact

import "strings"

// Filter is a partial coordinate used as an inclusion or exclusion
// predicate. Name and Version are optional; an empty field matches anything.
type Filter struct {
	Group   string `json:"group"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ParseFilter parses group[:name[:version]].
func ParseFilter(raw string) (Filter, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) > 3 {
		return Filter{}, &MalformedCoordinateError{Input: raw, Reason: "filter expects group[:name[:version]]"}
	}
	f := Filter{
		Group:   segment(parts, 0),
		Name:    segment(parts, 1),
		Version: segment(parts, 2),
	}
	if f.Group == "" {
		return Filter{}, &MalformedCoordinateError{Input: raw, Reason: "missing group"}
	}
	return f, nil
}

func MustParseFilter(raw string) Filter {
	f, err := ParseFilter(raw)
	if err != nil {
		panic(err)
	}
	return f
}

// Matches reports whether c falls under f. Versions are compared exactly.
func (f Filter) Matches(c Coordinates) bool {
	if f.Group != c.Group {
		return false
	}
	if f.Name != "" && f.Name != c.Name {
		return false
	}
	if f.Version != "" && f.Version != c.Version {
		return false
	}
	return true
}

func (f Filter) String() string {
	s := f.Group
	if f.Name != "" || f.Version != "" {
		s += ":" + f.Name
	}
	if f.Version != "" {
		s += ":" + f.Version
	}
	return s
}

func matchesAny(filters []Filter, c Coordinates) bool {
	for _, f := range filters {
		if f.Matches(c) {
			return true
		}
	}
	return false
}
