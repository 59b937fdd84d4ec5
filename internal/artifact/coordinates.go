package artifact

import (
	"fmt"
	"strings"
)

// MalformedCoordinateError is returned when a coordinate or filter string is
// missing its group or name.
type MalformedCoordinateError struct {
	Input  string
	Reason string
}

func (e *MalformedCoordinateError) Error() string {
	return fmt.Sprintf("artifact: malformed coordinates %q: %s", e.Input, e.Reason)
}

// GA is the (group, name) identity of an artifact, ignoring version.
type GA struct {
	Group string
	Name  string
}

func (ga GA) String() string {
	return ga.Group + ":" + ga.Name
}

// Coordinates identify one artifact.
//
// The zero value is not valid; build Coordinates with NewCoordinates or
// ParseCoordinates so group and name are always present.
type Coordinates struct {
	Group      string `json:"group"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Classifier string `json:"classifier,omitempty"`
	Type       string `json:"type,omitempty"`
}

func NewCoordinates(group, name, version string) (Coordinates, error) {
	group = strings.TrimSpace(group)
	name = strings.TrimSpace(name)
	switch {
	case group == "":
		return Coordinates{}, &MalformedCoordinateError{Input: group + ":" + name, Reason: "missing group"}
	case name == "":
		return Coordinates{}, &MalformedCoordinateError{Input: group + ":" + name, Reason: "missing name"}
	}
	return Coordinates{Group: group, Name: name, Version: strings.TrimSpace(version)}, nil
}

// ParseCoordinates parses group:name[:version[:classifier[:type]]].
func ParseCoordinates(raw string) (Coordinates, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return Coordinates{}, &MalformedCoordinateError{Input: raw, Reason: "expected group:name[:version[:classifier[:type]]]"}
	}
	if len(parts) > 5 {
		return Coordinates{}, &MalformedCoordinateError{Input: raw, Reason: "too many segments"}
	}
	c := Coordinates{
		Group:      segment(parts, 0),
		Name:       segment(parts, 1),
		Version:    segment(parts, 2),
		Classifier: segment(parts, 3),
		Type:       segment(parts, 4),
	}
	switch {
	case c.Group == "":
		return Coordinates{}, &MalformedCoordinateError{Input: raw, Reason: "missing group"}
	case c.Name == "":
		return Coordinates{}, &MalformedCoordinateError{Input: raw, Reason: "missing name"}
	}
	return c, nil
}

func MustParseCoordinates(raw string) Coordinates {
	c, err := ParseCoordinates(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func segment(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

func (c Coordinates) GA() GA {
	return GA{Group: c.Group, Name: c.Name}
}

// WithVersion returns a copy of c pinned to version.
func (c Coordinates) WithVersion(version string) Coordinates {
	c.Version = version
	return c
}

// Equal compares all five fields.
func (c Coordinates) Equal(o Coordinates) bool {
	return c == o
}

func (c Coordinates) String() string {
	var b strings.Builder
	b.WriteString(c.Group)
	b.WriteByte(':')
	b.WriteString(c.Name)
	tail := []string{c.Version, c.Classifier, c.Type}
	last := -1
	for i, s := range tail {
		if s != "" {
			last = i
		}
	}
	for i := 0; i <= last; i++ {
		b.WriteByte(':')
		b.WriteString(tail[i])
	}
	return b.String()
}
