package artifact

import "slices"

// Metadata is the payload of a dependency tree node: an artifact plus the
// edge attributes it was declared with.
//
// Inclusion and exclusion lists are fixed at construction.
type Metadata struct {
	Coordinates
	Scope    Scope
	Optional bool

	inclusions []Filter
	exclusions []Filter
}

type MetadataOption func(*Metadata)

func WithScope(scope Scope) MetadataOption {
	return func(m *Metadata) {
		m.Scope = scope
	}
}

func WithInclusions(filters ...Filter) MetadataOption {
	return func(m *Metadata) {
		m.inclusions = append(m.inclusions, filters...)
	}
}

func WithExclusions(filters ...Filter) MetadataOption {
	return func(m *Metadata) {
		m.exclusions = append(m.exclusions, filters...)
	}
}

func AsOptional() MetadataOption {
	return func(m *Metadata) {
		m.Optional = true
	}
}

func NewMetadata(c Coordinates, opts ...MetadataOption) Metadata {
	m := Metadata{Coordinates: c}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Metadata) Inclusions() []Filter {
	return slices.Clone(m.inclusions)
}

func (m Metadata) Exclusions() []Filter {
	return slices.Clone(m.exclusions)
}

// IsAllowed reports whether a dependency with coordinates c may be admitted
// below m. With inclusions c must match one of them; with exclusions c must
// match none. Without either everything is allowed.
func (m Metadata) IsAllowed(c Coordinates) bool {
	if len(m.inclusions) > 0 && !matchesAny(m.inclusions, c) {
		return false
	}
	if len(m.exclusions) > 0 && matchesAny(m.exclusions, c) {
		return false
	}
	return true
}

// WithVersion returns a copy of m pinned to version. Filter lists are shared,
// which is safe because they are never mutated.
func (m Metadata) WithVersion(version string) Metadata {
	m.Coordinates = m.Coordinates.WithVersion(version)
	return m
}

// InScope returns a copy of m with its scope replaced.
func (m Metadata) InScope(scope Scope) Metadata {
	m.Scope = scope
	return m
}
