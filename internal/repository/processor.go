package repository

import (
	"context"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
	"github.com/bayleafwalker/artifact-resolver/internal/resolver"
	"github.com/bayleafwalker/artifact-resolver/internal/snapshot"
)

// Declarations is the stored form of a DependencyProcessor answer: the
// artifact's own scope and its already-parsed direct dependencies.
type Declarations struct {
	Scope        artifact.Scope `json:"scope,omitempty"`
	Dependencies []Declaration  `json:"dependencies,omitempty"`
}

type Declaration struct {
	Coordinates string         `json:"coordinates"`
	Scope       artifact.Scope `json:"scope,omitempty"`
	Optional    bool           `json:"optional,omitempty"`
	Inclusions  []string       `json:"inclusions,omitempty"`
	Exclusions  []string       `json:"exclusions,omitempty"`
}

// Metadata converts d, failing on malformed coordinates or filters.
func (d Declaration) Metadata() (artifact.Metadata, error) {
	c, err := artifact.ParseCoordinates(d.Coordinates)
	if err != nil {
		return artifact.Metadata{}, err
	}
	inclusions, err := parseFilters(d.Inclusions)
	if err != nil {
		return artifact.Metadata{}, err
	}
	exclusions, err := parseFilters(d.Exclusions)
	if err != nil {
		return artifact.Metadata{}, err
	}

	opts := []artifact.MetadataOption{
		artifact.WithScope(d.Scope),
		artifact.WithInclusions(inclusions...),
		artifact.WithExclusions(exclusions...),
	}
	if d.Optional {
		opts = append(opts, artifact.AsOptional())
	}
	return artifact.NewMetadata(c, opts...), nil
}

func parseFilters(raw []string) ([]artifact.Filter, error) {
	out := make([]artifact.Filter, 0, len(raw))
	for _, s := range raw {
		f, err := artifact.ParseFilter(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ReaderProcessor answers dependency lookups from Declarations stored as
// the artifact's descriptor in a MetadataReader.
type ReaderProcessor struct {
	reader MetadataReader
	exempt bool
}

var _ resolver.DependencyProcessor = (*ReaderProcessor)(nil)

func NewReaderProcessor(reader MetadataReader, exempt bool) (*ReaderProcessor, error) {
	if reader == nil {
		return nil, &errdefs.ConfigurationError{Component: "reader processor", Field: "reader", Reason: "must not be nil"}
	}
	return &ReaderProcessor{reader: reader, exempt: exempt}, nil
}

func (p *ReaderProcessor) GetDependencies(ctx context.Context, c artifact.Coordinates) (artifact.Scope, []artifact.Metadata, error) {
	data, err := p.reader.ReadMetadata(ctx, c, p.exempt)
	if err != nil {
		return "", nil, err
	}

	var decls Declarations
	if err := yaml.Unmarshal(data, &decls); err != nil {
		return "", nil, fmt.Errorf("decode declarations of %s: %w", c, err)
	}

	deps := make([]artifact.Metadata, 0, len(decls.Dependencies))
	for i, d := range decls.Dependencies {
		md, err := d.Metadata()
		if err != nil {
			return "", nil, fmt.Errorf("dependency %d of %s: %w", i, c, err)
		}
		deps = append(deps, md)
	}
	return decls.Scope, deps, nil
}

// SnapshotsType is the file type under which a GA's snapshot.Listing is
// stored, as YAML with "builds" and "classifiers" lists.
const SnapshotsType = "snapshots"

// ReaderSource lists snapshot builds from the snapshot.Listing stored in a
// MetadataReader under the GA's coordinates with type SnapshotsType.
type ReaderSource struct {
	reader MetadataReader
	exempt bool
}

var _ snapshot.Source = (*ReaderSource)(nil)

func NewReaderSource(reader MetadataReader, exempt bool) (*ReaderSource, error) {
	if reader == nil {
		return nil, &errdefs.ConfigurationError{Component: "reader source", Field: "reader", Reason: "must not be nil"}
	}
	return &ReaderSource{reader: reader, exempt: exempt}, nil
}

func (s *ReaderSource) Snapshots(ctx context.Context, ga artifact.GA) (snapshot.Listing, error) {
	c := artifact.Coordinates{Group: ga.Group, Name: ga.Name}
	data, err := s.reader.ReadRawData(ctx, c, ReadOptions{Type: SnapshotsType, Exempt: s.exempt})
	if err != nil {
		return snapshot.Listing{}, err
	}
	var l snapshot.Listing
	if err := yaml.Unmarshal(data, &l); err != nil {
		return snapshot.Listing{}, fmt.Errorf("decode snapshot listing of %s: %w", ga, err)
	}
	return l, nil
}
