// Package repository connects the resolver to stored artifact metadata.
//
// Everything here sits behind the MetadataReader boundary: the resolver
// itself only sees a DependencyProcessor and a snapshot Source.
package repository

import (
	"context"
	"errors"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
)

// ErrNotFound is wrapped by readers when the requested bytes do not exist.
var ErrNotFound = errors.New("not found")

// ReadOptions narrow a raw read to a specific file of an artifact.
type ReadOptions struct {
	// Classifier and Type override the coordinates' own values when set.
	Classifier string
	Type       string
	// Exempt skips integrity verification for trusted reads.
	Exempt bool
}

// MetadataReader returns raw artifact bytes.
type MetadataReader interface {
	ReadRawData(ctx context.Context, c artifact.Coordinates, opts ReadOptions) ([]byte, error)
	// ReadMetadata returns the artifact's descriptor bytes whatever type the
	// coordinates name.
	ReadMetadata(ctx context.Context, c artifact.Coordinates, exempt bool) ([]byte, error)
}

func (o ReadOptions) apply(c artifact.Coordinates) artifact.Coordinates {
	if o.Classifier != "" {
		c.Classifier = o.Classifier
	}
	if o.Type != "" {
		c.Type = o.Type
	}
	return c
}
