package repository

import (
	"context"
	"strconv"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/cache"
	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
)

// CachingReader serves repeated reads from a bounded cache. Failed reads are
// not cached, and neither are SnapshotsType listings: those change over time
// and the snapshot store applies its own TTL to them.
type CachingReader struct {
	next  MetadataReader
	cache *cache.Cache[string, []byte]
}

var _ MetadataReader = (*CachingReader)(nil)

func NewCachingReader(next MetadataReader, c *cache.Cache[string, []byte]) (*CachingReader, error) {
	if next == nil {
		return nil, &errdefs.ConfigurationError{Component: "caching reader", Field: "reader", Reason: "must not be nil"}
	}
	if c == nil {
		return nil, &errdefs.ConfigurationError{Component: "caching reader", Field: "cache", Reason: "must not be nil"}
	}
	return &CachingReader{next: next, cache: c}, nil
}

func (r *CachingReader) ReadRawData(ctx context.Context, c artifact.Coordinates, opts ReadOptions) ([]byte, error) {
	target := opts.apply(c)
	if target.Type == SnapshotsType {
		return r.next.ReadRawData(ctx, c, opts)
	}
	key := "raw|" + target.String() + "|" + strconv.FormatBool(opts.Exempt)
	return r.cached(key, func() ([]byte, error) {
		return r.next.ReadRawData(ctx, c, opts)
	})
}

func (r *CachingReader) ReadMetadata(ctx context.Context, c artifact.Coordinates, exempt bool) ([]byte, error) {
	key := "meta|" + c.Group + ":" + c.Name + ":" + c.Version + "|" + strconv.FormatBool(exempt)
	return r.cached(key, func() ([]byte, error) {
		return r.next.ReadMetadata(ctx, c, exempt)
	})
}

func (r *CachingReader) cached(key string, load func() ([]byte, error)) ([]byte, error) {
	if data, ok := r.cache.Get(key); ok {
		return data, nil
	}
	data, err := load()
	if err != nil {
		return nil, err
	}
	r.cache.Put(key, data)
	return data, nil
}
