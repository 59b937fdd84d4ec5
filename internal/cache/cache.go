// Package cache provides the fixed-capacity cache that sits in front of
// expensive metadata lookups during tree expansion.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
	"github.com/bayleafwalker/artifact-resolver/internal/metrics"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 512

// Policy selects how a full cache makes room for a new key.
type Policy string

const (
	// PolicyLastInserted remembers only the most recently inserted key and
	// evicts exactly that key when a new one arrives at capacity. It is not
	// an LRU: the other capacity-1 entries stay put until overwritten.
	PolicyLastInserted Policy = "last-inserted"
	// PolicyLRU evicts the least recently used key.
	PolicyLRU Policy = "lru"
)

type options struct {
	name   string
	policy Policy
}

type Option func(*options)

// WithName labels the cache in metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// Cache is a bounded key/value cache safe for concurrent use.
type Cache[K comparable, V any] struct {
	name     string
	policy   Policy
	capacity int

	mu      sync.RWMutex
	entries map[K]V
	last    K
	hasLast bool

	lru *lru.Cache[K, V]
}

func New[K comparable, V any](capacity int, opts ...Option) (*Cache[K, V], error) {
	o := options{name: "default", policy: PolicyLastInserted}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		return nil, &errdefs.ConfigurationError{Component: "cache", Field: "capacity", Reason: "must be positive"}
	}

	c := &Cache[K, V]{
		name:     o.name,
		policy:   o.policy,
		capacity: capacity,
	}
	switch o.policy {
	case PolicyLastInserted:
		c.entries = make(map[K]V, capacity)
	case PolicyLRU:
		l, err := lru.NewWithEvict[K, V](capacity, func(K, V) {
			metrics.CacheEvictionsTotal.WithLabelValues(c.name).Inc()
		})
		if err != nil {
			return nil, &errdefs.ConfigurationError{Component: "cache", Field: "capacity", Reason: err.Error()}
		}
		c.lru = l
	default:
		return nil, &errdefs.ConfigurationError{Component: "cache", Field: "policy", Reason: "unknown policy " + string(o.policy)}
	}
	return c, nil
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	var (
		v  V
		ok bool
	)
	if c.lru != nil {
		v, ok = c.lru.Get(key)
	} else {
		c.mu.RLock()
		v, ok = c.entries[key]
		c.mu.RUnlock()
	}
	if ok {
		metrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Put stores value under key. Under PolicyLastInserted a new key arriving
// at capacity first evicts the previously remembered key.
func (c *Cache[K, V]) Put(key K, value V) {
	if c.lru != nil {
		c.lru.Add(key, value)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity && c.hasLast {
		delete(c.entries, c.last)
		metrics.CacheEvictionsTotal.WithLabelValues(c.name).Inc()
	}
	c.entries[key] = value
	c.last = key
	c.hasLast = true
}

func (c *Cache[K, V]) Len() int {
	if c.lru != nil {
		return c.lru.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

func (c *Cache[K, V]) Policy() Policy {
	return c.policy
}

// Name is the metrics label of the cache.
func (c *Cache[K, V]) Name() string {
	return c.name
}
