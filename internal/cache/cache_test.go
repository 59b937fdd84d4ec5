package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayleafwalker/artifact-resolver/internal/errdefs"
	"github.com/bayleafwalker/artifact-resolver/internal/metrics"
)

func TestNew_RejectsBadConfiguration(t *testing.T) {
	var cfgErr *errdefs.ConfigurationError

	_, err := New[string, int](0)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "capacity", cfgErr.Field)

	_, err = New[string, int](4, WithPolicy("fifo"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "policy", cfgErr.Field)
}

func TestLastInserted_EvictsRememberedKey(t *testing.T) {
	const capacity = 4
	c, err := New[string, int](capacity, WithName(t.Name()))
	require.NoError(t, err)

	for i := 0; i < capacity; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}
	require.Equal(t, capacity, c.Len())

	c.Put("k4", 4)
	assert.Equal(t, capacity, c.Len())

	_, ok := c.Get("k3")
	assert.False(t, ok, "the key inserted just before the overflowing put is evicted")
	for _, k := range []string{"k0", "k1", "k2", "k4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheEvictionsTotal.WithLabelValues(t.Name())))

	// k4 is now the remembered key; the oldest entries are never reached.
	c.Put("k5", 5)
	_, ok = c.Get("k4")
	assert.False(t, ok)
	_, ok = c.Get("k0")
	assert.True(t, ok)
}

func TestLastInserted_OverwriteDoesNotEvict(t *testing.T) {
	c, err := New[string, int](2)
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	assert.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	// "a" was the last insert, so it is the one making room.
	c.Put("c", 3)
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestLastInserted_CapacityOne(t *testing.T) {
	c, err := New[int, string](1)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Put(i, "v")
		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(i)
		assert.True(t, ok)
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[string, int](2, WithPolicy(PolicyLRU))
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, PolicyLRU, c.Policy())
}

func TestConcurrentPutsNeverExceedCapacity(t *testing.T) {
	for _, policy := range []Policy{PolicyLastInserted, PolicyLRU} {
		t.Run(string(policy), func(t *testing.T) {
			const capacity = 16
			c, err := New[int, int](capacity, WithPolicy(policy))
			require.NoError(t, err)

			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 500; i++ {
						k := w*1000 + i
						c.Put(k, i)
						_, _ = c.Get(k)
						assert.LessOrEqual(t, c.Len(), capacity)
					}
				}(w)
			}
			wg.Wait()
			assert.Equal(t, capacity, c.Len())
		})
	}
}
