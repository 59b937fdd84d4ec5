package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

func TestCollectorsAreServedFromControllerRegistry(t *testing.T) {
	CacheHitsTotal.WithLabelValues("metrics-test").Inc()
	NodesTotal.WithLabelValues("Resolved").Inc()
	ProcessorErrorsTotal.Inc()
	ResolutionDuration.Observe(0.25)

	families, err := ctrlmetrics.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"artifact_resolver_cache_hits_total",
		"artifact_resolver_nodes_total",
		"artifact_resolver_processor_errors_total",
		"artifact_resolver_resolution_duration_seconds",
	} {
		assert.True(t, names[want], "%s not registered", want)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(CacheHitsTotal.WithLabelValues("metrics-test")))
}
