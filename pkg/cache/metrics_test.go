package cache

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/metric"
)

func TestCacheMetricsIntegration(t *testing.T) {
	metricsRegistry := metric.NewMetricsRegistry()

	c, err := NewTTL[string](context.Background(), time.Minute, time.Minute,
		WithMetrics[string](metricsRegistry, "flow_catalog"))
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("key1", "value1")
	_, _ = c.Set("key2", "value2")

	val, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	_, found = c.Get("key3")
	assert.False(t, found)

	deleted, _ := c.Delete("key2")
	assert.True(t, deleted)

	metricFamilies, err := metricsRegistry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	metricsByName := make(map[string]*dto.MetricFamily)
	for _, mf := range metricFamilies {
		metricsByName[*mf.Name] = mf
	}

	hitsMetric := metricsByName["ssohub_cache_hits_total"]
	require.NotNil(t, hitsMetric, "hits metric should exist")
	assert.Equal(t, float64(1), *hitsMetric.Metric[0].Counter.Value, "should have 1 hit")

	missesMetric := metricsByName["ssohub_cache_misses_total"]
	require.NotNil(t, missesMetric, "misses metric should exist")
	assert.Equal(t, float64(1), *missesMetric.Metric[0].Counter.Value, "should have 1 miss")

	setsMetric := metricsByName["ssohub_cache_sets_total"]
	require.NotNil(t, setsMetric, "sets metric should exist")
	assert.Equal(t, float64(2), *setsMetric.Metric[0].Counter.Value, "should have 2 sets")

	deletesMetric := metricsByName["ssohub_cache_deletes_total"]
	require.NotNil(t, deletesMetric, "deletes metric should exist")
	assert.Equal(t, float64(1), *deletesMetric.Metric[0].Counter.Value, "should have 1 delete")

	sizeMetric := metricsByName["ssohub_cache_size"]
	require.NotNil(t, sizeMetric, "size metric should exist")
	assert.Equal(t, float64(1), *sizeMetric.Metric[0].Gauge.Value, "should have 1 entry remaining")

	assert.Equal(t, "flow_catalog", *hitsMetric.Metric[0].Label[0].Value, "should carry the component label")
}

func TestCacheWithoutMetrics(t *testing.T) {
	c, err := NewTTL[string](context.Background(), time.Minute, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("key1", "value1")
	val, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "value1", val)
}

func TestCacheStatsAlwaysEnabled(t *testing.T) {
	metricsRegistry := metric.NewMetricsRegistry()

	c, err := NewTTL[string](context.Background(), time.Minute, time.Minute,
		WithMetrics[string](metricsRegistry, "flow_catalog"))
	require.NoError(t, err)
	defer c.Close()

	ttl := c.(*ttlCache[string])
	assert.NotNil(t, ttl.metrics, "metrics should be enabled")
	assert.NotNil(t, ttl.stats, "stats should always be enabled")
}
