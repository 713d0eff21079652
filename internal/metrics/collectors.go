package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// CacheCollector exports connection pool statistics of the tool cache.
type CacheCollector struct {
	client *redis.Client

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
}

// NewCacheCollector creates a collector for the given redis client.
func NewCacheCollector(client *redis.Client) *CacheCollector {
	return &CacheCollector{
		client: client,
		hits: prometheus.NewDesc(
			"advisor_cache_pool_hits_total",
			"Times a free connection was found in the pool",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			"advisor_cache_pool_misses_total",
			"Times a free connection was not found in the pool",
			nil, nil,
		),
		timeouts: prometheus.NewDesc(
			"advisor_cache_pool_timeouts_total",
			"Times a wait for a connection timed out",
			nil, nil,
		),
		totalConns: prometheus.NewDesc(
			"advisor_cache_pool_connections",
			"Total connections in the pool",
			nil, nil,
		),
		idleConns: prometheus.NewDesc(
			"advisor_cache_pool_idle_connections",
			"Idle connections in the pool",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.totalConns
	ch <- c.idleConns
}

// Collect implements prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns))
}
