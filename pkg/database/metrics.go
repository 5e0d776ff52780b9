package database

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStatter is satisfied by *redis.Client.
type PoolStatter interface {
	PoolStats() *redis.PoolStats
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*redis.PoolStats) float64
}

// poolCollector reads pool statistics at scrape time.
type poolCollector struct {
	pool    PoolStatter
	metrics []poolMetric
}

func newPoolCollector(pool PoolStatter) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("storefront", "redis_pool", name), help, nil, nil)
	}
	return &poolCollector{
		pool: pool,
		metrics: []poolMetric{
			{desc("hits_total", "Connections reused from the pool."), prometheus.CounterValue,
				func(s *redis.PoolStats) float64 { return float64(s.Hits) }},
			{desc("misses_total", "Connections that had to be dialed."), prometheus.CounterValue,
				func(s *redis.PoolStats) float64 { return float64(s.Misses) }},
			{desc("timeouts_total", "Waits for a free connection that timed out."), prometheus.CounterValue,
				func(s *redis.PoolStats) float64 { return float64(s.Timeouts) }},
			{desc("connections", "Open connections."), prometheus.GaugeValue,
				func(s *redis.PoolStats) float64 { return float64(s.TotalConns) }},
			{desc("idle_connections", "Idle connections."), prometheus.GaugeValue,
				func(s *redis.PoolStats) float64 { return float64(s.IdleConns) }},
			{desc("stale_connections_total", "Connections closed as stale."), prometheus.CounterValue,
				func(s *redis.PoolStats) float64 { return float64(s.StaleConns) }},
		},
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.PoolStats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stats))
	}
}

// RegisterPoolMetrics exports pool's statistics through reg. Registering a
// second pool is an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStatter) error {
	if err := reg.Register(newPoolCollector(pool)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return errors.New("redis pool metrics already registered")
		}
		return err
	}
	return nil
}
