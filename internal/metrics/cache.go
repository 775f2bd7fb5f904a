package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lborres/warden/core"
)

// CacheStatsSource is satisfied by every session cache in pkg/cache.
type CacheStatsSource interface {
	Stats() core.CacheStats
}

// cacheCollector reads the cache counters once per scrape.
type cacheCollector struct {
	source CacheStatsSource

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	sets      *prometheus.Desc
	deletes   *prometheus.Desc
	evictions *prometheus.Desc
	size      *prometheus.Desc
}

func newCacheCollector(source CacheStatsSource) *cacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("warden_session_cache_"+name, help, nil, nil)
	}
	return &cacheCollector{
		source:    source,
		hits:      desc("hits_total", "Session cache lookups served from the cache"),
		misses:    desc("misses_total", "Session cache lookups that fell through to storage"),
		sets:      desc("sets_total", "Sessions written to the cache"),
		deletes:   desc("deletes_total", "Sessions evicted on logout or expiry"),
		evictions: desc("evictions_total", "Sessions evicted because the cache was full"),
		size:      desc("entries", "Sessions currently cached"),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.sets
	ch <- c.deletes
	ch <- c.evictions
	ch <- c.size
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.sets, prometheus.CounterValue, float64(s.Sets))
	ch <- prometheus.MustNewConstMetric(c.deletes, prometheus.CounterValue, float64(s.Deletes))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size))
}

// RegisterCache exports the session cache counters. A nil *Metrics ignores
// the call.
func (m *Metrics) RegisterCache(source CacheStatsSource) error {
	if m == nil || source == nil {
		return nil
	}
	return m.registry.Register(newCacheCollector(source))
}
