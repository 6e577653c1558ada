package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_cache_hits_total",
		Help: "Total number of cache reads that returned a live entry",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_cache_misses_total",
		Help: "Total number of cache reads that found nothing usable",
	})

	cacheExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_cache_expirations_total",
		Help: "Total number of expired entries removed on read",
	})

	cacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_cache_write_failures_total",
		Help: "Total number of cache writes rejected by serialization or storage",
	})
)
