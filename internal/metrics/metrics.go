// Package metrics holds Prometheus instruments that are used across the
// edge.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PageServeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_page_serve_total",
			Help: "Pages served, labelled by outcome (hit, miss, pulled).",
		}, []string{"outcome"})

	ImportTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_import_total",
			Help: "Publish bundles accepted by the importer.",
		})

	ImportConflictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_import_conflict_total",
			Help: "Publish bundles rejected by the version guard.",
		})

	PullPublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_pull_publish_total",
			Help: "Synchronous homepage pulls triggered by a local miss.",
		})

	SyncRetryTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_sync_retry_total",
			Help: "Retried authority calls during startup sync.",
		})

	AdapterErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_adapter_error_total",
			Help: "Datasource adapter calls that returned an error, by backend.",
		}, []string{"backend"})

	CacheHitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_cache_hit_total",
			Help: "Read-through cache hits.",
		})

	CacheMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_cache_miss_total",
			Help: "Read-through cache misses (value recomputed).",
		})
)

func init() {
	prometheus.MustRegister(
		PageServeTotal,
		ImportTotal,
		ImportConflictTotal,
		PullPublishTotal,
		SyncRetryTotal,
		AdapterErrorTotal,
		CacheHitTotal,
		CacheMissTotal,
	)
}
