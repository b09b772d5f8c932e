// Package metrics exports dispatcher cache events to Prometheus.
package metrics

import (
	"fmt"

	"github.com/goliatone/go-cacheable/interceptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// CacheEventTypeMiss is the event type for cache misses.
	CacheEventTypeMiss = "cache_miss"
	// CacheEventTypeHit is the event type for cache hits.
	CacheEventTypeHit = "cache_hit"
)

// Recorder counts read outcomes and backend failures per cache.
type Recorder struct {
	cacheEventsCounter *prometheus.CounterVec
	cacheErrorsCounter *prometheus.CounterVec
}

var _ interceptor.Recorder = (*Recorder)(nil)

// NewRecorder registers the cache collectors with reg. Metric names are
// prefixed with prefix, for example "app_" gives app_cache_events_total.
func NewRecorder(prefix string, reg prometheus.Registerer) *Recorder {
	return &Recorder{
		cacheEventsCounter: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%scache_events_total", prefix),
				Help: "Total number of cache retrieval events by cache and operation.",
			},
			[]string{"event_type", "cache", "operation"},
		),
		cacheErrorsCounter: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%scache_errors_total", prefix),
				Help: "Total number of cache backend failures by cache and kind.",
			},
			[]string{"cache", "kind"},
		),
	}
}

func (r *Recorder) RecordHit(cache, operation string) {
	r.cacheEventsCounter.WithLabelValues(CacheEventTypeHit, cache, operation).Inc()
}

func (r *Recorder) RecordMiss(cache, operation string) {
	r.cacheEventsCounter.WithLabelValues(CacheEventTypeMiss, cache, operation).Inc()
}

// RecordError counts a backend failure. kind is one of the interceptor
// ErrorKind constants.
func (r *Recorder) RecordError(cache, kind string) {
	r.cacheErrorsCounter.WithLabelValues(cache, kind).Inc()
}

// DeleteCache drops every series recorded for cache.
func (r *Recorder) DeleteCache(cache string) {
	r.cacheEventsCounter.DeletePartialMatch(prometheus.Labels{"cache": cache})
	r.cacheErrorsCounter.DeletePartialMatch(prometheus.Labels{"cache": cache})
}
