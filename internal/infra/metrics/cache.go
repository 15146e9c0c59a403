package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(lookups) }

// Caches in front of the project store.
const (
	CacheProject = "project" // project rows, redis read-through
	CacheStatus  = "status"  // status snapshots mirrored by trackers
)

// Lookup results. Error means redis failed and the caller fell back.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_cache_lookups_total",
		Help: "Project and status cache lookups by result.",
	},
	[]string{"cache", "result"},
)

func IncCacheLookup(cache, result string) {
	lookups.WithLabelValues(norm(cache), norm(result)).Inc()
}
