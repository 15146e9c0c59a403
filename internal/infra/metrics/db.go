package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(projectStoreConns, projectStoreEmptyAcquires) }

var (
	projectStoreConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_project_store_conns",
			Help: "Connections of the project store pool by state.",
		},
		[]string{"state"}, // idle|in_use|max
	)

	// pgxpool reports a running total, so this mirrors it as a gauge.
	projectStoreEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_project_store_empty_acquires",
			Help: "Acquires that had to wait for a free project store connection.",
		},
	)
)

// SetProjectStorePool publishes one pool sample, taken on the scheduler's
// pool-stats tick.
func SetProjectStorePool(idle, inUse, maxConns int32, emptyAcquires int64) {
	projectStoreConns.WithLabelValues("idle").Set(float64(idle))
	projectStoreConns.WithLabelValues("in_use").Set(float64(inUse))
	projectStoreConns.WithLabelValues("max").Set(float64(maxConns))
	projectStoreEmptyAcquires.Set(float64(emptyAcquires))
}
