package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(scenesProduced, projectTransitions, activeRuns, refineIterations)
}

var (
	scenesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_scenes_total",
			Help: "Scenes processed by dispatch branch and result.",
		},
		[]string{"branch", "result"}, // result: ok|failed|canceled
	)

	projectTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_project_transitions_total",
			Help: "Project state transitions by target state.",
		},
		[]string{"to"},
	)

	activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_runs",
			Help: "Generation runs currently supervised by this process.",
		},
	)

	refineIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_refine_iterations",
			Help:    "Rewrite iterations per refine loop run.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8},
		},
		[]string{"accepted"},
	)
)

func IncScene(branch, result string) {
	scenesProduced.WithLabelValues(norm(branch), norm(result)).Inc()
}

func IncProjectTransition(to string) {
	projectTransitions.WithLabelValues(norm(to)).Inc()
}

func RunStarted()  { activeRuns.Inc() }
func RunFinished() { activeRuns.Dec() }

func ObserveRefine(iterations int, accepted bool) {
	l := "false"
	if accepted {
		l = "true"
	}
	refineIterations.WithLabelValues(l).Observe(float64(iterations))
}

var staleReaped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_stale_runs_reaped_total",
		Help: "Runs failed by the reaper after their process went away.",
	},
)

func init() { register(staleReaped) }

func AddStaleReaped(n int) { staleReaped.Add(float64(n)) }
