package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "context_loads_total",
		Help:      "Total number of inference context loads",
	})

	releasesMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "context_releases_total",
		Help:      "Total number of inference context releases",
	})

	generationsMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "generations_total",
		Help:      "Total number of generation runs by outcome",
	}, []string{"outcome"})

	interruptsMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "interrupts_total",
		Help:      "Total number of interrupt signals received",
	})

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "generation_duration_seconds",
		Help:      "Wall-clock duration of generation runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "diffusiond",
		Subsystem: "manager",
		Name:      "context_load_duration_seconds",
		Help:      "Wall-clock duration of context loads in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		loadsMetric,
		releasesMetric,
		generationsMetric,
		interruptsMetric,
		generationDuration,
		loadDuration,
	)
}
