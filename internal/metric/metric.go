package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CasesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gauntlet_cases_running",
		Help: "The number of test cases currently running",
	})

	CasesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gauntlet_cases_finished_total",
		Help: "The number of test cases finished since the process was started",
	}, []string{"result"})

	GroupsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gauntlet_groups_canceled_total",
		Help: "The number of groups that were canceled before they started",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gauntlet_run_duration_seconds",
		Help:    "The time it took to execute all groups of a run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
