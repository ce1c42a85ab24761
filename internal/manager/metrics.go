package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "routerd_scheduler_queue_depth",
		Help: "Tasks waiting for admission.",
	})
	tasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routerd_scheduler_tasks_total",
		Help: "Terminal task outcomes by kind.",
	}, []string{"outcome"})
	retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routerd_scheduler_retries_total",
		Help: "Requeues after transient failures by kind.",
	}, []string{"kind"})
	admissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routerd_scheduler_admissions_total",
		Help: "Admissions by deployment.",
	}, []string{"deployment"})
	inflightGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routerd_scheduler_inflight",
		Help: "In-flight calls by deployment.",
	}, []string{"deployment"})
)

func init() {
	prometheus.MustRegister(queueDepth, tasksTotal, retriesTotal, admissionsTotal, inflightGauge)
}
