package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpad_queue_depth",
		Help: "Device tasks waiting in the poller queue.",
	})
	queueCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpad_queue_capacity",
		Help: "Maximum number of device tasks the poller queue holds.",
	})
	deviceEnqueues = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netpad_device_enqueues_total",
		Help: "Devices handed to the poller queue by the planner.",
	})
	configRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_config_repairs_total",
			Help: "Monitor configurations repaired from defaults.",
		},
		[]string{"scope"},
	)
	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netpad_polls_total",
		Help: "Device polls finalized.",
	})
	pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netpad_poll_duration_seconds",
		Help:    "Time spent running all enabled probes for one device.",
		Buckets: prometheus.DefBuckets,
	})
	probeExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpad_probe_executions_total",
			Help: "Probe executions by outcome.",
		},
		[]string{"probe", "outcome"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netpad_probe_duration_seconds",
			Help:    "Probe execution time.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"probe"},
	)
	workerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netpad_worker_failures_total",
		Help: "Poller workers restarted after an escalated probe failure.",
	})
)

// Probe execution outcomes used as metric labels.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSoft    = "soft_failure"
)

func init() {
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(queueCapacity)
	prometheus.MustRegister(deviceEnqueues)
	prometheus.MustRegister(configRepairs)
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(probeExecutions)
	prometheus.MustRegister(probeDuration)
	prometheus.MustRegister(workerFailures)
}
