package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ResultSuccess labels successful executions.
	ResultSuccess = "success"
	// ResultFailure labels failed executions.
	ResultFailure = "failure"
)

var (
	eventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "events_ingested_total",
			Help:      "Events handed to the pipeline, partitioned by source.",
		},
		[]string{"source"},
	)

	anomalyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Name:      "anomaly_score",
			Help:      "Distribution of anomaly scores produced by the scorer.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "decisions_total",
			Help:      "Anomaly evaluations by category and terminal outcome.",
		},
		[]string{"category", "outcome"},
	)

	healingActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "healing_actions_total",
			Help:      "Remediation actions executed, partitioned by action and result.",
		},
		[]string{"action", "result"},
	)

	healingDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Name:      "healing_duration_seconds",
			Help:      "Remediation action latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"action"},
	)

	monitorTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "monitor_ticks_total",
			Help:      "Monitor loop ticks partitioned by result.",
		},
		[]string{"result"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "alerts_total",
			Help:      "Alerts raised, partitioned by kind.",
		},
		[]string{"kind"},
	)
)

// Register attaches aegis collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsIngestedTotal,
		anomalyScore,
		decisionsTotal,
		healingActionsTotal,
		healingDurationSeconds,
		monitorTicksTotal,
		alertsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngested counts events accepted from a source.
func ObserveIngested(source string, n int) {
	if n <= 0 {
		return
	}
	eventsIngestedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveScore records a scorer output.
func ObserveScore(score float64) {
	anomalyScore.Observe(score)
}

// ObserveDecision counts a terminal evaluation state.
func ObserveDecision(category, outcome string) {
	decisionsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveHealing records an action duration and its result.
func ObserveHealing(action string, duration time.Duration, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	healingActionsTotal.WithLabelValues(action, result).Inc()
	if duration < 0 {
		duration = 0
	}
	healingDurationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

// ObserveMonitorTick counts a monitor tick.
func ObserveMonitorTick(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	monitorTicksTotal.WithLabelValues(result).Inc()
}

// ObserveAlert counts a raised alert.
func ObserveAlert(kind string) {
	alertsTotal.WithLabelValues(kind).Inc()
}
