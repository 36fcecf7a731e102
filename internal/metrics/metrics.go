package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// KindLatency labels measurements produced by stage traces.
	KindLatency = "latency"
	// KindThroughput labels measurements produced by throughput reports.
	KindThroughput = "throughput"

	// DeliveryDelivered labels alerts handed to a sink successfully.
	DeliveryDelivered = "delivered"
	// DeliveryFailed labels alerts a sink rejected.
	DeliveryFailed = "failed"
	// DeliverySuppressed labels alerts dropped by the cooldown gate.
	DeliverySuppressed = "suppressed"
)

var (
	measurementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_monitor",
			Name:      "measurements_total",
			Help:      "Total number of recorded measurements, partitioned by stage and kind.",
		},
		[]string{"stage", "kind"},
	)

	sloEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_monitor",
			Name:      "slo_evaluations_total",
			Help:      "Total number of SLO evaluations, partitioned by resulting status.",
		},
		[]string{"status"},
	)

	sloViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_monitor",
			Name:      "slo_violations_total",
			Help:      "Total number of recorded SLO violations, partitioned by SLO and status.",
		},
		[]string{"slo", "status"},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pipeline_monitor",
			Name:      "tick_seconds",
			Help:      "Duration of one monitoring cycle in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	persistenceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pipeline_monitor",
			Name:      "persistence_failures_total",
			Help:      "Total number of failed measurement or violation persistence attempts.",
		},
	)

	alertDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_monitor",
			Name:      "alert_deliveries_total",
			Help:      "Total number of alert delivery attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches pipeline-monitor collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		measurementsTotal,
		sloEvaluationsTotal,
		sloViolationsTotal,
		tickDurationSeconds,
		persistenceFailuresTotal,
		alertDeliveriesTotal,
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

// ObserveMeasurement counts one recorded measurement for a stage.
func ObserveMeasurement(stage, kind string) {
	measurementsTotal.WithLabelValues(stage, kind).Inc()
}

// ObserveEvaluation counts one SLO evaluation outcome.
func ObserveEvaluation(status string) {
	sloEvaluationsTotal.WithLabelValues(status).Inc()
}

// ObserveViolation counts one recorded violation.
func ObserveViolation(slo, status string) {
	sloViolationsTotal.WithLabelValues(slo, status).Inc()
}

// ObserveTick records the duration of one monitoring cycle.
func ObserveTick(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	tickDurationSeconds.Observe(duration.Seconds())
}

// ObservePersistenceFailure counts one failed persistence attempt.
func ObservePersistenceFailure() {
	persistenceFailuresTotal.Inc()
}

// ObserveAlertDelivery counts one alert delivery attempt outcome.
func ObserveAlertDelivery(outcome string) {
	alertDeliveriesTotal.WithLabelValues(outcome).Inc()
}
